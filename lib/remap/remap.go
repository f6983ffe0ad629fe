// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package remap translates paths between a sandbox's virtual namespace
// and the host filesystem using a [mount.Config].
//
// Matching is by raw string prefix, not by path component: a mount at
// "/foo" also matches "/foobar". Among matching mounts the longest
// prefix wins, and mounts of equal length are resolved in declaration
// order (first declared wins). A mount with an empty destination is a
// catch-all: it applies only when no non-empty destination matches.
//
// Remapping is not idempotent. When host prefixes overlap destination
// prefixes, Remap(Remap(p)) can differ from Remap(p), so callers must
// remap each path exactly once.
//
// A [Remapper] is immutable after construction and safe for concurrent
// use without locking.
package remap

import (
	"strings"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
)

// Remapper resolves paths against a fixed mount table.
type Remapper struct {
	mounts []entry
}

// entry is a remap mount flattened for the hot path.
type entry struct {
	destination string
	host        string
}

// New builds a Remapper. Mounts with strategies other than remap are
// ignored; they do not participate in path substitution.
func New(cfg *mount.Config) *Remapper {
	r := &Remapper{}
	if cfg == nil {
		return r
	}
	for _, m := range cfg.Mounts {
		host, ok := m.HostPath()
		if !ok {
			continue
		}
		r.mounts = append(r.mounts, entry{destination: m.DestinationPath, host: host})
	}
	return r
}

// Remap returns the host path for a virtual path, or the path itself
// when no mount matches.
func (r *Remapper) Remap(path string) string {
	best, ok := r.match(path)
	if !ok {
		return path
	}
	return best.host + path[len(best.destination):]
}

// match returns the remap mount whose destination is the longest
// prefix of path. The search starts below zero so that an empty
// destination can still be selected as the fallback.
func (r *Remapper) match(path string) (entry, bool) {
	bestLength := -1
	var best entry
	for _, m := range r.mounts {
		if len(m.destination) > bestLength && strings.HasPrefix(path, m.destination) {
			bestLength = len(m.destination)
			best = m
		}
	}
	return best, bestLength >= 0
}

// InverseMap returns the mount whose host path is the longest prefix
// of hostPath. It reports false when hostPath lies outside every
// mount's host prefix.
func (r *Remapper) InverseMap(hostPath string) (mount.MountPoint, bool) {
	best, ok := r.inverse(hostPath)
	if !ok {
		return mount.MountPoint{}, false
	}
	return mount.NewRemap(best.destination, best.host), true
}

func (r *Remapper) inverse(hostPath string) (entry, bool) {
	bestLength := -1
	var best entry
	for _, m := range r.mounts {
		if len(m.host) > bestLength && strings.HasPrefix(hostPath, m.host) {
			bestLength = len(m.host)
			best = m
		}
	}
	return best, bestLength >= 0
}

// VirtualPath translates a host path back into the virtual namespace
// of its governing mount. It reports false when no mount governs
// hostPath.
func (r *Remapper) VirtualPath(hostPath string) (string, bool) {
	owner, ok := r.inverse(hostPath)
	if !ok {
		return "", false
	}
	return owner.destination + hostPath[len(owner.host):], true
}

// RelativeRemap resolves a path given relative to a directory whose
// host location is atHostPath, as done by the *at family of calls.
//
// The directory is first translated back to its virtual path through
// the governing mount; the relative path is joined onto it and the
// result is forward-remapped like [Remapper.Remap]. A directory that
// no mount governs yields false: it must not be treated as
// unconfined.
func (r *Remapper) RelativeRemap(atHostPath, relative string) (string, bool) {
	virtualDir, ok := r.VirtualPath(atHostPath)
	if !ok {
		return "", false
	}
	return r.Remap(joinVirtual(virtualDir, relative)), true
}

func joinVirtual(dir, relative string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + relative
	}
	return dir + "/" + relative
}

// Len returns the number of remap mounts in the table.
func (r *Remapper) Len() int {
	return len(r.mounts)
}
