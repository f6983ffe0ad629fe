// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
	"github.com/macaroni-sandbox/macaroni/lib/remap"
)

// ErrOutsideMounts is returned when a directory-relative path is
// resolved against a directory that no mount governs. Replacements
// report it as EACCES.
var ErrOutsideMounts = errors.New("directory is outside every mount")

// DirResolver returns the host path of an open directory descriptor.
// AT_FDCWD denotes the working directory.
type DirResolver interface {
	DirPath(dirfd int) (string, error)
}

// Shim is the immutable context every replacement runs in.
type Shim struct {
	remapper *remap.Remapper
	libc     Libc
	dirs     DirResolver
	confine  Confinement
	pass     Passthrough
}

// New builds the replacement context. All arguments are required
// except confine, whose zero value injects nothing into children.
func New(remapper *remap.Remapper, libc Libc, dirs DirResolver, confine Confinement) *Shim {
	return &Shim{
		remapper: remapper,
		libc:     libc,
		dirs:     dirs,
		confine:  confine,
		pass:     NewPassthrough(libc),
	}
}

// Passthrough returns the unconfined counterpart of s.
func (s *Shim) Passthrough() Passthrough { return s.pass }

// Confinement returns the environment children inherit.
func (s *Shim) Confinement() Confinement { return s.confine }

// path maps a path given without a directory descriptor.
func (s *Shim) path(path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	return s.remapper.Remap(path)
}

// pathAt maps a path given relative to dirfd.
func (s *Shim) pathAt(dirfd int, path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") || dirfd == unix.AT_FDCWD {
		return s.path(path), nil
	}
	dir, err := s.dirs.DirPath(dirfd)
	if err != nil {
		return "", err
	}
	mapped, ok := s.remapper.RelativeRemap(dir, path)
	if !ok {
		return "", ErrOutsideMounts
	}
	return mapped, nil
}

// virtual translates a host path the kernel reported back into the
// virtual namespace. A path that no mount governs, or whose virtual
// form would not remap to it again, is returned unchanged.
func (s *Shim) virtual(host string) string {
	path, ok := s.remapper.VirtualPath(host)
	if !ok || s.remapper.Remap(path) != host {
		return host
	}
	return path
}

// failAt converts a pathAt error into a failed result.
func failAt[T any](err error) interpose.Result[T] {
	if errors.Is(err, ErrOutsideMounts) {
		return interpose.Fail[T](unix.EACCES)
	}
	return interpose.Fail[T](interpose.ErrnoOf(err))
}
