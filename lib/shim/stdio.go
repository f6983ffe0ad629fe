// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"unsafe"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
)

// The calls in this file are implemented inside the C library on top
// of its private open and stat, which never reach the intercepted
// symbols. Each maps its path here and hands the host path to the C
// library's own implementation through [Native].

// Fopen also serves fopen64.
func (s *Shim) Fopen(path, mode string) interpose.Result[unsafe.Pointer] {
	return s.pass.Fopen(s.path(path), mode)
}

// Freopen also serves freopen64. The binding handles a NULL path,
// which reopens the stream's own file, without calling in here.
func (s *Shim) Freopen(path, mode string, stream unsafe.Pointer) interpose.Result[unsafe.Pointer] {
	return s.pass.Freopen(s.path(path), mode, stream)
}

// Statvfs also serves statvfs64. buf is the caller's struct statvfs.
func (s *Shim) Statvfs(path string, buf unsafe.Pointer) interpose.Result[int] {
	return s.pass.Statvfs(s.path(path), buf)
}

func (s *Shim) Pathconf(path string, name int) interpose.Result[int] {
	return s.pass.Pathconf(s.path(path), name)
}

// Scandir also serves scandir64. The entries it returns are names
// only, so nothing in the result needs translating.
func (s *Shim) Scandir(path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int] {
	return s.pass.Scandir(s.path(path), namelist, filter, compar)
}

func (s *Shim) Scandirat(dirfd int, path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Scandirat(dirfd, mapped, namelist, filter, compar)
}
