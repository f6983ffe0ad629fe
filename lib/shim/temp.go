// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"errors"
	"math/rand/v2"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
)

// Temporary files are named and created here rather than by the C
// library, whose generator opens through its private open.

const (
	// tempDirectory is P_tmpdir.
	tempDirectory = "/tmp"

	templateMarker = "XXXXXX"
	templateChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// tempAttempts is TMP_MAX of the C library.
	tempAttempts = 62 * 62 * 62
)

// Mkostemps serves the whole mkstemp family: mkstemp is (0, 0),
// mkostemp (0, flags), mkstemps (suffixLen, 0). template is rewritten
// in place with the name that was created, in the virtual namespace.
func (s *Shim) Mkostemps(template []byte, suffixLen, flags int) interpose.Result[int] {
	return count(openTemp(s.libc, template, suffixLen, flags, s.path))
}

// Mkdtemp creates a directory from template and returns template.
func (s *Shim) Mkdtemp(template []byte) interpose.Result[unsafe.Pointer] {
	return tempDir(s.libc, template, s.path)
}

// Tmpfile also serves tmpfile64. The file is created under the mapped
// /tmp and has no name.
func (s *Shim) Tmpfile() interpose.Result[unsafe.Pointer] {
	return tmpfile(s.libc, s.path)
}

// fillTemplate replaces the six X characters that precede the suffix
// of template with random ones, trying create with each candidate
// until it succeeds or fails with anything but EEXIST.
func fillTemplate(template []byte, suffixLen int, create func(name string) error) error {
	if suffixLen < 0 || len(template) < len(templateMarker)+suffixLen {
		return unix.EINVAL
	}
	end := len(template) - suffixLen
	random := template[end-len(templateMarker) : end]
	if string(random) != templateMarker {
		return unix.EINVAL
	}
	for range tempAttempts {
		for i := range random {
			random[i] = templateChars[rand.IntN(len(templateChars))]
		}
		if err := create(string(template)); !errors.Is(err, unix.EEXIST) {
			return err
		}
	}
	return unix.EEXIST
}

// openTemp is mkostemps over libc with each candidate mapped through
// mapPath. Only O_APPEND, O_CLOEXEC, and O_SYNC are honored in flags.
func openTemp(libc Libc, template []byte, suffixLen, flags int, mapPath func(string) string) (int, error) {
	flags = flags&(unix.O_APPEND|unix.O_CLOEXEC|unix.O_SYNC) | unix.O_RDWR | unix.O_CREAT | unix.O_EXCL
	fd := -1
	err := fillTemplate(template, suffixLen, func(name string) error {
		var err error
		fd, err = libc.Open(mapPath(name), flags, 0600)
		return err
	})
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func tempDir(libc Libc, template []byte, mapPath func(string) string) interpose.Result[unsafe.Pointer] {
	err := fillTemplate(template, 0, func(name string) error {
		return libc.Mkdir(mapPath(name), 0700)
	})
	if err != nil {
		return interpose.Fail[unsafe.Pointer](interpose.ErrnoOf(err))
	}
	return interpose.Ok(unsafe.Pointer(unsafe.SliceData(template)))
}

// tmpfile opens an unnamed file with O_TMPFILE, or creates a named one
// and unlinks it where the filesystem lacks O_TMPFILE, and wraps the
// descriptor in a stdio stream.
func tmpfile(libc Libc, mapPath func(string) string) interpose.Result[unsafe.Pointer] {
	fd, err := libc.Open(mapPath(tempDirectory), unix.O_RDWR|unix.O_TMPFILE|unix.O_EXCL, 0600)
	if errors.Is(err, unix.EISDIR) || errors.Is(err, unix.EOPNOTSUPP) {
		name := []byte(tempDirectory + "/tmpf" + templateMarker)
		fd, err = openTemp(libc, name, 0, 0, mapPath)
		if err == nil {
			libc.Unlink(mapPath(string(name)))
		}
	}
	if err != nil {
		return interpose.Fail[unsafe.Pointer](interpose.ErrnoOf(err))
	}
	stream, err := libc.Fdopen(fd, "w+")
	if err != nil {
		libc.Close(fd)
		return interpose.Fail[unsafe.Pointer](interpose.ErrnoOf(err))
	}
	return interpose.Ok(stream)
}
