// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package interpose

import (
	"fmt"
	"syscall"
	"unsafe"
)

// Convention is the failure protocol of an intercepted function.
type Convention uint8

const (
	// ReturnInt returns -1 on failure and sets errno (open, stat, ...).
	ReturnInt Convention = iota + 1
	// ReturnSize returns -1 as ssize_t on failure and sets errno
	// (readlink, getxattr, ...).
	ReturnSize
	// ReturnPointer returns NULL on failure and sets errno (opendir,
	// realpath, popen).
	ReturnPointer
	// ReturnStatus returns the error number itself and leaves errno
	// alone (posix_spawn).
	ReturnStatus
)

func (c Convention) String() string {
	switch c {
	case ReturnInt:
		return "int"
	case ReturnSize:
		return "ssize_t"
	case ReturnPointer:
		return "pointer"
	case ReturnStatus:
		return "status"
	default:
		return fmt.Sprintf("Convention(%d)", uint8(c))
	}
}

func (c Convention) valid() bool {
	return c >= ReturnInt && c <= ReturnStatus
}

// NoErrno is the errno slot value meaning "do not write errno". The
// platform binding initializes the slot to it before each call.
const NoErrno int32 = -1

// Number is the set of integer return types an intercepted function
// can have.
type Number interface {
	~int | ~int32 | ~int64 | ~uintptr
}

// Complete converts result into the value the intercepted function
// returns under convention. When the result carries an errno it is
// stored in *slot; otherwise *slot is left as is. The caller must
// write the slot to errno immediately before returning.
func Complete[T Number](result Result[T], convention Convention, slot *int32) T {
	if convention == ReturnStatus {
		if errno, ok := result.Errno(); ok && errno != 0 {
			return T(errno)
		}
		if result.kind == KindFail {
			return T(syscall.EIO)
		}
		return result.value
	}

	if errno, ok := result.Errno(); ok {
		*slot = int32(errno)
	}
	if result.kind == KindFail {
		return sentinel[T](convention)
	}
	return result.value
}

// CompletePointer is [Complete] for functions returning a pointer.
func CompletePointer(result Result[unsafe.Pointer], slot *int32) unsafe.Pointer {
	if errno, ok := result.Errno(); ok {
		*slot = int32(errno)
	}
	if result.kind == KindFail {
		return nil
	}
	return result.value
}

func sentinel[T Number](convention Convention) T {
	if convention == ReturnPointer {
		return 0
	}
	minusOne := -1
	return T(minusOne)
}
