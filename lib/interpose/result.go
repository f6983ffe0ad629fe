// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package interpose

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind identifies the variant of a [Result].
type Kind uint8

const (
	// KindOk is a success value with errno left alone.
	KindOk Kind = iota
	// KindOkLastErrno is a value paired with whatever errno the
	// underlying call produced.
	KindOkLastErrno
	// KindOkWithErrno is a value paired with an explicit errno.
	KindOkWithErrno
	// KindFail is a failure: the convention's sentinel is returned and
	// errno is set.
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindOkLastErrno:
		return "ok-last-errno"
	case KindOkWithErrno:
		return "ok-with-errno"
	case KindFail:
		return "fail"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Result is the outcome of one replacement body.
type Result[T any] struct {
	kind  Kind
	value T
	errno syscall.Errno
}

// Ok returns a success value. errno is not written.
func Ok[T any](value T) Result[T] {
	return Result[T]{kind: KindOk, value: value}
}

// OkLastErrno returns value together with the errno carried by err,
// the error of the underlying call. A nil err leaves errno untouched,
// matching a C call that succeeded.
func OkLastErrno[T any](value T, err error) Result[T] {
	return Result[T]{kind: KindOkLastErrno, value: value, errno: ErrnoOf(err)}
}

// OkWithErrno returns value and overrides errno with the given code.
func OkWithErrno[T any](value T, errno syscall.Errno) Result[T] {
	return Result[T]{kind: KindOkWithErrno, value: value, errno: errno}
}

// Fail reports failure with errno. The returned value is the
// convention's sentinel, chosen by [Complete].
func Fail[T any](errno syscall.Errno) Result[T] {
	return Result[T]{kind: KindFail, errno: errno}
}

// Kind reports the variant.
func (r Result[T]) Kind() Kind { return r.kind }

// Value returns the success value. It is the zero value for KindFail.
func (r Result[T]) Value() T { return r.value }

// Errno returns the errno this result writes, and whether it writes
// one at all.
func (r Result[T]) Errno() (syscall.Errno, bool) {
	switch r.kind {
	case KindOkLastErrno:
		return r.errno, r.errno != 0
	case KindOkWithErrno, KindFail:
		return r.errno, true
	default:
		return 0, false
	}
}

// ErrnoOf extracts the errno from an error returned by a system call
// wrapper. A nil error yields 0. Errors that carry no errno map to
// EIO.
func ErrnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
