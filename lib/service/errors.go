// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"net/http"
)

// Code classifies a failed response.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeInvalidArgument Code = "invalid_argument"
	CodeInternal        Code = "internal"
	CodeUnknownAction   Code = "unknown_action"
)

// HTTPStatus returns the HTTP status the gateway uses for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeUnknownAction:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error attaches a response code to a handler error.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// NotFound marks err as referring to a resource that does not exist.
func NotFound(err error) error { return &Error{Code: CodeNotFound, Err: err} }

// InvalidArgument marks err as a problem with the request.
func InvalidArgument(err error) error { return &Error{Code: CodeInvalidArgument, Err: err} }

// CodeOf returns the code attached to err, or CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}
