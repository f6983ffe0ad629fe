// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError makes the process exit with Code without printing an
// "error:" line. Commands return it after writing their own output,
// for example when a sandboxed command exits non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode is checked by main to tell a handled exit from a failure.
func (e *ExitError) ExitCode() int {
	return e.Code
}
