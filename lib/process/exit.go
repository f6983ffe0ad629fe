// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// AbortExitCode is the status used by [Abort]: the code a shell
// reports for a process killed by SIGABRT.
const AbortExitCode = 134

// exit and stderr are replaced in tests.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(stderr, "error: %v\n", err)
	exit(1)
}

// Abort writes "fatal: err" to stderr and terminates immediately with
// [AbortExitCode]. It is for code running inside a confined process
// (the preload library), where continuing would mean running without
// confinement. Deferred functions do not run.
func Abort(err error) {
	fmt.Fprintf(stderr, "fatal: %v\n", err)
	exit(AbortExitCode)
}
