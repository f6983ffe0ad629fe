// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// DefaultMaxOutputBytes caps each captured stream when no limit is
// configured.
const DefaultMaxOutputBytes = 4 << 20

// waitDelay bounds how long Run waits for output pipes to drain after
// the command has been killed. Grandchildren holding the pipes open
// would otherwise keep Run blocked.
const waitDelay = 2 * time.Second

// RunRequest is one command execution.
type RunRequest struct {
	// Args is the command and its arguments. Args[0] is resolved
	// against PATH on the host.
	Args []string

	// Env is the complete environment of the command.
	Env []string

	// Dir is the working directory. Empty means the daemon's.
	Dir string
}

// RunResult is the outcome of a command that was started.
type RunResult struct {
	// ExitCode is the exit status, or 128 plus the signal number when
	// the command was killed by a signal.
	ExitCode int

	Stdout []byte
	Stderr []byte

	// StdoutTruncated and StderrTruncated report that the stream
	// produced more than the capture limit; the excess was discarded.
	StdoutTruncated bool
	StderrTruncated bool

	// TimedOut reports that the command was killed because it ran past
	// the runner's timeout.
	TimedOut bool

	Duration time.Duration
}

// Runner executes a command. It returns an error only when the command
// could not be started or waited for; a non-zero exit is a result.
type Runner interface {
	Run(ctx context.Context, request RunRequest) (*RunResult, error)
}

// ExecRunner runs commands as child processes of the daemon.
type ExecRunner struct {
	// MaxOutputBytes caps each captured stream. Zero or negative uses
	// DefaultMaxOutputBytes.
	MaxOutputBytes int

	// Timeout kills the command after this long. Zero means no limit
	// beyond ctx.
	Timeout time.Duration
}

// Run implements [Runner].
func (r *ExecRunner) Run(ctx context.Context, request RunRequest) (*RunResult, error) {
	if len(request.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	limit := r.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}

	runContext := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runContext, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}

	cmd := exec.CommandContext(runContext, request.Args[0], request.Args[1:]...)
	cmd.Env = request.Env
	cmd.Dir = request.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	result := &RunResult{
		Stdout:          stdout.Bytes(),
		Stderr:          stderr.Bytes(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		Duration:        time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("starting %s: %w", request.Args[0], err)
		}
		result.ExitCode = exitCode(exitErr)
		if r.Timeout > 0 && errors.Is(runContext.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			result.TimedOut = true
		}
	}
	return result, nil
}

func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

// ExitError represents a non-zero exit of a sandboxed command, for
// callers that want a failed command as an error.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// Err returns an *ExitError for a non-zero exit, or nil.
func (r *RunResult) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Code: r.ExitCode}
}

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// cappedBuffer keeps the first limit bytes written to it and discards
// the rest. Writes always succeed so the command never sees a broken
// pipe because of the cap.
type cappedBuffer struct {
	data      []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.data)
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.data = append(b.data, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.data
}
