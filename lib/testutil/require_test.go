// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test.
type recorder struct {
	failed  bool
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
	panic(r)
}

func expectFatal(t *testing.T, run func(r *recorder)) *recorder {
	t.Helper()
	r := &recorder{}
	func() {
		defer func() {
			if recovered := recover(); recovered != nil && recovered != r {
				panic(recovered)
			}
		}()
		run(r)
	}()
	return r
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}

	r := expectFatal(t, func(r *recorder) {
		RequireReceive(r, make(chan int), 10*time.Millisecond, "waiting for %s", "nothing")
	})
	if !r.failed || r.message != "timed out after 10ms: waiting for nothing" {
		t.Errorf("timeout message = %q", r.message)
	}

	closed := make(chan int)
	close(closed)
	r = expectFatal(t, func(r *recorder) {
		RequireReceive(r, closed, time.Second)
	})
	if !r.failed {
		t.Error("expected failure on a closed channel")
	}
}

func TestRequireSendAndClosed(t *testing.T) {
	ch := make(chan string, 1)
	RequireSend(t, ch, "x", time.Second, "send")
	if <-ch != "x" {
		t.Error("value not delivered")
	}

	r := expectFatal(t, func(r *recorder) {
		RequireSend(r, make(chan string), "y", 10*time.Millisecond)
	})
	if !r.failed {
		t.Error("expected failure sending on a full channel")
	}

	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second, "closed")

	r = expectFatal(t, func(r *recorder) {
		RequireClosed(r, make(chan struct{}), 10*time.Millisecond, "ready")
	})
	if !r.failed {
		t.Error("expected failure on an open channel")
	}
}

func TestSocketDir(t *testing.T) {
	dir := SocketDir(t)
	if len(dir) > 40 {
		t.Errorf("socket directory %q is too long", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("socket directory missing: %v", err)
	}
}
