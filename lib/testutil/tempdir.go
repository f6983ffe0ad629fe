// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// SocketDir returns a short directory under /tmp for Unix sockets,
// removed when the test ends. Socket paths are limited to 108 bytes,
// which t.TempDir() paths can exceed.
func SocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "mac-")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}
