// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets, whose paths are limited to 108 bytes; t.TempDir()
// paths can exceed that. The directory is removed when the test ends.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the select
// with a timeout fallback so that a hung server fails the test instead
// of stalling the run.
//
// All helpers call t.Fatalf on failure.
package testutil
