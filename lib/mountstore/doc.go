// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package mountstore moves a sandbox's mount table between the control
// plane and the preload library.
//
// The control plane writes the table with [Write], which returns the
// file path and its BLAKE3 digest. Both travel to the sandboxed process
// through the environment ([EnvConfig] and [EnvDigest]). Inside that
// process a [Store] resolves the environment, reads the file, verifies
// the digest, and parses the table exactly once. Every later call
// returns the memoized result, so the table a process sees never
// changes after attach.
//
// Failure to load is fatal for a confined process: there is no
// unconfined fallback. [Store.MustLoad] aborts the process.
package mountstore
