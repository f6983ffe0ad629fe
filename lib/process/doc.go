// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for Macaroni binaries
// and for the preload library. These functions centralize the raw I/O
// that happens before a structured logger exists or in places where
// none ever will:
//
//   - Fatal error reporting from main() when the logger may not be
//     initialized.
//   - Fail-closed termination of a confined process whose mount table
//     cannot be loaded or which reached an unimplemented entry point.
package process
