// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox holds the control plane's view of sandboxes: which
// exist, which mount table each was created with, and how to run a
// command confined to that table.
//
// The central type is [Manager]. A sandbox moves through
// none -> created -> destroyed; there is no way back from destroyed, and
// ids are never reused. Create materializes the mount table under the
// state directory with [mountstore.Write], so a command run in the
// sandbox finds it through MACARONI_CONFIG once the preload library
// attaches.
//
// The registry is a map guarded by a sync.RWMutex. Create and Destroy
// take the write lock; lookups and the existence check in RunCommand
// take the read lock. The lock is released before the command runs,
// so a long command never blocks other requests. A Destroy that races
// with a RunCommand that has already passed its check does not cancel
// the command; the command keeps the file descriptors it opened.
//
// Commands are executed by a [Runner]. [ExecRunner] starts them with
// os/exec, caps captured output per stream, and enforces a timeout.
// [Validator] performs the daemon's pre-flight checks on the shim
// library and the state directory.
package sandbox
