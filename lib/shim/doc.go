// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package shim holds the replacement bodies for every C library entry
// point the preload library intercepts.
//
// A [Shim] is the context the replacements run in: the immutable
// [remap.Remapper] built from the sandbox's mount table, the [Libc]
// that performs the real calls, the [DirResolver] that turns a
// directory descriptor into a host path, and the [Confinement] that
// child processes must inherit. It is built once at attach and shared
// by all threads without locking.
//
// Path rules:
//
//   - An absolute path is forward-remapped.
//   - A relative path passed to a call without a directory descriptor,
//     or with AT_FDCWD, is left alone: the working directory is already
//     a host path.
//   - A relative path passed with a directory descriptor is resolved
//     with [remap.Remapper.RelativeRemap] against the directory's host
//     path. A directory outside every mount fails the call with EACCES
//     ([ErrOutsideMounts]).
//   - An empty relative path (AT_EMPTY_PATH) refers to the descriptor
//     itself and is left alone.
//
// Every replacement returns an [interpose.Result]. [Passthrough] has
// the same methods without confinement; [Shim.Table] pairs the two in
// an [interpose.Table].
package shim
