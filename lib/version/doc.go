// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the macaroni
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit]: short git SHA of the build
//   - [GitDirty]: "true" if there were uncommitted changes
//   - [BuildTime]: UTC timestamp of the build
//   - [Version]: semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/macaroni-sandbox/macaroni/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Info] is the one-line form used by `macaroni version` and the
// status action; [Full] adds the Go version and platform.
package version
