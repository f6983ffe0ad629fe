// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package interpose is the platform-agnostic half of symbol
// interposition: the registration table of replacement/original pairs
// and the conversion of a replacement's outcome into C calling
// convention.
//
// A replacement body never touches errno. It returns a [Result], which
// says whether the call succeeded and which errno, if any, the caller
// must observe. [Complete] turns that into the C return value plus an
// errno value that the platform binding stores as the last action
// before returning to the caller, so no other libc call can overwrite
// it in between.
//
// The [Table] is built once when the preload library attaches. Each
// [Entry] pairs the replacement for a symbol with the original (the
// pass-through that performs the call without confinement). Building
// the table checks that the two have identical Go function types,
// variadic-ness included, so a replacement can never drift from the
// signature it stands in for. Symbols without a replacement are
// registered with [Unimplemented]: calling them aborts the process
// rather than letting the call through unconfined.
package interpose
