// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package service carries the control-plane protocol of macaronid.
//
// The protocol is one CBOR request and one CBOR response per
// connection, over TCP or a Unix socket. A request is a map with an
// "action" key plus action-specific fields. The response is a
// [Response] envelope: {ok, code, error, data}. [SocketServer]
// dispatches actions to registered [ActionFunc] handlers, and
// [ServiceClient] is the matching client.
//
// [RegisterSandboxActions] binds the sandbox lifecycle to the actions
// create, destroy, run-command, list, and status. [SandboxClient]
// calls them with typed requests. A handler reports a failure class
// by wrapping its error with [NotFound] or [InvalidArgument]; anything
// else is internal.
//
// [HTTPServer] runs an http.Handler with the same lifecycle as
// SocketServer: Serve blocks until the context is cancelled and active
// requests drain.
package service
