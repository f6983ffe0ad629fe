// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the HTTP/JSON gateway of macaronid, built on gin.
//
// Routes:
//
//	POST   /v1/sandboxes          create a sandbox from {"mounts": [...]}
//	GET    /v1/sandboxes          list sandboxes
//	DELETE /v1/sandboxes/:id      destroy a sandbox
//	POST   /v1/sandboxes/:id/run  run {"args": [...]} in a sandbox
//	GET    /health                liveness and sandbox count
//	GET    /metrics               Prometheus exposition
//
// Every sandbox route calls the same [service.SandboxService] as the
// CBOR protocol, so both transports report the same error classes.
// A not_found error is HTTP 404 and a request that fails validation is
// HTTP 400. Command output is returned as JSON strings; bytes that are
// not valid UTF-8 are replaced with U+FFFD.
package httpapi
