// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration used by the control
// plane's socket protocol.
//
// JSON is used where people or other tools read the data: mount table
// files, the HTTP gateway, and CLI --json output. CBOR is used between
// the daemon and its clients on the action socket. Every package
// encodes through this one configuration so that the same value always
// produces the same bytes.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Values implementing encoding.TextMarshaler, such as uuid.UUID, are
// written as text strings, and time.Time as an RFC 3339 string.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that travel over both the socket and the HTTP gateway carry
// only `json` tags; fxamacker/cbor falls back to them when a `cbor`
// tag is absent. Socket-only envelopes use `cbor` tags.
package codec
