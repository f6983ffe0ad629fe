// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount defines the mount table that confines a sandboxed
// process: an ordered list of [MountPoint] values, each mapping a
// virtual destination prefix to a [Strategy] describing how paths
// under that prefix are handled.
//
// Strategies form an open tagged union. The JSON "type" field selects
// the strategy, and the remaining fields of the mount object are
// decoded by the strategy's registered decoder. Only [Remap] exists
// today; new strategies are added with [RegisterStrategy] without
// changing the wire format of existing configs. A config naming an
// unregistered type is rejected rather than skipped, because a
// sandboxed process must never run with a partially understood table.
//
// The on-disk format is JSON. Comments and trailing commas are
// accepted (JSONC) so operators can annotate hand-written tables:
//
//	{
//	  "mounts": [
//	    // project sources
//	    {"destination_path": "/foo", "type": "remap", "host_path": "/Volumes/Stuff/foo"},
//	  ]
//	}
//
// This package depends on no other Macaroni packages.
package mount
