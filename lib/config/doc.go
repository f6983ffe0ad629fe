// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for macaronid.
//
// Configuration comes from a single file named by the --config flag or
// the MACARONID_CONFIG environment variable, layered over [Default].
// [Resolve] implements that order and falls back to the defaults when
// neither is given. Unknown keys are rejected.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${MACARONI_ROOT}, and ${VAR:-default} patterns are
// expanded. MACARONI_ROOT is the expanded paths.root. No other
// environment variables override config values.
//
// An example file:
//
//	listen: 0.0.0.0:50051
//	socket_path: /run/macaroni/macaronid.sock
//	http:
//	  listen: 127.0.0.1:8080
//	paths:
//	  root: /var/lib/macaroni
//	  shim_library: /usr/lib/macaroni/libmacaroni.so
//	run:
//	  timeout: 5m
//	  max_output_bytes: 1048576
//	log:
//	  level: debug
package config
