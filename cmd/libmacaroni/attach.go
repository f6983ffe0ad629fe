// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && cgo

// Command libmacaroni builds the preload library that confines a
// sandboxed process to its mount table:
//
//	go build -buildmode=c-shared -o libmacaroni.so ./cmd/libmacaroni
//
// The library is injected with LD_PRELOAD. At load time it reads the
// mount table named by MACARONI_CONFIG, and from then on every
// intercepted C library call with a path argument resolves that path
// against the table before reaching the kernel. A process whose table
// is missing or invalid is aborted before it can touch the filesystem.
package main

/*
#cgo LDFLAGS: -ldl

extern const char *macaroni_image_path(void);
extern int macaroni_fallback_count(void);
*/
import "C"

import (
	"fmt"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
	"github.com/macaroni-sandbox/macaroni/lib/interpose/selfcall"
	"github.com/macaroni-sandbox/macaroni/lib/mountstore"
	"github.com/macaroni-sandbox/macaroni/lib/process"
	"github.com/macaroni-sandbox/macaroni/lib/remap"
	"github.com/macaroni-sandbox/macaroni/lib/shim"
)

// Set once by init and read-only afterwards. Exports called before
// init finishes block in the Go runtime until it has.
var (
	table    *interpose.Table
	calls    *dispatch
	detector *selfcall.Detector
)

func init() {
	if err := attach(); err != nil {
		process.Abort(fmt.Errorf("macaroni: %w", err))
	}
}

func attach() error {
	store := mountstore.New(nil)
	config := store.MustLoad()

	image := C.GoString(C.macaroni_image_path())
	confine := shim.Confinement{
		Preload: image,
		Config:  store.Path(),
		Digest:  store.Digest(),
	}
	active := shim.New(remap.New(config.Clone()), shim.HostLibc{Native: native{}}, shim.ProcDirs{}, confine)

	t, err := active.Table()
	if err != nil {
		return fmt.Errorf("building interposition table: %w", err)
	}
	d, err := resolve(t)
	if err != nil {
		return err
	}
	table, calls = t, d

	if C.macaroni_fallback_count() > 0 {
		d, err := selfcall.Self(image)
		if err != nil {
			return fmt.Errorf("locating %s for self-call detection: %w", image, err)
		}
		detector = d
	}
	return nil
}

// unimplemented aborts the process for a call to a symbol the table
// lists without a replacement.
func unimplemented(symbol string) {
	entry, ok := table.Lookup(symbol)
	if ok && entry.Implemented() {
		process.Abort(fmt.Errorf("macaroni: %s reached the unimplemented handler but has a replacement", symbol))
	}
	interpose.FailLoud(symbol)
}

func main() {}
