// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Command macaroni is the client for macaronid. It creates and destroys
// sandboxes and runs commands inside them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/macaroni-sandbox/macaroni/cmd/macaroni/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	level := slog.LevelWarn
	if os.Getenv(envDebug) != "" {
		level = slog.LevelDebug
	}
	err := newApp(os.Stdout, os.Stderr, cli.NewLogger(level)).root().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		// A sandboxed command's exit status is passed through without
		// an extra error line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
