// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger returns a logger writing to stderr: text when stderr is a
// terminal, JSON otherwise.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(newHandler(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level))
}

func newHandler(w io.Writer, interactive bool, level slog.Level) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if interactive {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}
