// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Default HTTP server timeouts. There is no write timeout: a run request
// lasts as long as its command, which the sandbox runner bounds.
const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:8080".
	Address string

	Handler http.Handler

	// ShutdownTimeout bounds how long Serve waits for in-flight
	// requests after its context is cancelled. Zero means 10s.
	ShutdownTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPServer runs an http.Handler with the lifecycle of SocketServer:
// Serve binds, signals Ready, and returns once its context is cancelled
// and in-flight requests have drained.
type HTTPServer struct {
	config HTTPServerConfig
	ready  chan struct{}
	addr   net.Addr
}

// NewHTTPServer validates config and returns a server ready to Serve.
func NewHTTPServer(config HTTPServerConfig) (*HTTPServer, error) {
	var problems []error
	if config.Address == "" {
		problems = append(problems, errors.New("address is required"))
	}
	if config.Handler == nil {
		problems = append(problems, errors.New("handler is required"))
	}
	if err := errors.Join(problems...); err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &HTTPServer{config: config, ready: make(chan struct{})}, nil
}

// Ready is closed once the listener is bound.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address. Valid after Ready is closed.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve listens and serves until ctx is cancelled.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)
	logger := s.config.Logger.With("address", s.addr.String())

	server := &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	failed := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		failed <- err
	}()
	logger.Info("http server listening")

	select {
	case err := <-failed:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("http server draining", "timeout", s.config.ShutdownTimeout)
	drainContext, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainContext); err != nil {
		server.Close()
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
