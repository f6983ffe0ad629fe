// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/macaroni-sandbox/macaroni/lib/codec"
)

// ActionFunc handles one action. raw is the whole CBOR request map,
// "action" key included, so the handler decodes its own fields from
// it. A nil result produces {ok: true}; anything else is encoded into
// the response's data. A returned error is reported with [CodeOf].
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  Code             `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Connection limits. The read deadline covers only the request: once
// it is decoded the handler may run as long as the command it starts.
const (
	requestTimeout = 30 * time.Second
	replyTimeout   = 10 * time.Second
	maxRequestSize = 1 << 20
)

// SocketServer answers one CBOR request per connection on a TCP or
// Unix stream listener. Actions are registered with Handle before
// Serve is called.
type SocketServer struct {
	network  string
	address  string
	handlers map[string]ActionFunc
	logger   *slog.Logger

	inflight sync.WaitGroup
	ready    chan struct{}
	addr     net.Addr
}

// NewSocketServer returns a server for network ("tcp" or "unix") and
// address. A nil logger means slog.Default().
func NewSocketServer(network, address string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		network:  network,
		address:  address,
		handlers: make(map[string]ActionFunc),
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Handle registers handler for action. Registering an action twice
// panics.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, taken := s.handlers[action]; taken {
		panic(fmt.Sprintf("service: action %q registered twice", action))
	}
	s.handlers[action] = handler
}

// Actions is the number of registered actions.
func (s *SocketServer) Actions() int { return len(s.handlers) }

// Ready is closed once the listener is bound.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address. Valid after Ready is closed.
func (s *SocketServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests to finish. A Unix socket path is cleared of any
// stale socket before binding and removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket %s: %w", s.address, err)
		}
		defer os.Remove(s.address)
	}
	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", s.network, s.address, err)
	}
	return s.serve(ctx, listener)
}

func (s *SocketServer) serve(ctx context.Context, listener net.Listener) error {
	s.addr = listener.Addr()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer listener.Close()

	s.logger.Info("socket server listening",
		"network", s.addr.Network(),
		"address", s.addr.String(),
		"actions", len(s.handlers),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			defer conn.Close()
			s.answer(ctx, conn)
		}()
	}

	s.inflight.Wait()
	s.logger.Info("socket server stopped", "address", s.addr.String())
	return nil
}

// answer reads one request from conn and writes its response.
func (s *SocketServer) answer(ctx context.Context, conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	var raw codec.RawMessage
	err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw)
	if errors.Is(err, io.EOF) {
		// Connected and hung up without a request.
		return
	}
	conn.SetReadDeadline(time.Time{})

	var response Response
	if err != nil {
		response = failure(CodeInvalidArgument, fmt.Sprintf("invalid request: %v", err))
	} else {
		response = s.dispatch(ctx, raw)
	}

	conn.SetWriteDeadline(time.Now().Add(replyTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("writing response failed", "error", err)
	}
}

// dispatch routes a decoded request to its action and builds the
// response.
func (s *SocketServer) dispatch(ctx context.Context, raw codec.RawMessage) Response {
	var request struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return failure(CodeInvalidArgument, fmt.Sprintf("invalid request: %v", err))
	}
	if request.Action == "" {
		return failure(CodeInvalidArgument, "missing required field: action")
	}
	handler, ok := s.handlers[request.Action]
	if !ok {
		return failure(CodeUnknownAction, fmt.Sprintf("unknown action %q", request.Action))
	}

	result, err := handler(ctx, raw)
	if err != nil {
		code := CodeOf(err)
		s.logger.Debug("action failed", "action", request.Action, "code", code, "error", err)
		return failure(code, err.Error())
	}
	if result == nil {
		return Response{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return failure(CodeInternal, fmt.Sprintf("encoding %s result: %v", request.Action, err))
	}
	return Response{OK: true, Data: data}
}

func failure(code Code, message string) Response {
	return Response{Code: code, Error: message}
}
