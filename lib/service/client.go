// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/macaroni-sandbox/macaroni/lib/codec"
)

const (
	// dialTimeout bounds the connect only.
	dialTimeout = 5 * time.Second

	// maxResponseSize leaves room for two capped output streams.
	maxResponseSize = 16 << 20
)

// ServiceError is a failure reported by the server (ok=false).
type ServiceError struct {
	Action  string
	Code    Code
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("service error on %q (%s): %s", e.Action, e.Code, e.Message)
}

// IsNotFound reports whether err is a not_found response.
func IsNotFound(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) && serviceErr.Code == CodeNotFound
}

// ServiceClient calls a [SocketServer], one connection per call.
type ServiceClient struct {
	network string
	address string
}

// NewServiceClient returns a client for network ("tcp" or "unix") and
// address.
func NewServiceClient(network, address string) *ServiceClient {
	return &ServiceClient{network: network, address: address}
}

// Call invokes action with fields and decodes the response data into
// result, which may be nil. A failure reported by the server is a
// *ServiceError; anything else is a transport error. Only ctx bounds
// how long Call waits for the response, since run-command lasts as
// long as its command.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.address, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

// send connects, writes the request, and reads the response.
func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Signal end of request.
	if closer, ok := conn.(interface{ CloseWrite() error }); ok {
		closer.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}
