// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/macaroni-sandbox/macaroni/lib/codec"
	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/lib/version"
	"github.com/macaroni-sandbox/macaroni/sandbox"
)

// Sandboxes is the part of [sandbox.Manager] the control plane serves.
type Sandboxes interface {
	Create(ctx context.Context, mounts *mount.Config) (uuid.UUID, error)
	Destroy(ctx context.Context, id uuid.UUID) error
	RunCommand(ctx context.Context, id uuid.UUID, args []string) (*sandbox.RunResult, error)
	List() []sandbox.Sandbox
	Len() int
}

// SandboxService implements the sandbox operations on typed requests.
// Its errors carry response codes. Both the CBOR actions and the HTTP
// gateway call it.
type SandboxService struct {
	sandboxes Sandboxes
	startedAt time.Time
	now       func() time.Time
}

// NewSandboxService wraps sandboxes. startedAt is reported as uptime by
// Status.
func NewSandboxService(sandboxes Sandboxes, startedAt time.Time) *SandboxService {
	return &SandboxService{sandboxes: sandboxes, startedAt: startedAt, now: time.Now}
}

// Create registers a sandbox over the requested mounts and returns its
// id. A rejected mount table is an invalid argument.
func (s *SandboxService) Create(ctx context.Context, request CreateRequest) (*CreateResponse, error) {
	id, err := s.sandboxes.Create(ctx, MountConfig(request.Mounts))
	if err != nil {
		return nil, SandboxError(err)
	}
	return &CreateResponse{ID: id}, nil
}

// Destroy removes the sandbox named by request. An unknown id is
// not_found.
func (s *SandboxService) Destroy(ctx context.Context, request SandboxRequest) error {
	id, err := ParseID(request.ID)
	if err != nil {
		return err
	}
	return SandboxError(s.sandboxes.Destroy(ctx, id))
}

// RunCommand runs request.Args inside the sandbox and waits for it to
// exit. A non-zero exit status is a result, not an error.
func (s *SandboxService) RunCommand(ctx context.Context, request RunCommandRequest) (*RunCommandResponse, error) {
	id, err := ParseID(request.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.sandboxes.RunCommand(ctx, id, request.Args)
	if err != nil {
		return nil, SandboxError(err)
	}
	return NewRunCommandResponse(result), nil
}

// List returns every registered sandbox.
func (s *SandboxService) List() *ListResponse {
	snapshots := s.sandboxes.List()
	response := &ListResponse{Sandboxes: make([]SandboxInfo, 0, len(snapshots))}
	for _, snapshot := range snapshots {
		response.Sandboxes = append(response.Sandboxes, NewSandboxInfo(snapshot))
	}
	return response
}

// Status reports the daemon version, sandbox count, and uptime.
func (s *SandboxService) Status() *StatusResponse {
	return &StatusResponse{
		Version:       version.Info(),
		Sandboxes:     s.sandboxes.Len(),
		UptimeSeconds: int64(s.now().Sub(s.startedAt) / time.Second),
	}
}

// ParseID parses a sandbox id. A malformed id is an invalid argument.
func ParseID(text string) (uuid.UUID, error) {
	if text == "" {
		return uuid.Nil, InvalidArgument(errors.New("missing required field: id"))
	}
	id, err := uuid.Parse(text)
	if err != nil {
		return uuid.Nil, InvalidArgument(fmt.Errorf("invalid sandbox id %q: %w", text, err))
	}
	return id, nil
}

// SandboxError attaches a response code to an error from the sandbox
// manager.
func SandboxError(err error) error {
	if err == nil {
		return nil
	}
	var configErr *mount.ConfigError
	switch {
	case errors.Is(err, sandbox.ErrNotFound):
		return NotFound(err)
	case errors.Is(err, sandbox.ErrEmptyCommand),
		errors.Is(err, exec.ErrNotFound),
		errors.As(err, &configErr):
		return InvalidArgument(err)
	}
	return err
}

// Action names of the sandbox protocol.
const (
	ActionCreate     = "create"
	ActionDestroy    = "destroy"
	ActionRunCommand = "run-command"
	ActionList       = "list"
	ActionStatus     = "status"
)

// RegisterSandboxActions binds the sandbox actions on server to svc.
func RegisterSandboxActions(server *SocketServer, svc *SandboxService) {
	server.Handle(ActionCreate, func(ctx context.Context, raw []byte) (any, error) {
		var request CreateRequest
		if err := decodeRequest(raw, &request); err != nil {
			return nil, err
		}
		return svc.Create(ctx, request)
	})
	server.Handle(ActionDestroy, func(ctx context.Context, raw []byte) (any, error) {
		var request SandboxRequest
		if err := decodeRequest(raw, &request); err != nil {
			return nil, err
		}
		return nil, svc.Destroy(ctx, request)
	})
	server.Handle(ActionRunCommand, func(ctx context.Context, raw []byte) (any, error) {
		var request RunCommandRequest
		if err := decodeRequest(raw, &request); err != nil {
			return nil, err
		}
		return svc.RunCommand(ctx, request)
	})
	server.Handle(ActionList, func(ctx context.Context, raw []byte) (any, error) {
		return svc.List(), nil
	})
	server.Handle(ActionStatus, func(ctx context.Context, raw []byte) (any, error) {
		return svc.Status(), nil
	})
}

func decodeRequest(raw []byte, target any) error {
	if err := codec.Unmarshal(raw, target); err != nil {
		return InvalidArgument(fmt.Errorf("invalid request: %w", err))
	}
	return nil
}

// SandboxClient calls the sandbox actions.
type SandboxClient struct {
	client *ServiceClient
}

// NewSandboxClient creates a client for the daemon at address.
func NewSandboxClient(network, address string) *SandboxClient {
	return &SandboxClient{client: NewServiceClient(network, address)}
}

// Create asks the daemon for a sandbox over mounts and returns its id.
// A nil mounts is sent as an empty table.
func (c *SandboxClient) Create(ctx context.Context, mounts []MountSpec) (uuid.UUID, error) {
	if mounts == nil {
		mounts = []MountSpec{}
	}
	var response CreateResponse
	if err := c.client.Call(ctx, ActionCreate, map[string]any{"mounts": mounts}, &response); err != nil {
		return uuid.Nil, err
	}
	return response.ID, nil
}

// Destroy removes sandbox id. Use [IsNotFound] to tell an unknown id
// from a transport failure.
func (c *SandboxClient) Destroy(ctx context.Context, id uuid.UUID) error {
	return c.client.Call(ctx, ActionDestroy, map[string]any{"id": id.String()}, nil)
}

// RunCommand runs args in sandbox id and returns its exit status and
// output once it finishes. ctx bounds the wait.
func (c *SandboxClient) RunCommand(ctx context.Context, id uuid.UUID, args []string) (*RunCommandResponse, error) {
	var response RunCommandResponse
	fields := map[string]any{"id": id.String(), "args": args}
	if err := c.client.Call(ctx, ActionRunCommand, fields, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// List returns the daemon's registered sandboxes.
func (c *SandboxClient) List(ctx context.Context) ([]SandboxInfo, error) {
	var response ListResponse
	if err := c.client.Call(ctx, ActionList, nil, &response); err != nil {
		return nil, err
	}
	return response.Sandboxes, nil
}

// Status returns the daemon's version, sandbox count, and uptime.
func (c *SandboxClient) Status(ctx context.Context) (*StatusResponse, error) {
	var response StatusResponse
	if err := c.client.Call(ctx, ActionStatus, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
