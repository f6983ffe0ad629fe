// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/sandbox"
)

// Request and response bodies of the sandbox actions. The json tags
// name the fields for both CBOR and the HTTP gateway.

// MountSpec is one remap mount of a create request.
type MountSpec struct {
	DestinationPath string `json:"destination_path"`
	HostPath        string `json:"host_path"`
}

type CreateRequest struct {
	Mounts []MountSpec `json:"mounts"`
}

type CreateResponse struct {
	ID uuid.UUID `json:"id"`
}

// SandboxRequest names an existing sandbox. ID is kept as text so a
// malformed id is reported as invalid_argument rather than a decode
// failure.
type SandboxRequest struct {
	ID string `json:"id"`
}

type RunCommandRequest struct {
	ID   string   `json:"id"`
	Args []string `json:"args"`
}

type RunCommandResponse struct {
	ExitCode        int    `json:"exit_code"`
	Stdout          []byte `json:"stdout"`
	Stderr          []byte `json:"stderr"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	DurationMillis  int64  `json:"duration_ms"`
}

// SandboxInfo describes a registered sandbox.
type SandboxInfo struct {
	ID         uuid.UUID   `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	ConfigPath string      `json:"config_path"`
	Mounts     []MountSpec `json:"mounts"`
}

type ListResponse struct {
	Sandboxes []SandboxInfo `json:"sandboxes"`
}

type StatusResponse struct {
	Version       string `json:"version"`
	Sandboxes     int    `json:"sandboxes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// MountConfig converts specs to a mount table in declaration order.
func MountConfig(specs []MountSpec) *mount.Config {
	cfg := &mount.Config{Mounts: make([]mount.MountPoint, 0, len(specs))}
	for _, spec := range specs {
		cfg.Mounts = append(cfg.Mounts, mount.NewRemap(spec.DestinationPath, spec.HostPath))
	}
	return cfg
}

// MountSpecs lists the remap mounts of cfg.
func MountSpecs(cfg *mount.Config) []MountSpec {
	if cfg == nil {
		return []MountSpec{}
	}
	specs := make([]MountSpec, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		host, _ := m.HostPath()
		specs = append(specs, MountSpec{DestinationPath: m.DestinationPath, HostPath: host})
	}
	return specs
}

// NewSandboxInfo converts a registry snapshot.
func NewSandboxInfo(s sandbox.Sandbox) SandboxInfo {
	return SandboxInfo{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		ConfigPath: s.ConfigPath,
		Mounts:     MountSpecs(s.Mounts),
	}
}

// NewRunCommandResponse converts a run result.
func NewRunCommandResponse(result *sandbox.RunResult) *RunCommandResponse {
	return &RunCommandResponse{
		ExitCode:        result.ExitCode,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		StdoutTruncated: result.StdoutTruncated,
		StderrTruncated: result.StderrTruncated,
		TimedOut:        result.TimedOut,
		DurationMillis:  result.Duration.Milliseconds(),
	}
}
