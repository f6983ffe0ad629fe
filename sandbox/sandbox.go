// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/lib/mountstore"
)

var (
	// ErrNotFound is returned for an id that was never created or has
	// already been destroyed.
	ErrNotFound = errors.New("sandbox not found")

	// ErrClosed is returned by Create after Close.
	ErrClosed = errors.New("sandbox manager is closed")

	// ErrEmptyCommand is returned by RunCommand when args is empty.
	ErrEmptyCommand = errors.New("command is required")
)

// stateSubdirectory holds one directory per sandbox below the state
// directory.
const stateSubdirectory = "sandboxes"

// Sandbox is a snapshot of one registered sandbox.
type Sandbox struct {
	ID        uuid.UUID
	Mounts    *mount.Config
	CreatedAt time.Time

	// ConfigPath and Digest are the values exported to commands as
	// MACARONI_CONFIG and MACARONI_CONFIG_DIGEST.
	ConfigPath string
	Digest     string

	dir      string
	sequence uint64
}

func (s *Sandbox) snapshot() Sandbox {
	copied := *s
	copied.Mounts = s.Mounts.Clone()
	return copied
}

// Config holds configuration for a Manager.
type Config struct {
	// StateDir is the daemon state directory. Sandboxes are stored in
	// StateDir/sandboxes/<id>.
	StateDir string

	// ShimLibrary is the path of the preload library injected into
	// every command.
	ShimLibrary string

	// Runner executes commands. Defaults to an ExecRunner with
	// DefaultMaxOutputBytes and no timeout.
	Runner Runner

	// Environ returns the base environment for commands. Defaults to
	// os.Environ.
	Environ func() []string

	// Observer receives lifecycle and run events. Optional.
	Observer Observer

	// Logger for lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the sandbox registry.
type Manager struct {
	dir         string
	shimLibrary string
	runner      Runner
	environ     func() []string
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.RWMutex
	sandboxes map[uuid.UUID]*Sandbox
	sequence  uint64
	closed    bool
}

// NewManager creates a Manager and its state directory.
func NewManager(config Config) (*Manager, error) {
	if config.StateDir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if config.ShimLibrary == "" {
		return nil, fmt.Errorf("shim library path is required")
	}

	dir := filepath.Join(config.StateDir, stateSubdirectory)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating sandbox state directory: %w", err)
	}

	manager := &Manager{
		dir:         dir,
		shimLibrary: config.ShimLibrary,
		runner:      config.Runner,
		environ:     config.Environ,
		observer:    config.Observer,
		logger:      config.Logger,
		now:         config.Now,
		sandboxes:   make(map[uuid.UUID]*Sandbox),
	}
	if manager.runner == nil {
		manager.runner = &ExecRunner{MaxOutputBytes: DefaultMaxOutputBytes}
	}
	if manager.environ == nil {
		manager.environ = os.Environ
	}
	if manager.observer == nil {
		manager.observer = nopObserver{}
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	if manager.now == nil {
		manager.now = time.Now
	}
	return manager, nil
}

// Create registers a new sandbox with a private copy of mounts and
// writes the table to its state directory. A nil table is an empty
// one: every path resolves to itself.
func (m *Manager) Create(ctx context.Context, mounts *mount.Config) (uuid.UUID, error) {
	if mounts == nil {
		mounts = &mount.Config{}
	}
	mounts = mounts.Clone()
	if err := mounts.Validate(); err != nil {
		return uuid.Nil, &mount.ConfigError{Source: "request", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	m.warnMountSources(mounts)

	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generating sandbox id: %w", err)
	}
	dir := filepath.Join(m.dir, id.String())
	path, digest, err := mountstore.Write(dir, mounts)
	if err != nil {
		return uuid.Nil, fmt.Errorf("writing mount table for %s: %w", id, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		os.RemoveAll(dir)
		return uuid.Nil, ErrClosed
	}
	m.sequence++
	m.sandboxes[id] = &Sandbox{
		ID:         id,
		Mounts:     mounts,
		CreatedAt:  m.now(),
		ConfigPath: path,
		Digest:     digest,
		dir:        dir,
		sequence:   m.sequence,
	}
	active := len(m.sandboxes)
	m.mu.Unlock()

	m.observer.SandboxCreated(active)
	m.logger.Info("sandbox created", "id", id, "mounts", len(mounts.Mounts), "config", path)
	return id, nil
}

func (m *Manager) warnMountSources(mounts *mount.Config) {
	check := NewValidator()
	check.ValidateMountSources(mounts)
	for _, result := range check.Results() {
		if result.Warning {
			m.logger.Warn("mount source check", "check", result.Name, "message", result.Message)
		}
	}
}

// Destroy removes a sandbox and its state directory. Unknown ids,
// including ids destroyed before, return ErrNotFound.
func (m *Manager) Destroy(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	sandbox, exists := m.sandboxes[id]
	if exists {
		delete(m.sandboxes, id)
	}
	active := len(m.sandboxes)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.observer.SandboxDestroyed(active)
	if err := os.RemoveAll(sandbox.dir); err != nil {
		return fmt.Errorf("removing state for sandbox %s: %w", id, err)
	}
	m.logger.Info("sandbox destroyed", "id", id)
	return nil
}

// Get returns a snapshot of one sandbox.
func (m *Manager) Get(id uuid.UUID) (Sandbox, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sandbox, exists := m.sandboxes[id]
	if !exists {
		return Sandbox{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sandbox.snapshot(), nil
}

// List returns snapshots of all sandboxes in creation order.
func (m *Manager) List() []Sandbox {
	m.mu.RLock()
	list := make([]Sandbox, 0, len(m.sandboxes))
	for _, sandbox := range m.sandboxes {
		list = append(list, sandbox.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].sequence < list[j].sequence
	})
	return list
}

// Len returns the number of live sandboxes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sandboxes)
}

// RunCommand runs args inside a sandbox and returns its exit code and
// captured output. A command that runs and exits non-zero is not an
// error; the code is in the result.
func (m *Manager) RunCommand(ctx context.Context, id uuid.UUID, args []string) (*RunResult, error) {
	m.mu.RLock()
	sandbox, exists := m.sandboxes[id]
	var configPath, digest string
	if exists {
		configPath, digest = sandbox.ConfigPath, sandbox.Digest
	}
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	request := RunRequest{
		Args: args,
		Env:  m.environment(configPath, digest),
	}
	m.logger.Debug("running command", "id", id, "command", args)
	result, err := m.runner.Run(ctx, request)
	m.observer.CommandCompleted(result, err)
	if err != nil {
		return nil, fmt.Errorf("running command in sandbox %s: %w", id, err)
	}
	m.logger.Info("command finished",
		"id", id,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"timed_out", result.TimedOut,
	)
	return result, nil
}

// environment returns the daemon environment with any inherited
// confinement variables replaced by this sandbox's.
func (m *Manager) environment(configPath, digest string) []string {
	base := m.environ()
	env := make([]string, 0, len(base)+3)
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		switch name {
		case "LD_PRELOAD", mountstore.EnvConfig, mountstore.EnvDigest:
			continue
		}
		env = append(env, entry)
	}
	env = append(env, "LD_PRELOAD="+m.shimLibrary)
	return append(env, mountstore.Environ(configPath, digest)...)
}

// Close destroys every sandbox and rejects later Creates. Commands
// already running are not interrupted.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sandboxes := m.sandboxes
	m.sandboxes = make(map[uuid.UUID]*Sandbox)
	m.mu.Unlock()

	var errs []error
	for id, sandbox := range sandboxes {
		m.observer.SandboxDestroyed(0)
		if err := os.RemoveAll(sandbox.dir); err != nil {
			errs = append(errs, fmt.Errorf("removing state for sandbox %s: %w", id, err))
		}
	}
	if len(sandboxes) > 0 {
		m.logger.Info("destroyed remaining sandboxes", "count", len(sandboxes))
	}
	return errors.Join(errs...)
}
