// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Strategy describes how paths under a mount's destination prefix are
// resolved. Implementations are registered by type name with
// [RegisterStrategy].
type Strategy interface {
	// Type returns the discriminator written to the "type" field.
	Type() string
}

// StrategyTypeRemap is the discriminator for [Remap].
const StrategyTypeRemap = "remap"

// Remap rewrites the destination prefix to HostPath, keeping the rest
// of the path unchanged.
type Remap struct {
	HostPath string `json:"host_path"`
}

// Type implements [Strategy].
func (Remap) Type() string { return StrategyTypeRemap }

// MountPoint maps a virtual destination prefix to a strategy.
type MountPoint struct {
	DestinationPath string
	Strategy        Strategy
}

// NewRemap is shorthand for a remap mount point.
func NewRemap(destination, hostPath string) MountPoint {
	return MountPoint{
		DestinationPath: destination,
		Strategy:        Remap{HostPath: hostPath},
	}
}

// HostPath returns the host prefix of a remap mount, or false for any
// other strategy.
func (m MountPoint) HostPath() (string, bool) {
	remap, ok := m.Strategy.(Remap)
	if !ok {
		return "", false
	}
	return remap.HostPath, true
}

// Config is an ordered mount table. Declaration order is preserved;
// it only matters for tie-breaking between mounts whose prefixes have
// the same length.
type Config struct {
	Mounts []MountPoint
}

// Clone returns a copy that shares no backing array with c.
func (c *Config) Clone() *Config {
	clone := &Config{}
	if c.Mounts != nil {
		clone.Mounts = make([]MountPoint, len(c.Mounts))
		copy(clone.Mounts, c.Mounts)
	}
	return clone
}

// ConfigError reports a mount table that cannot be used. It is always
// fatal for a sandboxed process.
type ConfigError struct {
	// Source identifies where the table came from (a file path or
	// "request"). Empty when unknown.
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid mount table: %v", e.Err)
	}
	return fmt.Sprintf("invalid mount table %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrUnknownStrategy is wrapped by decoding errors for a "type" value
// with no registered decoder.
var ErrUnknownStrategy = errors.New("unknown mount strategy")

// Validate checks the table for entries that would make path
// resolution ambiguous or unsafe. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	for i, m := range c.Mounts {
		if m.Strategy == nil {
			errs = append(errs, fmt.Errorf("mounts[%d]: strategy is required", i))
			continue
		}
		if m.DestinationPath != "" && !strings.HasPrefix(m.DestinationPath, "/") {
			errs = append(errs, fmt.Errorf("mounts[%d]: destination_path %q must be absolute", i, m.DestinationPath))
		}
		if host, ok := m.HostPath(); ok && host == "" {
			errs = append(errs, fmt.Errorf("mounts[%d]: host_path is required for remap mounts", i))
		}
	}
	return errors.Join(errs...)
}

// StrategyDecoder builds a Strategy from the full JSON object of one
// mount entry (including destination_path and type).
type StrategyDecoder func(raw json.RawMessage) (Strategy, error)

var (
	strategiesMu sync.RWMutex
	strategies   = map[string]StrategyDecoder{
		StrategyTypeRemap: decodeRemap,
	}
)

// RegisterStrategy adds a decoder for a new strategy type. Panics if
// the type is already registered.
func RegisterStrategy(typeName string, decode StrategyDecoder) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	if _, exists := strategies[typeName]; exists {
		panic(fmt.Sprintf("mount.RegisterStrategy: duplicate strategy %q", typeName))
	}
	strategies[typeName] = decode
}

// StrategyTypes returns the registered strategy names, sorted.
func StrategyTypes() []string {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupStrategy(typeName string) (StrategyDecoder, bool) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	decode, ok := strategies[typeName]
	return decode, ok
}

func decodeRemap(raw json.RawMessage) (Strategy, error) {
	var remap Remap
	if err := json.Unmarshal(raw, &remap); err != nil {
		return nil, err
	}
	return remap, nil
}
