// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// mountHeader holds the fields common to every strategy.
type mountHeader struct {
	DestinationPath *string `json:"destination_path"`
	Type            string  `json:"type"`
}

// UnmarshalJSON decodes one mount entry, dispatching on "type".
func (m *MountPoint) UnmarshalJSON(data []byte) error {
	var header mountHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	if header.DestinationPath == nil {
		return fmt.Errorf("missing required field: destination_path")
	}
	if header.Type == "" {
		return fmt.Errorf("missing required field: type")
	}

	decode, ok := lookupStrategy(header.Type)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownStrategy, header.Type)
	}
	strategy, err := decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s strategy: %w", header.Type, err)
	}

	m.DestinationPath = *header.DestinationPath
	m.Strategy = strategy
	return nil
}

// MarshalJSON flattens the strategy fields next to destination_path
// and type, mirroring the decoding layout.
func (m MountPoint) MarshalJSON() ([]byte, error) {
	if m.Strategy == nil {
		return nil, fmt.Errorf("mount %q has no strategy", m.DestinationPath)
	}

	fields := map[string]any{}
	strategyJSON, err := json.Marshal(m.Strategy)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(strategyJSON, &fields); err != nil {
		return nil, fmt.Errorf("strategy %s must encode as a JSON object: %w", m.Strategy.Type(), err)
	}
	fields["destination_path"] = m.DestinationPath
	fields["type"] = m.Strategy.Type()
	return json.Marshal(fields)
}

type configJSON struct {
	Mounts []MountPoint `json:"mounts"`
}

// ErrNoMounts rejects a table without a "mounts" array. An empty
// table confines nothing, so it has to be written out explicitly as
// {"mounts": []}.
var ErrNoMounts = errors.New(`missing required field: mounts (use "mounts": [] for an empty table)`)

// UnmarshalJSON decodes {"mounts": [...]}. A missing or null "mounts"
// is an error.
func (c *Config) UnmarshalJSON(data []byte) error {
	var wire struct {
		Mounts *[]MountPoint `json:"mounts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Mounts == nil {
		return ErrNoMounts
	}
	c.Mounts = *wire.Mounts
	return nil
}

// MarshalJSON encodes the table. An empty table encodes as
// {"mounts": []} rather than null.
func (c Config) MarshalJSON() ([]byte, error) {
	mounts := c.Mounts
	if mounts == nil {
		mounts = []MountPoint{}
	}
	return json.Marshal(configJSON{Mounts: mounts})
}

// Parse strips JSONC comments and trailing commas from data, decodes
// the mount table, and validates it. Every failure is a *ConfigError.
func Parse(data []byte) (*Config, error) {
	return parse("", data)
}

// ReadFile reads and parses a mount table file.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	return parse(path, data)
}

func parse(source string, data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{Source: source, Err: fmt.Errorf("empty document")}
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	var wire struct {
		Mounts *[]json.RawMessage `json:"mounts"`
	}
	if err := decoder.Decode(&wire); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}
	if wire.Mounts == nil {
		return nil, &ConfigError{Source: source, Err: ErrNoMounts}
	}

	cfg := &Config{Mounts: make([]MountPoint, 0, len(*wire.Mounts))}
	for i, raw := range *wire.Mounts {
		var m MountPoint
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, &ConfigError{Source: source, Err: fmt.Errorf("mounts[%d]: %w", i, err)}
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}
	return cfg, nil
}

// Encode returns the canonical JSON form of the table, indented for
// human inspection.
func Encode(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}
