// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "macaronid.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != "0.0.0.0:50051" {
		t.Errorf("expected listen=0.0.0.0:50051, got %s", cfg.Listen)
	}
	if cfg.HTTP.Listen != "" || cfg.SocketPath != "" {
		t.Errorf("expected gateway and unix socket disabled, got %q and %q", cfg.HTTP.Listen, cfg.SocketPath)
	}
	if cfg.Run.MaxOutputBytes != 4<<20 {
		t.Errorf("expected max_output_bytes=4MiB, got %d", cfg.Run.MaxOutputBytes)
	}
	if timeout, err := cfg.RunTimeout(); err != nil || timeout != 10*time.Minute {
		t.Errorf("RunTimeout() = %v, %v; want 10m", timeout, err)
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("MACARONI_ROOT", "")
	t.Setenv("HOME", "/home/tester")

	cfg, path, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.Paths.Root != "/home/tester/.cache/macaroni" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
	if cfg.Paths.State != "/home/tester/.cache/macaroni/state" {
		t.Errorf("state = %q", cfg.Paths.State)
	}
	if cfg.Paths.ShimLibrary != "/home/tester/.cache/macaroni/lib/libmacaroni.so" {
		t.Errorf("shim_library = %q", cfg.Paths.ShimLibrary)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestResolveRootFromEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("MACARONI_ROOT", "/srv/macaroni")

	cfg, _, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Paths.State != "/srv/macaroni/state" {
		t.Errorf("state = %q, want /srv/macaroni/state", cfg.Paths.State)
	}
}

func TestResolvePrefersFlag(t *testing.T) {
	fromEnv := writeConfig(t, "listen: 127.0.0.1:1\n")
	fromFlag := writeConfig(t, "listen: 127.0.0.1:2\n")
	t.Setenv(EnvConfig, fromEnv)

	cfg, path, err := Resolve(fromFlag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != fromFlag || cfg.Listen != "127.0.0.1:2" {
		t.Errorf("Resolve(flag) loaded %s (listen %s), want %s", path, cfg.Listen, fromFlag)
	}

	cfg, path, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != fromEnv || cfg.Listen != "127.0.0.1:1" {
		t.Errorf("Resolve(\"\") loaded %s (listen %s), want %s", path, cfg.Listen, fromEnv)
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MACARONID_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), EnvConfig+" environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("MACARONI_ROOT", "")
	path := writeConfig(t, `
listen: 127.0.0.1:6000
socket_path: ${MACARONI_ROOT}/macaronid.sock
http:
  listen: 127.0.0.1:8080
paths:
  root: /var/lib/macaroni
  shim_library: /usr/lib/macaroni/libmacaroni.so
run:
  timeout: 30s
  max_output_bytes: 1024
log:
  level: debug
`)
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Listen != "127.0.0.1:6000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.SocketPath != "/var/lib/macaroni/macaronid.sock" {
		t.Errorf("socket_path = %q", cfg.SocketPath)
	}
	if cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Errorf("http.listen = %q", cfg.HTTP.Listen)
	}
	// Unset keys keep their defaults, expanded against the new root.
	if cfg.Paths.State != "/var/lib/macaroni/state" {
		t.Errorf("paths.state = %q", cfg.Paths.State)
	}
	if cfg.Paths.ShimLibrary != "/usr/lib/macaroni/libmacaroni.so" {
		t.Errorf("paths.shim_library = %q", cfg.Paths.ShimLibrary)
	}
	if timeout, _ := cfg.RunTimeout(); timeout != 30*time.Second {
		t.Errorf("run timeout = %v", timeout)
	}
	if cfg.Run.MaxOutputBytes != 1024 {
		t.Errorf("run.max_output_bytes = %d", cfg.Run.MaxOutputBytes)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("log level = %v", level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("missing file: got %v, want not-exist", err)
	}

	path := writeConfig(t, "listen: 127.0.0.1:1\nlistn: typo\n")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "listn") {
		t.Errorf("unknown key: got %v, want error naming the key", err)
	}

	path = writeConfig(t, "run: [not, a, map]\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed run section accepted")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("MACARONI_TEST_SET", "from-env")
	t.Setenv("MACARONI_TEST_UNSET", "")

	vars := map[string]string{"ROOT": "/root-dir", "EMPTY": ""}
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${ROOT}/state", "/root-dir/state"},
		{"${MACARONI_TEST_SET}", "from-env"},
		{"${MACARONI_TEST_UNSET:-fallback}", "fallback"},
		{"${EMPTY:-${ROOT}/x}", "/root-dir/x"},
		{"${MACARONI_TEST_UNSET}", ""},
		{"a${ROOT}b${MACARONI_TEST_SET}c", "a/root-dirbfrom-envc"},
	}
	for _, test := range tests {
		if got := expandVars(test.in, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Paths.State = "/var/lib/macaroni/state"
		cfg.Paths.ShimLibrary = "/usr/lib/libmacaroni.so"
		return cfg
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"missing listen", func(c *Config) { c.Listen = "" }, "listen is required"},
		{"bad listen", func(c *Config) { c.Listen = "50051" }, "listen:"},
		{"bad http listen", func(c *Config) { c.HTTP.Listen = "localhost" }, "http.listen"},
		{"relative socket", func(c *Config) { c.SocketPath = "run/macaronid.sock" }, "socket_path"},
		{"missing state", func(c *Config) { c.Paths.State = "" }, "paths.state"},
		{"relative shim", func(c *Config) { c.Paths.ShimLibrary = "libmacaroni.so" }, "paths.shim_library"},
		{"bad timeout", func(c *Config) { c.Run.Timeout = "soon" }, "run.timeout"},
		{"negative timeout", func(c *Config) { c.Run.Timeout = "-1s" }, "run.timeout"},
		{"zero output cap", func(c *Config) { c.Run.MaxOutputBytes = 0 }, "run.max_output_bytes"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.want)
			}
		})
	}

	// Every problem is reported.
	cfg := valid()
	cfg.Listen = ""
	cfg.Paths.State = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "listen") || !strings.Contains(err.Error(), "paths.state") {
		t.Errorf("Validate() = %v, want both problems", err)
	}
}

func TestEnsurePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.State = filepath.Join(t.TempDir(), "a", "state")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	info, err := os.Stat(cfg.Paths.State)
	if err != nil || !info.IsDir() {
		t.Fatalf("state directory not created: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("state mode = %v, want 0700", info.Mode().Perm())
	}
}
