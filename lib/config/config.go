// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file
// path when no --config flag is given.
const EnvConfig = "MACARONID_CONFIG"

// Config is the macaronid configuration.
type Config struct {
	// Listen is the TCP address of the control-plane socket protocol.
	// Default: 0.0.0.0:50051
	Listen string `yaml:"listen"`

	// SocketPath additionally serves the protocol on a Unix socket.
	// Empty disables it.
	SocketPath string `yaml:"socket_path"`

	// HTTP configures the JSON gateway.
	HTTP HTTPConfig `yaml:"http"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Run configures command execution.
	Run RunConfig `yaml:"run"`

	// Log configures the daemon logger.
	Log LogConfig `yaml:"log"`
}

// HTTPConfig configures the HTTP/JSON gateway and /metrics.
type HTTPConfig struct {
	// Listen is the gateway TCP address. Empty disables the gateway.
	Listen string `yaml:"listen"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for daemon data.
	Root string `yaml:"root"`

	// State holds one directory per sandbox.
	State string `yaml:"state"`

	// ShimLibrary is the preload library injected into every command.
	ShimLibrary string `yaml:"shim_library"`
}

// RunConfig configures command execution.
type RunConfig struct {
	// Timeout kills a command that runs longer, as a Go duration
	// string. Empty or "0" means no limit.
	// Default: 10m
	Timeout string `yaml:"timeout"`

	// MaxOutputBytes caps each captured output stream.
	// Default: 4 MiB
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. Path fields still
// contain ${VAR} references; Load, LoadFile, and Resolve expand them.
func Default() *Config {
	return &Config{
		Listen: "0.0.0.0:50051",
		Paths: PathsConfig{
			Root:        "${MACARONI_ROOT:-${HOME}/.cache/macaroni}",
			State:       "${MACARONI_ROOT}/state",
			ShimLibrary: "${MACARONI_ROOT}/lib/libmacaroni.so",
		},
		Run: RunConfig{
			Timeout:        "10m",
			MaxOutputBytes: 4 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by MACARONID_CONFIG.
// It fails when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your macaronid.yaml config file, or use --config flag", EnvConfig)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// Resolve picks the configuration for a daemon start: the file given
// by flag if non-empty, else the file named by MACARONID_CONFIG, else
// the defaults. It returns the path that was loaded, or "".
func Resolve(flag string) (*Config, string, error) {
	path := flag
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, "", nil
	}
	cfg, err := LoadFile(path)
	return cfg, path, err
}

// loadFile merges a YAML file into c. Unknown keys are errors.
func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths. MACARONI_ROOT refers to the expanded paths.root.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	// Root may refer to MACARONI_ROOT itself for its environment
	// override.
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["MACARONI_ROOT"] = c.Paths.Root

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.ShimLibrary = expandVars(c.Paths.ShimLibrary, vars)
	c.SocketPath = expandVars(c.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^{}]|\{[^}]*\})*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. A default
// may itself contain one level of ${VAR}.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return expandVars(defaultValue, vars)
	})
}

// RunTimeout returns run.timeout as a duration. Zero means no limit.
func (c *Config) RunTimeout() (time.Duration, error) {
	if c.Run.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Run.Timeout)
	if err != nil {
		return 0, fmt.Errorf("run.timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout)
	}
	return timeout, nil
}

// LogLevel returns log.level as a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	} else if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	}
	if c.HTTP.Listen != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			errs = append(errs, fmt.Errorf("http.listen: %w", err))
		}
	}
	if c.SocketPath != "" && !filepath.IsAbs(c.SocketPath) {
		errs = append(errs, fmt.Errorf("socket_path must be absolute, got %q", c.SocketPath))
	}

	if c.Paths.State == "" {
		errs = append(errs, errors.New("paths.state is required"))
	}
	if c.Paths.ShimLibrary == "" {
		errs = append(errs, errors.New("paths.shim_library is required"))
	} else if !filepath.IsAbs(c.Paths.ShimLibrary) {
		// The dynamic loader resolves a relative LD_PRELOAD entry
		// against each command's working directory.
		errs = append(errs, fmt.Errorf("paths.shim_library must be absolute, got %q", c.Paths.ShimLibrary))
	}

	if _, err := c.RunTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Run.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("run.max_output_bytes must be positive, got %d", c.Run.MaxOutputBytes))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the state directory.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.State, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.State, err)
	}
	return nil
}
