// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package mountstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/lib/process"
)

const (
	// EnvConfig names the environment variable holding the path of the
	// mount table file.
	EnvConfig = "MACARONI_CONFIG"

	// EnvDigest names the optional environment variable holding the hex
	// BLAKE3-256 digest of the mount table file.
	EnvDigest = "MACARONI_CONFIG_DIGEST"

	// FileName is the name [Write] gives the mount table inside a
	// sandbox state directory.
	FileName = "mounts.json"
)

var (
	// ErrNotConfigured is returned when EnvConfig is unset or empty.
	ErrNotConfigured = errors.New(EnvConfig + " is not set")

	// ErrDigestMismatch is returned when the file contents do not match
	// EnvDigest: the table changed after the sandbox was created.
	ErrDigestMismatch = errors.New("mount table digest mismatch")
)

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// abort is replaced in tests.
var abort = process.Abort

// Store loads the mount table named by the environment once.
type Store struct {
	getenv func(string) string

	once   sync.Once
	config *mount.Config
	err    error
}

// New returns a Store reading the environment through getenv. A nil
// getenv uses [os.Getenv].
func New(getenv func(string) string) *Store {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Store{getenv: getenv}
}

// Load resolves, reads, verifies, and parses the mount table on the
// first call. Every call returns the same *mount.Config or the same
// error. Callers must not modify the returned table.
func (s *Store) Load() (*mount.Config, error) {
	s.once.Do(func() {
		s.config, s.err = s.load()
	})
	return s.config, s.err
}

// MustLoad is Load for library attach: any error aborts the process.
func (s *Store) MustLoad() *mount.Config {
	config, err := s.Load()
	if err != nil {
		abort(fmt.Errorf("macaroni: %w", err))
	}
	return config
}

// Path returns the mount table path from the environment, or "".
func (s *Store) Path() string {
	return s.getenv(EnvConfig)
}

// Digest returns the expected table digest from the environment, or
// "" when none was set.
func (s *Store) Digest() string {
	return s.getenv(EnvDigest)
}

func (s *Store) load() (*mount.Config, error) {
	path := s.getenv(EnvConfig)
	if path == "" {
		return nil, &mount.ConfigError{Err: ErrNotConfigured}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &mount.ConfigError{Source: path, Err: err}
	}

	if want := strings.TrimSpace(s.getenv(EnvDigest)); want != "" {
		if got := Digest(data); !strings.EqualFold(got, want) {
			return nil, &mount.ConfigError{
				Source: path,
				Err:    fmt.Errorf("%w: %s is %s, file is %s", ErrDigestMismatch, EnvDigest, want, got),
			}
		}
	}

	config, err := mount.Parse(data)
	if err != nil {
		var configErr *mount.ConfigError
		if errors.As(err, &configErr) && configErr.Source == "" {
			configErr.Source = path
		}
		return nil, err
	}
	return config, nil
}

// Write stores cfg as dir/mounts.json and returns the file path and
// its digest. The file is written to a temporary name, synced, and
// renamed into place with mode 0600, so readers never observe a
// partial table.
func Write(dir string, cfg *mount.Config) (path, digest string, err error) {
	if err := cfg.Validate(); err != nil {
		return "", "", &mount.ConfigError{Source: "request", Err: err}
	}
	data, err := mount.Encode(cfg)
	if err != nil {
		return "", "", fmt.Errorf("encoding mount table: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", fmt.Errorf("creating %s: %w", dir, err)
	}

	temp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return "", "", fmt.Errorf("creating temporary mount table: %w", err)
	}
	tempPath := temp.Name()
	defer func() {
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	if err = temp.Chmod(0600); err != nil {
		temp.Close()
		return "", "", fmt.Errorf("setting mount table mode: %w", err)
	}
	if _, err = temp.Write(data); err != nil {
		temp.Close()
		return "", "", fmt.Errorf("writing mount table: %w", err)
	}
	if err = temp.Sync(); err != nil {
		temp.Close()
		return "", "", fmt.Errorf("syncing mount table: %w", err)
	}
	if err = temp.Close(); err != nil {
		return "", "", fmt.Errorf("closing mount table: %w", err)
	}

	path = filepath.Join(dir, FileName)
	if err = os.Rename(tempPath, path); err != nil {
		return "", "", fmt.Errorf("installing mount table: %w", err)
	}
	return path, Digest(data), nil
}

// Environ returns the environment entries that point a process at the
// mount table written by [Write].
func Environ(path, digest string) []string {
	env := []string{EnvConfig + "=" + path}
	if digest != "" {
		env = append(env, EnvDigest+"="+digest)
	}
	return env
}
