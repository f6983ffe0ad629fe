// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
)

// ValidationResult holds the result of a validation check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Validator performs pre-flight validation for the control plane.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		results: make([]ValidationResult, 0),
	}
}

// Results returns all validation results.
func (v *Validator) Results() []ValidationResult {
	return v.results
}

// HasErrors returns true if any validation failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

// pass records a successful validation.
func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
	})
}

// warn records a warning (not a failure).
func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
		Warning: true,
	})
}

// fail records a validation failure.
func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  false,
		Message: message,
	})
	v.errors++
}

// ValidateAll runs the daemon start-up checks.
func (v *Validator) ValidateAll(shimLibrary, stateDir string) {
	v.ValidateShimLibrary(shimLibrary)
	v.ValidateStateDirectory(stateDir)
}

// elfMagic starts every shared object the dynamic loader will accept.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// ValidateShimLibrary checks that the preload library exists and looks
// like a shared object. A missing library would let every command run
// unconfined: the loader ignores LD_PRELOAD entries it cannot open.
func (v *Validator) ValidateShimLibrary(path string) {
	if path == "" {
		v.fail("shim_library", "shim library path is required")
		return
	}
	if !filepath.IsAbs(path) {
		v.fail("shim_library", fmt.Sprintf("must be an absolute path: %s", path))
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			v.fail("shim_library", fmt.Sprintf("does not exist: %s", path))
		} else {
			v.fail("shim_library", fmt.Sprintf("cannot open: %v", err))
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		v.fail("shim_library", fmt.Sprintf("cannot stat %s: %v", path, err))
		return
	}
	if !info.Mode().IsRegular() {
		v.fail("shim_library", fmt.Sprintf("not a regular file: %s", path))
		return
	}

	header := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(file, header); err != nil || !bytes.Equal(header, elfMagic) {
		v.fail("shim_library", fmt.Sprintf("not an ELF shared object: %s", path))
		return
	}

	v.pass("shim_library", fmt.Sprintf("found: %s", path))
}

// ValidateStateDirectory checks that the state directory exists or can
// be created, and is writable.
func (v *Validator) ValidateStateDirectory(dir string) {
	if dir == "" {
		v.fail("state_directory", "state directory path is required")
		return
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		v.fail("state_directory", fmt.Sprintf("cannot create %s: %v", dir, err))
		return
	}

	scratch, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		v.fail("state_directory", fmt.Sprintf("not writable: %s: %v", dir, err))
		return
	}
	scratch.Close()
	os.Remove(scratch.Name())

	v.pass("state_directory", fmt.Sprintf("writable: %s", dir))
}

// ValidateMountSources warns about remap mounts whose host path does
// not exist. Such a mount is legal: calls under it fail with ENOENT
// until the host path appears.
func (v *Validator) ValidateMountSources(cfg *mount.Config) {
	if cfg == nil {
		return
	}
	for _, m := range cfg.Mounts {
		host, ok := m.HostPath()
		if !ok {
			continue
		}
		name := fmt.Sprintf("mount %s", m.DestinationPath)
		info, err := os.Stat(host)
		switch {
		case err != nil:
			v.warn(name, fmt.Sprintf("host path unavailable: %v", err))
		case !info.IsDir():
			v.warn(name, fmt.Sprintf("host path is not a directory: %s", host))
		default:
			v.pass(name, fmt.Sprintf("host path exists: %s", host))
		}
	}
}
