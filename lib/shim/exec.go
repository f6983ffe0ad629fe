// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"errors"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
	"github.com/macaroni-sandbox/macaroni/lib/mountstore"
)

// PreloadVariable is the dynamic loader's preload list.
const PreloadVariable = "LD_PRELOAD"

// defaultSearchPath is the search path used when PATH is unset.
const defaultSearchPath = "/bin:/usr/bin"

// Confinement is the environment a child needs to load the shim with
// the same mount table.
type Confinement struct {
	// Preload is the path of the preload library. Empty disables
	// LD_PRELOAD injection.
	Preload string

	// Config and Digest are the values of MACARONI_CONFIG and
	// MACARONI_CONFIG_DIGEST.
	Config string
	Digest string
}

// required returns the variables whose current values (looked up with
// lookup) differ from what a confined child needs, with the values to
// set.
func (c Confinement) required(lookup func(string) (string, bool)) [][2]string {
	var changes [][2]string
	if c.Preload != "" {
		current, _ := lookup(PreloadVariable)
		if preload, changed := withPreload(current, c.Preload); changed {
			changes = append(changes, [2]string{PreloadVariable, preload})
		}
	}
	if c.Config != "" {
		if current, _ := lookup(mountstore.EnvConfig); current != c.Config {
			changes = append(changes, [2]string{mountstore.EnvConfig, c.Config})
		}
	}
	if c.Digest != "" {
		if current, _ := lookup(mountstore.EnvDigest); current != c.Digest {
			changes = append(changes, [2]string{mountstore.EnvDigest, c.Digest})
		}
	}
	return changes
}

// withPreload returns the preload list with library at its front,
// and whether list had to change. The loader accepts both colons and
// spaces as separators.
func withPreload(list, library string) (string, bool) {
	for _, entry := range strings.FieldsFunc(list, func(r rune) bool { return r == ':' || r == ' ' }) {
		if entry == library {
			return list, false
		}
	}
	if list == "" {
		return library, true
	}
	return library + ":" + list, true
}

// Environ returns envp with the confinement variables restored. The
// input slice is not modified.
func (c Confinement) Environ(envp []string) []string {
	index := make(map[string]int, len(envp))
	for i, entry := range envp {
		key, _, _ := strings.Cut(entry, "=")
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	changes := c.required(func(key string) (string, bool) {
		i, ok := index[key]
		if !ok {
			return "", false
		}
		_, value, _ := strings.Cut(envp[i], "=")
		return value, true
	})
	if len(changes) == 0 {
		return envp
	}

	result := append([]string(nil), envp...)
	for _, change := range changes {
		entry := change[0] + "=" + change[1]
		if i, ok := index[change[0]]; ok {
			result[i] = entry
		} else {
			result = append(result, entry)
		}
	}
	return result
}

// restoreEnvironment puts the confinement variables back into the
// process environment before a call that inherits it.
func (s *Shim) restoreEnvironment() error {
	for _, change := range s.confine.required(s.libc.Getenv) {
		if err := s.libc.Setenv(change[0], change[1]); err != nil {
			return err
		}
	}
	return nil
}

// Execve remaps path and restores the confinement variables in envp,
// so the new image loads the shim with the same mount table.
func (s *Shim) Execve(path string, argv, envp []string) interpose.Result[int] {
	return s.pass.Execve(s.path(path), argv, s.confine.Environ(envp))
}

// Execv and Execvp pass the current C environment.
func (s *Shim) Execv(path string, argv []string) interpose.Result[int] {
	return s.Execve(path, argv, s.libc.Environ())
}

func (s *Shim) Execvp(file string, argv []string) interpose.Result[int] {
	return s.Execvpe(file, argv, s.libc.Environ())
}

// Execvpe searches PATH in the virtual namespace: each candidate
// directory is remapped before the executable is tried.
func (s *Shim) Execvpe(file string, argv, envp []string) interpose.Result[int] {
	return status(execSearch(s.libc, file, argv, s.confine.Environ(envp), s.path))
}

// PosixSpawn remaps path and confines the child like [Shim.Execve].
func (s *Shim) PosixSpawn(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) interpose.Result[int32] {
	return s.pass.PosixSpawn(pid, s.path(path), fileActions, attr, argv, s.confine.Environ(envp))
}

// PosixSpawnp resolves file against PATH in the virtual namespace.
// When no candidate is executable the C library's own search runs so
// the caller sees its error.
func (s *Shim) PosixSpawnp(pid *int32, file string, fileActions, attr unsafe.Pointer, argv, envp []string) interpose.Result[int32] {
	envp = s.confine.Environ(envp)
	if strings.Contains(file, "/") {
		return s.pass.PosixSpawn(pid, s.path(file), fileActions, attr, argv, envp)
	}
	for _, candidate := range searchCandidates(s.libc, file) {
		host := s.path(candidate)
		if s.libc.Access(host, unix.X_OK) == nil {
			return s.pass.PosixSpawn(pid, host, fileActions, attr, argv, envp)
		}
	}
	return s.pass.PosixSpawnp(pid, file, fileActions, attr, argv, envp)
}

// Popen runs command through /bin/sh, which inherits the process
// environment and is confined by it.
func (s *Shim) Popen(command, mode string) interpose.Result[unsafe.Pointer] {
	if err := s.restoreEnvironment(); err != nil {
		return interpose.Fail[unsafe.Pointer](interpose.ErrnoOf(err))
	}
	return s.pass.Popen(command, mode)
}

// System confines the shell like [Shim.Popen].
func (s *Shim) System(command string) interpose.Result[int] {
	if err := s.restoreEnvironment(); err != nil {
		return interpose.Fail[int](interpose.ErrnoOf(err))
	}
	return s.pass.System(command)
}

// searchCandidates lists file joined to each PATH entry. An empty
// entry means the working directory.
func searchCandidates(libc Libc, file string) []string {
	searchPath, ok := libc.Getenv("PATH")
	if !ok {
		searchPath = defaultSearchPath
	}
	var candidates []string
	for _, dir := range strings.Split(searchPath, ":") {
		if dir == "" {
			candidates = append(candidates, file)
			continue
		}
		candidates = append(candidates, strings.TrimSuffix(dir, "/")+"/"+file)
	}
	return candidates
}

// execSearch executes file the way execvpe does: directly when it
// contains a slash, otherwise by trying each PATH entry in order,
// each mapped through mapPath. A file the kernel cannot execute
// (ENOEXEC) is run as a shell script. It returns only on failure.
func execSearch(libc Libc, file string, argv, envp []string, mapPath func(string) string) error {
	if file == "" {
		return unix.ENOENT
	}
	if strings.Contains(file, "/") {
		return execFile(libc, mapPath(file), argv, envp, mapPath)
	}

	sawPermission := false
	for _, candidate := range searchCandidates(libc, file) {
		err := execFile(libc, mapPath(candidate), argv, envp, mapPath)
		switch {
		case errors.Is(err, unix.EACCES):
			sawPermission = true
		case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR), errors.Is(err, unix.ESTALE),
			errors.Is(err, unix.ENODEV), errors.Is(err, unix.ETIMEDOUT):
		default:
			return err
		}
	}
	if sawPermission {
		return unix.EACCES
	}
	return unix.ENOENT
}

func execFile(libc Libc, host string, argv, envp []string, mapPath func(string) string) error {
	err := libc.Execve(host, argv, envp)
	if !errors.Is(err, unix.ENOEXEC) {
		return err
	}
	script := []string{"/bin/sh", host}
	if len(argv) > 1 {
		script = append(script, argv[1:]...)
	}
	return libc.Execve(mapPath("/bin/sh"), script, envp)
}
