// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && cgo

package integration_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/lib/mountstore"
	"github.com/macaroni-sandbox/macaroni/lib/process"
)

const virtualRoot = "/virtual"

var (
	workspaceRoot string

	// Built once by TestMain. When a toolchain is missing buildSkip
	// says which, and every test skips with it.
	preloadLibrary string
	pathTool       string
	buildSkip      string
)

func TestMain(m *testing.M) {
	root, err := findWorkspaceRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration: %v\n", err)
		os.Exit(1)
	}
	workspaceRoot = root

	buildDirectory, err := os.MkdirTemp("", "macaroni-integration-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration: %v\n", err)
		os.Exit(1)
	}
	buildSkip, err = buildArtifacts(buildDirectory)
	if err != nil {
		os.RemoveAll(buildDirectory)
		fmt.Fprintf(os.Stderr, "integration: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(buildDirectory)
	os.Exit(code)
}

// findWorkspaceRoot walks up from the current directory to the
// directory holding go.mod.
func findWorkspaceRoot() (string, error) {
	directory, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(directory, "go.mod")); err == nil {
			return directory, nil
		}
		parent := filepath.Dir(directory)
		if parent == directory {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		directory = parent
	}
}

// buildArtifacts builds the preload library and the C helper into
// directory. A missing go or cc is a skip reason, not an error.
func buildArtifacts(directory string) (skip string, err error) {
	goBinary, err := exec.LookPath("go")
	if err != nil {
		return "go toolchain not available: " + err.Error(), nil
	}
	ccBinary, err := exec.LookPath("cc")
	if err != nil {
		return "C compiler not available: " + err.Error(), nil
	}

	preloadLibrary = filepath.Join(directory, "libmacaroni.so")
	build := exec.Command(goBinary, "build", "-buildmode=c-shared", "-o", preloadLibrary, "./cmd/libmacaroni")
	build.Dir = workspaceRoot
	build.Env = append(os.Environ(), "CGO_ENABLED=1")
	if output, err := build.CombinedOutput(); err != nil {
		return "", fmt.Errorf("building libmacaroni: %w\n%s", err, output)
	}

	pathTool = filepath.Join(directory, "pathtool")
	compile := exec.Command(ccBinary, "-O2", "-o", pathTool, filepath.Join("integration", "testdata", "pathtool.c"))
	compile.Dir = workspaceRoot
	if output, err := compile.CombinedOutput(); err != nil {
		return "", fmt.Errorf("compiling pathtool: %w\n%s", err, output)
	}
	return "", nil
}

func requireArtifacts(t *testing.T) {
	t.Helper()
	if buildSkip != "" {
		t.Skip(buildSkip)
	}
}

// sandbox is a host directory exposed to preloaded processes at
// virtualRoot through a mount table written next to it.
type sandbox struct {
	host   string
	config string
}

func newSandbox(t *testing.T) *sandbox {
	t.Helper()
	requireArtifacts(t)

	// realpath answers with resolved host paths, so the mount must
	// name the host directory without symlinks.
	host, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolving temp directory: %v", err)
	}
	table := mount.Config{Mounts: []mount.MountPoint{mount.NewRemap(virtualRoot, host)}}
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("encoding mount table: %v", err)
	}
	config := filepath.Join(t.TempDir(), "mounts.json")
	if err := os.WriteFile(config, data, 0o644); err != nil {
		t.Fatalf("writing mount table: %v", err)
	}
	return &sandbox{host: host, config: config}
}

func (s *sandbox) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.host, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// preloaded runs binary under the preload library. config is the
// MACARONI_CONFIG value; "" leaves it unset.
func preloaded(config, binary string, args ...string) *exec.Cmd {
	cmd := exec.Command(binary, args...)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"LD_PRELOAD=" + preloadLibrary,
	}
	if config != "" {
		cmd.Env = append(cmd.Env, mountstore.EnvConfig+"="+config)
	}
	return cmd
}

// run executes cmd and returns stdout, stderr and the exit code.
func run(t *testing.T, cmd *exec.Cmd) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	var exitError *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), stderr.String(), 0
	case errors.As(err, &exitError):
		return stdout.String(), stderr.String(), exitError.ExitCode()
	default:
		t.Fatalf("running %s: %v", cmd.Path, err)
		return "", "", -1
	}
}

// pathtool runs the C helper in the sandbox and returns its single
// line of output.
func (s *sandbox) pathtool(t *testing.T, operation, path string) string {
	t.Helper()
	stdout, stderr, code := run(t, preloaded(s.config, pathTool, operation, path))
	if code != 0 {
		t.Fatalf("pathtool %s %s exited %d: %s", operation, path, code, stderr)
	}
	return strings.TrimSpace(stdout)
}

func TestPreloadRemapsReads(t *testing.T) {
	s := newSandbox(t)
	s.writeFile(t, "data.txt", "remapped")

	for _, operation := range []string{"open", "open_2", "fopen"} {
		if got := s.pathtool(t, operation, virtualRoot+"/data.txt"); got != "ok remapped" {
			t.Errorf("%s %s/data.txt = %q, want %q", operation, virtualRoot, got, "ok remapped")
		}
	}
	if got := s.pathtool(t, "stat64", virtualRoot+"/data.txt"); got != "ok 8" {
		t.Errorf("stat64 = %q, want the size of the host file", got)
	}
}

func TestPreloadCatReadsRemappedFile(t *testing.T) {
	s := newSandbox(t)
	s.writeFile(t, "greeting", "hello from the host\n")

	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skipf("cat not available: %v", err)
	}
	stdout, stderr, code := run(t, preloaded(s.config, cat, virtualRoot+"/greeting"))
	if code != 0 {
		t.Fatalf("cat exited %d: %s", code, stderr)
	}
	if stdout != "hello from the host\n" {
		t.Errorf("cat output = %q", stdout)
	}
}

func TestPreloadPropagatesErrno(t *testing.T) {
	s := newSandbox(t)

	want := fmt.Sprintf("errno %d", int(syscall.ENOENT))
	for _, operation := range []string{"open", "open_2", "fopen", "stat64", "realpath"} {
		if got := s.pathtool(t, operation, virtualRoot+"/missing"); got != want {
			t.Errorf("%s of a missing file = %q, want %q", operation, got, want)
		}
	}
}

func TestPreloadReturnsVirtualNames(t *testing.T) {
	s := newSandbox(t)
	if err := os.Mkdir(filepath.Join(s.host, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	if got := s.pathtool(t, "realpath", virtualRoot+"/sub/../sub"); got != "ok "+virtualRoot+"/sub" {
		t.Errorf("realpath = %q, want the virtual path", got)
	}

	got := s.pathtool(t, "mkstemp", virtualRoot+"/sub/tmpXXXXXX")
	name, ok := strings.CutPrefix(got, "ok ")
	if !ok || !strings.HasPrefix(name, virtualRoot+"/sub/tmp") {
		t.Fatalf("mkstemp = %q, want a name under %s/sub", got, virtualRoot)
	}
	host := filepath.Join(s.host, strings.TrimPrefix(name, virtualRoot))
	if _, err := os.Stat(host); err != nil {
		t.Errorf("mkstemp did not create %s on the host: %v", host, err)
	}
}

func TestPreloadAbortsWithoutMountTable(t *testing.T) {
	requireArtifacts(t)

	_, stderr, code := run(t, preloaded("", pathTool, "open", "/etc/hostname"))
	if code != process.AbortExitCode {
		t.Errorf("exit code = %d, want %d", code, process.AbortExitCode)
	}
	if !strings.Contains(stderr, "fatal: macaroni") || !strings.Contains(stderr, mountstore.EnvConfig) {
		t.Errorf("stderr = %q, want a fatal message naming %s", stderr, mountstore.EnvConfig)
	}
}

func TestPreloadAbortsOnTableWithoutMounts(t *testing.T) {
	requireArtifacts(t)

	config := filepath.Join(t.TempDir(), "mounts.json")
	if err := os.WriteFile(config, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, code := run(t, preloaded(config, pathTool, "open", "/etc/hostname"))
	if code != process.AbortExitCode {
		t.Errorf("exit code = %d, want %d", code, process.AbortExitCode)
	}
	if !strings.Contains(stderr, "mounts") {
		t.Errorf("stderr = %q, want the missing field named", stderr)
	}
}
