// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"slices"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
	"github.com/macaroni-sandbox/macaroni/lib/mount"
	"github.com/macaroni-sandbox/macaroni/lib/remap"
)

const hostFoo = "/Volumes/Stuff/foo"

// newTestShim returns a Shim over a fake libc with /foo remapped to
// hostFoo. Descriptor 5 is a directory inside the mount, 6 one outside.
func newTestShim(t *testing.T) (*Shim, *fakeLibc) {
	t.Helper()
	libc := newFakeLibc()
	remapper := remap.New(&mount.Config{Mounts: []mount.MountPoint{
		mount.NewRemap("/foo", hostFoo),
	}})
	dirs := fakeDirs{5: hostFoo + "/sub", 6: "/tmp"}
	return New(remapper, libc, dirs, Confinement{}), libc
}

func assertPaths(t *testing.T, got call, name string, paths ...string) {
	t.Helper()
	if got.name != name {
		t.Fatalf("last call = %s, want %s", got.name, name)
	}
	if !slices.Equal(got.paths, paths) {
		t.Errorf("%s paths = %q, want %q", name, got.paths, paths)
	}
}

func complete(result interpose.Result[int]) (int, int32) {
	slot := interpose.NoErrno
	value := interpose.Complete(result, interpose.ReturnInt, &slot)
	return value, slot
}

func TestOpenRemapsAbsolutePath(t *testing.T) {
	s, libc := newTestShim(t)

	value, errno := complete(s.Open("/foo/bar", unix.O_RDONLY, 0))
	if value != 3 || errno != interpose.NoErrno {
		t.Errorf("Open = %d (errno %d), want fd 3", value, errno)
	}
	assertPaths(t, libc.last(), "open", hostFoo+"/bar")

	s.Open("/baz/foo/bar", unix.O_RDONLY, 0)
	assertPaths(t, libc.last(), "open", "/baz/foo/bar")
}

func TestRelativePathsLeftAlone(t *testing.T) {
	s, libc := newTestShim(t)

	s.Stat("foo/bar", nil)
	assertPaths(t, libc.last(), "stat", "foo/bar")

	s.Openat(unix.AT_FDCWD, "foo/bar", unix.O_RDONLY, 0)
	assertPaths(t, libc.last(), "openat", "foo/bar")
}

func TestCatchAllDoesNotCaptureRelativePaths(t *testing.T) {
	libc := newFakeLibc()
	remapper := remap.New(&mount.Config{Mounts: []mount.MountPoint{mount.NewRemap("", "/empty")}})
	s := New(remapper, libc, fakeDirs{}, Confinement{})

	s.Unlink("file")
	assertPaths(t, libc.last(), "unlink", "file")
	s.Unlink("/file")
	assertPaths(t, libc.last(), "unlink", "/empty/file")
}

func TestOpenatAbsoluteIgnoresDirfd(t *testing.T) {
	s, libc := newTestShim(t)

	s.Openat(6, "/foo/x", unix.O_RDONLY, 0)
	assertPaths(t, libc.last(), "openat", hostFoo+"/x")
}

func TestOpenatRelativeToMountedDirectory(t *testing.T) {
	s, libc := newTestShim(t)

	s.Openat(5, "a.txt", unix.O_RDONLY, 0)
	assertPaths(t, libc.last(), "openat", hostFoo+"/sub/a.txt")
}

func TestDirectoryOutsideMountsIsEACCES(t *testing.T) {
	s, libc := newTestShim(t)

	value, errno := complete(s.Openat(6, "a.txt", unix.O_RDONLY, 0))
	if value != -1 || errno != int32(unix.EACCES) {
		t.Errorf("Openat = %d (errno %d), want -1 EACCES", value, errno)
	}
	if calls := libc.recorded(); len(calls) != 0 {
		t.Errorf("libc was called for an unresolvable path: %+v", calls)
	}

	results := map[string]interpose.Result[int]{
		"fstatat":   s.Fstatat(6, "x", nil, 0),
		"fchmodat":  s.Fchmodat(6, "x", 0644, 0),
		"fchownat":  s.Fchownat(6, "x", 0, 0, 0),
		"unlinkat":  s.Unlinkat(6, "x", 0),
		"mkdirat":   s.Mkdirat(6, "x", 0755),
		"mkfifoat":  s.Mkfifoat(6, "x", 0644),
		"mknodat":   s.Mknodat(6, "x", 0644, 0),
		"faccessat": s.Faccessat(6, "x", unix.R_OK, 0),
		"utimensat": s.Utimensat(6, "x", nil, 0),
		"symlinkat": s.Symlinkat("/foo/t", 6, "x"),
		"linkat":    s.Linkat(5, "a", 6, "b", 0),
		"renameat":  s.Renameat(6, "a", 5, "b"),
	}
	for name, result := range results {
		if errno, ok := result.Errno(); !ok || errno != unix.EACCES || result.Kind() != interpose.KindFail {
			t.Errorf("%s: result %v errno %v, want Fail(EACCES)", name, result.Kind(), errno)
		}
	}
	if n := len(libc.recorded()); n != 0 {
		t.Errorf("libc was called %d times", n)
	}
}

func TestBadDescriptor(t *testing.T) {
	s, _ := newTestShim(t)

	_, errno := complete(s.Openat(99, "a.txt", unix.O_RDONLY, 0))
	if errno != int32(unix.EBADF) {
		t.Errorf("errno = %d, want EBADF", errno)
	}
}

func TestEmptyPathRefersToDescriptor(t *testing.T) {
	s, libc := newTestShim(t)

	s.Fstatat(6, "", nil, unix.AT_EMPTY_PATH)
	got := libc.last()
	assertPaths(t, got, "fstatat", "")
	if got.flags != unix.AT_EMPTY_PATH {
		t.Errorf("flags = %#x, want AT_EMPTY_PATH", got.flags)
	}
}

func TestErrnoPropagated(t *testing.T) {
	s, libc := newTestShim(t)
	libc.failNext("open", unix.ENOENT)

	result := s.Open("/foo/missing", unix.O_RDONLY, 0)
	if result.Kind() != interpose.KindOkLastErrno {
		t.Errorf("kind = %v, want ok-last-errno", result.Kind())
	}
	value, errno := complete(result)
	if value != -1 || errno != int32(unix.ENOENT) {
		t.Errorf("Open = %d (errno %d), want -1 ENOENT", value, errno)
	}
}

func TestReadlinkReturnsCount(t *testing.T) {
	s, libc := newTestShim(t)
	buf := make([]byte, 64)

	slot := interpose.NoErrno
	n := interpose.Complete(s.Readlink("/foo/link", buf), interpose.ReturnSize, &slot)
	if n != len("target") || string(buf[:n]) != "target" {
		t.Errorf("Readlink = %d %q", n, buf[:n])
	}
	assertPaths(t, libc.last(), "readlink", hostFoo+"/link")
}

func TestTwoPathCalls(t *testing.T) {
	s, libc := newTestShim(t)

	s.Rename("/foo/a", "/elsewhere/b")
	assertPaths(t, libc.last(), "rename", hostFoo+"/a", "/elsewhere/b")

	s.Link("/foo/a", "/foo/b")
	assertPaths(t, libc.last(), "link", hostFoo+"/a", hostFoo+"/b")

	s.Renameat(5, "a", unix.AT_FDCWD, "/foo/b")
	assertPaths(t, libc.last(), "renameat", hostFoo+"/sub/a", hostFoo+"/b")

	s.Linkat(unix.AT_FDCWD, "rel", 5, "b", 0)
	assertPaths(t, libc.last(), "linkat", "rel", hostFoo+"/sub/b")
}

func TestSymlinkTarget(t *testing.T) {
	s, libc := newTestShim(t)

	s.Symlink("/foo/target", "/foo/link")
	assertPaths(t, libc.last(), "symlink", hostFoo+"/target", hostFoo+"/link")

	s.Symlink("../target", "/foo/link")
	assertPaths(t, libc.last(), "symlink", "../target", hostFoo+"/link")

	s.Symlinkat("/foo/target", 5, "link")
	assertPaths(t, libc.last(), "symlinkat", hostFoo+"/target", hostFoo+"/sub/link")
}

func TestRemoveFallsBackToRmdir(t *testing.T) {
	s, libc := newTestShim(t)
	libc.failNext("unlink", unix.EISDIR)

	if _, errno := complete(s.Remove("/foo/dir")); errno != interpose.NoErrno {
		t.Errorf("Remove errno = %d", errno)
	}
	calls := libc.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected unlink then rmdir, got %+v", calls)
	}
	assertPaths(t, calls[0], "unlink", hostFoo+"/dir")
	assertPaths(t, calls[1], "rmdir", hostFoo+"/dir")
}

func TestCreatFlags(t *testing.T) {
	s, libc := newTestShim(t)

	s.Creat("/foo/new", 0644)
	got := libc.last()
	assertPaths(t, got, "open", hostFoo+"/new")
	if want := unix.O_CREAT | unix.O_WRONLY | unix.O_TRUNC; got.flags != want {
		t.Errorf("flags = %#x, want %#x", got.flags, want)
	}
}

func TestSinglePathReplacements(t *testing.T) {
	s, libc := newTestShim(t)
	buf := make([]byte, 8)

	tests := []struct {
		name string
		run  func()
	}{
		{"truncate", func() { s.Truncate("/foo/f", 0) }},
		{"statfs", func() { s.Statfs("/foo/f", nil) }},
		{"stat", func() { s.Stat("/foo/f", nil) }},
		{"lstat", func() { s.Lstat("/foo/f", nil) }},
		{"chmod", func() { s.Chmod("/foo/f", 0600) }},
		{"chown", func() { s.Chown("/foo/f", 1, 1) }},
		{"lchown", func() { s.Lchown("/foo/f", 1, 1) }},
		{"unlink", func() { s.Unlink("/foo/f") }},
		{"mkdir", func() { s.Mkdir("/foo/f", 0755) }},
		{"rmdir", func() { s.Rmdir("/foo/f") }},
		{"chdir", func() { s.Chdir("/foo/f") }},
		{"getxattr", func() { s.Getxattr("/foo/f", "user.a", buf) }},
		{"lgetxattr", func() { s.Lgetxattr("/foo/f", "user.a", buf) }},
		{"setxattr", func() { s.Setxattr("/foo/f", "user.a", buf, 0) }},
		{"lsetxattr", func() { s.Lsetxattr("/foo/f", "user.a", buf, 0) }},
		{"listxattr", func() { s.Listxattr("/foo/f", buf) }},
		{"llistxattr", func() { s.Llistxattr("/foo/f", buf) }},
		{"removexattr", func() { s.Removexattr("/foo/f", "user.a") }},
		{"lremovexattr", func() { s.Lremovexattr("/foo/f", "user.a") }},
		{"access", func() { s.Access("/foo/f", unix.R_OK) }},
		{"mkfifo", func() { s.Mkfifo("/foo/f", 0644) }},
		{"mknod", func() { s.Mknod("/foo/f", 0644, 0) }},
		{"opendir", func() { s.Opendir("/foo/f") }},
		{"realpath", func() { s.Realpath("/foo/f") }},
		{"statx", func() { s.Statx(unix.AT_FDCWD, "/foo/f", 0, unix.STATX_BASIC_STATS, nil) }},
		{"inotify_add_watch", func() { s.InotifyAddWatch(3, "/foo/f", unix.IN_MODIFY) }},
		{"fopen", func() { s.Fopen("/foo/f", "r") }},
		{"freopen", func() { s.Freopen("/foo/f", "r", nil) }},
		{"statvfs", func() { s.Statvfs("/foo/f", nil) }},
		{"pathconf", func() { s.Pathconf("/foo/f", 3) }},
		{"scandir", func() { s.Scandir("/foo/f", nil, nil, nil) }},
		{"readlinkat", func() { s.Readlinkat(unix.AT_FDCWD, "/foo/f", buf) }},
		{"utimensat", func() { s.Utimensat(unix.AT_FDCWD, "/foo/f", nil, 0) }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.run()
			assertPaths(t, libc.last(), test.name, hostFoo+"/f")
		})
	}
}

func TestPointerResults(t *testing.T) {
	s, libc := newTestShim(t)

	slot := interpose.NoErrno
	if dir := interpose.CompletePointer(s.Opendir("/foo/d"), &slot); dir == nil {
		t.Error("Opendir returned NULL on success")
	}

	libc.failNext("opendir", syscall.ENOTDIR)
	if dir := interpose.CompletePointer(s.Opendir("/foo/d"), &slot); dir != nil {
		t.Error("Opendir returned non-NULL on failure")
	}
	if slot != int32(syscall.ENOTDIR) {
		t.Errorf("errno = %d, want ENOTDIR", slot)
	}
}

func TestPassthroughDoesNotRemap(t *testing.T) {
	s, libc := newTestShim(t)

	s.Passthrough().Open("/foo/bar", unix.O_RDONLY, 0)
	assertPaths(t, libc.last(), "open", "/foo/bar")
}
