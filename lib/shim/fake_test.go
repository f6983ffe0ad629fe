// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// call is one recorded Libc invocation.
type call struct {
	name  string
	paths []string
	flags int
	argv  []string
	envp  []string
}

// fakeLibc records calls and fails them with queued errors.
type fakeLibc struct {
	mu         sync.Mutex
	calls      []call
	errs       map[string][]error
	env        map[string]string
	executable map[string]bool
	nextFD     int
	cwd        string
	closed     []int
}

func newFakeLibc() *fakeLibc {
	return &fakeLibc{
		errs:       map[string][]error{},
		env:        map[string]string{},
		executable: map[string]bool{},
		nextFD:     3,
	}
}

// failNext queues err for the next call to name.
func (f *fakeLibc) failNext(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = append(f.errs[name], err)
}

func (f *fakeLibc) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	queue := f.errs[c.name]
	if len(queue) == 0 {
		return nil
	}
	f.errs[c.name] = queue[1:]
	return queue[0]
}

func (f *fakeLibc) pathCall(name string, paths ...string) error {
	return f.record(call{name: name, paths: paths})
}

func (f *fakeLibc) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeLibc) last() call {
	calls := f.recorded()
	if len(calls) == 0 {
		return call{}
	}
	return calls[len(calls)-1]
}

func (f *fakeLibc) fd(err error) (int, error) {
	if err != nil {
		return -1, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fd := f.nextFD
	f.nextFD++
	return fd, nil
}

func (f *fakeLibc) Open(path string, flags int, mode uint32) (int, error) {
	return f.fd(f.record(call{name: "open", paths: []string{path}, flags: flags}))
}

func (f *fakeLibc) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return f.fd(f.record(call{name: "openat", paths: []string{path}, flags: flags}))
}

func (f *fakeLibc) Truncate(path string, length int64) error { return f.pathCall("truncate", path) }

func (f *fakeLibc) Statfs(path string, buf *unix.Statfs_t) error { return f.pathCall("statfs", path) }

func (f *fakeLibc) Stat(path string, stat *unix.Stat_t) error { return f.pathCall("stat", path) }

func (f *fakeLibc) Lstat(path string, stat *unix.Stat_t) error { return f.pathCall("lstat", path) }

func (f *fakeLibc) Fstatat(dirfd int, path string, stat *unix.Stat_t, flags int) error {
	return f.record(call{name: "fstatat", paths: []string{path}, flags: flags})
}

func (f *fakeLibc) Chmod(path string, mode uint32) error { return f.pathCall("chmod", path) }

func (f *fakeLibc) Fchmodat(dirfd int, path string, mode uint32, flags int) error {
	return f.pathCall("fchmodat", path)
}

func (f *fakeLibc) Chown(path string, uid, gid int) error { return f.pathCall("chown", path) }

func (f *fakeLibc) Lchown(path string, uid, gid int) error { return f.pathCall("lchown", path) }

func (f *fakeLibc) Fchownat(dirfd int, path string, uid, gid, flags int) error {
	return f.pathCall("fchownat", path)
}

func (f *fakeLibc) Link(oldpath, newpath string) error { return f.pathCall("link", oldpath, newpath) }

func (f *fakeLibc) Linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) error {
	return f.pathCall("linkat", oldpath, newpath)
}

func (f *fakeLibc) Symlink(target, linkpath string) error {
	return f.pathCall("symlink", target, linkpath)
}

func (f *fakeLibc) Symlinkat(target string, newdirfd int, linkpath string) error {
	return f.pathCall("symlinkat", target, linkpath)
}

func (f *fakeLibc) Readlink(path string, buf []byte) (int, error) {
	if err := f.pathCall("readlink", path); err != nil {
		return -1, err
	}
	return copy(buf, "target"), nil
}

func (f *fakeLibc) Readlinkat(dirfd int, path string, buf []byte) (int, error) {
	if err := f.pathCall("readlinkat", path); err != nil {
		return -1, err
	}
	return copy(buf, "target"), nil
}

func (f *fakeLibc) Unlink(path string) error { return f.pathCall("unlink", path) }

func (f *fakeLibc) Unlinkat(dirfd int, path string, flags int) error {
	return f.pathCall("unlinkat", path)
}

func (f *fakeLibc) Rename(oldpath, newpath string) error {
	return f.pathCall("rename", oldpath, newpath)
}

func (f *fakeLibc) Renameat(olddirfd int, oldpath string, newdirfd int, newpath string) error {
	return f.pathCall("renameat", oldpath, newpath)
}

func (f *fakeLibc) Mkdir(path string, mode uint32) error { return f.pathCall("mkdir", path) }

func (f *fakeLibc) Mkdirat(dirfd int, path string, mode uint32) error {
	return f.pathCall("mkdirat", path)
}

func (f *fakeLibc) Rmdir(path string) error { return f.pathCall("rmdir", path) }

func (f *fakeLibc) Chdir(path string) error { return f.pathCall("chdir", path) }

func (f *fakeLibc) Getxattr(path, name string, dest []byte) (int, error) {
	return 0, f.pathCall("getxattr", path)
}

func (f *fakeLibc) Lgetxattr(path, name string, dest []byte) (int, error) {
	return 0, f.pathCall("lgetxattr", path)
}

func (f *fakeLibc) Setxattr(path, name string, data []byte, flags int) error {
	return f.pathCall("setxattr", path)
}

func (f *fakeLibc) Lsetxattr(path, name string, data []byte, flags int) error {
	return f.pathCall("lsetxattr", path)
}

func (f *fakeLibc) Listxattr(path string, dest []byte) (int, error) {
	return 0, f.pathCall("listxattr", path)
}

func (f *fakeLibc) Llistxattr(path string, dest []byte) (int, error) {
	return 0, f.pathCall("llistxattr", path)
}

func (f *fakeLibc) Removexattr(path, name string) error { return f.pathCall("removexattr", path) }

func (f *fakeLibc) Lremovexattr(path, name string) error { return f.pathCall("lremovexattr", path) }

func (f *fakeLibc) Access(path string, mode uint32) error {
	if err := f.pathCall("access", path); err != nil {
		return err
	}
	if mode == unix.X_OK && !f.executable[path] {
		return unix.ENOENT
	}
	return nil
}

func (f *fakeLibc) Faccessat(dirfd int, path string, mode uint32, flags int) error {
	return f.pathCall("faccessat", path)
}

func (f *fakeLibc) Mkfifo(path string, mode uint32) error { return f.pathCall("mkfifo", path) }

func (f *fakeLibc) Mkfifoat(dirfd int, path string, mode uint32) error {
	return f.pathCall("mkfifoat", path)
}

func (f *fakeLibc) Mknod(path string, mode uint32, dev int) error { return f.pathCall("mknod", path) }

func (f *fakeLibc) Mknodat(dirfd int, path string, mode uint32, dev int) error {
	return f.pathCall("mknodat", path)
}

func (f *fakeLibc) Utimensat(dirfd int, path string, times []unix.Timespec, flags int) error {
	return f.pathCall("utimensat", path)
}

func (f *fakeLibc) Execve(path string, argv, envp []string) error {
	return f.record(call{name: "execve", paths: []string{path}, argv: argv, envp: envp})
}

func (f *fakeLibc) Setenv(key, value string) error {
	f.mu.Lock()
	f.env[key] = value
	f.mu.Unlock()
	return f.pathCall("setenv", key)
}

func (f *fakeLibc) Environ() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var env []string
	for key, value := range f.env {
		env = append(env, key+"="+value)
	}
	return env
}

func (f *fakeLibc) Getenv(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.env[key]
	return value, ok
}

var fakeObject = new(byte)

func (f *fakeLibc) Opendir(path string) (unsafe.Pointer, error) {
	if err := f.pathCall("opendir", path); err != nil {
		return nil, err
	}
	return unsafe.Pointer(fakeObject), nil
}

// Realpath resolves nothing: every path is already canonical.
func (f *fakeLibc) Realpath(path string) (string, error) {
	if err := f.pathCall("realpath", path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeLibc) Getwd() (string, error) {
	if err := f.pathCall("getcwd"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cwd, nil
}

func (f *fakeLibc) Statx(dirfd int, path string, flags, mask int, stat *unix.Statx_t) error {
	return f.record(call{name: "statx", paths: []string{path}, flags: flags})
}

func (f *fakeLibc) Renameat2(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) error {
	return f.record(call{name: "renameat2", paths: []string{oldpath, newpath}, flags: int(flags)})
}

func (f *fakeLibc) InotifyAddWatch(fd int, path string, mask uint32) (int, error) {
	if err := f.pathCall("inotify_add_watch", path); err != nil {
		return -1, err
	}
	return 1, nil
}

func (f *fakeLibc) Close(fd int) error {
	f.mu.Lock()
	f.closed = append(f.closed, fd)
	f.mu.Unlock()
	return f.pathCall("close")
}

func (f *fakeLibc) Fopen(path, mode string) (unsafe.Pointer, error) {
	if err := f.pathCall("fopen", path); err != nil {
		return nil, err
	}
	return unsafe.Pointer(fakeObject), nil
}

func (f *fakeLibc) Freopen(path, mode string, stream unsafe.Pointer) (unsafe.Pointer, error) {
	if err := f.pathCall("freopen", path); err != nil {
		return nil, err
	}
	return stream, nil
}

func (f *fakeLibc) Fdopen(fd int, mode string) (unsafe.Pointer, error) {
	if err := f.record(call{name: "fdopen", flags: fd}); err != nil {
		return nil, err
	}
	return unsafe.Pointer(fakeObject), nil
}

func (f *fakeLibc) Statvfs(path string, buf unsafe.Pointer) error { return f.pathCall("statvfs", path) }

func (f *fakeLibc) Pathconf(path string, name int) (int, error) {
	if err := f.pathCall("pathconf", path); err != nil {
		return -1, err
	}
	return 255, nil
}

func (f *fakeLibc) Scandir(path string, namelist, filter, compar unsafe.Pointer) (int, error) {
	if err := f.pathCall("scandir", path); err != nil {
		return -1, err
	}
	return 2, nil
}

func (f *fakeLibc) Scandirat(dirfd int, path string, namelist, filter, compar unsafe.Pointer) (int, error) {
	if err := f.pathCall("scandirat", path); err != nil {
		return -1, err
	}
	return 2, nil
}

func (f *fakeLibc) PosixSpawn(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno {
	err := f.record(call{name: "posix_spawn", paths: []string{path}, argv: argv, envp: envp})
	if err != nil {
		return err.(syscall.Errno)
	}
	*pid = 4242
	return 0
}

func (f *fakeLibc) PosixSpawnp(pid *int32, file string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno {
	err := f.record(call{name: "posix_spawnp", paths: []string{file}, argv: argv, envp: envp})
	if err != nil {
		return err.(syscall.Errno)
	}
	*pid = 4243
	return 0
}

func (f *fakeLibc) Popen(command, mode string) (unsafe.Pointer, error) {
	if err := f.pathCall("popen", command); err != nil {
		return nil, err
	}
	return unsafe.Pointer(fakeObject), nil
}

func (f *fakeLibc) System(command string) (int, error) {
	if err := f.pathCall("system", command); err != nil {
		return -1, err
	}
	return 0, nil
}

// fakeDirs maps descriptors to host paths.
type fakeDirs map[int]string

func (d fakeDirs) DirPath(dirfd int) (string, error) {
	path, ok := d[dirfd]
	if !ok {
		return "", unix.EBADF
	}
	return path, nil
}
