// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Libc performs the real, unconfined calls. Methods follow the x/sys
// conventions: the error is a syscall.Errno when the call failed.
type Libc interface {
	Open(path string, flags int, mode uint32) (int, error)
	Openat(dirfd int, path string, flags int, mode uint32) (int, error)
	Truncate(path string, length int64) error
	Statfs(path string, buf *unix.Statfs_t) error

	Stat(path string, stat *unix.Stat_t) error
	Lstat(path string, stat *unix.Stat_t) error
	Fstatat(dirfd int, path string, stat *unix.Stat_t, flags int) error
	Statx(dirfd int, path string, flags, mask int, stat *unix.Statx_t) error

	Chmod(path string, mode uint32) error
	Fchmodat(dirfd int, path string, mode uint32, flags int) error
	Chown(path string, uid, gid int) error
	Lchown(path string, uid, gid int) error
	Fchownat(dirfd int, path string, uid, gid, flags int) error

	Link(oldpath, newpath string) error
	Linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) error
	Symlink(target, linkpath string) error
	Symlinkat(target string, newdirfd int, linkpath string) error
	Readlink(path string, buf []byte) (int, error)
	Readlinkat(dirfd int, path string, buf []byte) (int, error)
	Unlink(path string) error
	Unlinkat(dirfd int, path string, flags int) error
	Rename(oldpath, newpath string) error
	Renameat(olddirfd int, oldpath string, newdirfd int, newpath string) error
	Renameat2(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) error

	Mkdir(path string, mode uint32) error
	Mkdirat(dirfd int, path string, mode uint32) error
	Rmdir(path string) error
	Chdir(path string) error
	Getwd() (string, error)

	Getxattr(path, name string, dest []byte) (int, error)
	Lgetxattr(path, name string, dest []byte) (int, error)
	Setxattr(path, name string, data []byte, flags int) error
	Lsetxattr(path, name string, data []byte, flags int) error
	Listxattr(path string, dest []byte) (int, error)
	Llistxattr(path string, dest []byte) (int, error)
	Removexattr(path, name string) error
	Lremovexattr(path, name string) error

	Access(path string, mode uint32) error
	Faccessat(dirfd int, path string, mode uint32, flags int) error
	Mkfifo(path string, mode uint32) error
	Mkfifoat(dirfd int, path string, mode uint32) error
	Mknod(path string, mode uint32, dev int) error
	Mknodat(dirfd int, path string, mode uint32, dev int) error
	Utimensat(dirfd int, path string, times []unix.Timespec, flags int) error
	InotifyAddWatch(fd int, path string, mask uint32) (int, error)
	Close(fd int) error

	// Execve replaces the process image. It returns only on failure.
	Execve(path string, argv, envp []string) error

	Setenv(key, value string) error

	Native
}

// Native is the part of [Libc] that needs the C library's own
// implementation or state: calls that return C-allocated objects, that
// run a child through the C library, or that read the C environment,
// which the host program may have changed since the shim attached. The
// preload library binds these with dlsym(RTLD_NEXT).
//
// Pointer arguments and results are C objects (DIR, FILE, struct
// statvfs, scandir callbacks) passed through untouched.
type Native interface {
	Environ() []string
	Getenv(key string) (string, bool)

	Opendir(path string) (unsafe.Pointer, error)
	Realpath(path string) (string, error)
	Fopen(path, mode string) (unsafe.Pointer, error)
	Freopen(path, mode string, stream unsafe.Pointer) (unsafe.Pointer, error)
	Fdopen(fd int, mode string) (unsafe.Pointer, error)
	Statvfs(path string, buf unsafe.Pointer) error
	// Pathconf returns -1 with a nil error for a limit that does not
	// exist.
	Pathconf(path string, name int) (int, error)
	Scandir(path string, namelist, filter, compar unsafe.Pointer) (int, error)
	Scandirat(dirfd int, path string, namelist, filter, compar unsafe.Pointer) (int, error)

	PosixSpawn(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno
	PosixSpawnp(pid *int32, file string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno
	Popen(command, mode string) (unsafe.Pointer, error)
	System(command string) (int, error)
}
