// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// HostLibc is the [Libc] of a real process. Path operations are raw
// system calls through x/sys/unix, which never pass through the C
// library's interposed symbols, so a replacement calling them cannot
// re-enter the shim. The [Native] calls, the environment included,
// come from the embedded implementation, which the preload library
// binds with dlsym(RTLD_NEXT). The Go runtime's copy of the
// environment is a snapshot from load time and is never consulted.
type HostLibc struct {
	Native
}

var _ Libc = HostLibc{}

func (HostLibc) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (HostLibc) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return unix.Openat(dirfd, path, flags, mode)
}

func (HostLibc) Truncate(path string, length int64) error { return unix.Truncate(path, length) }

func (HostLibc) Statfs(path string, buf *unix.Statfs_t) error { return unix.Statfs(path, buf) }

func (HostLibc) Stat(path string, stat *unix.Stat_t) error { return unix.Stat(path, stat) }

func (HostLibc) Lstat(path string, stat *unix.Stat_t) error { return unix.Lstat(path, stat) }

func (HostLibc) Fstatat(dirfd int, path string, stat *unix.Stat_t, flags int) error {
	return unix.Fstatat(dirfd, path, stat, flags)
}

func (HostLibc) Statx(dirfd int, path string, flags, mask int, stat *unix.Statx_t) error {
	return unix.Statx(dirfd, path, flags, mask, stat)
}

func (HostLibc) Chmod(path string, mode uint32) error { return unix.Chmod(path, mode) }

// Fchmodat emulates AT_SYMLINK_NOFOLLOW, which the system call lacks,
// the way the C library does: through an O_PATH descriptor, failing
// with EOPNOTSUPP on a symbolic link.
func (HostLibc) Fchmodat(dirfd int, path string, mode uint32, flags int) error {
	if flags != unix.AT_SYMLINK_NOFOLLOW {
		return unix.Fchmodat(dirfd, path, mode, flags)
	}
	fd, err := unix.Openat(dirfd, path, unix.O_PATH|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return err
	}
	if stat.Mode&unix.S_IFMT == unix.S_IFLNK {
		return unix.EOPNOTSUPP
	}
	return unix.Chmod("/proc/self/fd/"+strconv.Itoa(fd), mode)
}

func (HostLibc) Chown(path string, uid, gid int) error { return unix.Chown(path, uid, gid) }

func (HostLibc) Lchown(path string, uid, gid int) error { return unix.Lchown(path, uid, gid) }

func (HostLibc) Fchownat(dirfd int, path string, uid, gid, flags int) error {
	return unix.Fchownat(dirfd, path, uid, gid, flags)
}

func (HostLibc) Link(oldpath, newpath string) error { return unix.Link(oldpath, newpath) }

func (HostLibc) Linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) error {
	return unix.Linkat(olddirfd, oldpath, newdirfd, newpath, flags)
}

func (HostLibc) Symlink(target, linkpath string) error { return unix.Symlink(target, linkpath) }

func (HostLibc) Symlinkat(target string, newdirfd int, linkpath string) error {
	return unix.Symlinkat(target, newdirfd, linkpath)
}

func (HostLibc) Readlink(path string, buf []byte) (int, error) { return unix.Readlink(path, buf) }

func (HostLibc) Readlinkat(dirfd int, path string, buf []byte) (int, error) {
	return unix.Readlinkat(dirfd, path, buf)
}

func (HostLibc) Unlink(path string) error { return unix.Unlink(path) }

func (HostLibc) Unlinkat(dirfd int, path string, flags int) error {
	return unix.Unlinkat(dirfd, path, flags)
}

func (HostLibc) Rename(oldpath, newpath string) error { return unix.Rename(oldpath, newpath) }

func (HostLibc) Renameat(olddirfd int, oldpath string, newdirfd int, newpath string) error {
	return unix.Renameat(olddirfd, oldpath, newdirfd, newpath)
}

func (HostLibc) Renameat2(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) error {
	return unix.Renameat2(olddirfd, oldpath, newdirfd, newpath, flags)
}

func (HostLibc) Mkdir(path string, mode uint32) error { return unix.Mkdir(path, mode) }

func (HostLibc) Mkdirat(dirfd int, path string, mode uint32) error {
	return unix.Mkdirat(dirfd, path, mode)
}

func (HostLibc) Rmdir(path string) error { return unix.Rmdir(path) }

func (HostLibc) Chdir(path string) error { return unix.Chdir(path) }

func (HostLibc) Getwd() (string, error) { return unix.Getwd() }

func (HostLibc) Getxattr(path, name string, dest []byte) (int, error) {
	return unix.Getxattr(path, name, dest)
}

func (HostLibc) Lgetxattr(path, name string, dest []byte) (int, error) {
	return unix.Lgetxattr(path, name, dest)
}

func (HostLibc) Setxattr(path, name string, data []byte, flags int) error {
	return unix.Setxattr(path, name, data, flags)
}

func (HostLibc) Lsetxattr(path, name string, data []byte, flags int) error {
	return unix.Lsetxattr(path, name, data, flags)
}

func (HostLibc) Listxattr(path string, dest []byte) (int, error) { return unix.Listxattr(path, dest) }

func (HostLibc) Llistxattr(path string, dest []byte) (int, error) {
	return unix.Llistxattr(path, dest)
}

func (HostLibc) Removexattr(path, name string) error { return unix.Removexattr(path, name) }

func (HostLibc) Lremovexattr(path, name string) error { return unix.Lremovexattr(path, name) }

func (HostLibc) Access(path string, mode uint32) error { return unix.Access(path, mode) }

func (HostLibc) Faccessat(dirfd int, path string, mode uint32, flags int) error {
	return unix.Faccessat(dirfd, path, mode, flags)
}

func (HostLibc) Mkfifo(path string, mode uint32) error { return unix.Mkfifo(path, mode) }

func (HostLibc) Mkfifoat(dirfd int, path string, mode uint32) error {
	return unix.Mkfifoat(dirfd, path, mode)
}

func (HostLibc) Mknod(path string, mode uint32, dev int) error { return unix.Mknod(path, mode, dev) }

func (HostLibc) Mknodat(dirfd int, path string, mode uint32, dev int) error {
	return unix.Mknodat(dirfd, path, mode, dev)
}

func (HostLibc) Utimensat(dirfd int, path string, times []unix.Timespec, flags int) error {
	return unix.UtimesNanoAt(dirfd, path, times, flags)
}

func (HostLibc) InotifyAddWatch(fd int, path string, mask uint32) (int, error) {
	return unix.InotifyAddWatch(fd, path, mask)
}

func (HostLibc) Close(fd int) error { return unix.Close(fd) }

func (HostLibc) Execve(path string, argv, envp []string) error { return unix.Exec(path, argv, envp) }

// Setenv updates the C environment as well when cgo is in use.
func (HostLibc) Setenv(key, value string) error { return os.Setenv(key, value) }

// ProcDirs resolves directory descriptors through /proc/self/fd.
type ProcDirs struct{}

// DirPath returns the host path of dirfd. AT_FDCWD yields the working
// directory. A descriptor that is not open fails with EBADF.
func (ProcDirs) DirPath(dirfd int) (string, error) {
	if dirfd == unix.AT_FDCWD {
		return unix.Getwd()
	}
	if dirfd < 0 {
		return "", unix.EBADF
	}
	buf := make([]byte, unix.PathMax)
	n, err := unix.Readlink("/proc/self/fd/"+strconv.Itoa(dirfd), buf)
	if err == unix.ENOENT {
		return "", unix.EBADF
	}
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
