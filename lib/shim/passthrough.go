// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
)

// Passthrough performs every intercepted call without confinement. It
// is the original half of each [interpose.Entry] and the internal
// branch taken when a call re-enters the shim from inside itself.
type Passthrough struct {
	libc Libc
}

// NewPassthrough returns a Passthrough over libc.
func NewPassthrough(libc Libc) Passthrough {
	return Passthrough{libc: libc}
}

func status(err error) interpose.Result[int] {
	if err != nil {
		return interpose.OkLastErrno(-1, err)
	}
	return interpose.Ok(0)
}

func count(n int, err error) interpose.Result[int] {
	if err != nil {
		return interpose.OkLastErrno(-1, err)
	}
	return interpose.Ok(n)
}

func pointer(p unsafe.Pointer, err error) interpose.Result[unsafe.Pointer] {
	if err != nil {
		return interpose.Fail[unsafe.Pointer](interpose.ErrnoOf(err))
	}
	return interpose.Ok(p)
}

func text(value string, err error) interpose.Result[string] {
	if err != nil {
		return interpose.Fail[string](interpose.ErrnoOf(err))
	}
	return interpose.Ok(value)
}

func spawnStatus(errno syscall.Errno) interpose.Result[int32] {
	if errno != 0 {
		return interpose.Fail[int32](errno)
	}
	return interpose.Ok[int32](0)
}

// Open, Openat, and Creat return the new descriptor.
func (p Passthrough) Open(path string, flags int, mode uint32) interpose.Result[int] {
	return count(p.libc.Open(path, flags, mode))
}

func (p Passthrough) Openat(dirfd int, path string, flags int, mode uint32) interpose.Result[int] {
	return count(p.libc.Openat(dirfd, path, flags, mode))
}

func (p Passthrough) Creat(path string, mode uint32) interpose.Result[int] {
	return count(p.libc.Open(path, unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC, mode))
}

// Opendir returns the DIR stream of the C library.
func (p Passthrough) Opendir(path string) interpose.Result[unsafe.Pointer] {
	return pointer(p.libc.Opendir(path))
}

// The metadata calls below return 0 or -1 with errno from the
// underlying call.
func (p Passthrough) Truncate(path string, length int64) interpose.Result[int] {
	return status(p.libc.Truncate(path, length))
}

func (p Passthrough) Statfs(path string, buf *unix.Statfs_t) interpose.Result[int] {
	return status(p.libc.Statfs(path, buf))
}

func (p Passthrough) Stat(path string, stat *unix.Stat_t) interpose.Result[int] {
	return status(p.libc.Stat(path, stat))
}

func (p Passthrough) Lstat(path string, stat *unix.Stat_t) interpose.Result[int] {
	return status(p.libc.Lstat(path, stat))
}

func (p Passthrough) Fstatat(dirfd int, path string, stat *unix.Stat_t, flags int) interpose.Result[int] {
	return status(p.libc.Fstatat(dirfd, path, stat, flags))
}

func (p Passthrough) Statx(dirfd int, path string, flags, mask int, stat *unix.Statx_t) interpose.Result[int] {
	return status(p.libc.Statx(dirfd, path, flags, mask, stat))
}

func (p Passthrough) Chmod(path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Chmod(path, mode))
}

func (p Passthrough) Fchmodat(dirfd int, path string, mode uint32, flags int) interpose.Result[int] {
	return status(p.libc.Fchmodat(dirfd, path, mode, flags))
}

func (p Passthrough) Chown(path string, uid, gid int) interpose.Result[int] {
	return status(p.libc.Chown(path, uid, gid))
}

func (p Passthrough) Lchown(path string, uid, gid int) interpose.Result[int] {
	return status(p.libc.Lchown(path, uid, gid))
}

func (p Passthrough) Fchownat(dirfd int, path string, uid, gid, flags int) interpose.Result[int] {
	return status(p.libc.Fchownat(dirfd, path, uid, gid, flags))
}

func (p Passthrough) Link(oldpath, newpath string) interpose.Result[int] {
	return status(p.libc.Link(oldpath, newpath))
}

func (p Passthrough) Linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) interpose.Result[int] {
	return status(p.libc.Linkat(olddirfd, oldpath, newdirfd, newpath, flags))
}

func (p Passthrough) Symlink(target, linkpath string) interpose.Result[int] {
	return status(p.libc.Symlink(target, linkpath))
}

func (p Passthrough) Symlinkat(target string, newdirfd int, linkpath string) interpose.Result[int] {
	return status(p.libc.Symlinkat(target, newdirfd, linkpath))
}

// Readlink and Readlinkat return the number of bytes placed in buf.
func (p Passthrough) Readlink(path string, buf []byte) interpose.Result[int] {
	return count(p.libc.Readlink(path, buf))
}

func (p Passthrough) Readlinkat(dirfd int, path string, buf []byte) interpose.Result[int] {
	return count(p.libc.Readlinkat(dirfd, path, buf))
}

func (p Passthrough) Unlink(path string) interpose.Result[int] {
	return status(p.libc.Unlink(path))
}

func (p Passthrough) Unlinkat(dirfd int, path string, flags int) interpose.Result[int] {
	return status(p.libc.Unlinkat(dirfd, path, flags))
}

// Remove unlinks path, or removes it as a directory when unlink
// reports EISDIR.
func (p Passthrough) Remove(path string) interpose.Result[int] {
	err := p.libc.Unlink(path)
	if errors.Is(err, unix.EISDIR) {
		err = p.libc.Rmdir(path)
	}
	return status(err)
}

func (p Passthrough) Rename(oldpath, newpath string) interpose.Result[int] {
	return status(p.libc.Rename(oldpath, newpath))
}

func (p Passthrough) Renameat(olddirfd int, oldpath string, newdirfd int, newpath string) interpose.Result[int] {
	return status(p.libc.Renameat(olddirfd, oldpath, newdirfd, newpath))
}

func (p Passthrough) Renameat2(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) interpose.Result[int] {
	return status(p.libc.Renameat2(olddirfd, oldpath, newdirfd, newpath, flags))
}

func (p Passthrough) Mkdir(path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Mkdir(path, mode))
}

func (p Passthrough) Mkdirat(dirfd int, path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Mkdirat(dirfd, path, mode))
}

func (p Passthrough) Rmdir(path string) interpose.Result[int] {
	return status(p.libc.Rmdir(path))
}

func (p Passthrough) Chdir(path string) interpose.Result[int] {
	return status(p.libc.Chdir(path))
}

// Getxattr and the list calls return a byte count. Passing an empty
// buffer asks for the size needed.
func (p Passthrough) Getxattr(path, name string, dest []byte) interpose.Result[int] {
	return count(p.libc.Getxattr(path, name, dest))
}

func (p Passthrough) Lgetxattr(path, name string, dest []byte) interpose.Result[int] {
	return count(p.libc.Lgetxattr(path, name, dest))
}

func (p Passthrough) Setxattr(path, name string, data []byte, flags int) interpose.Result[int] {
	return status(p.libc.Setxattr(path, name, data, flags))
}

func (p Passthrough) Lsetxattr(path, name string, data []byte, flags int) interpose.Result[int] {
	return status(p.libc.Lsetxattr(path, name, data, flags))
}

func (p Passthrough) Listxattr(path string, dest []byte) interpose.Result[int] {
	return count(p.libc.Listxattr(path, dest))
}

func (p Passthrough) Llistxattr(path string, dest []byte) interpose.Result[int] {
	return count(p.libc.Llistxattr(path, dest))
}

func (p Passthrough) Removexattr(path, name string) interpose.Result[int] {
	return status(p.libc.Removexattr(path, name))
}

func (p Passthrough) Lremovexattr(path, name string) interpose.Result[int] {
	return status(p.libc.Lremovexattr(path, name))
}

func (p Passthrough) Access(path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Access(path, mode))
}

func (p Passthrough) Faccessat(dirfd int, path string, mode uint32, flags int) interpose.Result[int] {
	return status(p.libc.Faccessat(dirfd, path, mode, flags))
}

// Realpath and Getcwd return host paths.
func (p Passthrough) Realpath(path string) interpose.Result[string] {
	return text(p.libc.Realpath(path))
}

func (p Passthrough) Getcwd() interpose.Result[string] {
	return text(p.libc.Getwd())
}

func (p Passthrough) Mkfifo(path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Mkfifo(path, mode))
}

func (p Passthrough) Mkfifoat(dirfd int, path string, mode uint32) interpose.Result[int] {
	return status(p.libc.Mkfifoat(dirfd, path, mode))
}

func (p Passthrough) Mknod(path string, mode uint32, dev int) interpose.Result[int] {
	return status(p.libc.Mknod(path, mode, dev))
}

func (p Passthrough) Mknodat(dirfd int, path string, mode uint32, dev int) interpose.Result[int] {
	return status(p.libc.Mknodat(dirfd, path, mode, dev))
}

func (p Passthrough) Utimensat(dirfd int, path string, times []unix.Timespec, flags int) interpose.Result[int] {
	return status(p.libc.Utimensat(dirfd, path, times, flags))
}

func (p Passthrough) InotifyAddWatch(fd int, path string, mask uint32) interpose.Result[int] {
	return count(p.libc.InotifyAddWatch(fd, path, mask))
}

// Fopen, Freopen, and Tmpfile return FILE streams of the C library.
func (p Passthrough) Fopen(path, mode string) interpose.Result[unsafe.Pointer] {
	return pointer(p.libc.Fopen(path, mode))
}

func (p Passthrough) Freopen(path, mode string, stream unsafe.Pointer) interpose.Result[unsafe.Pointer] {
	return pointer(p.libc.Freopen(path, mode, stream))
}

func (p Passthrough) Tmpfile() interpose.Result[unsafe.Pointer] {
	return tmpfile(p.libc, identity)
}

func (p Passthrough) Statvfs(path string, buf unsafe.Pointer) interpose.Result[int] {
	return status(p.libc.Statvfs(path, buf))
}

// Pathconf reports a missing limit as -1 without touching errno.
func (p Passthrough) Pathconf(path string, name int) interpose.Result[int] {
	return count(p.libc.Pathconf(path, name))
}

func (p Passthrough) Scandir(path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int] {
	return count(p.libc.Scandir(path, namelist, filter, compar))
}

func (p Passthrough) Scandirat(dirfd int, path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int] {
	return count(p.libc.Scandirat(dirfd, path, namelist, filter, compar))
}

func (p Passthrough) Mkostemps(template []byte, suffixLen, flags int) interpose.Result[int] {
	return count(openTemp(p.libc, template, suffixLen, flags, identity))
}

func (p Passthrough) Mkdtemp(template []byte) interpose.Result[unsafe.Pointer] {
	return tempDir(p.libc, template, identity)
}

// Execve and the rest of the exec family replace the process image and
// return only on failure. The v forms take the C environment.
func (p Passthrough) Execve(path string, argv, envp []string) interpose.Result[int] {
	return status(p.libc.Execve(path, argv, envp))
}

func (p Passthrough) Execv(path string, argv []string) interpose.Result[int] {
	return p.Execve(path, argv, p.libc.Environ())
}

func (p Passthrough) Execvp(file string, argv []string) interpose.Result[int] {
	return p.Execvpe(file, argv, p.libc.Environ())
}

func (p Passthrough) Execvpe(file string, argv, envp []string) interpose.Result[int] {
	return status(execSearch(p.libc, file, argv, envp, identity))
}

// PosixSpawn and PosixSpawnp return the error number rather than
// setting errno.
func (p Passthrough) PosixSpawn(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) interpose.Result[int32] {
	return spawnStatus(p.libc.PosixSpawn(pid, path, fileActions, attr, argv, envp))
}

func (p Passthrough) PosixSpawnp(pid *int32, file string, fileActions, attr unsafe.Pointer, argv, envp []string) interpose.Result[int32] {
	return spawnStatus(p.libc.PosixSpawnp(pid, file, fileActions, attr, argv, envp))
}

// Popen and System run command through /bin/sh.
func (p Passthrough) Popen(command, mode string) interpose.Result[unsafe.Pointer] {
	return pointer(p.libc.Popen(command, mode))
}

func (p Passthrough) System(command string) interpose.Result[int] {
	code, err := p.libc.System(command)
	return interpose.OkLastErrno(code, err)
}

func identity(path string) string { return path }
