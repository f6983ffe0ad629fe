// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
)

// Open is open(2) and open64. The fortified __open_2 variants share
// it with a zero mode.
func (s *Shim) Open(path string, flags int, mode uint32) interpose.Result[int] {
	return s.pass.Open(s.path(path), flags, mode)
}

// Openat resolves a relative path against dirfd in the virtual
// namespace.
func (s *Shim) Openat(dirfd int, path string, flags int, mode uint32) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Openat(dirfd, mapped, flags, mode)
}

// Creat is open with O_CREAT|O_WRONLY|O_TRUNC.
func (s *Shim) Creat(path string, mode uint32) interpose.Result[int] {
	return s.pass.Creat(s.path(path), mode)
}

// Opendir returns the DIR stream of the C library.
func (s *Shim) Opendir(path string) interpose.Result[unsafe.Pointer] {
	return s.pass.Opendir(s.path(path))
}

// Truncate also serves truncate64.
func (s *Shim) Truncate(path string, length int64) interpose.Result[int] {
	return s.pass.Truncate(s.path(path), length)
}

// Statfs also serves statfs64.
func (s *Shim) Statfs(path string, buf *unix.Statfs_t) interpose.Result[int] {
	return s.pass.Statfs(s.path(path), buf)
}

// Stat, Lstat, and Fstatat serve their 64-bit and versioned
// (__xstat) aliases as well.
func (s *Shim) Stat(path string, stat *unix.Stat_t) interpose.Result[int] {
	return s.pass.Stat(s.path(path), stat)
}

func (s *Shim) Lstat(path string, stat *unix.Stat_t) interpose.Result[int] {
	return s.pass.Lstat(s.path(path), stat)
}

func (s *Shim) Fstatat(dirfd int, path string, stat *unix.Stat_t, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Fstatat(dirfd, mapped, stat, flags)
}

// Statx is statx(2). An empty path with AT_EMPTY_PATH reads dirfd.
func (s *Shim) Statx(dirfd int, path string, flags, mask int, stat *unix.Statx_t) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Statx(dirfd, mapped, flags, mask, stat)
}

// Chmod and the rest of the ownership family remap their path and
// change nothing else.
func (s *Shim) Chmod(path string, mode uint32) interpose.Result[int] {
	return s.pass.Chmod(s.path(path), mode)
}

// Fchmodat also serves lchmod, as AT_SYMLINK_NOFOLLOW on AT_FDCWD.
func (s *Shim) Fchmodat(dirfd int, path string, mode uint32, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Fchmodat(dirfd, mapped, mode, flags)
}

func (s *Shim) Chown(path string, uid, gid int) interpose.Result[int] {
	return s.pass.Chown(s.path(path), uid, gid)
}

func (s *Shim) Lchown(path string, uid, gid int) interpose.Result[int] {
	return s.pass.Lchown(s.path(path), uid, gid)
}

func (s *Shim) Fchownat(dirfd int, path string, uid, gid, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Fchownat(dirfd, mapped, uid, gid, flags)
}

// Link remaps both names.
func (s *Shim) Link(oldpath, newpath string) interpose.Result[int] {
	return s.pass.Link(s.path(oldpath), s.path(newpath))
}

// Linkat resolves each name against its own directory.
func (s *Shim) Linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) interpose.Result[int] {
	oldMapped, err := s.pathAt(olddirfd, oldpath)
	if err != nil {
		return failAt[int](err)
	}
	newMapped, err := s.pathAt(newdirfd, newpath)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Linkat(olddirfd, oldMapped, newdirfd, newMapped, flags)
}

// Symlink remaps an absolute target as well as the link location, so
// the link resolves to the same file outside the shim. A relative
// target is stored as given.
func (s *Shim) Symlink(target, linkpath string) interpose.Result[int] {
	return s.pass.Symlink(s.path(target), s.path(linkpath))
}

func (s *Shim) Symlinkat(target string, newdirfd int, linkpath string) interpose.Result[int] {
	mapped, err := s.pathAt(newdirfd, linkpath)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Symlinkat(s.path(target), newdirfd, mapped)
}

// Readlink returns the stored target verbatim. A target written by
// [Shim.Symlink] is therefore a host path.
func (s *Shim) Readlink(path string, buf []byte) interpose.Result[int] {
	return s.pass.Readlink(s.path(path), buf)
}

func (s *Shim) Readlinkat(dirfd int, path string, buf []byte) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Readlinkat(dirfd, mapped, buf)
}

// Unlink, Unlinkat, Remove, and Rmdir delete through the mapped path.
func (s *Shim) Unlink(path string) interpose.Result[int] {
	return s.pass.Unlink(s.path(path))
}

func (s *Shim) Unlinkat(dirfd int, path string, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Unlinkat(dirfd, mapped, flags)
}

func (s *Shim) Remove(path string) interpose.Result[int] {
	return s.pass.Remove(s.path(path))
}

// Rename remaps both names.
func (s *Shim) Rename(oldpath, newpath string) interpose.Result[int] {
	return s.pass.Rename(s.path(oldpath), s.path(newpath))
}

func (s *Shim) Renameat(olddirfd int, oldpath string, newdirfd int, newpath string) interpose.Result[int] {
	oldMapped, err := s.pathAt(olddirfd, oldpath)
	if err != nil {
		return failAt[int](err)
	}
	newMapped, err := s.pathAt(newdirfd, newpath)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Renameat(olddirfd, oldMapped, newdirfd, newMapped)
}

// Renameat2 is renameat with RENAME_NOREPLACE, RENAME_EXCHANGE, or
// RENAME_WHITEOUT flags.
func (s *Shim) Renameat2(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) interpose.Result[int] {
	oldMapped, err := s.pathAt(olddirfd, oldpath)
	if err != nil {
		return failAt[int](err)
	}
	newMapped, err := s.pathAt(newdirfd, newpath)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Renameat2(olddirfd, oldMapped, newdirfd, newMapped, flags)
}

// Mkdir and Mkdirat create in the mapped location.
func (s *Shim) Mkdir(path string, mode uint32) interpose.Result[int] {
	return s.pass.Mkdir(s.path(path), mode)
}

func (s *Shim) Mkdirat(dirfd int, path string, mode uint32) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Mkdirat(dirfd, mapped, mode)
}

func (s *Shim) Rmdir(path string) interpose.Result[int] {
	return s.pass.Rmdir(s.path(path))
}

// Chdir moves the working directory to the host path, so later
// relative paths need no mapping.
func (s *Shim) Chdir(path string) interpose.Result[int] {
	return s.pass.Chdir(s.path(path))
}

// Getxattr and the other extended attribute calls map the file path.
// Attribute names and values pass through.
func (s *Shim) Getxattr(path, name string, dest []byte) interpose.Result[int] {
	return s.pass.Getxattr(s.path(path), name, dest)
}

func (s *Shim) Lgetxattr(path, name string, dest []byte) interpose.Result[int] {
	return s.pass.Lgetxattr(s.path(path), name, dest)
}

func (s *Shim) Setxattr(path, name string, data []byte, flags int) interpose.Result[int] {
	return s.pass.Setxattr(s.path(path), name, data, flags)
}

func (s *Shim) Lsetxattr(path, name string, data []byte, flags int) interpose.Result[int] {
	return s.pass.Lsetxattr(s.path(path), name, data, flags)
}

func (s *Shim) Listxattr(path string, dest []byte) interpose.Result[int] {
	return s.pass.Listxattr(s.path(path), dest)
}

func (s *Shim) Llistxattr(path string, dest []byte) interpose.Result[int] {
	return s.pass.Llistxattr(s.path(path), dest)
}

func (s *Shim) Removexattr(path, name string) interpose.Result[int] {
	return s.pass.Removexattr(s.path(path), name)
}

func (s *Shim) Lremovexattr(path, name string) interpose.Result[int] {
	return s.pass.Lremovexattr(s.path(path), name)
}

// Access checks the mapped path.
func (s *Shim) Access(path string, mode uint32) interpose.Result[int] {
	return s.pass.Access(s.path(path), mode)
}

// Faccessat also serves euidaccess and eaccess, as AT_EACCESS on
// AT_FDCWD.
func (s *Shim) Faccessat(dirfd int, path string, mode uint32, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Faccessat(dirfd, mapped, mode, flags)
}

// Realpath resolves the mapped path on the host and reports the result
// in the virtual namespace, so passing it to another intercepted call
// maps it exactly once.
func (s *Shim) Realpath(path string) interpose.Result[string] {
	return s.virtualResult(s.pass.Realpath(s.path(path)))
}

// Getcwd reports the host working directory in the virtual namespace.
func (s *Shim) Getcwd() interpose.Result[string] {
	return s.virtualResult(s.pass.Getcwd())
}

func (s *Shim) virtualResult(result interpose.Result[string]) interpose.Result[string] {
	if result.Kind() == interpose.KindFail {
		return result
	}
	return interpose.Ok(s.virtual(result.Value()))
}

// Mkfifo, Mknod, and their *at forms create special files at the
// mapped location. Mknod also serves __xmknod.
func (s *Shim) Mkfifo(path string, mode uint32) interpose.Result[int] {
	return s.pass.Mkfifo(s.path(path), mode)
}

func (s *Shim) Mkfifoat(dirfd int, path string, mode uint32) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Mkfifoat(dirfd, mapped, mode)
}

func (s *Shim) Mknod(path string, mode uint32, dev int) interpose.Result[int] {
	return s.pass.Mknod(s.path(path), mode, dev)
}

func (s *Shim) Mknodat(dirfd int, path string, mode uint32, dev int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Mknodat(dirfd, mapped, mode, dev)
}

// Utimensat also serves utimes, lutimes, utime, and futimesat, whose
// timevals the binding converts. Nil times means now.
func (s *Shim) Utimensat(dirfd int, path string, times []unix.Timespec, flags int) interpose.Result[int] {
	mapped, err := s.pathAt(dirfd, path)
	if err != nil {
		return failAt[int](err)
	}
	return s.pass.Utimensat(dirfd, mapped, times, flags)
}

// InotifyAddWatch watches the mapped path.
func (s *Shim) InotifyAddWatch(fd int, path string, mask uint32) interpose.Result[int] {
	return s.pass.InotifyAddWatch(fd, s.path(path), mask)
}
