// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && cgo

package main

/*
#ifndef _GNU_SOURCE
#define _GNU_SOURCE
#endif
#include <limits.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <sys/stat.h>
#include <sys/types.h>
#include <sys/vfs.h>
#include <time.h>
*/
import "C"

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
)

// Every export returns the C result and stores the errno the caller
// must observe in *errnoOut, or leaves it at interpose.NoErrno. The
// C trampoline writes errno after the export has returned, as the
// last statement before its own return.

func slot(errnoOut *C.int) *int32 {
	return (*int32)(unsafe.Pointer(errnoOut))
}

func done(result interpose.Result[int], errnoOut *C.int) C.int {
	return C.int(interpose.Complete(result, interpose.ReturnInt, slot(errnoOut)))
}

func doneSize(result interpose.Result[int], errnoOut *C.int) C.ssize_t {
	return C.ssize_t(interpose.Complete(result, interpose.ReturnSize, slot(errnoOut)))
}

func donePointer(result interpose.Result[unsafe.Pointer], errnoOut *C.int) unsafe.Pointer {
	return interpose.CompletePointer(result, slot(errnoOut))
}

func doneStatus(result interpose.Result[int32], errnoOut *C.int) C.int {
	return C.int(interpose.Complete(result, interpose.ReturnStatus, slot(errnoOut)))
}

func bytes(buf unsafe.Pointer, size C.size_t) []byte {
	if buf == nil {
		return nil
	}
	return unsafe.Slice((*byte)(buf), int(size))
}

func goStrings(list **C.char) []string {
	if list == nil {
		return nil
	}
	var values []string
	for entry := list; *entry != nil; entry = (**C.char)(unsafe.Add(unsafe.Pointer(entry), unsafe.Sizeof(*entry))) {
		values = append(values, C.GoString(*entry))
	}
	return values
}

//export macaroni_open
func macaroni_open(path *C.char, flags C.int, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.open.Replacement(C.GoString(path), int(flags), uint32(mode)), errnoOut)
}

//export macaroni_openat
func macaroni_openat(dirfd C.int, path *C.char, flags C.int, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.openat.Replacement(int(dirfd), C.GoString(path), int(flags), uint32(mode)), errnoOut)
}

//export macaroni_creat
func macaroni_creat(path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.creat.Replacement(C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_opendir
func macaroni_opendir(path *C.char, internal C.int, errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.opendir.Pick(internal != 0)(C.GoString(path)), errnoOut)
}

//export macaroni_scandir
func macaroni_scandir(path *C.char, namelist, filter, compar unsafe.Pointer, internal C.int, errnoOut *C.int) C.int {
	return done(calls.scandir.Pick(internal != 0)(C.GoString(path), namelist, filter, compar), errnoOut)
}

//export macaroni_scandirat
func macaroni_scandirat(dirfd C.int, path *C.char, namelist, filter, compar unsafe.Pointer, internal C.int, errnoOut *C.int) C.int {
	return done(calls.scandirat.Pick(internal != 0)(int(dirfd), C.GoString(path), namelist, filter, compar), errnoOut)
}

//export macaroni_truncate
func macaroni_truncate(path *C.char, length C.off_t, errnoOut *C.int) C.int {
	return done(calls.truncate.Replacement(C.GoString(path), int64(length)), errnoOut)
}

//export macaroni_statfs
func macaroni_statfs(path *C.char, buf *C.struct_statfs, errnoOut *C.int) C.int {
	return done(calls.statfs.Replacement(C.GoString(path), (*unix.Statfs_t)(unsafe.Pointer(buf))), errnoOut)
}

//export macaroni_statvfs
func macaroni_statvfs(path *C.char, buf unsafe.Pointer, internal C.int, errnoOut *C.int) C.int {
	return done(calls.statvfs.Pick(internal != 0)(C.GoString(path), buf), errnoOut)
}

//export macaroni_pathconf
func macaroni_pathconf(path *C.char, name C.int, internal C.int, errnoOut *C.int) C.long {
	result := calls.pathconf.Pick(internal != 0)(C.GoString(path), int(name))
	return C.long(interpose.Complete(result, interpose.ReturnSize, slot(errnoOut)))
}

//export macaroni_fopen
func macaroni_fopen(path, mode *C.char, internal C.int, errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.fopen.Pick(internal != 0)(C.GoString(path), C.GoString(mode)), errnoOut)
}

//export macaroni_freopen
func macaroni_freopen(path, mode *C.char, stream unsafe.Pointer, internal C.int, errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.freopen.Pick(internal != 0)(C.GoString(path), C.GoString(mode), stream), errnoOut)
}

//export macaroni_tmpfile
func macaroni_tmpfile(errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.tmpfile.Replacement(), errnoOut)
}

// template returns the caller's mkstemp template for rewriting in
// place.
func template(name *C.char) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(name)), int(C.strlen(name)))
}

//export macaroni_mkostemps
func macaroni_mkostemps(name *C.char, suffixLen, flags C.int, errnoOut *C.int) C.int {
	return done(calls.mkostemps.Replacement(template(name), int(suffixLen), int(flags)), errnoOut)
}

//export macaroni_mkdtemp
func macaroni_mkdtemp(name *C.char, errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.mkdtemp.Replacement(template(name)), errnoOut)
}

//export macaroni_stat
func macaroni_stat(path *C.char, buf *C.struct_stat, errnoOut *C.int) C.int {
	return done(calls.stat.Replacement(C.GoString(path), (*unix.Stat_t)(unsafe.Pointer(buf))), errnoOut)
}

//export macaroni_lstat
func macaroni_lstat(path *C.char, buf *C.struct_stat, errnoOut *C.int) C.int {
	return done(calls.lstat.Replacement(C.GoString(path), (*unix.Stat_t)(unsafe.Pointer(buf))), errnoOut)
}

//export macaroni_fstatat
func macaroni_fstatat(dirfd C.int, path *C.char, buf *C.struct_stat, flags C.int, errnoOut *C.int) C.int {
	return done(calls.fstatat.Replacement(int(dirfd), C.GoString(path), (*unix.Stat_t)(unsafe.Pointer(buf)), int(flags)), errnoOut)
}

//export macaroni_chmod
func macaroni_chmod(path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.chmod.Replacement(C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_statx
func macaroni_statx(dirfd C.int, path *C.char, flags C.int, mask C.uint, buf unsafe.Pointer, errnoOut *C.int) C.int {
	return done(calls.statx.Replacement(int(dirfd), C.GoString(path), int(flags), int(mask), (*unix.Statx_t)(buf)), errnoOut)
}

//export macaroni_fchmodat
func macaroni_fchmodat(dirfd C.int, path *C.char, mode C.mode_t, flags C.int, errnoOut *C.int) C.int {
	return done(calls.fchmodat.Replacement(int(dirfd), C.GoString(path), uint32(mode), int(flags)), errnoOut)
}

//export macaroni_chown
func macaroni_chown(path *C.char, uid C.uid_t, gid C.gid_t, errnoOut *C.int) C.int {
	return done(calls.chown.Replacement(C.GoString(path), owner(uint32(uid)), owner(uint32(gid))), errnoOut)
}

//export macaroni_lchown
func macaroni_lchown(path *C.char, uid C.uid_t, gid C.gid_t, errnoOut *C.int) C.int {
	return done(calls.lchown.Replacement(C.GoString(path), owner(uint32(uid)), owner(uint32(gid))), errnoOut)
}

//export macaroni_fchownat
func macaroni_fchownat(dirfd C.int, path *C.char, uid C.uid_t, gid C.gid_t, flags C.int, errnoOut *C.int) C.int {
	return done(calls.fchownat.Replacement(int(dirfd), C.GoString(path), owner(uint32(uid)), owner(uint32(gid)), int(flags)), errnoOut)
}

// owner converts a uid_t or gid_t. (uid_t)-1 means "leave unchanged"
// and must stay -1.
func owner(id uint32) int {
	return int(int32(id))
}

//export macaroni_link
func macaroni_link(oldpath, newpath *C.char, errnoOut *C.int) C.int {
	return done(calls.link.Replacement(C.GoString(oldpath), C.GoString(newpath)), errnoOut)
}

//export macaroni_linkat
func macaroni_linkat(olddirfd C.int, oldpath *C.char, newdirfd C.int, newpath *C.char, flags C.int, errnoOut *C.int) C.int {
	return done(calls.linkat.Replacement(int(olddirfd), C.GoString(oldpath), int(newdirfd), C.GoString(newpath), int(flags)), errnoOut)
}

//export macaroni_symlink
func macaroni_symlink(target, linkpath *C.char, errnoOut *C.int) C.int {
	return done(calls.symlink.Replacement(C.GoString(target), C.GoString(linkpath)), errnoOut)
}

//export macaroni_symlinkat
func macaroni_symlinkat(target *C.char, newdirfd C.int, linkpath *C.char, errnoOut *C.int) C.int {
	return done(calls.symlinkat.Replacement(C.GoString(target), int(newdirfd), C.GoString(linkpath)), errnoOut)
}

//export macaroni_readlink
func macaroni_readlink(path *C.char, buf unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.readlink.Replacement(C.GoString(path), bytes(buf, size)), errnoOut)
}

//export macaroni_readlinkat
func macaroni_readlinkat(dirfd C.int, path *C.char, buf unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.readlinkat.Replacement(int(dirfd), C.GoString(path), bytes(buf, size)), errnoOut)
}

//export macaroni_unlink
func macaroni_unlink(path *C.char, errnoOut *C.int) C.int {
	return done(calls.unlink.Replacement(C.GoString(path)), errnoOut)
}

//export macaroni_unlinkat
func macaroni_unlinkat(dirfd C.int, path *C.char, flags C.int, errnoOut *C.int) C.int {
	return done(calls.unlinkat.Replacement(int(dirfd), C.GoString(path), int(flags)), errnoOut)
}

//export macaroni_remove
func macaroni_remove(path *C.char, errnoOut *C.int) C.int {
	return done(calls.remove.Replacement(C.GoString(path)), errnoOut)
}

//export macaroni_rename
func macaroni_rename(oldpath, newpath *C.char, errnoOut *C.int) C.int {
	return done(calls.rename.Replacement(C.GoString(oldpath), C.GoString(newpath)), errnoOut)
}

//export macaroni_renameat
func macaroni_renameat(olddirfd C.int, oldpath *C.char, newdirfd C.int, newpath *C.char, errnoOut *C.int) C.int {
	return done(calls.renameat.Replacement(int(olddirfd), C.GoString(oldpath), int(newdirfd), C.GoString(newpath)), errnoOut)
}

//export macaroni_renameat2
func macaroni_renameat2(olddirfd C.int, oldpath *C.char, newdirfd C.int, newpath *C.char, flags C.uint, errnoOut *C.int) C.int {
	return done(calls.renameat2.Replacement(int(olddirfd), C.GoString(oldpath), int(newdirfd), C.GoString(newpath), uint(flags)), errnoOut)
}

//export macaroni_mkdir
func macaroni_mkdir(path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.mkdir.Replacement(C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_mkdirat
func macaroni_mkdirat(dirfd C.int, path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.mkdirat.Replacement(int(dirfd), C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_rmdir
func macaroni_rmdir(path *C.char, errnoOut *C.int) C.int {
	return done(calls.rmdir.Replacement(C.GoString(path)), errnoOut)
}

//export macaroni_chdir
func macaroni_chdir(path *C.char, errnoOut *C.int) C.int {
	return done(calls.chdir.Replacement(C.GoString(path)), errnoOut)
}

//export macaroni_getcwd
func macaroni_getcwd(buf *C.char, size C.size_t, errnoOut *C.int) unsafe.Pointer {
	if buf != nil && size == 0 {
		return donePointer(interpose.Fail[unsafe.Pointer](syscall.EINVAL), errnoOut)
	}
	return donePointer(cPath(calls.getcwd.Replacement(), unsafe.Pointer(buf), int(size), syscall.ERANGE), errnoOut)
}

//export macaroni_getxattr
func macaroni_getxattr(path, name *C.char, value unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.getxattr.Replacement(C.GoString(path), C.GoString(name), bytes(value, size)), errnoOut)
}

//export macaroni_lgetxattr
func macaroni_lgetxattr(path, name *C.char, value unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.lgetxattr.Replacement(C.GoString(path), C.GoString(name), bytes(value, size)), errnoOut)
}

//export macaroni_setxattr
func macaroni_setxattr(path, name *C.char, value unsafe.Pointer, size C.size_t, flags C.int, errnoOut *C.int) C.int {
	return done(calls.setxattr.Replacement(C.GoString(path), C.GoString(name), bytes(value, size), int(flags)), errnoOut)
}

//export macaroni_lsetxattr
func macaroni_lsetxattr(path, name *C.char, value unsafe.Pointer, size C.size_t, flags C.int, errnoOut *C.int) C.int {
	return done(calls.lsetxattr.Replacement(C.GoString(path), C.GoString(name), bytes(value, size), int(flags)), errnoOut)
}

//export macaroni_listxattr
func macaroni_listxattr(path *C.char, list unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.listxattr.Replacement(C.GoString(path), bytes(list, size)), errnoOut)
}

//export macaroni_llistxattr
func macaroni_llistxattr(path *C.char, list unsafe.Pointer, size C.size_t, errnoOut *C.int) C.ssize_t {
	return doneSize(calls.llistxattr.Replacement(C.GoString(path), bytes(list, size)), errnoOut)
}

//export macaroni_removexattr
func macaroni_removexattr(path, name *C.char, errnoOut *C.int) C.int {
	return done(calls.removexattr.Replacement(C.GoString(path), C.GoString(name)), errnoOut)
}

//export macaroni_lremovexattr
func macaroni_lremovexattr(path, name *C.char, errnoOut *C.int) C.int {
	return done(calls.lremovexattr.Replacement(C.GoString(path), C.GoString(name)), errnoOut)
}

//export macaroni_access
func macaroni_access(path *C.char, mode C.int, errnoOut *C.int) C.int {
	return done(calls.access.Replacement(C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_faccessat
func macaroni_faccessat(dirfd C.int, path *C.char, mode C.int, flags C.int, errnoOut *C.int) C.int {
	return done(calls.faccessat.Replacement(int(dirfd), C.GoString(path), uint32(mode), int(flags)), errnoOut)
}

//export macaroni_realpath
func macaroni_realpath(path *C.char, resolved *C.char, internal C.int, errnoOut *C.int) unsafe.Pointer {
	size := 0
	if resolved != nil {
		size = C.PATH_MAX
	}
	result := calls.realpath.Pick(internal != 0)(C.GoString(path))
	return donePointer(cPath(result, unsafe.Pointer(resolved), size, syscall.ENAMETOOLONG), errnoOut)
}

// cPath copies a path result into buf, which holds size bytes. A nil
// buf is replaced by malloc'd memory the caller frees, of size bytes
// or, when size is 0, of exactly what the path needs.
func cPath(result interpose.Result[string], buf unsafe.Pointer, size int, tooSmall syscall.Errno) interpose.Result[unsafe.Pointer] {
	if result.Kind() == interpose.KindFail {
		errno, _ := result.Errno()
		return interpose.Fail[unsafe.Pointer](errno)
	}
	path := result.Value()
	need := len(path) + 1
	if size > 0 && need > size {
		return interpose.Fail[unsafe.Pointer](tooSmall)
	}
	if buf == nil {
		buf = C.malloc(C.size_t(max(size, need)))
		if buf == nil {
			return interpose.Fail[unsafe.Pointer](syscall.ENOMEM)
		}
	}
	dest := unsafe.Slice((*byte)(buf), need)
	copy(dest, path)
	dest[len(path)] = 0
	return interpose.Ok(buf)
}

//export macaroni_mkfifo
func macaroni_mkfifo(path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.mkfifo.Replacement(C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_mkfifoat
func macaroni_mkfifoat(dirfd C.int, path *C.char, mode C.mode_t, errnoOut *C.int) C.int {
	return done(calls.mkfifoat.Replacement(int(dirfd), C.GoString(path), uint32(mode)), errnoOut)
}

//export macaroni_mknod
func macaroni_mknod(path *C.char, mode C.mode_t, dev C.dev_t, errnoOut *C.int) C.int {
	return done(calls.mknod.Replacement(C.GoString(path), uint32(mode), int(dev)), errnoOut)
}

//export macaroni_mknodat
func macaroni_mknodat(dirfd C.int, path *C.char, mode C.mode_t, dev C.dev_t, errnoOut *C.int) C.int {
	return done(calls.mknodat.Replacement(int(dirfd), C.GoString(path), uint32(mode), int(dev)), errnoOut)
}

//export macaroni_utimensat
func macaroni_utimensat(dirfd C.int, path *C.char, times *C.struct_timespec, flags C.int, errnoOut *C.int) C.int {
	var ts []unix.Timespec
	if times != nil {
		ts = unsafe.Slice((*unix.Timespec)(unsafe.Pointer(times)), 2)
	}
	return done(calls.utimensat.Replacement(int(dirfd), C.GoString(path), ts, int(flags)), errnoOut)
}

//export macaroni_inotify_add_watch
func macaroni_inotify_add_watch(fd C.int, path *C.char, mask C.uint32_t, errnoOut *C.int) C.int {
	return done(calls.inotify.Replacement(int(fd), C.GoString(path), uint32(mask)), errnoOut)
}

//export macaroni_execve
func macaroni_execve(path *C.char, argv, envp **C.char, errnoOut *C.int) C.int {
	return done(calls.execve.Replacement(C.GoString(path), goStrings(argv), goStrings(envp)), errnoOut)
}

//export macaroni_execv
func macaroni_execv(path *C.char, argv **C.char, errnoOut *C.int) C.int {
	return done(calls.execv.Replacement(C.GoString(path), goStrings(argv)), errnoOut)
}

//export macaroni_execvp
func macaroni_execvp(file *C.char, argv **C.char, errnoOut *C.int) C.int {
	return done(calls.execvp.Replacement(C.GoString(file), goStrings(argv)), errnoOut)
}

//export macaroni_execvpe
func macaroni_execvpe(file *C.char, argv, envp **C.char, errnoOut *C.int) C.int {
	return done(calls.execvpe.Replacement(C.GoString(file), goStrings(argv), goStrings(envp)), errnoOut)
}

//export macaroni_posix_spawn
func macaroni_posix_spawn(pid *C.pid_t, path *C.char, fileActions, attr unsafe.Pointer, argv, envp **C.char, internal C.int, errnoOut *C.int) C.int {
	spawn := calls.posixSpawn.Pick(internal != 0)
	return doneStatus(spawn((*int32)(unsafe.Pointer(pid)), C.GoString(path), fileActions, attr, goStrings(argv), goStrings(envp)), errnoOut)
}

//export macaroni_posix_spawnp
func macaroni_posix_spawnp(pid *C.pid_t, file *C.char, fileActions, attr unsafe.Pointer, argv, envp **C.char, internal C.int, errnoOut *C.int) C.int {
	spawn := calls.posixSpawnp.Pick(internal != 0)
	return doneStatus(spawn((*int32)(unsafe.Pointer(pid)), C.GoString(file), fileActions, attr, goStrings(argv), goStrings(envp)), errnoOut)
}

//export macaroni_popen
func macaroni_popen(command, mode *C.char, internal C.int, errnoOut *C.int) unsafe.Pointer {
	return donePointer(calls.popen.Pick(internal != 0)(C.GoString(command), C.GoString(mode)), errnoOut)
}

//export macaroni_system
func macaroni_system(command *C.char, internal C.int, errnoOut *C.int) C.int {
	return done(calls.system.Pick(internal != 0)(C.GoString(command)), errnoOut)
}

//export macaroni_frames_internal
func macaroni_frames_internal(frames *C.uintptr_t, count C.int) C.int {
	if frames == nil || count <= 0 {
		return 0
	}
	if detector.Internal(unsafe.Slice((*uintptr)(unsafe.Pointer(frames)), int(count))) {
		return 1
	}
	return 0
}

//export macaroni_unimplemented
func macaroni_unimplemented(symbol *C.char) {
	unimplemented(C.GoString(symbol))
}
