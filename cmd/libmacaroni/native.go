// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && cgo

package main

/*
#include <dirent.h>
#include <spawn.h>
#include <stdio.h>
#include <stdlib.h>

extern DIR *macaroni_real_opendir(const char *path);
extern char *macaroni_real_realpath(const char *path, char *resolved);
extern int macaroni_real_posix_spawn(pid_t *pid, const char *path,
	const posix_spawn_file_actions_t *actions, const posix_spawnattr_t *attr,
	char *const argv[], char *const envp[]);
extern int macaroni_real_posix_spawnp(pid_t *pid, const char *file,
	const posix_spawn_file_actions_t *actions, const posix_spawnattr_t *attr,
	char *const argv[], char *const envp[]);
extern FILE *macaroni_real_popen(const char *command, const char *mode);
extern int macaroni_real_system(const char *command);
extern char **macaroni_environ(void);
extern FILE *macaroni_real_fopen(const char *path, const char *mode);
extern FILE *macaroni_real_freopen(const char *path, const char *mode, void *stream);
extern int macaroni_real_statvfs(const char *path, void *buf);
extern long macaroni_real_pathconf(const char *path, int name);
extern int macaroni_real_scandir(const char *path, void *namelist, void *filter, void *compar);
extern int macaroni_real_scandirat(int dirfd, const char *path, void *namelist, void *filter, void *compar);
*/
import "C"

import (
	"syscall"
	"unsafe"
)

// native implements shim.Native with the next definitions of each
// symbol after this library, resolved by shim.c at load time.
type native struct{}

func (native) Environ() []string {
	return goStrings(C.macaroni_environ())
}

func (native) Getenv(key string) (string, bool) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	value := C.getenv(ckey)
	if value == nil {
		return "", false
	}
	return C.GoString(value), true
}

func (native) Opendir(path string) (unsafe.Pointer, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	dir, err := C.macaroni_real_opendir(cpath)
	if dir == nil {
		return nil, errnoOr(err)
	}
	return unsafe.Pointer(dir), nil
}

func (native) Realpath(path string) (string, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	result, err := C.macaroni_real_realpath(cpath, nil)
	if result == nil {
		return "", errnoOr(err)
	}
	defer C.free(unsafe.Pointer(result))
	return C.GoString(result), nil
}

func (native) Fopen(path, mode string) (unsafe.Pointer, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))
	stream, err := C.macaroni_real_fopen(cpath, cmode)
	if stream == nil {
		return nil, errnoOr(err)
	}
	return unsafe.Pointer(stream), nil
}

func (native) Freopen(path, mode string, stream unsafe.Pointer) (unsafe.Pointer, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))
	reopened, err := C.macaroni_real_freopen(cpath, cmode, stream)
	if reopened == nil {
		return nil, errnoOr(err)
	}
	return unsafe.Pointer(reopened), nil
}

func (native) Fdopen(fd int, mode string) (unsafe.Pointer, error) {
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))
	stream, err := C.fdopen(C.int(fd), cmode)
	if stream == nil {
		return nil, errnoOr(err)
	}
	return unsafe.Pointer(stream), nil
}

func (native) Statvfs(path string, buf unsafe.Pointer) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	if r, err := C.macaroni_real_statvfs(cpath, buf); r != 0 {
		return errnoOr(err)
	}
	return nil
}

// Pathconf returns -1 and a nil error for a name without a limit. The
// cgo call clears errno first, so err is nil unless pathconf set it.
func (native) Pathconf(path string, name int) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	r, err := C.macaroni_real_pathconf(cpath, C.int(name))
	if r == -1 && err != nil {
		return -1, err
	}
	return int(r), nil
}

func (native) Scandir(path string, namelist, filter, compar unsafe.Pointer) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	n, err := C.macaroni_real_scandir(cpath, namelist, filter, compar)
	if n < 0 {
		return -1, errnoOr(err)
	}
	return int(n), nil
}

func (native) Scandirat(dirfd int, path string, namelist, filter, compar unsafe.Pointer) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	n, err := C.macaroni_real_scandirat(C.int(dirfd), cpath, namelist, filter, compar)
	if n < 0 {
		return -1, errnoOr(err)
	}
	return int(n), nil
}

func (native) PosixSpawn(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cargv, freeArgv := cStrings(argv)
	defer freeArgv()
	cenvp, freeEnvp := cStrings(envp)
	defer freeEnvp()
	return syscall.Errno(C.macaroni_real_posix_spawn((*C.pid_t)(unsafe.Pointer(pid)), cpath,
		(*C.posix_spawn_file_actions_t)(fileActions), (*C.posix_spawnattr_t)(attr), cargv, cenvp))
}

func (native) PosixSpawnp(pid *int32, file string, fileActions, attr unsafe.Pointer, argv, envp []string) syscall.Errno {
	cfile := C.CString(file)
	defer C.free(unsafe.Pointer(cfile))
	cargv, freeArgv := cStrings(argv)
	defer freeArgv()
	cenvp, freeEnvp := cStrings(envp)
	defer freeEnvp()
	return syscall.Errno(C.macaroni_real_posix_spawnp((*C.pid_t)(unsafe.Pointer(pid)), cfile,
		(*C.posix_spawn_file_actions_t)(fileActions), (*C.posix_spawnattr_t)(attr), cargv, cenvp))
}

func (native) Popen(command, mode string) (unsafe.Pointer, error) {
	ccommand := C.CString(command)
	defer C.free(unsafe.Pointer(ccommand))
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))
	stream, err := C.macaroni_real_popen(ccommand, cmode)
	if stream == nil {
		return nil, errnoOr(err)
	}
	return unsafe.Pointer(stream), nil
}

// System returns the wait status. The error is the errno left by the
// call, which system(3) may set even when it returns a status.
func (native) System(command string) (int, error) {
	ccommand := C.CString(command)
	defer C.free(unsafe.Pointer(ccommand))
	status, err := C.macaroni_real_system(ccommand)
	return int(status), err
}

// errnoOr returns err, or EIO when the C call failed without setting
// errno.
func errnoOr(err error) error {
	if err == nil {
		return syscall.EIO
	}
	return err
}

// cStrings copies values into a NULL-terminated C array. The returned
// function frees it.
func cStrings(values []string) (**C.char, func()) {
	size := C.size_t(len(values)+1) * C.size_t(unsafe.Sizeof((*C.char)(nil)))
	array := (**C.char)(C.malloc(size))
	entries := unsafe.Slice(array, len(values)+1)
	for i, value := range values {
		entries[i] = C.CString(value)
	}
	entries[len(values)] = nil
	return array, func() {
		for _, entry := range entries[:len(values)] {
			C.free(unsafe.Pointer(entry))
		}
		C.free(unsafe.Pointer(array))
	}
}
