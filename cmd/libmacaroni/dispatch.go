// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && cgo

package main

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/macaroni-sandbox/macaroni/lib/interpose"
	"github.com/macaroni-sandbox/macaroni/lib/shim"
)

type binding[F any] = interpose.Binding[F]

type (
	pathCall      = func(path string) interpose.Result[int]
	pathModeCall  = func(path string, mode uint32) interpose.Result[int]
	atModeCall    = func(dirfd int, path string, mode uint32) interpose.Result[int]
	twoPathCall   = func(oldpath, newpath string) interpose.Result[int]
	ownerCall     = func(path string, uid, gid int) interpose.Result[int]
	nodeCall      = func(path string, mode uint32, dev int) interpose.Result[int]
	nodeAtCall    = func(dirfd int, path string, mode uint32, dev int) interpose.Result[int]
	statCall      = func(path string, stat *unix.Stat_t) interpose.Result[int]
	readCall      = func(path string, buf []byte) interpose.Result[int]
	xattrGetCall  = func(path, name string, dest []byte) interpose.Result[int]
	xattrSetCall  = func(path, name string, data []byte, flags int) interpose.Result[int]
	xattrNameCall = func(path, name string) interpose.Result[int]
	spawnCall     = func(pid *int32, path string, fileActions, attr unsafe.Pointer, argv, envp []string) interpose.Result[int32]
	streamCall    = func(path, mode string) interpose.Result[unsafe.Pointer]
	stringCall    = func(path string) interpose.Result[string]
	scandirCall   = func(path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int]
)

// dispatch holds the typed functions every export calls, resolved from
// the interposition table once at load.
type dispatch struct {
	open           binding[func(path string, flags int, mode uint32) interpose.Result[int]]
	openat         binding[func(dirfd int, path string, flags int, mode uint32) interpose.Result[int]]
	creat          binding[pathModeCall]
	opendir        binding[func(path string) interpose.Result[unsafe.Pointer]]
	truncate       binding[func(path string, length int64) interpose.Result[int]]
	statfs         binding[func(path string, buf *unix.Statfs_t) interpose.Result[int]]
	stat, lstat    binding[statCall]
	fstatat        binding[func(dirfd int, path string, stat *unix.Stat_t, flags int) interpose.Result[int]]
	statx          binding[func(dirfd int, path string, flags, mask int, stat *unix.Statx_t) interpose.Result[int]]
	chmod          binding[pathModeCall]
	fchmodat       binding[func(dirfd int, path string, mode uint32, flags int) interpose.Result[int]]
	chown, lchown  binding[ownerCall]
	fchownat       binding[func(dirfd int, path string, uid, gid, flags int) interpose.Result[int]]
	link           binding[twoPathCall]
	linkat         binding[func(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) interpose.Result[int]]
	symlink        binding[twoPathCall]
	symlinkat      binding[func(target string, newdirfd int, linkpath string) interpose.Result[int]]
	readlink       binding[readCall]
	readlinkat     binding[func(dirfd int, path string, buf []byte) interpose.Result[int]]
	unlink, remove binding[pathCall]
	unlinkat       binding[func(dirfd int, path string, flags int) interpose.Result[int]]
	rename         binding[twoPathCall]
	renameat       binding[func(olddirfd int, oldpath string, newdirfd int, newpath string) interpose.Result[int]]
	renameat2      binding[func(olddirfd int, oldpath string, newdirfd int, newpath string, flags uint) interpose.Result[int]]
	mkdir          binding[pathModeCall]
	mkdirat        binding[atModeCall]
	rmdir, chdir   binding[pathCall]
	getcwd         binding[func() interpose.Result[string]]
	getxattr       binding[xattrGetCall]
	lgetxattr      binding[xattrGetCall]
	setxattr       binding[xattrSetCall]
	lsetxattr      binding[xattrSetCall]
	listxattr      binding[readCall]
	llistxattr     binding[readCall]
	removexattr    binding[xattrNameCall]
	lremovexattr   binding[xattrNameCall]
	access         binding[pathModeCall]
	faccessat      binding[func(dirfd int, path string, mode uint32, flags int) interpose.Result[int]]
	realpath       binding[stringCall]
	mkfifo         binding[pathModeCall]
	mkfifoat       binding[atModeCall]
	mknod          binding[nodeCall]
	mknodat        binding[nodeAtCall]
	utimensat      binding[func(dirfd int, path string, times []unix.Timespec, flags int) interpose.Result[int]]
	inotify        binding[func(fd int, path string, mask uint32) interpose.Result[int]]
	fopen          binding[streamCall]
	freopen        binding[func(path, mode string, stream unsafe.Pointer) interpose.Result[unsafe.Pointer]]
	tmpfile        binding[func() interpose.Result[unsafe.Pointer]]
	mkostemps      binding[func(template []byte, suffixLen, flags int) interpose.Result[int]]
	mkdtemp        binding[func(template []byte) interpose.Result[unsafe.Pointer]]
	statvfs        binding[func(path string, buf unsafe.Pointer) interpose.Result[int]]
	pathconf       binding[func(path string, name int) interpose.Result[int]]
	scandir        binding[scandirCall]
	scandirat      binding[func(dirfd int, path string, namelist, filter, compar unsafe.Pointer) interpose.Result[int]]
	execve         binding[func(path string, argv, envp []string) interpose.Result[int]]
	execv, execvp  binding[func(path string, argv []string) interpose.Result[int]]
	execvpe        binding[func(file string, argv, envp []string) interpose.Result[int]]
	posixSpawn     binding[spawnCall]
	posixSpawnp    binding[spawnCall]
	popen          binding[streamCall]
	system         binding[func(command string) interpose.Result[int]]
}

// binder resolves table entries and collects every failure.
type binder struct {
	table *interpose.Table
	errs  []error
}

func bind[F any](b *binder, slot *binding[F], symbol string) {
	resolved, err := interpose.Bind[F](b.table, symbol, shim.Aliases[symbol]...)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	*slot = resolved
}

// resolve binds every export to its table entry. An export serving
// aliases of its symbol is checked against each of them.
func resolve(table *interpose.Table) (*dispatch, error) {
	d := new(dispatch)
	b := &binder{table: table}

	bind(b, &d.open, "open")
	bind(b, &d.openat, "openat")
	bind(b, &d.creat, "creat")
	bind(b, &d.opendir, "opendir")
	bind(b, &d.scandir, "scandir")
	bind(b, &d.scandirat, "scandirat")
	bind(b, &d.truncate, "truncate")
	bind(b, &d.statfs, "statfs")
	bind(b, &d.statvfs, "statvfs")
	bind(b, &d.pathconf, "pathconf")

	bind(b, &d.fopen, "fopen")
	bind(b, &d.freopen, "freopen")
	bind(b, &d.tmpfile, "tmpfile")
	bind(b, &d.mkostemps, "mkostemps")
	bind(b, &d.mkdtemp, "mkdtemp")

	bind(b, &d.stat, "stat")
	bind(b, &d.lstat, "lstat")
	bind(b, &d.fstatat, "fstatat")
	bind(b, &d.statx, "statx")

	bind(b, &d.chmod, "chmod")
	bind(b, &d.fchmodat, "fchmodat")
	bind(b, &d.chown, "chown")
	bind(b, &d.lchown, "lchown")
	bind(b, &d.fchownat, "fchownat")

	bind(b, &d.link, "link")
	bind(b, &d.linkat, "linkat")
	bind(b, &d.symlink, "symlink")
	bind(b, &d.symlinkat, "symlinkat")
	bind(b, &d.readlink, "readlink")
	bind(b, &d.readlinkat, "readlinkat")
	bind(b, &d.unlink, "unlink")
	bind(b, &d.unlinkat, "unlinkat")
	bind(b, &d.remove, "remove")
	bind(b, &d.rename, "rename")
	bind(b, &d.renameat, "renameat")
	bind(b, &d.renameat2, "renameat2")

	bind(b, &d.mkdir, "mkdir")
	bind(b, &d.mkdirat, "mkdirat")
	bind(b, &d.rmdir, "rmdir")
	bind(b, &d.chdir, "chdir")
	bind(b, &d.getcwd, "getcwd")

	bind(b, &d.getxattr, "getxattr")
	bind(b, &d.lgetxattr, "lgetxattr")
	bind(b, &d.setxattr, "setxattr")
	bind(b, &d.lsetxattr, "lsetxattr")
	bind(b, &d.listxattr, "listxattr")
	bind(b, &d.llistxattr, "llistxattr")
	bind(b, &d.removexattr, "removexattr")
	bind(b, &d.lremovexattr, "lremovexattr")

	bind(b, &d.access, "access")
	bind(b, &d.faccessat, "faccessat")
	bind(b, &d.realpath, "realpath")
	bind(b, &d.mkfifo, "mkfifo")
	bind(b, &d.mkfifoat, "mkfifoat")
	bind(b, &d.mknod, "mknod")
	bind(b, &d.mknodat, "mknodat")
	bind(b, &d.utimensat, "utimensat")
	bind(b, &d.inotify, "inotify_add_watch")

	bind(b, &d.execve, "execve")
	bind(b, &d.execv, "execv")
	bind(b, &d.execvp, "execvp")
	bind(b, &d.execvpe, "execvpe")
	bind(b, &d.posixSpawn, "posix_spawn")
	bind(b, &d.posixSpawnp, "posix_spawnp")
	bind(b, &d.popen, "popen")
	bind(b, &d.system, "system")

	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("binding exports to the interposition table: %w", err)
	}
	return d, nil
}
