// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import "github.com/macaroni-sandbox/macaroni/lib/interpose"

// Unimplemented lists intercepted symbols that must abort when called.
// Each takes a path the shim cannot confine: handle-based opens,
// mount table changes, and tree walkers whose callbacks or results
// would carry host paths back into the program.
var Unimplemented = []string{
	"umount", "umount2", "mount", "chroot",
	"name_to_handle_at", "open_by_handle_at",
	"execveat", "fanotify_mark",
	"ftw", "ftw64", "nftw", "nftw64", "glob", "glob64", "fts_open", "fts64_open",
}

// Aliases maps a symbol to the symbols whose calls the preload library
// routes through its binding. Each alias is registered with the same
// replacement and original as the symbol.
var Aliases = map[string][]string{
	"open":      {"open64", "__open_2", "__open64_2"},
	"openat":    {"openat64", "__openat_2", "__openat64_2"},
	"creat":     {"creat64"},
	"scandir":   {"scandir64"},
	"scandirat": {"scandirat64"},
	"truncate":  {"truncate64"},
	"statfs":    {"statfs64"},
	"statvfs":   {"statvfs64"},
	"fopen":     {"fopen64"},
	"freopen":   {"freopen64"},
	"tmpfile":   {"tmpfile64"},
	"mkostemps": {"mkstemp", "mkstemp64", "mkostemp", "mkostemp64", "mkstemps", "mkstemps64", "mkostemps64"},
	"stat":      {"stat64", "__xstat", "__xstat64"},
	"lstat":     {"lstat64", "__lxstat", "__lxstat64"},
	"fstatat":   {"fstatat64", "__fxstatat", "__fxstatat64"},
	"fchmodat":  {"lchmod"},
	"faccessat": {"euidaccess", "eaccess"},
	"mknod":     {"__xmknod"},
	"mknodat":   {"__xmknodat"},
	"utimensat": {"utimes", "lutimes", "utime", "futimesat"},
	"execve":    {"execle"},
	"execv":     {"execl"},
	"execvp":    {"execlp"},
}

// Table pairs each replacement with its passthrough original. Several
// C symbols share one entry's functions: the binding collects the
// execl family into an argument vector, passes the LFS, fortified, and
// versioned aliases through unchanged, and converts the timeval forms
// of utimensat.
func (s *Shim) Table() (*interpose.Table, error) {
	p := s.pass
	entries := []interpose.Entry{
		{Symbol: "open", Convention: interpose.ReturnInt, Replacement: s.Open, Original: p.Open},
		{Symbol: "open64", Convention: interpose.ReturnInt, Replacement: s.Open, Original: p.Open},
		{Symbol: "openat", Convention: interpose.ReturnInt, Replacement: s.Openat, Original: p.Openat},
		{Symbol: "openat64", Convention: interpose.ReturnInt, Replacement: s.Openat, Original: p.Openat},
		{Symbol: "creat", Convention: interpose.ReturnInt, Replacement: s.Creat, Original: p.Creat},
		{Symbol: "creat64", Convention: interpose.ReturnInt, Replacement: s.Creat, Original: p.Creat},
		{Symbol: "__open_2", Convention: interpose.ReturnInt, Replacement: s.Open, Original: p.Open},
		{Symbol: "__open64_2", Convention: interpose.ReturnInt, Replacement: s.Open, Original: p.Open},
		{Symbol: "__openat_2", Convention: interpose.ReturnInt, Replacement: s.Openat, Original: p.Openat},
		{Symbol: "__openat64_2", Convention: interpose.ReturnInt, Replacement: s.Openat, Original: p.Openat},
		{Symbol: "opendir", Convention: interpose.ReturnPointer, Replacement: s.Opendir, Original: p.Opendir},
		{Symbol: "scandir", Convention: interpose.ReturnInt, Replacement: s.Scandir, Original: p.Scandir},
		{Symbol: "scandir64", Convention: interpose.ReturnInt, Replacement: s.Scandir, Original: p.Scandir},
		{Symbol: "scandirat", Convention: interpose.ReturnInt, Replacement: s.Scandirat, Original: p.Scandirat},
		{Symbol: "scandirat64", Convention: interpose.ReturnInt, Replacement: s.Scandirat, Original: p.Scandirat},
		{Symbol: "truncate", Convention: interpose.ReturnInt, Replacement: s.Truncate, Original: p.Truncate},
		{Symbol: "truncate64", Convention: interpose.ReturnInt, Replacement: s.Truncate, Original: p.Truncate},
		{Symbol: "statfs", Convention: interpose.ReturnInt, Replacement: s.Statfs, Original: p.Statfs},
		{Symbol: "statfs64", Convention: interpose.ReturnInt, Replacement: s.Statfs, Original: p.Statfs},
		{Symbol: "statvfs", Convention: interpose.ReturnInt, Replacement: s.Statvfs, Original: p.Statvfs},
		{Symbol: "statvfs64", Convention: interpose.ReturnInt, Replacement: s.Statvfs, Original: p.Statvfs},
		{Symbol: "pathconf", Convention: interpose.ReturnSize, Replacement: s.Pathconf, Original: p.Pathconf},

		{Symbol: "fopen", Convention: interpose.ReturnPointer, Replacement: s.Fopen, Original: p.Fopen},
		{Symbol: "fopen64", Convention: interpose.ReturnPointer, Replacement: s.Fopen, Original: p.Fopen},
		{Symbol: "freopen", Convention: interpose.ReturnPointer, Replacement: s.Freopen, Original: p.Freopen},
		{Symbol: "freopen64", Convention: interpose.ReturnPointer, Replacement: s.Freopen, Original: p.Freopen},
		{Symbol: "tmpfile", Convention: interpose.ReturnPointer, Replacement: s.Tmpfile, Original: p.Tmpfile},
		{Symbol: "tmpfile64", Convention: interpose.ReturnPointer, Replacement: s.Tmpfile, Original: p.Tmpfile},
		{Symbol: "mkstemp", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkstemp64", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkostemp", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkostemp64", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkstemps", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkstemps64", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkostemps", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkostemps64", Convention: interpose.ReturnInt, Replacement: s.Mkostemps, Original: p.Mkostemps},
		{Symbol: "mkdtemp", Convention: interpose.ReturnPointer, Replacement: s.Mkdtemp, Original: p.Mkdtemp},

		{Symbol: "stat", Convention: interpose.ReturnInt, Replacement: s.Stat, Original: p.Stat},
		{Symbol: "stat64", Convention: interpose.ReturnInt, Replacement: s.Stat, Original: p.Stat},
		{Symbol: "__xstat", Convention: interpose.ReturnInt, Replacement: s.Stat, Original: p.Stat},
		{Symbol: "__xstat64", Convention: interpose.ReturnInt, Replacement: s.Stat, Original: p.Stat},
		{Symbol: "lstat", Convention: interpose.ReturnInt, Replacement: s.Lstat, Original: p.Lstat},
		{Symbol: "lstat64", Convention: interpose.ReturnInt, Replacement: s.Lstat, Original: p.Lstat},
		{Symbol: "__lxstat", Convention: interpose.ReturnInt, Replacement: s.Lstat, Original: p.Lstat},
		{Symbol: "__lxstat64", Convention: interpose.ReturnInt, Replacement: s.Lstat, Original: p.Lstat},
		{Symbol: "fstatat", Convention: interpose.ReturnInt, Replacement: s.Fstatat, Original: p.Fstatat},
		{Symbol: "fstatat64", Convention: interpose.ReturnInt, Replacement: s.Fstatat, Original: p.Fstatat},
		{Symbol: "__fxstatat", Convention: interpose.ReturnInt, Replacement: s.Fstatat, Original: p.Fstatat},
		{Symbol: "__fxstatat64", Convention: interpose.ReturnInt, Replacement: s.Fstatat, Original: p.Fstatat},
		{Symbol: "statx", Convention: interpose.ReturnInt, Replacement: s.Statx, Original: p.Statx},

		{Symbol: "chmod", Convention: interpose.ReturnInt, Replacement: s.Chmod, Original: p.Chmod},
		{Symbol: "fchmodat", Convention: interpose.ReturnInt, Replacement: s.Fchmodat, Original: p.Fchmodat},
		{Symbol: "lchmod", Convention: interpose.ReturnInt, Replacement: s.Fchmodat, Original: p.Fchmodat},
		{Symbol: "chown", Convention: interpose.ReturnInt, Replacement: s.Chown, Original: p.Chown},
		{Symbol: "lchown", Convention: interpose.ReturnInt, Replacement: s.Lchown, Original: p.Lchown},
		{Symbol: "fchownat", Convention: interpose.ReturnInt, Replacement: s.Fchownat, Original: p.Fchownat},

		{Symbol: "link", Convention: interpose.ReturnInt, Replacement: s.Link, Original: p.Link},
		{Symbol: "linkat", Convention: interpose.ReturnInt, Replacement: s.Linkat, Original: p.Linkat},
		{Symbol: "symlink", Convention: interpose.ReturnInt, Replacement: s.Symlink, Original: p.Symlink},
		{Symbol: "symlinkat", Convention: interpose.ReturnInt, Replacement: s.Symlinkat, Original: p.Symlinkat},
		{Symbol: "readlink", Convention: interpose.ReturnSize, Replacement: s.Readlink, Original: p.Readlink},
		{Symbol: "readlinkat", Convention: interpose.ReturnSize, Replacement: s.Readlinkat, Original: p.Readlinkat},
		{Symbol: "unlink", Convention: interpose.ReturnInt, Replacement: s.Unlink, Original: p.Unlink},
		{Symbol: "unlinkat", Convention: interpose.ReturnInt, Replacement: s.Unlinkat, Original: p.Unlinkat},
		{Symbol: "remove", Convention: interpose.ReturnInt, Replacement: s.Remove, Original: p.Remove},
		{Symbol: "rename", Convention: interpose.ReturnInt, Replacement: s.Rename, Original: p.Rename},
		{Symbol: "renameat", Convention: interpose.ReturnInt, Replacement: s.Renameat, Original: p.Renameat},
		{Symbol: "renameat2", Convention: interpose.ReturnInt, Replacement: s.Renameat2, Original: p.Renameat2},

		{Symbol: "mkdir", Convention: interpose.ReturnInt, Replacement: s.Mkdir, Original: p.Mkdir},
		{Symbol: "mkdirat", Convention: interpose.ReturnInt, Replacement: s.Mkdirat, Original: p.Mkdirat},
		{Symbol: "rmdir", Convention: interpose.ReturnInt, Replacement: s.Rmdir, Original: p.Rmdir},
		{Symbol: "chdir", Convention: interpose.ReturnInt, Replacement: s.Chdir, Original: p.Chdir},
		{Symbol: "getcwd", Convention: interpose.ReturnPointer, Replacement: s.Getcwd, Original: p.Getcwd},

		{Symbol: "getxattr", Convention: interpose.ReturnSize, Replacement: s.Getxattr, Original: p.Getxattr},
		{Symbol: "lgetxattr", Convention: interpose.ReturnSize, Replacement: s.Lgetxattr, Original: p.Lgetxattr},
		{Symbol: "setxattr", Convention: interpose.ReturnInt, Replacement: s.Setxattr, Original: p.Setxattr},
		{Symbol: "lsetxattr", Convention: interpose.ReturnInt, Replacement: s.Lsetxattr, Original: p.Lsetxattr},
		{Symbol: "listxattr", Convention: interpose.ReturnSize, Replacement: s.Listxattr, Original: p.Listxattr},
		{Symbol: "llistxattr", Convention: interpose.ReturnSize, Replacement: s.Llistxattr, Original: p.Llistxattr},
		{Symbol: "removexattr", Convention: interpose.ReturnInt, Replacement: s.Removexattr, Original: p.Removexattr},
		{Symbol: "lremovexattr", Convention: interpose.ReturnInt, Replacement: s.Lremovexattr, Original: p.Lremovexattr},

		{Symbol: "access", Convention: interpose.ReturnInt, Replacement: s.Access, Original: p.Access},
		{Symbol: "faccessat", Convention: interpose.ReturnInt, Replacement: s.Faccessat, Original: p.Faccessat},
		{Symbol: "euidaccess", Convention: interpose.ReturnInt, Replacement: s.Faccessat, Original: p.Faccessat},
		{Symbol: "eaccess", Convention: interpose.ReturnInt, Replacement: s.Faccessat, Original: p.Faccessat},
		{Symbol: "realpath", Convention: interpose.ReturnPointer, Replacement: s.Realpath, Original: p.Realpath},
		{Symbol: "mkfifo", Convention: interpose.ReturnInt, Replacement: s.Mkfifo, Original: p.Mkfifo},
		{Symbol: "mkfifoat", Convention: interpose.ReturnInt, Replacement: s.Mkfifoat, Original: p.Mkfifoat},
		{Symbol: "mknod", Convention: interpose.ReturnInt, Replacement: s.Mknod, Original: p.Mknod},
		{Symbol: "__xmknod", Convention: interpose.ReturnInt, Replacement: s.Mknod, Original: p.Mknod},
		{Symbol: "mknodat", Convention: interpose.ReturnInt, Replacement: s.Mknodat, Original: p.Mknodat},
		{Symbol: "__xmknodat", Convention: interpose.ReturnInt, Replacement: s.Mknodat, Original: p.Mknodat},
		{Symbol: "utimensat", Convention: interpose.ReturnInt, Replacement: s.Utimensat, Original: p.Utimensat},
		{Symbol: "utimes", Convention: interpose.ReturnInt, Replacement: s.Utimensat, Original: p.Utimensat},
		{Symbol: "lutimes", Convention: interpose.ReturnInt, Replacement: s.Utimensat, Original: p.Utimensat},
		{Symbol: "utime", Convention: interpose.ReturnInt, Replacement: s.Utimensat, Original: p.Utimensat},
		{Symbol: "futimesat", Convention: interpose.ReturnInt, Replacement: s.Utimensat, Original: p.Utimensat},
		{Symbol: "inotify_add_watch", Convention: interpose.ReturnInt, Replacement: s.InotifyAddWatch, Original: p.InotifyAddWatch},

		{Symbol: "execve", Convention: interpose.ReturnInt, Replacement: s.Execve, Original: p.Execve},
		{Symbol: "execv", Convention: interpose.ReturnInt, Replacement: s.Execv, Original: p.Execv},
		{Symbol: "execvp", Convention: interpose.ReturnInt, Replacement: s.Execvp, Original: p.Execvp},
		{Symbol: "execvpe", Convention: interpose.ReturnInt, Replacement: s.Execvpe, Original: p.Execvpe},
		{Symbol: "execl", Convention: interpose.ReturnInt, Replacement: s.Execv, Original: p.Execv},
		{Symbol: "execlp", Convention: interpose.ReturnInt, Replacement: s.Execvp, Original: p.Execvp},
		{Symbol: "execle", Convention: interpose.ReturnInt, Replacement: s.Execve, Original: p.Execve},
		{Symbol: "posix_spawn", Convention: interpose.ReturnStatus, Replacement: s.PosixSpawn, Original: p.PosixSpawn},
		{Symbol: "posix_spawnp", Convention: interpose.ReturnStatus, Replacement: s.PosixSpawnp, Original: p.PosixSpawnp},
		{Symbol: "popen", Convention: interpose.ReturnPointer, Replacement: s.Popen, Original: p.Popen},
		{Symbol: "system", Convention: interpose.ReturnInt, Replacement: s.System, Original: p.System},
	}
	for _, symbol := range Unimplemented {
		entries = append(entries, interpose.Unimplemented(symbol, interpose.ReturnInt))
	}
	return interpose.NewTable(entries...)
}
