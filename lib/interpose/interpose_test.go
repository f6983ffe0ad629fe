// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package interpose

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
	"unsafe"
)

func TestCompleteInt(t *testing.T) {
	tests := []struct {
		name      string
		result    Result[int]
		want      int
		wantErrno int32
	}{
		{"ok", Ok(3), 3, NoErrno},
		{"ok last errno success", OkLastErrno(4, nil), 4, NoErrno},
		{"ok last errno failure", OkLastErrno(-1, syscall.ENOENT), -1, int32(syscall.ENOENT)},
		{"ok last errno wrapped", OkLastErrno(-1, fmt.Errorf("open: %w", syscall.EPERM)), -1, int32(syscall.EPERM)},
		{"ok with errno", OkWithErrno(0, syscall.EINTR), 0, int32(syscall.EINTR)},
		{"fail", Fail[int](syscall.EACCES), -1, int32(syscall.EACCES)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			slot := NoErrno
			got := Complete(test.result, ReturnInt, &slot)
			if got != test.want {
				t.Errorf("return = %d, want %d", got, test.want)
			}
			if slot != test.wantErrno {
				t.Errorf("errno slot = %d, want %d", slot, test.wantErrno)
			}
		})
	}
}

func TestCompleteSize(t *testing.T) {
	slot := NoErrno
	if got := Complete(Fail[int64](syscall.ERANGE), ReturnSize, &slot); got != -1 {
		t.Errorf("return = %d, want -1", got)
	}
	if slot != int32(syscall.ERANGE) {
		t.Errorf("errno slot = %d, want ERANGE", slot)
	}

	slot = NoErrno
	if got := Complete(Ok[int64](17), ReturnSize, &slot); got != 17 {
		t.Errorf("return = %d, want 17", got)
	}
	if slot != NoErrno {
		t.Errorf("success wrote errno %d", slot)
	}
}

func TestCompleteStatus(t *testing.T) {
	tests := []struct {
		name   string
		result Result[int32]
		want   int32
	}{
		{"ok", Ok[int32](0), 0},
		{"fail returns errno", Fail[int32](syscall.ENOEXEC), int32(syscall.ENOEXEC)},
		{"last errno", OkLastErrno[int32](0, syscall.EACCES), int32(syscall.EACCES)},
		{"last errno success", OkLastErrno[int32](0, nil), 0},
		{"fail without errno", Fail[int32](0), int32(syscall.EIO)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			slot := NoErrno
			if got := Complete(test.result, ReturnStatus, &slot); got != test.want {
				t.Errorf("return = %d, want %d", got, test.want)
			}
			if slot != NoErrno {
				t.Errorf("status convention wrote errno %d", slot)
			}
		})
	}
}

func TestCompletePointerConventionOnNumber(t *testing.T) {
	slot := NoErrno
	if got := Complete(Fail[uintptr](syscall.ENOMEM), ReturnPointer, &slot); got != 0 {
		t.Errorf("return = %#x, want 0", got)
	}
	if slot != int32(syscall.ENOMEM) {
		t.Errorf("errno slot = %d, want ENOMEM", slot)
	}
}

func TestCompletePointer(t *testing.T) {
	value := 42
	pointer := unsafe.Pointer(&value)

	slot := NoErrno
	if got := CompletePointer(Ok(pointer), &slot); got != pointer {
		t.Errorf("return = %p, want %p", got, pointer)
	}
	if slot != NoErrno {
		t.Errorf("success wrote errno %d", slot)
	}

	if got := CompletePointer(Fail[unsafe.Pointer](syscall.ENOTDIR), &slot); got != nil {
		t.Errorf("return = %p, want nil", got)
	}
	if slot != int32(syscall.ENOTDIR) {
		t.Errorf("errno slot = %d, want ENOTDIR", slot)
	}
}

func TestResultAccessors(t *testing.T) {
	result := OkWithErrno("x", syscall.EEXIST)
	if result.Kind() != KindOkWithErrno || result.Value() != "x" {
		t.Errorf("unexpected result %+v", result)
	}
	if errno, ok := result.Errno(); !ok || errno != syscall.EEXIST {
		t.Errorf("Errno() = %v, %v", errno, ok)
	}
	if _, ok := Ok(1).Errno(); ok {
		t.Error("Ok must not carry an errno")
	}
	if ErrnoOf(errors.New("opaque")) != syscall.EIO {
		t.Error("errors without errno must map to EIO")
	}
	if KindFail.String() != "fail" || ReturnSize.String() != "ssize_t" {
		t.Error("unexpected String output")
	}
}

type openFunc func(path string, flags int, mode uint32) Result[int]

func TestNewTable(t *testing.T) {
	var replacement openFunc = func(string, int, uint32) Result[int] { return Ok(7) }
	var original openFunc = func(string, int, uint32) Result[int] { return Ok(3) }

	table, err := NewTable(
		Entry{Symbol: "open", Convention: ReturnInt, Replacement: replacement, Original: original},
		Unimplemented("umount2", ReturnInt),
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if got := strings.Join(table.Symbols(), ","); got != "open,umount2" {
		t.Errorf("Symbols() = %s", got)
	}

	open, err := Replacement[openFunc](table, "open")
	if err != nil {
		t.Fatalf("Replacement failed: %v", err)
	}
	if open("/x", 0, 0).Value() != 7 {
		t.Error("Replacement returned the wrong function")
	}
	passthrough, err := Original[openFunc](table, "open")
	if err != nil {
		t.Fatalf("Original failed: %v", err)
	}
	if passthrough("/x", 0, 0).Value() != 3 {
		t.Error("Original returned the wrong function")
	}

	entry, ok := table.Lookup("umount2")
	if !ok || entry.Implemented() {
		t.Errorf("umount2 entry = %+v, %v", entry, ok)
	}
	if _, err := Replacement[openFunc](table, "umount2"); err == nil {
		t.Error("expected an error resolving an unimplemented symbol")
	}
	if _, err := Replacement[func()](table, "open"); err == nil {
		t.Error("expected an error resolving with the wrong type")
	}
	if _, err := Replacement[openFunc](table, "stat"); err == nil {
		t.Error("expected an error resolving an unknown symbol")
	}
}

func TestBind(t *testing.T) {
	var replacement openFunc = func(string, int, uint32) Result[int] { return Ok(7) }
	var original openFunc = func(string, int, uint32) Result[int] { return Ok(3) }
	stat := func(string) Result[int] { return Ok(0) }

	table, err := NewTable(
		Entry{Symbol: "open", Convention: ReturnInt, Replacement: replacement, Original: original},
		Entry{Symbol: "open64", Convention: ReturnInt, Replacement: replacement, Original: original},
		Entry{Symbol: "stat", Convention: ReturnInt, Replacement: stat, Original: stat},
		Unimplemented("umount2", ReturnInt),
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	binding, err := Bind[openFunc](table, "open", "open64")
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if got := binding.Pick(false)("/x", 0, 0).Value(); got != 7 {
		t.Errorf("Pick(false) returned %d, want the replacement", got)
	}
	if got := binding.Pick(true)("/x", 0, 0).Value(); got != 3 {
		t.Errorf("Pick(true) returned %d, want the original", got)
	}

	for _, aliases := range [][]string{{"stat"}, {"umount2"}, {"open32"}} {
		if _, err := Bind[openFunc](table, "open", aliases...); err == nil {
			t.Errorf("Bind(open, %v) succeeded", aliases)
		}
	}
	_, err = Bind[openFunc](table, "stat", "umount2")
	if err == nil || !strings.Contains(err.Error(), "stat") || !strings.Contains(err.Error(), "umount2") {
		t.Errorf("Bind error = %v, want both problems reported", err)
	}
}

func TestNewTableRejects(t *testing.T) {
	open := func(string, int, uint32) Result[int] { return Ok(0) }

	tests := []struct {
		name    string
		entries []Entry
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing symbol",
			entries: []Entry{{Convention: ReturnInt, Replacement: open}},
			wantErr: errNoSymbol,
		},
		{
			name:    "bad convention",
			entries: []Entry{{Symbol: "open", Replacement: open}},
			wantErr: errBadConvention,
		},
		{
			name:    "missing replacement",
			entries: []Entry{{Symbol: "open", Convention: ReturnInt}},
			wantErr: errNoReplacement,
		},
		{
			name:    "replacement not a function",
			entries: []Entry{{Symbol: "open", Convention: ReturnInt, Replacement: 3}},
			wantErr: errNotFunction,
		},
		{
			name: "argument mismatch",
			entries: []Entry{{
				Symbol: "open", Convention: ReturnInt, Replacement: open,
				Original: func(string, int) Result[int] { return Ok(0) },
			}},
			wantErr: errSignature,
		},
		{
			name: "return mismatch",
			entries: []Entry{{
				Symbol: "open", Convention: ReturnInt, Replacement: open,
				Original: func(string, int, uint32) (int, error) { return 0, nil },
			}},
			wantErr: errSignature,
		},
		{
			name: "variadic mismatch",
			entries: []Entry{{
				Symbol: "execl", Convention: ReturnInt,
				Replacement: func(path string, args ...string) Result[int] { return Ok(0) },
				Original:    func(path string, args []string) Result[int] { return Ok(0) },
			}},
			wantErr: errVariadicMismatch,
		},
		{
			name: "duplicate symbol",
			entries: []Entry{
				{Symbol: "open", Convention: ReturnInt, Replacement: open},
				{Symbol: "open", Convention: ReturnInt, Replacement: open},
			},
			wantMsg: "duplicate symbol",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewTable(test.entries...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("expected %v, got %v", test.wantErr, err)
			}
			if test.wantMsg != "" && !strings.Contains(err.Error(), test.wantMsg) {
				t.Errorf("error %q does not contain %q", err, test.wantMsg)
			}
		})
	}
}

func TestNewTableReportsAllProblems(t *testing.T) {
	_, err := NewTable(
		Entry{Convention: ReturnInt, Replacement: func() {}},
		Entry{Symbol: "stat", Replacement: func() {}},
	)
	if !errors.Is(err, errNoSymbol) || !errors.Is(err, errBadConvention) {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestFailLoud(t *testing.T) {
	var aborted error
	original := abort
	abort = func(err error) { aborted = err }
	t.Cleanup(func() { abort = original })

	FailLoud("name_to_handle_at")
	if aborted == nil {
		t.Fatal("FailLoud did not abort")
	}
	if !strings.Contains(aborted.Error(), "name_to_handle_at") {
		t.Errorf("abort message %q does not name the symbol", aborted)
	}
}
