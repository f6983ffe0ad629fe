// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package interpose

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/macaroni-sandbox/macaroni/lib/process"
)

// Entry registers one intercepted symbol.
type Entry struct {
	// Symbol is the C library name, e.g. "openat".
	Symbol string

	// Convention is the failure protocol of Symbol.
	Convention Convention

	// Replacement is the confined implementation, a Go function value.
	Replacement any

	// Original performs the same call without confinement. It must
	// have exactly the type of Replacement. Nil when the original is
	// reached only from C.
	Original any

	unimplemented bool
}

// Unimplemented registers symbol as intercepted but without a
// replacement. Reaching it aborts the process through [FailLoud].
func Unimplemented(symbol string, convention Convention) Entry {
	return Entry{Symbol: symbol, Convention: convention, unimplemented: true}
}

// Implemented reports whether the entry has a replacement.
func (e Entry) Implemented() bool { return !e.unimplemented }

// Table is the validated, immutable set of entries for a process.
type Table struct {
	entries map[string]Entry
}

// NewTable validates entries and builds a table. All problems are
// reported together.
func NewTable(entries ...Entry) (*Table, error) {
	table := &Table{entries: make(map[string]Entry, len(entries))}
	var errs []error
	for i, entry := range entries {
		if err := entry.validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, entry.Symbol, err))
			continue
		}
		if _, exists := table.entries[entry.Symbol]; exists {
			errs = append(errs, fmt.Errorf("entry %d: duplicate symbol %q", i, entry.Symbol))
			continue
		}
		table.entries[entry.Symbol] = entry
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return table, nil
}

var (
	errNoSymbol         = errors.New("symbol is required")
	errBadConvention    = errors.New("invalid return convention")
	errNoReplacement    = errors.New("replacement is required")
	errNotFunction      = errors.New("replacement and original must be functions")
	errVariadicMismatch = errors.New("variadic mismatch between replacement and original")
	errSignature        = errors.New("replacement signature differs from original")
)

func (e Entry) validate() error {
	if e.Symbol == "" {
		return errNoSymbol
	}
	if !e.Convention.valid() {
		return fmt.Errorf("%w: %v", errBadConvention, e.Convention)
	}
	if e.unimplemented {
		return nil
	}
	if e.Replacement == nil {
		return errNoReplacement
	}

	replacement := reflect.TypeOf(e.Replacement)
	if replacement.Kind() != reflect.Func {
		return fmt.Errorf("%w: replacement is %s", errNotFunction, replacement)
	}
	if e.Original == nil {
		return nil
	}
	original := reflect.TypeOf(e.Original)
	if original.Kind() != reflect.Func {
		return fmt.Errorf("%w: original is %s", errNotFunction, original)
	}
	if replacement.IsVariadic() != original.IsVariadic() {
		return fmt.Errorf("%w: replacement %s, original %s", errVariadicMismatch, replacement, original)
	}
	if replacement != original {
		return fmt.Errorf("%w: replacement %s, original %s", errSignature, replacement, original)
	}
	return nil
}

// Lookup returns the entry for symbol.
func (t *Table) Lookup(symbol string) (Entry, bool) {
	entry, ok := t.entries[symbol]
	return entry, ok
}

// Len returns the number of registered symbols.
func (t *Table) Len() int { return len(t.entries) }

// Symbols returns the registered symbol names, sorted.
func (t *Table) Symbols() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replacement returns the replacement registered for symbol as F.
// It fails when the symbol is missing, unimplemented, or registered
// with a different function type.
func Replacement[F any](t *Table, symbol string) (F, error) {
	var zero F
	entry, ok := t.entries[symbol]
	if !ok {
		return zero, fmt.Errorf("symbol %q is not registered", symbol)
	}
	if entry.unimplemented {
		return zero, fmt.Errorf("symbol %q has no replacement", symbol)
	}
	fn, ok := entry.Replacement.(F)
	if !ok {
		return zero, fmt.Errorf("symbol %q: replacement is %T, not %T", symbol, entry.Replacement, zero)
	}
	return fn, nil
}

// Original returns the original registered for symbol as F.
func Original[F any](t *Table, symbol string) (F, error) {
	var zero F
	entry, ok := t.entries[symbol]
	if !ok {
		return zero, fmt.Errorf("symbol %q is not registered", symbol)
	}
	fn, ok := entry.Original.(F)
	if !ok {
		return zero, fmt.Errorf("symbol %q: original is %T, not %T", symbol, entry.Original, zero)
	}
	return fn, nil
}

// Binding is one entry resolved to its function type.
type Binding[F any] struct {
	Replacement F
	Original    F
}

// Pick returns Original for a call made from inside the shim and
// Replacement otherwise.
func (b Binding[F]) Pick(internal bool) F {
	if internal {
		return b.Original
	}
	return b.Replacement
}

// Bind resolves symbol as F. Each alias must also be registered with a
// replacement and original of type F, since one binding serves them
// all.
func Bind[F any](t *Table, symbol string, aliases ...string) (Binding[F], error) {
	var errs []error
	var binding Binding[F]
	for i, name := range append([]string{symbol}, aliases...) {
		replacement, err := Replacement[F](t, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		original, err := Original[F](t, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			binding = Binding[F]{Replacement: replacement, Original: original}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Binding[F]{}, err
	}
	return binding, nil
}

// abort is replaced in tests.
var abort = process.Abort

// FailLoud terminates the process for a call to an intercepted symbol
// that has no replacement. Letting such a call through would bypass
// path confinement.
func FailLoud(symbol string) {
	abort(fmt.Errorf("macaroni: %s is intercepted but not implemented; refusing to run it unconfined", symbol))
}
