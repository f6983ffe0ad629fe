// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Package selfcall detects calls that originate inside the preload
// library itself by comparing return addresses against the address
// ranges the library image occupies.
//
// It is the fallback for symbols whose original cannot be bound with
// dlsym(RTLD_NEXT): the binding then reaches the symbol through the
// default lookup, which resolves back to the shim. A call whose stack
// contains a frame inside the shim is an internal re-entry; its
// arguments were already remapped and must be passed through as is,
// since remapping is not idempotent. Walking the stack costs time on
// every call, so only those symbols use it.
package selfcall

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prometheus/procfs"
)

// Range is a half-open address interval [Start, End).
type Range struct {
	Start uintptr
	End   uintptr
}

// Contains reports whether address lies in the range.
func (r Range) Contains(address uintptr) bool {
	return address >= r.Start && address < r.End
}

// Detector classifies stack frames as inside or outside one image.
// A nil Detector classifies every frame as outside.
type Detector struct {
	ranges []Range
}

// ErrImageNotMapped is returned when no mapping belongs to the image.
var ErrImageNotMapped = errors.New("image is not mapped")

// New returns a Detector for the given ranges.
func New(ranges ...Range) *Detector {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &Detector{ranges: sorted}
}

// Self builds a Detector for image from /proc/self/maps.
func Self(image string) (*Detector, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("opening /proc/self: %w", err)
	}
	return FromProc(proc, image)
}

// FromProc builds a Detector for image from the memory maps of proc.
// Every mapping whose path is image contributes a range: code, data,
// and relocation segments alike.
func FromProc(proc procfs.Proc, image string) (*Detector, error) {
	maps, err := proc.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("reading memory maps: %w", err)
	}
	var ranges []Range
	for _, m := range maps {
		if m.Pathname == image {
			ranges = append(ranges, Range{Start: m.StartAddr, End: m.EndAddr})
		}
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrImageNotMapped, image)
	}
	return New(ranges...), nil
}

// Ranges returns the image's ranges sorted by start address.
func (d *Detector) Ranges() []Range {
	if d == nil {
		return nil
	}
	return append([]Range(nil), d.ranges...)
}

// Contains reports whether address lies inside the image.
func (d *Detector) Contains(address uintptr) bool {
	if d == nil {
		return false
	}
	i := sort.Search(len(d.ranges), func(i int) bool { return d.ranges[i].End > address })
	return i < len(d.ranges) && d.ranges[i].Contains(address)
}

// Internal reports whether any frame lies inside the image. Frames
// are return addresses, which point just past the call instruction,
// so each is checked one byte earlier.
func (d *Detector) Internal(frames []uintptr) bool {
	for _, frame := range frames {
		if frame == 0 {
			continue
		}
		if d.Contains(frame - 1) {
			return true
		}
	}
	return false
}
