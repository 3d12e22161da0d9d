// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package frames defines the program-location records a stack walk yields
// and a compact storage form for sequences of them.
package frames

import (
	"fmt"

	"github.com/stackscope/stackscope/pkg/address"
)

type Kind uint8

const (
	// KindProgramCounter is an exact PC, e.g. from a fault.
	KindProgramCounter Kind = iota
	// KindReturnAddress is the address following a call instruction.
	KindReturnAddress
	// KindAsyncResumePoint is the resumption address of a suspended task.
	KindAsyncResumePoint
	// KindOmitted marks a counted run of elided frames between a known
	// top segment and a known bottom segment.
	KindOmitted
	// KindTruncated marks an unknown-length elision; valid only as the
	// final element of a sequence.
	KindTruncated
)

// Frame is one element of a captured stack: either a code location of a
// particular flavor or a discontinuity marker.
type Frame struct {
	kind  Kind
	width int
	value uint64
}

func ProgramCounter(a address.Address) Frame {
	return Frame{kind: KindProgramCounter, width: a.BitWidth(), value: a.Bits()}
}

func ReturnAddress(a address.Address) Frame {
	return Frame{kind: KindReturnAddress, width: a.BitWidth(), value: a.Bits()}
}

func AsyncResumePoint(a address.Address) Frame {
	return Frame{kind: KindAsyncResumePoint, width: a.BitWidth(), value: a.Bits()}
}

// Omitted returns a marker standing for count elided frames, count > 0.
func Omitted(count int) Frame {
	if count <= 0 {
		panic(fmt.Sprintf("omitted frame count %v", count))
	}
	return Frame{kind: KindOmitted, value: uint64(count)}
}

func Truncated() Frame {
	return Frame{kind: KindTruncated}
}

func (f Frame) Kind() Kind { return f.kind }

// IsMarker reports whether the frame is a discontinuity marker rather than
// a code location.
func (f Frame) IsMarker() bool {
	return f.kind == KindOmitted || f.kind == KindTruncated
}

// Address returns the code location for PC, return-address and resume-point
// frames; ok is false for markers.
func (f Frame) Address() (address.Address, bool) {
	if f.IsMarker() {
		return nil, false
	}
	if f.width == 32 {
		return address.FromUint32(uint32(f.value)), true
	}
	return address.FromUint64(f.value), true
}

// Count returns the number of elided frames for an Omitted marker, 0 otherwise.
func (f Frame) Count() int {
	if f.kind != KindOmitted {
		return 0
	}
	return int(f.value)
}

func (f Frame) String() string {
	switch f.kind {
	case KindProgramCounter:
		return fmt.Sprintf("pc %#x", f.value)
	case KindReturnAddress:
		return fmt.Sprintf("ret %#x", f.value)
	case KindAsyncResumePoint:
		return fmt.Sprintf("async %#x", f.value)
	case KindOmitted:
		return fmt.Sprintf("... (%v frames omitted)", f.value)
	case KindTruncated:
		return "..."
	}
	return fmt.Sprintf("bad frame kind %v", uint8(f.kind))
}
