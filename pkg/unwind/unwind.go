// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package unwind walks the calling goroutine's stack and applies the
// limit/offset/top truncation policy to the result. It is not async-signal
// safe: walking may allocate.
package unwind

import (
	"errors"
	"fmt"

	"github.com/stackscope/stackscope/pkg/arch"
	"github.com/stackscope/stackscope/pkg/frames"
)

type Algorithm int

const (
	// Auto lets the platform choose.
	Auto Algorithm = iota
	// Fast follows the frame-pointer chain. Cheap, but bounded by a fixed
	// walk cap and wrong if the code was built without frame pointers.
	Fast
	// Precise uses the runtime's unwind metadata. Slower, always yields
	// the complete stack.
	Precise
)

func (a Algorithm) String() string {
	switch a {
	case Auto:
		return "auto"
	case Fast:
		return "fast"
	case Precise:
		return "precise"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm maps a textual algorithm name to its value.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "auto":
		return Auto, nil
	case "fast":
		return Fast, nil
	case "precise":
		return Precise, nil
	}
	return Auto, fmt.Errorf("unknown unwind algorithm %q", name)
}

// ErrUnwindFailed is wrapped by all errors meaning the calling thread's
// context could not be obtained or walked. This is fatal to the capture call.
var ErrUnwindFailed = errors.New("cannot unwind the calling context")

// ErrBadLimit is returned when a bounded limit leaves no room for the
// reserved top frames plus one discontinuity marker.
var ErrBadLimit = errors.New("limit must be at least top+1")

// ErrBadOffset is returned when Offset swallows every walked frame. That is
// a caller configuration problem, not a failure to walk the stack.
var ErrBadOffset = errors.New("offset exceeds stack depth")

// Options control one stack walk.
type Options struct {
	Algorithm Algorithm
	// Limit bounds the number of emitted frames, markers included.
	// Zero means unbounded.
	Limit int
	// Offset discards that many innermost frames before the first
	// reported one, so wrappers can hide themselves. The walk's own
	// activation frames are always excluded regardless of Offset.
	Offset int
	// Top is the minimum number of innermost frames preserved when a
	// limit forces truncation.
	Top int
}

// Walk captures the calling goroutine's stack. skip counts additional
// caller activation frames to exclude on top of opts.Offset; a caller
// capturing on behalf of its own caller passes 1.
//
// The returned sequence is ordered top of stack first.
func Walk(opts Options, skip int) (*frames.Seq, error) {
	if opts.Limit > 0 && opts.Limit < opts.Top+1 {
		return nil, fmt.Errorf("%w: limit %v, top %v", ErrBadLimit, opts.Limit, opts.Top)
	}
	if opts.Offset < 0 || opts.Top < 0 || skip < 0 {
		return nil, fmt.Errorf("%w: negative offset/top", ErrBadLimit)
	}
	algo := opts.Algorithm
	if algo == Auto {
		algo = Precise
	}
	// Drop Walk's own frame along with whatever the caller asked for.
	drop := skip + 1 + opts.Offset
	var pcs []uintptr
	complete := true
	switch algo {
	case Fast:
		var ok bool
		if pcs, complete, ok = walkFramePointers(drop); ok {
			break
		}
		// No frame-pointer chain on this platform; the precise walker
		// serves as the fallback.
		fallthrough
	case Precise:
		pcs = walkPrecise(drop)
		complete = true
	default:
		return nil, fmt.Errorf("%w: bad algorithm %v", ErrUnwindFailed, algo)
	}
	if len(pcs) == 0 {
		if opts.Offset > 0 {
			return nil, fmt.Errorf("%w: offset %v left nothing to report", ErrBadOffset, opts.Offset)
		}
		return nil, fmt.Errorf("%w: empty stack walk", ErrUnwindFailed)
	}
	return assemble(pcs, complete, opts.Limit, opts.Top), nil
}

// assemble applies the truncation policy to a walked stack, innermost first.
// complete reports whether pcs covers the stack down to its outermost frame;
// when it does not, the true frame count is unknowable and the sequence ends
// with a Truncated marker instead of a counted omission.
func assemble(pcs []uintptr, complete bool, limit, top int) *frames.Seq {
	seq := frames.NewSeq(arch.Host().PtrBits)
	n := len(pcs)
	switch {
	case complete && (limit <= 0 || n <= limit):
		appendReturns(seq, pcs)
	case !complete:
		keep := n
		if limit > 0 && keep > limit-1 {
			keep = limit - 1
		}
		appendReturns(seq, pcs[:keep])
		seq.Append(frames.Truncated())
	default:
		// Keep the innermost top frames and as many outermost frames as
		// the limit allows, with a single counted marker in between.
		// The marker itself occupies one of the limit slots.
		bottom := limit - top - 1
		appendReturns(seq, pcs[:top])
		seq.Append(frames.Omitted(n - limit + 1))
		appendReturns(seq, pcs[n-bottom:])
	}
	return seq
}

func appendReturns(seq *frames.Seq, pcs []uintptr) {
	for _, pc := range pcs {
		seq.Append(frames.ReturnAddress(addrOf(pc)))
	}
}
