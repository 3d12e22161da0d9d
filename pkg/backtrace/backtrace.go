// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package backtrace captures point-in-time snapshots of the calling
// goroutine's stack and symbolicates them against the process's loaded
// images. Capture is cheap and on-demand; symbolication is a separate,
// more expensive pass. Neither is async-signal safe.
package backtrace

import (
	"github.com/stackscope/stackscope/pkg/arch"
	"github.com/stackscope/stackscope/pkg/frames"
	"github.com/stackscope/stackscope/pkg/images"
	"github.com/stackscope/stackscope/pkg/unwind"
)

// Options control one capture.
type Options struct {
	Algorithm unwind.Algorithm
	// Limit bounds the number of frame entries in the result, markers
	// included. Zero or negative means unbounded.
	Limit int
	// Offset discards that many innermost frames before the first
	// reported one; Capture's own activation frame is always excluded
	// regardless.
	Offset int
	// Top is the minimum number of innermost frames preserved when the
	// limit forces truncation.
	Top int
	// CaptureImages additionally snapshots the loaded-image list at
	// capture time, so a later symbolication resolves against the state
	// the stack was walked in rather than whatever is loaded by then.
	CaptureImages bool
}

// DefaultOptions are the standard capture parameters.
func DefaultOptions() Options {
	return Options{
		Algorithm: unwind.Auto,
		Limit:     64,
		Offset:    0,
		Top:       16,
	}
}

// Backtrace is an immutable snapshot of one stack. Frames are ordered top
// of stack first; the sequence may contain discontinuity markers when the
// capture was truncated.
type Backtrace struct {
	// Architecture is the canonical machine name the stack belongs to,
	// e.g. "x86_64".
	Architecture string
	seq          *frames.Seq
	// Images is the loaded-module snapshot taken at capture time, nil
	// when the capture was asked not to take one.
	Images []*images.Image
	// SharedCache describes the platform shared region, if any.
	SharedCache images.SharedCacheInfo
}

// Capture walks the calling goroutine's stack and returns its snapshot.
// It fails when the calling context cannot be walked (wrapped
// unwind.ErrUnwindFailed) or when opts.Limit leaves no room for opts.Top
// frames plus a marker (wrapped unwind.ErrBadLimit).
//
// Must keep its own activation frame so the frame-pointer walker's skip
// accounting holds.
//
//go:noinline
func Capture(opts Options) (*Backtrace, error) {
	seq, err := unwind.Walk(unwind.Options{
		Algorithm: opts.Algorithm,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		Top:       opts.Top,
	}, 1) // hide Capture itself
	if err != nil {
		return nil, err
	}
	b := &Backtrace{
		Architecture: arch.Host().Name,
		seq:          seq,
	}
	if opts.CaptureImages {
		b.Images = images.Capture()
		b.SharedCache = images.CaptureSharedCacheInfo()
	}
	return b, nil
}

// New assembles a backtrace from already-captured data, e.g. frames
// imported from another process or a recorded crash.
func New(architecture string, seq *frames.Seq, imgs []*images.Image,
	sharedCache images.SharedCacheInfo) *Backtrace {
	return &Backtrace{
		Architecture: architecture,
		seq:          seq,
		Images:       imgs,
		SharedCache:  sharedCache,
	}
}

// Frames returns a fresh single-pass view over the captured frames.
func (b *Backtrace) Frames() *frames.Iter {
	return b.seq.Iter()
}

// NumFrames returns the number of entries, markers included.
func (b *Backtrace) NumFrames() int {
	return b.seq.Len()
}
