// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build amd64 || arm64

package unwind

import "unsafe"

// getfp returns the caller's frame pointer. Implemented in assembly.
func getfp() uintptr

const (
	// fastWalkCap bounds the frame-pointer walk. Hitting the cap means
	// the true stack depth is unknown.
	fastWalkCap = 1024
	// maxFrameSpan rejects chain links that jump implausibly far for a
	// single frame.
	maxFrameSpan = 1 << 20
	// maxStackSpan rejects links that leave any plausible distance of the
	// innermost frame; a corrupt chain must not walk off the goroutine
	// stack into unmapped memory.
	maxStackSpan = 1 << 25
)

// walkFramePointers follows the saved frame-pointer chain: on both amd64 and
// arm64 the Go ABI stores the caller's frame pointer at [fp] and the return
// address at [fp+8]. The walk holds fp as a raw integer into this goroutine's
// stack, so nothing between reading the anchor and the end of the loop may
// move the stack: the result buffer is preallocated to the full walk cap and
// the loop body performs no calls.
//
// complete reports whether the chain was followed to its outermost frame.
// drop counts innermost frames to exclude from the result.
//
//go:noinline
func walkFramePointers(drop int) (pcs []uintptr, complete, ok bool) {
	raw := make([]uintptr, 0, fastWalkCap)
	anchor := getfp()
	if anchor == 0 {
		// Built without frame pointers.
		return nil, false, false
	}
	fp := anchor
	for i := 0; i < fastWalkCap; i++ {
		if fp == 0 {
			complete = true
			break
		}
		if fp&7 != 0 {
			// Corrupt chain; report what was walked so far as an
			// unknown-length prefix.
			break
		}
		next := *(*uintptr)(unsafe.Pointer(fp))
		pc := *(*uintptr)(unsafe.Pointer(fp + 8))
		if pc == 0 {
			complete = true
			break
		}
		raw = append(raw, pc)
		if next != 0 && !chainLinkOK(anchor, fp, next) {
			break
		}
		fp = next
	}
	if drop >= len(raw) {
		return nil, complete, true
	}
	return raw[drop:], complete, true
}

// chainLinkOK vets one chain link before it is dereferenced: frames move
// strictly up the stack, a single link never jumps further than a plausible
// frame, and the whole chain stays within a plausible stack distance of the
// innermost frame.
func chainLinkOK(anchor, fp, next uintptr) bool {
	return next > fp && next-fp <= maxFrameSpan && next-anchor <= maxStackSpan
}
