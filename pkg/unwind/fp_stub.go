// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !amd64 && !arm64

package unwind

// No frame-pointer chain to follow; the fast algorithm falls back to the
// precise walker.
func walkFramePointers(drop int) (pcs []uintptr, complete, ok bool) {
	return nil, false, false
}
