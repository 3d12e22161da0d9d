// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package unwind

import (
	"runtime"

	"github.com/stackscope/stackscope/pkg/address"
	"github.com/stackscope/stackscope/pkg/arch"
)

// walkPrecise unwinds via the runtime's own frame metadata, growing the
// buffer until the whole stack fits so the true frame count is always known.
func walkPrecise(drop int) []uintptr {
	// 2 excludes runtime.Callers and walkPrecise itself.
	skip := 2 + drop
	pcs := make([]uintptr, 128)
	for {
		n := runtime.Callers(skip, pcs)
		if n < len(pcs) {
			return pcs[:n]
		}
		pcs = make([]uintptr, len(pcs)*2)
	}
}

func addrOf(pc uintptr) address.Address {
	if arch.Host().PtrBits == 32 {
		return address.FromUint32(uint32(pc))
	}
	return address.FromUint64(uint64(pc))
}
