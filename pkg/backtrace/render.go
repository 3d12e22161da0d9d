// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backtrace

import (
	"fmt"
	"strings"

	"github.com/stackscope/stackscope/pkg/arch"
	"github.com/stackscope/stackscope/pkg/frames"
)

// Description renders one line per frame: a frame index counting from 0 at
// the top of the stack, the address zero-padded to width hex digits, and
// "..." for discontinuities. The output stays well-formed when every frame
// is unresolved.
func (b *Backtrace) Description(width int) string {
	var sb strings.Builder
	idx := 0
	for it := b.Frames(); ; idx++ {
		f, ok := it.Next()
		if !ok {
			break
		}
		writeFrameLine(&sb, idx, width, f)
	}
	return sb.String()
}

func (b *Backtrace) String() string {
	return b.Description(addressWidth(b.Architecture))
}

// Description renders the symbolicated form: the unresolved line format
// plus a " <name> + <offset>" suffix where a symbol is present and an
// " [inlined]" suffix on inline-synthesized frames.
func (sb *SymbolicatedBacktrace) Description(width int) string {
	var out strings.Builder
	for idx, f := range sb.Frames {
		if f.Captured.IsMarker() {
			writeFrameLine(&out, idx, width, f.Captured)
			continue
		}
		addr, _ := f.Captured.Address()
		fmt.Fprintf(&out, "%-4d 0x%0*x", idx, width, addr.Bits())
		if f.Symbol != nil {
			fmt.Fprintf(&out, " %v + 0x%x", f.Symbol.Name(), f.Symbol.Offset)
		}
		if f.Inlined {
			out.WriteString(" [inlined]")
		}
		out.WriteByte('\n')
	}
	return out.String()
}

func (sb *SymbolicatedBacktrace) String() string {
	return sb.Description(addressWidth(sb.Source.Architecture))
}

func writeFrameLine(out *strings.Builder, idx, width int, f frames.Frame) {
	switch f.Kind() {
	case frames.KindOmitted:
		fmt.Fprintf(out, "%-4d ... (%d frames omitted)\n", idx, f.Count())
	case frames.KindTruncated:
		fmt.Fprintf(out, "%-4d ...\n", idx)
	default:
		addr, _ := f.Address()
		fmt.Fprintf(out, "%-4d 0x%0*x\n", idx, width, addr.Bits())
	}
}

func addressWidth(architecture string) int {
	if a := arch.Get(architecture); a != nil {
		return a.PtrBits / 4
	}
	return 16
}
