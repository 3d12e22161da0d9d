// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package frames

import (
	"encoding/binary"
	"fmt"
)

// Seq holds a captured frame sequence in a compact form: one kind byte per
// frame plus a varint payload stream, with address values delta-encoded
// against the previous address frame. Stack addresses cluster tightly, so
// deltas stay short. The representation is internal; consumers only ever
// see Frame values through an Iter.
type Seq struct {
	width int
	kinds []Kind
	data  []byte
	last  uint64
}

// NewSeq returns an empty sequence for addresses of the given bit width.
func NewSeq(addrBits int) *Seq {
	return &Seq{width: addrBits}
}

// Append adds f to the end of the sequence.
func (s *Seq) Append(f Frame) {
	s.kinds = append(s.kinds, f.kind)
	switch f.kind {
	case KindOmitted:
		s.data = binary.AppendUvarint(s.data, f.value)
	case KindTruncated:
		// No payload.
	default:
		s.data = binary.AppendVarint(s.data, int64(f.value-s.last))
		s.last = f.value
	}
}

// Len returns the number of frames, markers included.
func (s *Seq) Len() int { return len(s.kinds) }

// Iter returns a fresh forward-only view over the sequence. Each view is
// exhausted after one traversal; call Iter again for another pass.
func (s *Seq) Iter() *Iter {
	return &Iter{seq: s}
}

// Iter is a single-pass cursor over a Seq.
type Iter struct {
	seq  *Seq
	pos  int
	off  int
	last uint64
}

// Next returns the next frame in capture order (top of stack first).
// ok is false once the view is exhausted.
func (it *Iter) Next() (Frame, bool) {
	s := it.seq
	if it.pos >= len(s.kinds) {
		return Frame{}, false
	}
	kind := s.kinds[it.pos]
	it.pos++
	f := Frame{kind: kind}
	switch kind {
	case KindOmitted:
		v, n := binary.Uvarint(s.data[it.off:])
		if n <= 0 {
			panic(fmt.Sprintf("corrupt frame storage at %v", it.off))
		}
		it.off += n
		f.value = v
	case KindTruncated:
	default:
		d, n := binary.Varint(s.data[it.off:])
		if n <= 0 {
			panic(fmt.Sprintf("corrupt frame storage at %v", it.off))
		}
		it.off += n
		it.last += uint64(d)
		f.value = it.last
		f.width = s.width
	}
	return f, true
}

// Collect materializes the remainder of the view as a slice.
func (it *Iter) Collect() []Frame {
	var out []Frame
	for {
		f, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}
