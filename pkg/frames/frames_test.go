// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package frames

import (
	"math/rand"
	"testing"

	"github.com/stackscope/stackscope/pkg/address"
	"github.com/stackscope/stackscope/pkg/testutil"
)

func TestFrameVariants(t *testing.T) {
	pc := ProgramCounter(address.FromUint64(0x1040))
	if pc.Kind() != KindProgramCounter || pc.IsMarker() {
		t.Fatalf("bad pc frame %v", pc)
	}
	addr, ok := pc.Address()
	if !ok || addr.Bits() != 0x1040 {
		t.Fatalf("pc frame lost its address: %v %v", addr, ok)
	}

	om := Omitted(6)
	if !om.IsMarker() || om.Count() != 6 {
		t.Fatalf("bad omitted marker %v", om)
	}
	if _, ok := om.Address(); ok {
		t.Fatalf("marker must not carry an address")
	}

	tr := Truncated()
	if !tr.IsMarker() || tr.Count() != 0 {
		t.Fatalf("bad truncated marker %v", tr)
	}
}

func TestOmittedRejectsBadCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Omitted(0) must panic")
		}
	}()
	Omitted(0)
}

func TestSeqRoundTrip(t *testing.T) {
	in := []Frame{
		ReturnAddress(address.FromUint64(0x7fff12345678)),
		ReturnAddress(address.FromUint64(0x7fff12345610)), // negative delta
		AsyncResumePoint(address.FromUint64(0x400000)),
		Omitted(42),
		ReturnAddress(address.FromUint64(0x7fff12349999)),
		Truncated(),
	}
	seq := NewSeq(64)
	for _, f := range in {
		seq.Append(f)
	}
	if seq.Len() != len(in) {
		t.Fatalf("got len %v, want %v", seq.Len(), len(in))
	}
	out := seq.Iter().Collect()
	if len(out) != len(in) {
		t.Fatalf("got %v frames, want %v", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("frame %v: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestSeqSinglePass(t *testing.T) {
	seq := NewSeq(64)
	seq.Append(ReturnAddress(address.FromUint64(0x1000)))
	seq.Append(ReturnAddress(address.FromUint64(0x2000)))

	it := seq.Iter()
	for i := 0; i < 2; i++ {
		if _, ok := it.Next(); !ok {
			t.Fatalf("view exhausted early at %v", i)
		}
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("exhausted view must stay exhausted")
	}

	// A fresh view over the same storage starts over.
	if got := len(seq.Iter().Collect()); got != 2 {
		t.Fatalf("fresh view saw %v frames, want 2", got)
	}
}

func TestSeqRandom(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	for iter := 0; iter < testutil.IterCount(); iter++ {
		n := rnd.Intn(40)
		var in []Frame
		seq := NewSeq(64)
		for i := 0; i < n; i++ {
			var f Frame
			switch rnd.Intn(4) {
			case 0:
				f = ProgramCounter(address.FromUint64(rnd.Uint64()))
			case 1:
				f = ReturnAddress(address.FromUint64(rnd.Uint64()))
			case 2:
				f = AsyncResumePoint(address.FromUint64(rnd.Uint64()))
			case 3:
				f = Omitted(1 + rnd.Intn(1000))
			}
			in = append(in, f)
			seq.Append(f)
		}
		out := seq.Iter().Collect()
		if len(out) != len(in) {
			t.Fatalf("got %v frames, want %v", len(out), len(in))
		}
		for i := range in {
			if in[i] != out[i] {
				t.Fatalf("frame %v: got %v, want %v", i, out[i], in[i])
			}
		}
	}
}

func TestSeq32Bit(t *testing.T) {
	seq := NewSeq(32)
	seq.Append(ReturnAddress(address.FromUint32(0xdeadbeef)))
	f, ok := seq.Iter().Next()
	if !ok {
		t.Fatalf("empty iteration")
	}
	addr, ok := f.Address()
	if !ok || addr.BitWidth() != 32 || addr.Bits() != 0xdeadbeef {
		t.Fatalf("32-bit address did not survive storage: %v", addr)
	}
}
