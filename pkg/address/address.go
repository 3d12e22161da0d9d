// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package address provides an opaque, width-bound code location value.
// A captured backtrace may describe a foreign process or a previously
// recorded stack, so addresses deliberately expose no pointer semantics:
// they can be compared, tested for null and narrowed to an integer, but
// never dereferenced.
package address

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Address is a fixed-bit-width location value. Two addresses from different
// capture contexts compare as plain values and carry no cross-process meaning.
type Address interface {
	// BitWidth returns the width of the address representation in bits.
	BitWidth() int
	// IsNull reports whether the address is the zero location.
	IsNull() bool
	// Bits returns the raw value zero-extended to 64 bits.
	// It is the common currency for comparison and narrowing.
	Bits() uint64

	fmt.Stringer
}

// Addr64 is a 64-bit address.
type Addr64 uint64

func (a Addr64) BitWidth() int  { return 64 }
func (a Addr64) IsNull() bool   { return a == 0 }
func (a Addr64) Bits() uint64   { return uint64(a) }
func (a Addr64) String() string { return fmt.Sprintf("0x%016x", uint64(a)) }

// Addr32 is a 32-bit address.
type Addr32 uint32

func (a Addr32) BitWidth() int  { return 32 }
func (a Addr32) IsNull() bool   { return a == 0 }
func (a Addr32) Bits() uint64   { return uint64(a) }
func (a Addr32) String() string { return fmt.Sprintf("0x%08x", uint32(a)) }

// FromUint64 returns a 64-bit address holding v.
func FromUint64(v uint64) Address { return Addr64(v) }

// FromUint32 returns a 32-bit address holding v.
func FromUint32(v uint32) Address { return Addr32(v) }

// Equal reports bit-wise equality. Addresses of different widths are never
// equal even when their values coincide.
func Equal(a, b Address) bool {
	return a.BitWidth() == b.BitWidth() && a.Bits() == b.Bits()
}

// Less orders addresses by width first, then by value, so mixed-width sets
// sort deterministically.
func Less(a, b Address) bool {
	if a.BitWidth() != b.BitWidth() {
		return a.BitWidth() < b.BitWidth()
	}
	return a.Bits() < b.Bits()
}

// To narrows a to the unsigned integer type T. It reports false when T is
// narrower than the address's bit width; the value is then unusable.
func To[T constraints.Unsigned](a Address) (T, bool) {
	var zero T
	if bitSize(zero) < a.BitWidth() {
		return zero, false
	}
	return T(a.Bits()), true
}

func bitSize[T constraints.Unsigned](v T) int {
	// ^T(0) has all value bits set; count them by halving.
	bits := 0
	for x := ^T(0); x != 0; x >>= 1 {
		bits++
	}
	return bits
}
