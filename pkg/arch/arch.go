// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package arch describes the machine architectures a backtrace can originate
// from. The table drives address widths and the return-address adjustment
// performed before symbol lookup.
package arch

import (
	"runtime"
	"sync"
)

type Arch struct {
	// Name is the canonical machine name as reported by uname(2),
	// e.g. "x86_64", not the Go toolchain name.
	Name string
	// PtrBits is the width of a code address in bits.
	PtrBits int
	// MinInstructionLen is the smallest encodable instruction in bytes.
	// Return addresses are moved back by this amount to land on the call
	// instruction for line and symbol attribution.
	MinInstructionLen uint64
	// FramePointers reports whether the ABI keeps a frame-pointer chain
	// that a fast stack walk can follow.
	FramePointers bool
}

var List = map[string]*Arch{
	"x86_64": {
		Name:              "x86_64",
		PtrBits:           64,
		MinInstructionLen: 1,
		FramePointers:     true,
	},
	"i386": {
		Name:              "i386",
		PtrBits:           32,
		MinInstructionLen: 1,
		FramePointers:     false,
	},
	"aarch64": {
		Name:              "aarch64",
		PtrBits:           64,
		MinInstructionLen: 4,
		FramePointers:     true,
	},
	"arm": {
		Name:              "arm",
		PtrBits:           32,
		MinInstructionLen: 2, // thumb
		FramePointers:     false,
	},
	"riscv64": {
		Name:              "riscv64",
		PtrBits:           64,
		MinInstructionLen: 2, // compressed extension
		FramePointers:     false,
	},
	"ppc64le": {
		Name:              "ppc64le",
		PtrBits:           64,
		MinInstructionLen: 4,
		FramePointers:     false,
	},
	"s390x": {
		Name:              "s390x",
		PtrBits:           64,
		MinInstructionLen: 2,
		FramePointers:     false,
	},
	"mips64le": {
		Name:              "mips64le",
		PtrBits:           64,
		MinInstructionLen: 4,
		FramePointers:     false,
	},
}

var goarchNames = map[string]string{
	"amd64":    "x86_64",
	"386":      "i386",
	"arm64":    "aarch64",
	"arm":      "arm",
	"riscv64":  "riscv64",
	"ppc64le":  "ppc64le",
	"s390x":    "s390x",
	"mips64le": "mips64le",
}

// Get returns the architecture named name, accepting both canonical machine
// names and Go toolchain names. Unknown names return nil.
func Get(name string) *Arch {
	if target := List[name]; target != nil {
		return target
	}
	if canonical := goarchNames[name]; canonical != "" {
		return List[canonical]
	}
	return nil
}

// Host returns the architecture this process runs on.
// Falls back to the Go toolchain name when uname is unavailable or reports
// a machine the table does not know.
var Host = sync.OnceValue(detectHost)

func detectHost() *Arch {
	if name := unameMachine(); name != "" {
		if target := Get(name); target != nil {
			return target
		}
	}
	if target := Get(runtime.GOARCH); target != nil {
		return target
	}
	// Unknown host. Assume a generic 64-bit machine with byte-sized
	// instructions so PC adjustment stays conservative.
	return &Arch{Name: runtime.GOARCH, PtrBits: 64, MinInstructionLen: 1}
}
