// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

import (
	"runtime"
	"testing"
)

func TestGet(t *testing.T) {
	for _, test := range []struct {
		name string
		want string
	}{
		{"x86_64", "x86_64"},
		{"amd64", "x86_64"}, // toolchain alias
		{"aarch64", "aarch64"},
		{"arm64", "aarch64"},
		{"i386", "i386"},
		{"386", "i386"},
	} {
		got := Get(test.name)
		if got == nil || got.Name != test.want {
			t.Fatalf("Get(%v) = %v, want %v", test.name, got, test.want)
		}
	}
	if got := Get("vax"); got != nil {
		t.Fatalf("Get(vax) = %v, want nil", got)
	}
}

func TestAdjustUnits(t *testing.T) {
	if got := Get("x86_64").MinInstructionLen; got != 1 {
		t.Fatalf("x86_64 min instruction = %v, want 1", got)
	}
	if got := Get("aarch64").MinInstructionLen; got != 4 {
		t.Fatalf("aarch64 min instruction = %v, want 4", got)
	}
}

func TestHost(t *testing.T) {
	host := Host()
	if host == nil || host.Name == "" {
		t.Fatalf("no host architecture detected")
	}
	if host.PtrBits != 32 && host.PtrBits != 64 {
		t.Fatalf("implausible pointer width %v", host.PtrBits)
	}
	if host.MinInstructionLen == 0 {
		t.Fatalf("zero minimum instruction length")
	}
	if runtime.GOARCH == "amd64" && runtime.GOOS == "linux" && host.Name != "x86_64" {
		t.Fatalf("host on linux/amd64 = %v, want x86_64", host.Name)
	}
}
