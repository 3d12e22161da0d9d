// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backtrace

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stackscope/stackscope/pkg/address"
	"github.com/stackscope/stackscope/pkg/frames"
	"github.com/stackscope/stackscope/pkg/images"
	"github.com/stackscope/stackscope/pkg/unwind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureReportsCallSite(t *testing.T) {
	b, err := Capture(DefaultOptions())
	require.NoError(t, err)
	require.Greater(t, b.NumFrames(), 0)
	f, ok := b.Frames().Next()
	require.True(t, ok)
	addr, ok := f.Address()
	require.True(t, ok, "first frame must be a code location, got %v", f)
	// The first frame belongs to the caller of Capture, never to Capture
	// itself.
	fn := runtime.FuncForPC(uintptr(addr.Bits()) - 1)
	require.NotNil(t, fn)
	assert.Contains(t, fn.Name(), "TestCaptureReportsCallSite")
}

func TestCaptureBadLimit(t *testing.T) {
	_, err := Capture(Options{Limit: 4, Top: 16})
	require.Error(t, err)
	assert.True(t, errors.Is(err, unwind.ErrBadLimit))
}

func TestCaptureArchitecture(t *testing.T) {
	b, err := Capture(DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, b.Architecture)
	if runtime.GOARCH == "amd64" && runtime.GOOS == "linux" {
		assert.Equal(t, "x86_64", b.Architecture)
	}
}

//go:noinline
func deepCapture(depth int, opts Options) (*Backtrace, error) {
	if depth > 0 {
		return deepCapture(depth-1, opts)
	}
	return Capture(opts)
}

func TestCaptureTruncation(t *testing.T) {
	const limit, top = 5, 2
	full, err := deepCapture(20, DefaultOptions())
	require.NoError(t, err)
	n := full.NumFrames()
	require.Greater(t, n, limit)

	b, err := deepCapture(20, Options{Limit: limit, Top: top})
	require.NoError(t, err)
	got := b.Frames().Collect()
	require.Len(t, got, limit)
	require.Equal(t, frames.KindOmitted, got[top].Kind())
	assert.Equal(t, n-limit+1, got[top].Count())
	markers := 0
	for _, f := range got {
		if f.IsMarker() {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
}

func TestCaptureNoTruncationUnderLimit(t *testing.T) {
	b, err := Capture(Options{Limit: 10000, Top: 16})
	require.NoError(t, err)
	for _, f := range b.Frames().Collect() {
		assert.False(t, f.IsMarker())
	}
}

func synthetic() *Backtrace {
	seq := frames.NewSeq(64)
	seq.Append(frames.ReturnAddress(address.FromUint64(0x1040)))
	seq.Append(frames.Omitted(6))
	seq.Append(frames.ReturnAddress(address.FromUint64(0x1020)))
	seq.Append(frames.Truncated())
	return New("x86_64", seq, nil, images.SharedCacheInfo{})
}

func TestDescription(t *testing.T) {
	want := "" +
		"0    0x0000000000001040\n" +
		"1    ... (6 frames omitted)\n" +
		"2    0x0000000000001020\n" +
		"3    ...\n"
	assert.Equal(t, want, synthetic().Description(16))
	// Native width for x86_64 is 16 hex digits.
	assert.Equal(t, want, synthetic().String())

	want8 := "" +
		"0    0x00001040\n" +
		"1    ... (6 frames omitted)\n" +
		"2    0x00001020\n" +
		"3    ...\n"
	assert.Equal(t, want8, synthetic().Description(8))
}

func TestSymbolicatedNothingToResolve(t *testing.T) {
	b := synthetic()
	// An explicitly empty image list leaves nothing to resolve against.
	sb := b.Symbolicated(SymbolicateOptions{Images: []*images.Image{}})
	assert.Nil(t, sb)
}

func TestSymbolicatedUnreadableImages(t *testing.T) {
	seq := frames.NewSeq(64)
	seq.Append(frames.ReturnAddress(address.FromUint64(0x1040)))
	imgs := []*images.Image{{Name: "ghost", Path: "/nonexistent/ghost", Base: 0x1000, EndOfText: 0x2000}}
	b := New("x86_64", seq, imgs, images.SharedCacheInfo{})
	sb := b.Symbolicated(DefaultSymbolicateOptions())
	assert.Nil(t, sb)
}

func TestReturnAddressAdjust(t *testing.T) {
	assert.Equal(t, uint64(1), returnAddressAdjust("x86_64"))
	assert.Equal(t, uint64(4), returnAddressAdjust("aarch64"))
	// Unknown architectures fall back to the smallest safe step.
	assert.Equal(t, uint64(1), returnAddressAdjust("pdp11"))
}

//go:noinline
func captureForSymbols(opts Options) (*Backtrace, error) {
	return Capture(opts)
}

func TestSymbolicateSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs image capture")
	}
	opts := DefaultOptions()
	opts.CaptureImages = true
	b, err := captureForSymbols(opts)
	require.NoError(t, err)
	require.NotEmpty(t, b.Images)

	sb := b.Symbolicated(DefaultSymbolicateOptions())
	require.NotNil(t, sb, "own binary must be resolvable")
	require.NotEmpty(t, sb.Frames)

	found := false
	for _, f := range sb.Frames[:min(4, len(sb.Frames))] {
		if f.Symbol != nil && strings.Contains(f.Symbol.Name(), "captureForSymbols") {
			found = true
		}
	}
	assert.True(t, found, "innermost frames did not resolve to the capturing function:\n%v", sb)

	// Rendering stays one well-formed line per frame.
	desc := sb.String()
	lines := strings.Split(strings.TrimRight(desc, "\n"), "\n")
	assert.Equal(t, len(sb.Frames), len(lines))
	for _, line := range lines {
		assert.Regexp(t, `^\d+ +(0x[0-9a-f]+|\.\.\.)`, line)
	}
}

type symbolSummary struct {
	Name   string
	Offset uint64
	File   string
	Line   int
}

func summarize(sb *SymbolicatedBacktrace) []symbolSummary {
	var out []symbolSummary
	for _, f := range sb.Frames {
		s := symbolSummary{}
		if f.Symbol != nil {
			s.Name = f.Symbol.Name()
			s.Offset = f.Symbol.Offset
			if f.Symbol.Location != nil {
				s.File = f.Symbol.Location.File
				s.Line = f.Symbol.Location.Line
			}
		}
		out = append(out, s)
	}
	return out
}

// Symbolicating the same backtrace twice against the same images must give
// structurally identical results; name memoization must not change what
// resolves.
func TestSymbolicateIdempotent(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs image capture")
	}
	opts := DefaultOptions()
	opts.CaptureImages = true
	b, err := captureForSymbols(opts)
	require.NoError(t, err)

	first := b.Symbolicated(DefaultSymbolicateOptions())
	require.NotNil(t, first)
	// Force demangling on the first pass.
	for _, f := range first.Frames {
		if f.Symbol != nil {
			f.Symbol.Name()
		}
	}
	second := b.Symbolicated(DefaultSymbolicateOptions())
	require.NotNil(t, second)

	if diff := cmp.Diff(summarize(first), summarize(second)); diff != "" {
		t.Fatalf("symbolication differs between passes (-first +second):\n%v", diff)
	}
}

func TestSymbolicatedMarkersCarried(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs image capture")
	}
	opts := Options{Limit: 6, Top: 2, CaptureImages: true}
	b, err := deepCapture(30, opts)
	require.NoError(t, err)

	sb := b.Symbolicated(DefaultSymbolicateOptions())
	require.NotNil(t, sb)
	markers := 0
	for _, f := range sb.Frames {
		if f.Captured.IsMarker() {
			markers++
			assert.Nil(t, f.Symbol)
			assert.False(t, f.Inlined)
		}
	}
	assert.Equal(t, 1, markers)
	assert.Contains(t, sb.String(), "frames omitted")
}

func TestSymbolicatedClassification(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs image capture")
	}
	opts := DefaultOptions()
	opts.CaptureImages = true
	b, err := captureForSymbols(opts)
	require.NoError(t, err)
	sb := b.Symbolicated(DefaultSymbolicateOptions())
	require.NotNil(t, sb)

	// The stack bottoms out in the testing framework and the runtime's
	// goroutine entry, which must classify as system code.
	system := false
	for _, f := range sb.Frames {
		if f.Symbol != nil && f.IsSystem() {
			system = true
		}
	}
	assert.True(t, system, "no system frames found in:\n%v", sb)
}
