// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backtrace

import (
	"github.com/stackscope/stackscope/pkg/arch"
	"github.com/stackscope/stackscope/pkg/frames"
	"github.com/stackscope/stackscope/pkg/images"
	"github.com/stackscope/stackscope/pkg/symbolize"
)

// SymbolicateOptions control one symbolication pass.
type SymbolicateOptions struct {
	// Images to resolve against. Nil falls back to the backtrace's own
	// snapshot, then to a fresh capture.
	Images []*images.Image
	// SharedCache overrides the backtrace's shared-region descriptor.
	SharedCache *images.SharedCacheInfo
	// ShowInlineFrames expands inline call chains into one virtual frame
	// per inline level.
	ShowInlineFrames bool
	// UseSymbolCache reuses Symbol objects for identical resolutions
	// within the pass.
	UseSymbolCache bool
}

// DefaultSymbolicateOptions enable inline frames and symbol caching.
func DefaultSymbolicateOptions() SymbolicateOptions {
	return SymbolicateOptions{
		ShowInlineFrames: true,
		UseSymbolCache:   true,
	}
}

// SymbolicatedFrame is one rendered entry of a symbolicated backtrace:
// the captured frame it derives from plus its resolution, if any. Markers
// carry through with a nil Symbol.
type SymbolicatedFrame struct {
	// Captured is the original frame; inline-synthesized entries share
	// the same captured frame as the concrete one that follows them.
	Captured frames.Frame
	Symbol   *symbolize.Symbol
	// Inlined marks frames synthesized from the inline call chain.
	Inlined bool
}

// IsRuntimeFailure reports whether the frame is language-runtime failure
// machinery (panic, fault handling, assertion aborts).
func (f *SymbolicatedFrame) IsRuntimeFailure() bool {
	return symbolize.Classify(f.Symbol) == symbolize.ClassRuntimeFailure
}

// IsThunk reports whether the frame is a compiler-generated adapter.
func (f *SymbolicatedFrame) IsThunk() bool {
	return symbolize.Classify(f.Symbol) == symbolize.ClassThunk
}

// IsSystem reports whether the frame belongs to platform or runtime code.
func (f *SymbolicatedFrame) IsSystem() bool {
	return symbolize.Classify(f.Symbol) == symbolize.ClassSystem
}

// SymbolicatedBacktrace is the derived, immutable view pairing a Backtrace
// with resolved symbols. Partially-resolved results are normal; individual
// frames may have no Symbol.
type SymbolicatedBacktrace struct {
	Source      *Backtrace
	Frames      []SymbolicatedFrame
	Images      []*images.Image
	SharedCache images.SharedCacheInfo
}

// Symbolicated resolves the backtrace's frames into symbols, source
// locations and inline chains. It returns nil only when there is nothing
// to resolve against at all: no images, or none with readable metadata.
// Frames that fail to resolve individually are kept with a nil Symbol.
func (b *Backtrace) Symbolicated(opts SymbolicateOptions) *SymbolicatedBacktrace {
	imgs := opts.Images
	if imgs == nil {
		imgs = b.Images
	}
	if imgs == nil {
		imgs = images.Capture()
	}
	if len(imgs) == 0 {
		return nil
	}
	sharedCache := b.SharedCache
	if opts.SharedCache != nil {
		sharedCache = *opts.SharedCache
	}
	sym := symbolize.NewSymbolizer(images.NewCatalog(imgs), opts.UseSymbolCache)
	defer sym.Close()
	if !sym.Resolvable() {
		return nil
	}

	adjust := returnAddressAdjust(b.Architecture)
	sb := &SymbolicatedBacktrace{
		Source:      b,
		Images:      imgs,
		SharedCache: sharedCache,
	}
	for it := b.Frames(); ; {
		f, ok := it.Next()
		if !ok {
			break
		}
		if f.IsMarker() {
			sb.Frames = append(sb.Frames, SymbolicatedFrame{Captured: f})
			continue
		}
		addr, _ := f.Address()
		pc := addr.Bits()
		// Return addresses and resume points sit one past the call or
		// suspend instruction; map them back onto it so symbol and line
		// attribution land on the call site. Exact PCs are used as-is.
		if f.Kind() != frames.KindProgramCounter {
			pc -= adjust
		}
		for _, r := range sym.Resolve(pc, opts.ShowInlineFrames) {
			sb.Frames = append(sb.Frames, SymbolicatedFrame{
				Captured: f,
				Symbol:   r.Symbol,
				Inlined:  r.Inline,
			})
		}
	}
	return sb
}

// returnAddressAdjust is the platform's minimum instruction size: the
// largest amount that is always safe to step back without skipping over
// an entire preceding instruction.
func returnAddressAdjust(architecture string) uint64 {
	if a := arch.Get(architecture); a != nil {
		return a.MinInstructionLen
	}
	return 1
}
