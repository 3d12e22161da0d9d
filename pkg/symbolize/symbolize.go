// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package symbolize resolves raw code addresses into symbol names, source
// locations and inline call chains using the owning images' ELF and DWARF
// metadata. Resolution degrades gracefully: a stripped or unreadable image
// yields frames without symbols, never an error for the whole pass.
package symbolize

import (
	"sync"

	"github.com/ianlancetaylor/demangle"
	"github.com/stackscope/stackscope/pkg/images"
	"github.com/stackscope/stackscope/pkg/log"
)

// SourceLocation is a file/line/column as recorded by the compiler. The file
// path is the build machine's and need not exist where the process runs.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// Symbol is one resolved symbol. Instances are shared: several frames may
// reference the same Symbol at different inline depths. The demangled
// display name is computed on first access only; each instance is owned by
// a single resolution pass, so the once cell never sees concurrent writers
// unless the caller shares the result across goroutines, which sync.Once
// also tolerates.
type Symbol struct {
	Image  *images.Image
	Raw    string
	Offset uint64
	// Location is nil when the image carries no usable line information.
	Location *SourceLocation

	nameOnce sync.Once
	name     string
}

// Name returns the demangled display name, falling back to the raw name
// when it does not demangle.
func (s *Symbol) Name() string {
	s.nameOnce.Do(func() {
		if d, err := demangle.ToString(s.Raw); err == nil {
			s.name = d
		} else {
			s.name = s.Raw
		}
	})
	return s.name
}

// Frame is the resolution result for one program counter. Symbol is nil
// when no owning image or symbol was found. A single input address expands
// to several Frames when inline frames are requested and the debug metadata
// records an inline chain; those carry Inline=true and precede the concrete
// frame.
type Frame struct {
	PC     uint64
	Symbol *Symbol
	Inline bool
}

type symKey struct {
	img    *images.Image
	raw    string
	offset uint64
}

// Symbolizer resolves addresses against one image catalog snapshot.
// It is not safe for concurrent use; build one per symbolication pass or
// serialize externally.
type Symbolizer struct {
	catalog   *images.Catalog
	resolvers map[*images.Image]*resolver
	symCache  map[symKey]*Symbol
	interner  Interner
}

// NewSymbolizer returns a symbolizer over catalog. With useSymbolCache set,
// identical (image, raw name, offset) resolutions reuse one Symbol object,
// avoiding repeated metadata parsing within the pass.
func NewSymbolizer(catalog *images.Catalog, useSymbolCache bool) *Symbolizer {
	s := &Symbolizer{
		catalog:   catalog,
		resolvers: make(map[*images.Image]*resolver),
	}
	if useSymbolCache {
		s.symCache = make(map[symKey]*Symbol)
	}
	return s
}

// Image returns the module owning pc, or nil.
func (s *Symbolizer) Image(pc uint64) *images.Image {
	return s.catalog.Find(pc)
}

// Resolve maps an already-adjusted pc to its frames, innermost first.
// A pc with no owning image or no symbol yields a single Frame with a nil
// Symbol.
func (s *Symbolizer) Resolve(pc uint64, showInline bool) []Frame {
	img := s.catalog.Find(pc)
	if img == nil {
		return []Frame{{PC: pc}}
	}
	res := s.resolver(img)
	if res == nil {
		return []Frame{{PC: pc}}
	}
	raws := res.resolve(pc-res.bias, showInline)
	if len(raws) == 0 {
		return []Frame{{PC: pc}}
	}
	out := make([]Frame, 0, len(raws))
	for _, r := range raws {
		out = append(out, Frame{
			PC:     pc,
			Symbol: s.symbol(img, r),
			Inline: r.inline,
		})
	}
	return out
}

func (s *Symbolizer) symbol(img *images.Image, r rawFrame) *Symbol {
	if r.name == "" {
		return nil
	}
	raw := s.interner.Do(r.name)
	key := symKey{img: img, raw: raw, offset: r.offset}
	if s.symCache != nil {
		if sym := s.symCache[key]; sym != nil {
			return sym
		}
	}
	sym := &Symbol{
		Image:  img,
		Raw:    raw,
		Offset: r.offset,
	}
	if r.file != "" {
		sym.Location = &SourceLocation{
			File:   s.interner.Do(r.file),
			Line:   r.line,
			Column: r.col,
		}
	}
	if s.symCache != nil {
		s.symCache[key] = sym
	}
	return sym
}

// resolver returns the (possibly cached) metadata reader for img, nil when
// the image's object file cannot be read. Failures are cached too, so a
// missing file is probed once per pass.
func (s *Symbolizer) resolver(img *images.Image) *resolver {
	if res, ok := s.resolvers[img]; ok {
		return res
	}
	res, err := openResolver(img)
	if err != nil {
		log.Logf(1, "no symbol metadata for %v: %v", img.Name, err)
		res = nil
	}
	s.resolvers[img] = res
	return res
}

// Resolvable reports whether at least one catalog image has readable symbol
// metadata. Symbolication of a whole backtrace is pointless when none has.
func (s *Symbolizer) Resolvable() bool {
	for _, img := range s.catalog.List() {
		if s.resolver(img) != nil {
			return true
		}
	}
	return false
}

// Close releases the underlying object files.
func (s *Symbolizer) Close() {
	for _, res := range s.resolvers {
		if res != nil {
			res.close()
		}
	}
	s.resolvers = make(map[*images.Image]*resolver)
}
