// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolize

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"sort"

	"github.com/stackscope/stackscope/pkg/images"
)

// rawFrame is one resolution step before Symbol objects are built: a mangled
// name, the offset from the symbol start, and an optional source position.
type rawFrame struct {
	name   string
	offset uint64
	file   string
	line   int
	col    int
	inline bool
}

// resolver reads one image's ELF and DWARF metadata. Addresses passed to
// resolve are file-relative: the image's load bias is already subtracted.
// DWARF is optional; a stripped image still resolves through its symbol
// table, and an image with neither yields empty results.
type resolver struct {
	img  *images.Image
	ef   *elf.File
	dw   *dwarf.Data
	bias uint64

	symbols   []elfSym
	cuRanges  []cuRange
	lineCache map[dwarf.Offset]*parsedCU
	subCache  map[dwarf.Offset][]subprogram
}

type elfSym struct {
	name  string
	start uint64
	end   uint64
}

type cuRange struct {
	low   uint64
	high  uint64
	entry *dwarf.Entry
}

type subprogram struct {
	low   uint64
	high  uint64
	entry *dwarf.Entry
}

type parsedCU struct {
	entries []dwarf.LineEntry
	files   []*dwarf.LineFile
}

func openResolver(img *images.Image) (*resolver, error) {
	if img.Path == "" {
		return nil, fmt.Errorf("image %v has no backing file", img.Name)
	}
	ef, err := elf.Open(img.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary %v: %w", img.Path, err)
	}
	res := &resolver{
		img:       img,
		ef:        ef,
		bias:      loadBias(ef, img.Base),
		lineCache: make(map[dwarf.Offset]*parsedCU),
		subCache:  make(map[dwarf.Offset][]subprogram),
	}
	res.symbols = readTextSymbols(ef)
	// DWARF is a bonus, not a requirement.
	if dw, err := ef.DWARF(); err == nil {
		res.dw = dw
		res.buildIndex()
	}
	if len(res.symbols) == 0 && res.dw == nil {
		ef.Close()
		return nil, fmt.Errorf("%v is fully stripped", img.Path)
	}
	return res, nil
}

func (res *resolver) close() {
	res.ef.Close()
}

// loadBias is what the loader added to the object's link-time addresses.
// Zero for fixed-address executables; the mapped base for typical PIE and
// shared objects linked at zero.
func loadBias(ef *elf.File, mappedBase uint64) uint64 {
	lowest := ^uint64(0)
	for _, prog := range ef.Progs {
		if prog.Type == elf.PT_LOAD && prog.Vaddr < lowest {
			lowest = prog.Vaddr
		}
	}
	if lowest == ^uint64(0) {
		return 0
	}
	lowest &^= 0xfff // mappings are page-granular
	if mappedBase < lowest {
		return 0
	}
	return mappedBase - lowest
}

// readTextSymbols collects function symbols sorted by address, inferring
// the size of zero-sized entries from the next symbol's start the way nm
// consumers have to.
func readTextSymbols(ef *elf.File) []elfSym {
	raw, err := ef.Symbols()
	if err != nil || len(raw) == 0 {
		raw, _ = ef.DynamicSymbols()
	}
	var syms []elfSym
	for _, sym := range raw {
		typ := elf.ST_TYPE(sym.Info)
		if typ != elf.STT_FUNC && typ != elf.STT_NOTYPE {
			continue
		}
		if sym.Name == "" || sym.Value == 0 {
			continue
		}
		syms = append(syms, elfSym{
			name:  sym.Name,
			start: sym.Value,
			end:   sym.Value + sym.Size,
		})
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].start != syms[j].start {
			return syms[i].start < syms[j].start
		}
		return syms[i].name < syms[j].name
	})
	for i := range syms {
		if syms[i].end > syms[i].start {
			continue
		}
		if i+1 < len(syms) {
			syms[i].end = syms[i+1].start
		} else {
			syms[i].end = syms[i].start + 4096
		}
	}
	return syms
}

// findSymbol returns the symbol covering addr, the nearest preceding one
// whose inferred range contains it.
func (res *resolver) findSymbol(addr uint64) (string, uint64, bool) {
	idx := sort.Search(len(res.symbols), func(i int) bool {
		return res.symbols[i].start > addr
	})
	if idx == 0 {
		return "", 0, false
	}
	sym := res.symbols[idx-1]
	if addr >= sym.end {
		return "", 0, false
	}
	return sym.name, sym.start, true
}

func (res *resolver) buildIndex() {
	r := res.dw.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		ranges, err := res.dw.Ranges(entry)
		if err != nil {
			continue
		}
		for _, rng := range ranges {
			res.cuRanges = append(res.cuRanges, cuRange{
				low:   rng[0],
				high:  rng[1],
				entry: entry,
			})
		}
	}
	sort.Slice(res.cuRanges, func(i, j int) bool {
		return res.cuRanges[i].low < res.cuRanges[j].low
	})
}

func (res *resolver) findCU(addr uint64) *dwarf.Entry {
	idx := sort.Search(len(res.cuRanges), func(i int) bool {
		return res.cuRanges[i].high > addr
	})
	if idx < len(res.cuRanges) && res.cuRanges[idx].low <= addr {
		return res.cuRanges[idx].entry
	}
	return nil
}

func (res *resolver) parsedCU(cu *dwarf.Entry) (*parsedCU, error) {
	if p, ok := res.lineCache[cu.Offset]; ok {
		return p, nil
	}
	lr, err := res.dw.LineReader(cu)
	if err != nil {
		return nil, err
	}
	if lr == nil {
		return nil, fmt.Errorf("no line table")
	}
	var entries []dwarf.LineEntry
	var entry dwarf.LineEntry
	for {
		err := lr.Next(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Address < entries[j].Address
	})
	p := &parsedCU{entries: entries, files: lr.Files()}
	res.lineCache[cu.Offset] = p
	return p, nil
}

func (res *resolver) findFunction(cu *dwarf.Entry, addr uint64) *subprogram {
	subs, ok := res.subCache[cu.Offset]
	if !ok {
		subs = res.parseSubprograms(cu)
		res.subCache[cu.Offset] = subs
	}
	idx := sort.Search(len(subs), func(i int) bool {
		return subs[i].high > addr
	})
	if idx < len(subs) && subs[idx].low <= addr {
		return &subs[idx]
	}
	return nil
}

func (res *resolver) parseSubprograms(cu *dwarf.Entry) []subprogram {
	var subs []subprogram
	r := res.dw.Reader()
	r.Seek(cu.Offset)
	r.Next() // the CU itself
	for {
		entry, err := r.Next()
		if err != nil || entry == nil || entry.Tag == 0 {
			break
		}
		if entry.Tag == dwarf.TagSubprogram {
			if ranges, err := res.dw.Ranges(entry); err == nil {
				for _, rng := range ranges {
					subs = append(subs, subprogram{
						low:   rng[0],
						high:  rng[1],
						entry: entry,
					})
				}
			}
		}
		if entry.Children {
			r.SkipChildren()
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].low < subs[j].low
	})
	return subs
}

// resolve maps one file-relative address to its frames, innermost first.
// With showInline set and an inline chain recorded at addr, one frame per
// inline level precedes the concrete frame.
func (res *resolver) resolve(addr uint64, showInline bool) []rawFrame {
	symName, symStart, symOK := res.findSymbol(addr)
	if res.dw == nil {
		return res.symtabOnly(addr, symName, symStart, symOK)
	}
	cu := res.findCU(addr)
	if cu == nil {
		return res.symtabOnly(addr, symName, symStart, symOK)
	}
	var lineEntry *dwarf.LineEntry
	var files []*dwarf.LineFile
	if p, err := res.parsedCU(cu); err == nil {
		files = p.files
		idx := sort.Search(len(p.entries), func(i int) bool {
			return p.entries[i].Address > addr
		})
		// The candidate is the last entry at or before addr. An
		// EndSequence entry marks the end of a run of code, so addr
		// falls in a hole and has no line.
		if idx > 0 && !p.entries[idx-1].EndSequence {
			lineEntry = &p.entries[idx-1]
		}
	}
	fn := res.findFunction(cu, addr)
	if fn == nil {
		out := res.symtabOnly(addr, symName, symStart, symOK)
		if len(out) == 1 && lineEntry != nil && lineEntry.Line != 0 && lineEntry.File != nil {
			out[0].file = lineEntry.File.Name
			out[0].line = lineEntry.Line
			out[0].col = lineEntry.Column
		}
		return out
	}

	// The chain runs innermost inline frame first, concrete subprogram last.
	chain := []inlineLevel{{entry: fn.entry, low: fn.low}}
	if showInline && fn.entry.Children {
		r := res.dw.Reader()
		r.Seek(fn.entry.Offset)
		r.Next()
		var inlined []inlineLevel
		res.coveringInlined(r, addr, &inlined)
		chain = append(inlined, chain...)
	}

	out := make([]rawFrame, 0, len(chain))
	for i, level := range chain {
		concrete := i == len(chain)-1
		f := rawFrame{inline: !concrete}
		origin := res.abstractOrigin(level.entry)
		f.name = dieName(level.entry, origin)
		if concrete && symOK {
			// The symbol table carries the authoritative linkage name
			// and start for the concrete frame.
			f.name = symName
			f.offset = addr - symStart
		} else if addr >= level.low {
			f.offset = addr - level.low
		}
		if i == 0 {
			res.innermostLocation(&f, level.entry, origin, lineEntry, files)
		} else {
			callSiteLocation(&f, chain[i-1].entry, files)
		}
		out = append(out, f)
	}
	return out
}

func (res *resolver) symtabOnly(addr uint64, symName string, symStart uint64, symOK bool) []rawFrame {
	if !symOK {
		return []rawFrame{{}}
	}
	return []rawFrame{{name: symName, offset: addr - symStart}}
}

type inlineLevel struct {
	entry *dwarf.Entry
	low   uint64
}

// coveringInlined descends into the subprogram's children collecting the
// chain of TagInlinedSubroutine entries whose ranges cover addr, innermost
// first.
func (res *resolver) coveringInlined(r *dwarf.Reader, addr uint64, chain *[]inlineLevel) bool {
	for {
		entry, err := r.Next()
		if err != nil || entry == nil || entry.Tag == 0 {
			return false
		}
		covers := false
		low := uint64(0)
		if ranges, err := res.dw.Ranges(entry); err == nil {
			for _, rng := range ranges {
				if addr >= rng[0] && addr < rng[1] {
					covers = true
					if low == 0 || rng[0] < low {
						low = rng[0]
					}
				}
			}
		}
		if !covers {
			if entry.Children {
				r.SkipChildren()
			}
			continue
		}
		if entry.Tag == dwarf.TagInlinedSubroutine {
			if entry.Children {
				res.coveringInlined(r, addr, chain)
			}
			*chain = append(*chain, inlineLevel{entry: entry, low: low})
			return true
		}
		// Lexical blocks and the like: descend.
		if entry.Children {
			if res.coveringInlined(r, addr, chain) {
				return true
			}
		}
	}
}

func (res *resolver) abstractOrigin(die *dwarf.Entry) *dwarf.Entry {
	ref, ok := die.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
	if !ok {
		return nil
	}
	r := res.dw.Reader()
	r.Seek(ref)
	entry, err := r.Next()
	if err != nil {
		return nil
	}
	return entry
}

// dieName prefers the linkage (mangled) name so display demangling has
// something to work with.
func dieName(die, origin *dwarf.Entry) string {
	for _, e := range []*dwarf.Entry{die, origin} {
		if e == nil {
			continue
		}
		if name, ok := e.Val(dwarf.AttrLinkageName).(string); ok {
			return name
		}
	}
	for _, e := range []*dwarf.Entry{die, origin} {
		if e == nil {
			continue
		}
		if name, ok := e.Val(dwarf.AttrName).(string); ok {
			return name
		}
	}
	return ""
}

func (res *resolver) innermostLocation(f *rawFrame, die, origin *dwarf.Entry,
	lineEntry *dwarf.LineEntry, files []*dwarf.LineFile) {
	if lineEntry != nil && lineEntry.Line != 0 {
		if lineEntry.File != nil {
			f.file = lineEntry.File.Name
		}
		f.line = lineEntry.Line
		f.col = lineEntry.Column
		return
	}
	// Fall back to the function's declaration position.
	target := die
	if origin != nil {
		target = origin
	}
	declFile, _ := target.Val(dwarf.AttrDeclFile).(int64)
	if declFile > 0 && int(declFile) < len(files) && files[declFile] != nil {
		f.file = files[declFile].Name
	}
}

// callSiteLocation fills the position the next-inner frame was inlined at.
func callSiteLocation(f *rawFrame, inner *dwarf.Entry, files []*dwarf.LineFile) {
	callFile, _ := inner.Val(dwarf.AttrCallFile).(int64)
	callLine, _ := inner.Val(dwarf.AttrCallLine).(int64)
	callCol, _ := inner.Val(dwarf.AttrCallColumn).(int64)
	if callFile > 0 && int(callFile) < len(files) && files[callFile] != nil {
		f.file = files[callFile].Name
	}
	f.line = int(callLine)
	f.col = int(callCol)
}
