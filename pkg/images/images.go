// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package images enumerates the code modules mapped into a process and
// attributes raw addresses to them. The catalog is a point-in-time snapshot:
// resolution against it after modules were unloaded or reloaded can
// misattribute, which callers accept in exchange for not locking against
// the live loader.
package images

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/stackscope/stackscope/pkg/address"
)

// Image is one loaded code module. Instances are shared: many frames and
// symbols reference the same Image for the life of the enclosing catalog
// or backtrace.
type Image struct {
	// Name is the module's short name, Path its backing file if any.
	// Pseudo-modules like the vdso have a bracketed name and no path.
	Name string
	Path string
	// BuildID is the module's build identifier, nil when the module
	// carries none.
	BuildID []byte
	// Base is the lowest address the module is mapped at, EndOfText the
	// end of its executable span. Base <= EndOfText always holds.
	Base      uint64
	EndOfText uint64
}

// BaseAddress returns Base as an opaque address value.
func (img *Image) BaseAddress() address.Address { return address.FromUint64(img.Base) }

// EndOfTextAddress returns EndOfText as an opaque address value.
func (img *Image) EndOfTextAddress() address.Address { return address.FromUint64(img.EndOfText) }

// Contains reports whether pc falls inside the module's text range.
func (img *Image) Contains(pc uint64) bool {
	return pc >= img.Base && pc < img.EndOfText
}

func (img *Image) String() string {
	id := "no build id"
	if len(img.BuildID) != 0 {
		id = fmt.Sprintf("%x", img.BuildID)
	}
	return fmt.Sprintf("%v %#x-%#x (%v)", img.Name, img.Base, img.EndOfText, id)
}

// Catalog is an ordered, read-only view over a set of images supporting
// address attribution by range containment.
type Catalog struct {
	images []*Image
}

// NewCatalog builds a catalog over the given images. The slice is sorted by
// base address; images in a live snapshot do not overlap, so ordering by
// base is sufficient for lookup.
func NewCatalog(list []*Image) *Catalog {
	sorted := make([]*Image, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})
	return &Catalog{images: sorted}
}

// List returns the catalog's images in base-address order.
func (c *Catalog) List() []*Image { return c.images }

func (c *Catalog) Len() int { return len(c.images) }

// Find returns the image whose text range contains pc, or nil.
func (c *Catalog) Find(pc uint64) *Image {
	idx := sort.Search(len(c.images), func(i int) bool {
		return c.images[i].EndOfText > pc
	})
	if idx < len(c.images) && c.images[idx].Contains(pc) {
		return c.images[idx]
	}
	return nil
}

// SharedCacheInfo describes the platform's relocatable shared library blob
// on systems that have one. On platforms without a shared region Present is
// false and the remaining fields are zero. The type still carries identity
// and base so that captures imported from such platforms round-trip.
type SharedCacheInfo struct {
	Present bool
	UUID    []byte
	Base    uint64
}

func (s SharedCacheInfo) String() string {
	if !s.Present {
		return "no shared cache"
	}
	return fmt.Sprintf("shared cache %x @ %#x", s.UUID, s.Base)
}

// SameCache reports whether two descriptors name the same cache blob.
func (s SharedCacheInfo) SameCache(other SharedCacheInfo) bool {
	return s.Present == other.Present && s.Base == other.Base && bytes.Equal(s.UUID, other.UUID)
}

// Capture enumerates the code modules currently mapped into this process.
// It never fails: inconsistent loader state yields a shorter (possibly
// empty) list, which is a valid, if degraded, result.
func Capture() []*Image {
	return captureImages()
}

// CaptureSharedCacheInfo snapshots the shared-region identity. It never
// fails; platforms without a shared region report Present=false.
func CaptureSharedCacheInfo() SharedCacheInfo {
	return captureSharedCache()
}
