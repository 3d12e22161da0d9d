// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolize

import (
	"strings"
	"sync"
)

// Cache caches resolution results across symbolication passes in a
// thread-safe way, for callers that pool symbolizers. Per-pass symbol
// caching inside Symbolizer needs no locking; this one does.
type Cache struct {
	mu    sync.RWMutex
	cache map[cacheKey][]Frame
}

type cacheKey struct {
	path   string
	pc     uint64
	inline bool
}

// Resolve returns the cached frames for (path, pc, inline), calling inner
// on a miss and remembering its result, including negative ones.
func (c *Cache) Resolve(inner func(uint64, bool) []Frame, path string, pc uint64, inline bool) []Frame {
	key := cacheKey{path, pc, inline}
	c.mu.RLock()
	val, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return val
	}
	frames := inner(pc, inline)
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[cacheKey][]Frame)
	}
	c.cache[key] = frames
	c.mu.Unlock()
	return frames
}

// Interner allows to intern/deduplicate strings.
// Interner.Do semantically returns the same string, but physically it will point
// to an existing string with the same contents (if there was one passed to Do in the past).
// Interned strings are also "cloned", that is, if the passed string points to a large
// buffer, it won't after interning (and won't prevent GC'ing of the large buffer).
type Interner struct {
	m sync.Map
}

func (in *Interner) Do(s string) string {
	if interned, ok := in.m.Load(s); ok {
		return interned.(string)
	}
	s = strings.Clone(s)
	in.m.Store(s, s)
	return s
}
