// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolize

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	var c Cache
	calls := 0
	inner := func(pc uint64, inline bool) []Frame {
		calls++
		return []Frame{{PC: pc}}
	}
	got := c.Resolve(inner, "/bin/app", 0x1040, true)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, calls)

	// Hits do not call inner again.
	c.Resolve(inner, "/bin/app", 0x1040, true)
	assert.Equal(t, 1, calls)

	// Distinct keys miss: different pc, different binary, different
	// inline setting.
	c.Resolve(inner, "/bin/app", 0x1041, true)
	c.Resolve(inner, "/bin/other", 0x1040, true)
	c.Resolve(inner, "/bin/app", 0x1040, false)
	assert.Equal(t, 4, calls)
}

func TestCacheNegativeResults(t *testing.T) {
	var c Cache
	calls := 0
	inner := func(pc uint64, inline bool) []Frame {
		calls++
		return nil
	}
	assert.Nil(t, c.Resolve(inner, "/bin/app", 0x1, false))
	// Negative results are remembered too.
	assert.Nil(t, c.Resolve(inner, "/bin/app", 0x1, false))
	assert.Equal(t, 1, calls)
}

func TestCacheConcurrent(t *testing.T) {
	var c Cache
	inner := func(pc uint64, inline bool) []Frame {
		return []Frame{{PC: pc}}
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pc := uint64(0); pc < 100; pc++ {
				got := c.Resolve(inner, "/bin/app", pc, true)
				if len(got) != 1 || got[0].PC != pc {
					t.Errorf("bad cached result for %#x: %v", pc, got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestInterner(t *testing.T) {
	var in Interner
	big := make([]byte, 1024)
	copy(big, "hello")
	s1 := in.Do(string(big[:5]))
	s2 := in.Do("hello")
	assert.Equal(t, "hello", s1)
	assert.Equal(t, s1, s2)
}
