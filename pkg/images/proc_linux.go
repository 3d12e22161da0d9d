// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package images

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stackscope/stackscope/pkg/log"
)

// captureImages reads /proc/self/maps and folds the mappings into one Image
// per backing object. A module's base is its lowest mapping and its text end
// is the end of its highest executable mapping. Objects with no executable
// mapping are not code modules and are skipped.
func captureImages() []*Image {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		log.Logf(1, "failed to open /proc/self/maps: %v", err)
		return nil
	}
	defer f.Close()

	type span struct {
		base    uint64
		textEnd uint64
		hasText bool
	}
	spans := make(map[string]*span)
	var order []string

	s := bufio.NewScanner(f)
	for s.Scan() {
		start, end, perms, name, ok := parseMapsLine(s.Text())
		if !ok || name == "" {
			continue
		}
		// Anonymous special mappings like [stack] and [heap] are not
		// code modules; the vdso is.
		if strings.HasPrefix(name, "[") && name != "[vdso]" {
			continue
		}
		sp := spans[name]
		if sp == nil {
			sp = &span{base: start}
			spans[name] = sp
			order = append(order, name)
		}
		if start < sp.base {
			sp.base = start
		}
		if strings.Contains(perms, "x") {
			sp.hasText = true
			if end > sp.textEnd {
				sp.textEnd = end
			}
		}
	}
	if err := s.Err(); err != nil {
		log.Logf(1, "failed to read /proc/self/maps: %v", err)
		// Whatever was parsed so far is still usable.
	}

	var list []*Image
	for _, name := range order {
		sp := spans[name]
		if !sp.hasText {
			continue
		}
		img := &Image{
			Name:      filepath.Base(name),
			Base:      sp.base,
			EndOfText: sp.textEnd,
		}
		if !strings.HasPrefix(name, "[") {
			img.Path = name
			if id, err := ReadBuildID(name); err == nil {
				img.BuildID = id
			} else {
				log.Logf(2, "no build id for %v: %v", name, err)
			}
		}
		list = append(list, img)
	}
	return list
}

// parseMapsLine splits one maps line of the form
// "start-end perms offset dev inode [path]".
func parseMapsLine(line string) (start, end uint64, perms, name string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return 0, 0, "", "", false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return 0, 0, "", "", false
	}
	start, err1 := strconv.ParseUint(addrs[0], 16, 64)
	end, err2 := strconv.ParseUint(addrs[1], 16, 64)
	if err1 != nil || err2 != nil || start > end {
		return 0, 0, "", "", false
	}
	if len(fields) >= 6 {
		// Paths may contain spaces; everything past the inode is the name.
		name = strings.Join(fields[5:], " ")
	}
	return start, end, fields[1], name, true
}

// Linux has no dyld-style shared cache.
func captureSharedCache() SharedCacheInfo {
	return SharedCacheInfo{}
}
