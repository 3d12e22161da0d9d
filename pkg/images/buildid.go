// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package images

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

const ntGNUBuildID = 3

// ReadBuildID extracts the GNU build id note from the ELF object at path.
// Objects built without --build-id return an error.
func ReadBuildID(path string) ([]byte, error) {
	file, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %v: %w", path, err)
	}
	defer file.Close()
	for _, name := range []string{".note.gnu.build-id", ".notes", ".note"} {
		section := file.Section(name)
		if section == nil {
			continue
		}
		data, err := section.Data()
		if err != nil {
			continue
		}
		if id := searchBuildID(data); id != nil {
			return id, nil
		}
	}
	return nil, fmt.Errorf("no build id note in %v", path)
}

// searchBuildID walks a note section's entries looking for NT_GNU_BUILD_ID.
// Entries are namesz/descsz/type words followed by 4-byte-aligned name and
// descriptor blobs.
func searchBuildID(data []byte) []byte {
	for len(data) >= 12 {
		namesz := binary.LittleEndian.Uint32(data[0:])
		descsz := binary.LittleEndian.Uint32(data[4:])
		typ := binary.LittleEndian.Uint32(data[8:])
		data = data[12:]
		if namesz > uint32(len(data)) || descsz > uint32(len(data)) {
			return nil
		}
		nameLen := int(align4(namesz))
		descLen := int(align4(descsz))
		if nameLen+descLen > len(data) {
			return nil
		}
		name := data[:namesz]
		desc := data[nameLen : nameLen+int(descsz)]
		data = data[nameLen+descLen:]
		if typ == ntGNUBuildID && string(name) == "GNU\x00" {
			id := make([]byte, len(desc))
			copy(id, desc)
			return id
		}
	}
	return nil
}

func align4(v uint32) uint32 {
	return (v + 3) &^ 3
}
