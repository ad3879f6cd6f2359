// RomFS parsing, limited to what the resolver needs: listing the extracted
// root directory and looking up files in it by exact name.

package switchfs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/titledock/titledock/internal/codec"
)

const (
	romfsHeaderSize = 0x50
	romfsNone       = 0xFFFFFFFF

	maxTableSize = 8 << 20
)

// romfsImage is a lazily-parsed filesystem image. ExtractedRoot returns nil
// when the image cannot be parsed, which the resolver treats as "no
// properties" rather than a fatal condition.
type romfsImage struct {
	r    io.ReaderAt
	base int64
}

func (i *romfsImage) ExtractedRoot() codec.Directory {
	root, err := readRomFSRoot(i.r, i.base)
	if err != nil {
		return nil
	}
	return root
}

// readRomFSRoot parses the RomFS header and directory/file tables at base
// and materializes the root directory.
func readRomFSRoot(r io.ReaderAt, base int64) (codec.Directory, error) {
	header := make([]byte, romfsHeaderSize)
	if _, err := r.ReadAt(header, base); err != nil {
		return nil, fmt.Errorf("failed to read RomFS header: %w", err)
	}

	dirTableOffset := int64(binary.LittleEndian.Uint64(header[0x18:0x20]))
	dirTableSize := binary.LittleEndian.Uint64(header[0x20:0x28])
	fileTableOffset := int64(binary.LittleEndian.Uint64(header[0x38:0x40]))
	fileTableSize := binary.LittleEndian.Uint64(header[0x40:0x48])
	dataOffset := int64(binary.LittleEndian.Uint64(header[0x48:0x50]))

	if dirTableSize > maxTableSize || fileTableSize > maxTableSize {
		return nil, fmt.Errorf("implausible RomFS table sizes (%d/%d)", dirTableSize, fileTableSize)
	}

	dirTable := make([]byte, dirTableSize)
	if _, err := r.ReadAt(dirTable, base+dirTableOffset); err != nil {
		return nil, fmt.Errorf("failed to read RomFS directory table: %w", err)
	}

	fileTable := make([]byte, fileTableSize)
	if _, err := r.ReadAt(fileTable, base+fileTableOffset); err != nil {
		return nil, fmt.Errorf("failed to read RomFS file table: %w", err)
	}

	// Root directory entry sits at offset 0 of the directory table:
	// {u32 parent, u32 sibling, u32 child dir, u32 child file, u32 hash
	// next, u32 name length, name}.
	if len(dirTable) < 0x18 {
		return nil, fmt.Errorf("RomFS directory table too small (%d bytes)", len(dirTable))
	}
	firstFile := binary.LittleEndian.Uint32(dirTable[0xC:0x10])

	root := &sectionDirectory{name: ""}

	// Walk the root directory's file chain. File entry: {u32 parent, u32
	// sibling, u64 data offset, u64 size, u32 hash next, u32 name length,
	// name}. The chain must terminate within the table; a sibling pointer
	// that revisits an entry is a corrupt image, not a longer listing.
	visited := make(map[uint32]bool)
	for cursor := firstFile; cursor != romfsNone; {
		if visited[cursor] {
			return nil, fmt.Errorf("RomFS file chain loops at 0x%x", cursor)
		}
		visited[cursor] = true
		if int(cursor)+0x20 > len(fileTable) {
			return nil, fmt.Errorf("RomFS file entry 0x%x outside table", cursor)
		}
		entry := fileTable[cursor:]
		sibling := binary.LittleEndian.Uint32(entry[0x4:0x8])
		fileDataOffset := int64(binary.LittleEndian.Uint64(entry[0x8:0x10]))
		fileSize := int64(binary.LittleEndian.Uint64(entry[0x10:0x18]))
		nameLen := binary.LittleEndian.Uint32(entry[0x1C:0x20])

		if int(cursor)+0x20+int(nameLen) > len(fileTable) {
			return nil, fmt.Errorf("RomFS file name at 0x%x outside table", cursor)
		}
		name := string(entry[0x20 : 0x20+nameLen])

		root.files = append(root.files, &archiveFile{
			r:      r,
			name:   name,
			offset: base + dataOffset + fileDataOffset,
			size:   fileSize,
		})

		cursor = sibling
	}

	return root, nil
}
