// Gamecard image (.xci) parsing: the card header points at a root HFS0
// partition whose "secure" entry holds the title's content archives.

package switchfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	xciHeaderSize       = 0x200
	xciMagic            = "HEAD"
	xciMagicOffset      = 0x100
	xciRootOffset       = 0x130
	hfs0Magic           = "HFS0"
	hfs0HeaderSize      = 0x10
	hfs0EntrySize       = 0x40
	securePartitionName = "secure"
)

// readXCISecurePartition locates the gamecard's secure HFS0 partition and
// returns its entry table.
func readXCISecurePartition(r io.ReaderAt) (*partition, error) {
	header := make([]byte, xciHeaderSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("failed to read XCI header: %w", err)
	}

	if string(header[xciMagicOffset:xciMagicOffset+4]) != xciMagic {
		return nil, fmt.Errorf("not an XCI file (magic %q)", header[xciMagicOffset:xciMagicOffset+4])
	}

	rootOffset := binary.LittleEndian.Uint64(header[xciRootOffset : xciRootOffset+8])

	root, err := readHFS0(r, int64(rootOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to read root partition: %w", err)
	}

	secure, ok := root.find(securePartitionName)
	if !ok {
		return nil, fmt.Errorf("gamecard image has no %q partition", securePartitionName)
	}

	return readHFS0(r, secure.offset)
}

// readHFS0 parses an HFS0 header at base within r. HFS0 shares the PFS0
// shape but carries a larger, hashed entry record.
func readHFS0(r io.ReaderAt, base int64) (*partition, error) {
	header := make([]byte, hfs0HeaderSize)
	if _, err := r.ReadAt(header, base); err != nil {
		return nil, fmt.Errorf("failed to read HFS0 header: %w", err)
	}

	if string(header[0:4]) != hfs0Magic {
		return nil, fmt.Errorf("not an HFS0 partition (magic %q)", header[0:4])
	}

	fileCount := binary.LittleEndian.Uint32(header[4:8])
	stringTableSize := binary.LittleEndian.Uint32(header[8:12])
	if fileCount > maxPartitionLen || stringTableSize > maxStringTable {
		return nil, fmt.Errorf("implausible HFS0 header (%d files, %d byte string table)", fileCount, stringTableSize)
	}

	entryTable := make([]byte, int(fileCount)*hfs0EntrySize)
	if _, err := r.ReadAt(entryTable, base+hfs0HeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read HFS0 entry table: %w", err)
	}

	stringTable := make([]byte, stringTableSize)
	stringTableOffset := base + hfs0HeaderSize + int64(len(entryTable))
	if _, err := r.ReadAt(stringTable, stringTableOffset); err != nil {
		return nil, fmt.Errorf("failed to read HFS0 string table: %w", err)
	}

	dataOffset := stringTableOffset + int64(stringTableSize)

	p := &partition{entries: make([]partitionEntry, 0, fileCount)}
	for i := 0; i < int(fileCount); i++ {
		raw := entryTable[i*hfs0EntrySize : (i+1)*hfs0EntrySize]
		offset := binary.LittleEndian.Uint64(raw[0:8])
		size := binary.LittleEndian.Uint64(raw[8:16])
		nameOffset := binary.LittleEndian.Uint32(raw[16:20])

		name, err := readTableString(stringTable, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("bad HFS0 entry %d: %w", i, err)
		}

		p.entries = append(p.entries, partitionEntry{
			name:   name,
			offset: dataOffset + int64(offset),
			size:   int64(size),
		})
	}
	return p, nil
}
