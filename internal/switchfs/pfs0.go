// PFS0 is the partition filesystem used by submission packages (.nsp) and
// by the data sections of plaintext content archives.

package switchfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	pfs0Magic       = "PFS0"
	pfs0HeaderSize  = 0x10
	pfs0EntrySize   = 0x18
	mediaUnitSize   = 0x200
	maxStringTable  = 1 << 20
	maxPartitionLen = 0x4000
)

// partitionEntry is one named file inside a PFS0 or HFS0 container, with
// its offset made absolute within the enclosing reader.
type partitionEntry struct {
	name   string
	offset int64
	size   int64
}

// partition is a parsed PFS0/HFS0 entry table.
type partition struct {
	entries []partitionEntry
}

func (p *partition) find(name string) (partitionEntry, bool) {
	for _, e := range p.entries {
		if e.name == name {
			return e, true
		}
	}
	return partitionEntry{}, false
}

// readPFS0 parses a PFS0 header at base within r. Entry offsets in the
// header are relative to the data region following the string table; the
// returned entries are absolute.
func readPFS0(r io.ReaderAt, base int64) (*partition, error) {
	header := make([]byte, pfs0HeaderSize)
	if _, err := r.ReadAt(header, base); err != nil {
		return nil, fmt.Errorf("failed to read PFS0 header: %w", err)
	}

	if string(header[0:4]) != pfs0Magic {
		return nil, fmt.Errorf("not a PFS0 partition (magic %q)", header[0:4])
	}

	fileCount := binary.LittleEndian.Uint32(header[4:8])
	stringTableSize := binary.LittleEndian.Uint32(header[8:12])
	if fileCount > maxPartitionLen || stringTableSize > maxStringTable {
		return nil, fmt.Errorf("implausible PFS0 header (%d files, %d byte string table)", fileCount, stringTableSize)
	}

	entryTable := make([]byte, int(fileCount)*pfs0EntrySize)
	if _, err := r.ReadAt(entryTable, base+pfs0HeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read PFS0 entry table: %w", err)
	}

	stringTable := make([]byte, stringTableSize)
	stringTableOffset := base + pfs0HeaderSize + int64(len(entryTable))
	if _, err := r.ReadAt(stringTable, stringTableOffset); err != nil {
		return nil, fmt.Errorf("failed to read PFS0 string table: %w", err)
	}

	dataOffset := stringTableOffset + int64(stringTableSize)

	p := &partition{entries: make([]partitionEntry, 0, fileCount)}
	for i := 0; i < int(fileCount); i++ {
		raw := entryTable[i*pfs0EntrySize : (i+1)*pfs0EntrySize]
		offset := binary.LittleEndian.Uint64(raw[0:8])
		size := binary.LittleEndian.Uint64(raw[8:16])
		nameOffset := binary.LittleEndian.Uint32(raw[16:20])

		name, err := readTableString(stringTable, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("bad PFS0 entry %d: %w", i, err)
		}

		p.entries = append(p.entries, partitionEntry{
			name:   name,
			offset: dataOffset + int64(offset),
			size:   int64(size),
		})
	}
	return p, nil
}

// readTableString extracts the NUL-terminated name at off.
func readTableString(table []byte, off uint32) (string, error) {
	if int(off) >= len(table) {
		return "", fmt.Errorf("string offset 0x%x outside table", off)
	}
	for end := int(off); end < len(table); end++ {
		if table[end] == 0 {
			return string(table[off:end]), nil
		}
	}
	return "", fmt.Errorf("unterminated string at offset 0x%x", off)
}
