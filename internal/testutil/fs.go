// Test fixture builders that assemble real plaintext package files byte by
// byte, so format and resolver tests run against the actual on-disk codec.

package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Content meta type values as stored in CNMT headers.
const (
	MetaTypeApplication  = 0x80
	MetaTypePatch        = 0x81
	MetaTypeAddOnContent = 0x82
)

// Entry is one named file inside a built container or filesystem.
type Entry struct {
	Name string
	Data []byte
}

// BuildCNMT builds a minimal packaged content metadata record.
func BuildCNMT(titleID uint64, version uint32, metaType byte) []byte {
	raw := make([]byte, 0x20)
	binary.LittleEndian.PutUint64(raw[0:8], titleID)
	binary.LittleEndian.PutUint32(raw[8:12], version)
	raw[0xC] = metaType
	return raw
}

// BuildNACP builds an application properties record with the name in the
// first language entry and the given display version.
func BuildNACP(name, version string) []byte {
	raw := make([]byte, 0x4000)
	copy(raw[0:0x200], name)
	copy(raw[0x3060:0x3070], version)
	return raw
}

// BuildPFS0 assembles a PFS0 container image from the given entries.
func BuildPFS0(entries []Entry) []byte {
	var stringTable bytes.Buffer
	nameOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		nameOffsets[i] = uint32(stringTable.Len())
		stringTable.WriteString(e.Name)
		stringTable.WriteByte(0)
	}

	var buf bytes.Buffer
	buf.WriteString("PFS0")
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&buf, binary.LittleEndian, uint32(stringTable.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	var dataOffset uint64
	for i, e := range entries {
		binary.Write(&buf, binary.LittleEndian, dataOffset)
		binary.Write(&buf, binary.LittleEndian, uint64(len(e.Data)))
		binary.Write(&buf, binary.LittleEndian, nameOffsets[i])
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		dataOffset += uint64(len(e.Data))
	}

	buf.Write(stringTable.Bytes())
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// BuildHFS0 assembles an HFS0 container image (the gamecard partition
// format; like PFS0 but with 0x40-byte hashed entries).
func BuildHFS0(entries []Entry) []byte {
	var stringTable bytes.Buffer
	nameOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		nameOffsets[i] = uint32(stringTable.Len())
		stringTable.WriteString(e.Name)
		stringTable.WriteByte(0)
	}

	var buf bytes.Buffer
	buf.WriteString("HFS0")
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&buf, binary.LittleEndian, uint32(stringTable.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	var dataOffset uint64
	for i, e := range entries {
		entry := make([]byte, 0x40)
		binary.LittleEndian.PutUint64(entry[0:8], dataOffset)
		binary.LittleEndian.PutUint64(entry[8:16], uint64(len(e.Data)))
		binary.LittleEndian.PutUint32(entry[16:20], nameOffsets[i])
		buf.Write(entry)
		dataOffset += uint64(len(e.Data))
	}

	buf.Write(stringTable.Bytes())
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// BuildRomFS assembles a single-directory RomFS image whose root contains
// the given files.
func BuildRomFS(files []Entry) []byte {
	const headerSize = 0x50
	const none = 0xFFFFFFFF

	// Root directory entry only.
	dirTable := make([]byte, 0x18)
	binary.LittleEndian.PutUint32(dirTable[0x4:0x8], none)  // sibling
	binary.LittleEndian.PutUint32(dirTable[0x8:0xC], none)  // child dir
	binary.LittleEndian.PutUint32(dirTable[0x10:0x14], none) // hash next
	if len(files) == 0 {
		binary.LittleEndian.PutUint32(dirTable[0xC:0x10], none)
	}

	var fileTable bytes.Buffer
	var data bytes.Buffer
	for i, f := range files {
		entry := make([]byte, 0x20)
		if i+1 < len(files) {
			next := uint32(fileTable.Len() + 0x20 + len(f.Name))
			binary.LittleEndian.PutUint32(entry[0x4:0x8], next)
		} else {
			binary.LittleEndian.PutUint32(entry[0x4:0x8], none)
		}
		binary.LittleEndian.PutUint64(entry[0x8:0x10], uint64(data.Len()))
		binary.LittleEndian.PutUint64(entry[0x10:0x18], uint64(len(f.Data)))
		binary.LittleEndian.PutUint32(entry[0x18:0x1C], none)
		binary.LittleEndian.PutUint32(entry[0x1C:0x20], uint32(len(f.Name)))
		fileTable.Write(entry)
		fileTable.WriteString(f.Name)
		data.Write(f.Data)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0x0:0x8], headerSize)
	binary.LittleEndian.PutUint64(header[0x18:0x20], headerSize)                           // dir table offset
	binary.LittleEndian.PutUint64(header[0x20:0x28], uint64(len(dirTable)))                // dir table size
	binary.LittleEndian.PutUint64(header[0x38:0x40], uint64(headerSize+len(dirTable)))     // file table offset
	binary.LittleEndian.PutUint64(header[0x40:0x48], uint64(fileTable.Len()))              // file table size
	binary.LittleEndian.PutUint64(header[0x48:0x50], uint64(headerSize+len(dirTable)+fileTable.Len()))

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(dirTable)
	buf.Write(fileTable.Bytes())
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// ncaSection describes one section payload of a built content archive.
type ncaSection struct {
	fsType  byte // 0 RomFS, 1 PartitionFS
	payload []byte
}

// buildNCA assembles a plaintext content archive. Section payloads are
// placed at media-unit-aligned offsets after the 0xC00 byte header block.
func buildNCA(contentType byte, programID uint64, sections []ncaSection) []byte {
	const headerBlock = 0xC00
	const mediaUnit = 0x200

	total := headerBlock
	offsets := make([]int, len(sections))
	for i, s := range sections {
		offsets[i] = total
		padded := (len(s.payload) + mediaUnit - 1) / mediaUnit * mediaUnit
		total += padded
	}

	raw := make([]byte, total)
	copy(raw[0x200:0x204], "NCA3")
	raw[0x205] = contentType
	binary.LittleEndian.PutUint64(raw[0x210:0x218], programID)

	for i, s := range sections {
		start := offsets[i]
		end := start + (len(s.payload)+mediaUnit-1)/mediaUnit*mediaUnit

		// Section table entry: media unit start/end.
		entry := raw[0x240+i*0x10:]
		binary.LittleEndian.PutUint32(entry[0:4], uint32(start/mediaUnit))
		binary.LittleEndian.PutUint32(entry[4:8], uint32(end/mediaUnit))

		// Filesystem header.
		fsHeader := raw[0x400+i*0x200:]
		fsHeader[2] = s.fsType
		fsHeader[4] = 1 // no encryption
		if s.fsType == 1 {
			// Hierarchical SHA-256 superblock: two layers, the second is
			// the partition itself at the start of the section.
			binary.LittleEndian.PutUint32(fsHeader[0x8+0x24:], 2)
			layer1 := fsHeader[0x8+0x28+0x10:]
			binary.LittleEndian.PutUint64(layer1[0:8], 0)
			binary.LittleEndian.PutUint64(layer1[8:16], uint64(len(s.payload)))
		} else {
			// IVFC superblock: one level at the start of the section.
			copy(fsHeader[0x8:0xC], "IVFC")
			binary.LittleEndian.PutUint32(fsHeader[0x8+0xC:], 1)
			level := fsHeader[0x8+0x10:]
			binary.LittleEndian.PutUint64(level[0:8], 0)
			binary.LittleEndian.PutUint64(level[8:16], uint64(len(s.payload)))
		}

		copy(raw[start:], s.payload)
	}

	return raw
}

// BuildMetaNCA builds a Meta content archive whose first section is a
// partition holding the packaged CNMT record.
func BuildMetaNCA(titleID uint64, version uint32, metaType byte) []byte {
	cnmt := BuildCNMT(titleID, version, metaType)
	section := BuildPFS0([]Entry{{Name: "title.cnmt", Data: cnmt}})
	return buildNCA(1, titleID, []ncaSection{{fsType: 1, payload: section}})
}

// BuildControlNCA builds a Control content archive whose RomFS holds the
// given root files (typically control.nacp and an icon).
func BuildControlNCA(titleID uint64, files []Entry) []byte {
	return BuildControlNCAFromImage(titleID, BuildRomFS(files))
}

// BuildControlNCAFromImage builds a Control content archive around a
// caller-supplied RomFS image, which may be deliberately corrupt.
func BuildControlNCAFromImage(titleID uint64, image []byte) []byte {
	return buildNCA(2, titleID, []ncaSection{{fsType: 0, payload: image}})
}

// WriteNSP writes a submission package containing the given entries and
// returns its path.
func WriteNSP(t *testing.T, dir, name string, entries []Entry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildPFS0(entries), 0o644); err != nil {
		t.Fatalf("Failed to write test NSP %s: %v", name, err)
	}
	return path
}

// BuildXCI assembles a gamecard image whose secure partition contains the
// given entries.
func BuildXCI(entries []Entry) []byte {
	secure := BuildHFS0(entries)
	root := BuildHFS0([]Entry{{Name: "secure", Data: secure}})

	header := make([]byte, 0x200)
	copy(header[0x100:0x104], "HEAD")
	binary.LittleEndian.PutUint64(header[0x130:0x138], 0x200)
	return append(header, root...)
}

// WriteXCI writes a gamecard image whose secure partition contains the
// given entries and returns its path.
func WriteXCI(t *testing.T, dir, name string, entries []Entry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildXCI(entries), 0o644); err != nil {
		t.Fatalf("Failed to write test XCI %s: %v", name, err)
	}
	return path
}

// WriteUpdateNSP writes a complete update package with Meta and Control
// archives, labeled with the given application name and display version.
func WriteUpdateNSP(t *testing.T, dir, name string, titleID uint64, titleVersion uint32, appName, displayVersion string) string {
	t.Helper()
	meta := BuildMetaNCA(titleID, titleVersion, MetaTypePatch)
	control := BuildControlNCA(titleID, []Entry{
		{Name: "control.nacp", Data: BuildNACP(appName, displayVersion)},
	})
	return WriteNSP(t, dir, name, []Entry{
		{Name: "meta.cnmt.nca", Data: meta},
		{Name: "control.nca", Data: control},
	})
}
