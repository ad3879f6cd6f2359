// Plaintext content archive (.nca) parsing. Only unencrypted archives are
// supported: there is no key material in this codebase, so an archive whose
// header magic is unreadable is reported as encrypted and the enclosing
// partition fails its status check.

package switchfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/titledock/titledock/internal/codec"
)

// ErrEncrypted marks content archives this codec cannot read.
var ErrEncrypted = errors.New("content archive is encrypted or corrupt")

const (
	ncaHeaderSize       = 0x400
	ncaMagicOffset      = 0x200
	ncaContentType      = 0x205
	ncaProgramID        = 0x210
	ncaSectionTable     = 0x240
	ncaSectionEntrySize = 0x10
	ncaSectionCount     = 4
	ncaFsHeaderBase     = 0x400
	ncaFsHeaderSize     = 0x200

	fsTypeRomFS       = 0
	fsTypePartitionFS = 1
)

// contentArchive is a parsed plaintext NCA.
type contentArchive struct {
	name      string
	kind      codec.ContentKind
	programID uint64
	dirs      []codec.Directory
	image     codec.FilesystemImage
}

func (a *contentArchive) Kind() codec.ContentKind                { return a.kind }
func (a *contentArchive) Subdirectories() []codec.Directory      { return a.dirs }
func (a *contentArchive) FilesystemImage() codec.FilesystemImage { return a.image }

// parseNCA reads the archive at base within r. size is the archive's length
// in the enclosing partition; section offsets are validated against it.
func parseNCA(r io.ReaderAt, base int64, size int64, name string) (*contentArchive, error) {
	region := io.NewSectionReader(r, base, size)

	header := make([]byte, ncaHeaderSize)
	if _, err := region.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("failed to read NCA header of %s: %w", name, err)
	}

	magic := string(header[ncaMagicOffset : ncaMagicOffset+4])
	if magic != "NCA3" && magic != "NCA2" {
		return nil, fmt.Errorf("%s: %w", name, ErrEncrypted)
	}

	archive := &contentArchive{
		name:      name,
		kind:      contentKind(header[ncaContentType]),
		programID: binary.LittleEndian.Uint64(header[ncaProgramID : ncaProgramID+8]),
	}

	for i := 0; i < ncaSectionCount; i++ {
		entry := header[ncaSectionTable+i*ncaSectionEntrySize:]
		mediaStart := binary.LittleEndian.Uint32(entry[0:4])
		mediaEnd := binary.LittleEndian.Uint32(entry[4:8])
		if mediaStart == 0 && mediaEnd == 0 {
			continue
		}

		if err := archive.parseSection(region, i, int64(mediaStart)*mediaUnitSize); err != nil {
			return nil, fmt.Errorf("%s section %d: %w", name, i, err)
		}
	}

	return archive, nil
}

// parseSection decodes one filesystem section. Partition sections become
// listable subdirectories; the first RomFS section becomes the archive's
// filesystem image.
func (a *contentArchive) parseSection(region *io.SectionReader, index int, sectionStart int64) error {
	fsHeader := make([]byte, ncaFsHeaderSize)
	if _, err := region.ReadAt(fsHeader, int64(ncaFsHeaderBase+index*ncaFsHeaderSize)); err != nil {
		return fmt.Errorf("failed to read filesystem header: %w", err)
	}

	fsType := fsHeader[2]
	encryptionType := fsHeader[4]
	if encryptionType > 1 {
		return ErrEncrypted
	}

	switch fsType {
	case fsTypePartitionFS:
		offset, _ := lastLayerRegion(fsHeader)
		pfs, err := readPFS0(region, sectionStart+offset)
		if err != nil {
			return err
		}

		dir := &sectionDirectory{name: fmt.Sprintf("section%d", index)}
		for _, e := range pfs.entries {
			dir.files = append(dir.files, &archiveFile{
				r:      region,
				name:   e.name,
				offset: e.offset,
				size:   e.size,
			})
		}
		a.dirs = append(a.dirs, dir)

	case fsTypeRomFS:
		if a.image != nil {
			return nil
		}
		offset, err := ivfcDataRegion(fsHeader)
		if err != nil {
			return err
		}
		a.image = &romfsImage{r: region, base: sectionStart + offset}

	default:
		return fmt.Errorf("unknown section filesystem type %d", fsType)
	}
	return nil
}

// lastLayerRegion returns the data layer of a hierarchical SHA-256
// superblock: the hash layers come first, the final layer is the partition
// itself. Offsets are relative to the section start.
func lastLayerRegion(fsHeader []byte) (offset, size int64) {
	// Superblock at +0x8: 0x20 byte master hash, u32 block size, u32 layer
	// count, then per-layer {u64 offset, u64 size}.
	const superblock = 0x8
	layerCount := binary.LittleEndian.Uint32(fsHeader[superblock+0x24 : superblock+0x28])
	if layerCount == 0 || layerCount > 6 {
		return 0, 0
	}
	layer := fsHeader[superblock+0x28+(layerCount-1)*0x10:]
	offset = int64(binary.LittleEndian.Uint64(layer[0:8]))
	size = int64(binary.LittleEndian.Uint64(layer[8:16]))
	return offset, size
}

// ivfcDataRegion returns the RomFS data level of an IVFC superblock: the
// last hash level holds the actual filesystem. Offsets are relative to the
// section start.
func ivfcDataRegion(fsHeader []byte) (int64, error) {
	const superblock = 0x8
	if string(fsHeader[superblock:superblock+4]) != "IVFC" {
		return 0, fmt.Errorf("RomFS section has no IVFC superblock (magic %q)", fsHeader[superblock:superblock+4])
	}
	levelCount := binary.LittleEndian.Uint32(fsHeader[superblock+0xC : superblock+0x10])
	if levelCount == 0 || levelCount > 6 {
		return 0, fmt.Errorf("implausible IVFC level count %d", levelCount)
	}
	// Levels at +0x10, each {u64 offset, u64 size, u32 block size, u32
	// reserved}; the final level is the data region.
	level := fsHeader[superblock+0x10+(levelCount-1)*0x18:]
	return int64(binary.LittleEndian.Uint64(level[0:8])), nil
}

// contentKind maps the raw header byte to a ContentKind.
func contentKind(raw byte) codec.ContentKind {
	switch raw {
	case 0:
		return codec.KindProgram
	case 1:
		return codec.KindMeta
	case 2:
		return codec.KindControl
	case 3:
		return codec.KindManual
	case 4:
		return codec.KindData
	default:
		return codec.KindPublicData
	}
}

// archiveFile is a file entry backed by a region of the package file.
type archiveFile struct {
	r      io.ReaderAt
	name   string
	offset int64
	size   int64
}

func (f *archiveFile) Name() string { return f.name }
func (f *archiveFile) Size() int64  { return f.size }

func (f *archiveFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > f.size {
		return 0, io.EOF
	}
	max := f.size - off
	if int64(len(p)) > max {
		n, err := f.r.ReadAt(p[:max], f.offset+off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return f.r.ReadAt(p, f.offset+off)
}

// sectionDirectory is a flat, listable directory of section files.
type sectionDirectory struct {
	name  string
	files []codec.File
}

func (d *sectionDirectory) Name() string        { return d.name }
func (d *sectionDirectory) Files() []codec.File { return d.files }

func (d *sectionDirectory) GetFile(name string) codec.File {
	for _, f := range d.files {
		if f.Name() == name {
			return f
		}
	}
	return nil
}
