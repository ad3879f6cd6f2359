// Package codectest provides in-memory implementations of the codec
// contracts. Resolver tests register canned partitions, metadata records,
// and properties on a fake decoder instead of assembling real package files.
package codectest

import (
	"bytes"
	"errors"

	"github.com/titledock/titledock/internal/codec"
)

// File is an in-memory codec.File.
type File struct {
	FileName string
	Data     []byte
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.Data).ReadAt(p, off)
}
func (f *File) Name() string { return f.FileName }
func (f *File) Size() int64  { return int64(len(f.Data)) }

// Directory is an in-memory codec.Directory.
type Directory struct {
	DirName string
	Entries []codec.File
}

func (d *Directory) Name() string        { return d.DirName }
func (d *Directory) Files() []codec.File { return d.Entries }

// GetFile is case-sensitive, matching the real extracted-filesystem lookup.
func (d *Directory) GetFile(name string) codec.File {
	for _, f := range d.Entries {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Image is an in-memory codec.FilesystemImage.
type Image struct {
	Root codec.Directory // nil means extraction fails
}

func (i *Image) ExtractedRoot() codec.Directory { return i.Root }

// Archive is an in-memory codec.ContentArchive.
type Archive struct {
	ContentKind codec.ContentKind
	Dirs        []codec.Directory
	Image       codec.FilesystemImage
}

func (a *Archive) Kind() codec.ContentKind                { return a.ContentKind }
func (a *Archive) Subdirectories() []codec.Directory      { return a.Dirs }
func (a *Archive) FilesystemImage() codec.FilesystemImage { return a.Image }

// Partition is an in-memory codec.SecurePartition.
type Partition struct {
	Err      error
	Name     string
	Archives []codec.ContentArchive
}

func (p *Partition) Status() error        { return p.Err }
func (p *Partition) DeclaredName() string { return p.Name }
func (p *Partition) CollapsedContentArchives() []codec.ContentArchive {
	return p.Archives
}

// Decoder is a canned-result codec.Decoder. Partitions are looked up by the
// base name of the file being decoded; metadata and properties records by
// the name of the file being parsed.
type Decoder struct {
	Gamecards map[string]codec.SecurePartition
	Packages  map[string]codec.SecurePartition
	Records   map[string]*codec.ContentMetadataRecord
	Props     map[string]*codec.ApplicationProperties
}

// NewDecoder returns an empty fake decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		Gamecards: make(map[string]codec.SecurePartition),
		Packages:  make(map[string]codec.SecurePartition),
		Records:   make(map[string]*codec.ContentMetadataRecord),
		Props:     make(map[string]*codec.ApplicationProperties),
	}
}

func (d *Decoder) DecodeGamecardImage(f codec.File) (codec.SecurePartition, error) {
	p, ok := d.Gamecards[f.Name()]
	if !ok {
		return nil, errors.New("codectest: no gamecard registered for " + f.Name())
	}
	return p, nil
}

func (d *Decoder) DecodeSubmissionPackage(f codec.File) (codec.SecurePartition, error) {
	p, ok := d.Packages[f.Name()]
	if !ok {
		return nil, errors.New("codectest: no package registered for " + f.Name())
	}
	return p, nil
}

func (d *Decoder) ParseContentMetadataRecord(f codec.File) (*codec.ContentMetadataRecord, error) {
	r, ok := d.Records[f.Name()]
	if !ok {
		return nil, errors.New("codectest: no metadata record registered for " + f.Name())
	}
	return r, nil
}

func (d *Decoder) ParseApplicationProperties(f codec.File) (*codec.ApplicationProperties, error) {
	p, ok := d.Props[f.Name()]
	if !ok {
		return nil, errors.New("codectest: no properties registered for " + f.Name())
	}
	return p, nil
}
