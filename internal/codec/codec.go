// Package codec defines the contracts the install candidate resolver needs
// from a Switch package format decoder. The resolver only ever talks to
// these interfaces, so its decision logic can be tested against in-memory
// fakes while the real on-disk parser lives in internal/switchfs.
package codec

import "io"

// ContentKind tags a content archive with the kind of data it carries.
type ContentKind int

const (
	KindProgram ContentKind = iota
	KindMeta
	KindControl
	KindManual
	KindData
	KindPublicData
)

func (k ContentKind) String() string {
	switch k {
	case KindProgram:
		return "Program"
	case KindMeta:
		return "Meta"
	case KindControl:
		return "Control"
	case KindManual:
		return "Manual"
	case KindData:
		return "Data"
	case KindPublicData:
		return "PublicData"
	default:
		return "Unknown"
	}
}

// TitleType is the category a content metadata record declares for its title.
type TitleType int

const (
	TitleTypeUnknown TitleType = iota
	TitleTypeSystemProgram
	TitleTypeSystemData
	TitleTypeSystemUpdate
	TitleTypeFirmwarePackageA
	TitleTypeFirmwarePackageB
	TitleTypeApplication
	TitleTypeUpdate
	TitleTypeAddOnContent
	TitleTypeDeltaTitle
)

func (t TitleType) String() string {
	switch t {
	case TitleTypeApplication:
		return "Application"
	case TitleTypeUpdate:
		return "Update"
	case TitleTypeAddOnContent:
		return "AddOnContent"
	case TitleTypeDeltaTitle:
		return "DeltaTitle"
	default:
		return "Unknown"
	}
}

// ContentMetadataRecord is the decoded CNMT record from a Meta archive.
type ContentMetadataRecord struct {
	TitleID      uint64
	TitleVersion uint32
	TitleType    TitleType
}

// ApplicationProperties is the decoded NACP record from a Control archive's
// filesystem image.
type ApplicationProperties struct {
	ApplicationName string
	VersionString   string
}

// File is a single readable entry inside a container or filesystem image.
type File interface {
	io.ReaderAt
	Name() string
	Size() int64
}

// Directory is a listable directory of files. GetFile returns nil when no
// entry with that exact name exists; lookups are case-sensitive.
type Directory interface {
	Name() string
	Files() []File
	GetFile(name string) File
}

// FilesystemImage is an embedded filesystem (RomFS) carried by a content
// archive. ExtractedRoot returns nil when the image cannot be extracted.
type FilesystemImage interface {
	ExtractedRoot() Directory
}

// ContentArchive is one decoded content archive (NCA) unit.
type ContentArchive interface {
	Kind() ContentKind
	// Subdirectories lists the archive's decoded sections as directories.
	Subdirectories() []Directory
	// FilesystemImage returns the archive's embedded RomFS, or nil.
	FilesystemImage() FilesystemImage
}

// SecurePartition is the logical container holding the content archives of
// one title, from a submission package or a gamecard image.
type SecurePartition interface {
	// Status reports whether the partition parsed successfully. A non-nil
	// status means the whole container must be skipped.
	Status() error
	// DeclaredName is the container's own name, used as the label fallback.
	DeclaredName() string
	// CollapsedContentArchives lists content archives de-duplicated to one
	// authoritative entry per logical content unit.
	CollapsedContentArchives() []ContentArchive
}

// Decoder is the format codec boundary. Implementations parse the binary
// container formats; the resolver drives them and owns the fallback logic.
type Decoder interface {
	// DecodeGamecardImage parses an XCI file and returns its embedded
	// secure partition.
	DecodeGamecardImage(f File) (SecurePartition, error)
	// DecodeSubmissionPackage parses an NSP file as a secure partition.
	DecodeSubmissionPackage(f File) (SecurePartition, error)
	// ParseContentMetadataRecord decodes a CNMT file.
	ParseContentMetadataRecord(f File) (*ContentMetadataRecord, error)
	// ParseApplicationProperties decodes a NACP file.
	ParseApplicationProperties(f File) (*ApplicationProperties, error)
}
