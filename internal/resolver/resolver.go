// This file contains the install candidate resolver: the decision logic
// that turns a list of package file paths into labeled, default-selected
// install candidates. Binary format parsing is delegated to a codec.Decoder;
// this package owns the classification and fallback chain only.

package resolver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/titledock/titledock/internal/codec"
	"github.com/titledock/titledock/internal/models"
)

// Resolve failure reasons. Batch resolution swallows these and skips the
// file; callers that track failures (the import scanner) match on them with
// errors.Is.
var (
	ErrUnsupportedFormat   = errors.New("unrecognized package format")
	ErrMalformedPartition  = errors.New("unreadable secure partition")
	ErrMissingMetadata     = errors.New("package carries no content metadata")
	ErrUnsupportedCategory = errors.New("title category is not installable")
)

// propertiesFileNames are the known casings of the application properties
// file inside a Control archive's filesystem image. Producers are
// inconsistent about the leading capital, so the lookup tries each name in
// order and the first hit wins.
var propertiesFileNames = []string{"control.nacp", "Control.nacp"}

// Resolver resolves package files into install candidates using an injected
// format codec.
type Resolver struct {
	dec codec.Decoder
}

// New creates a new Resolver backed by the given codec.
func New(dec codec.Decoder) *Resolver {
	return &Resolver{dec: dec}
}

// Resolution is the full result for a single accepted file. IconData carries
// the raw icon bytes from the Control archive's filesystem image, when one
// exists; callers that only need the candidate can ignore it.
type Resolution struct {
	Candidate models.InstallCandidate
	IconData  []byte
}

// packageContainer is the classified form of an input file. The variant set
// is closed: either a raw content archive trusted as-is, or a secure
// partition from a submission package or gamecard image.
type packageContainer struct {
	raw       bool
	path      string
	partition codec.SecurePartition
}

// ResolveCandidates resolves each input path into at most one install
// candidate. The output preserves the relative order of the input; paths
// that fail any check are silently omitted and never abort the batch.
func (r *Resolver) ResolveCandidates(paths []string) []models.InstallCandidate {
	candidates := make([]models.InstallCandidate, 0, len(paths))
	for _, path := range paths {
		res, err := r.Resolve(path)
		if err != nil {
			continue
		}
		candidates = append(candidates, res.Candidate)
	}
	return candidates
}

// Resolve processes a single file. It returns an error whenever the file is
// unreadable, has an unrecognized suffix, or fails any stage of metadata
// extraction; there are no partial results.
func (r *Resolver) Resolve(path string) (*Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	container, err := r.classify(path, &osFile{file: f, size: info.Size()})
	if err != nil {
		return nil, err
	}
	return r.extract(container)
}

// classify dispatches on the filename suffix, case-insensitively. Raw
// content archives are wrapped directly with no decoding; gamecard images
// and submission packages are decoded to their secure partition. Anything
// else is skipped.
func (r *Resolver) classify(path string, f codec.File) (*packageContainer, error) {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, "nca"):
		return &packageContainer{raw: true, path: path}, nil

	case strings.HasSuffix(lower, "xci"):
		partition, err := r.dec.DecodeGamecardImage(f)
		if err != nil || partition == nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPartition, err)
		}
		return &packageContainer{path: path, partition: partition}, nil

	case strings.HasSuffix(lower, "nsp"):
		partition, err := r.dec.DecodeSubmissionPackage(f)
		if err != nil || partition == nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPartition, err)
		}
		return &packageContainer{path: path, partition: partition}, nil

	default:
		return nil, ErrUnsupportedFormat
	}
}

// extract produces the install candidate for a classified container, or an
// error when any required metadata is missing.
func (r *Resolver) extract(c *packageContainer) (*Resolution, error) {
	// Raw archives are accepted on trust: the label is the file name and no
	// metadata decoding is attempted.
	if c.raw {
		return &Resolution{
			Candidate: models.InstallCandidate{
				Path:     c.path,
				Label:    filepath.Base(c.path),
				Selected: true,
			},
		}, nil
	}

	// A partition that failed to parse is skipped entirely; no partial
	// label is ever produced.
	if err := c.partition.Status(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPartition, err)
	}

	archives := c.partition.CollapsedContentArchives()

	var meta, control codec.ContentArchive
	for _, archive := range archives {
		switch archive.Kind() {
		case codec.KindMeta:
			if meta == nil {
				meta = archive
			}
		case codec.KindControl:
			if control == nil {
				control = archive
			}
		}
	}

	if meta == nil {
		return nil, ErrMissingMetadata
	}

	record := r.contentMetadata(meta)
	if record == nil {
		return nil, ErrMissingMetadata
	}

	category := titleCategory(record.TitleType)
	if category == "" {
		return nil, ErrUnsupportedCategory
	}

	// The Control archive is optional; only its presence enables the
	// properties-based label and the icon.
	var props *codec.ApplicationProperties
	var icon []byte
	if control != nil {
		props, icon = r.applicationProperties(control)
	}

	candidate := models.InstallCandidate{
		Path:     c.path,
		Label:    formatLabel(c.partition.DeclaredName(), record, category, props),
		Category: category,
		Selected: true,
	}

	return &Resolution{Candidate: candidate, IconData: icon}, nil
}

// contentMetadata decodes the content metadata record from a Meta archive:
// the archive must expose at least one subdirectory, and that subdirectory's
// first file is parsed as the record.
func (r *Resolver) contentMetadata(meta codec.ContentArchive) *codec.ContentMetadataRecord {
	subdirs := meta.Subdirectories()
	if len(subdirs) == 0 {
		return nil
	}

	files := subdirs[0].Files()
	if len(files) == 0 {
		return nil
	}

	record, err := r.dec.ParseContentMetadataRecord(files[0])
	if err != nil {
		return nil
	}
	return record
}

// applicationProperties decodes the application properties from a Control
// archive's embedded filesystem image, along with the title icon stored
// next to them. Every failing step yields nil rather than aborting the
// candidate.
func (r *Resolver) applicationProperties(control codec.ContentArchive) (*codec.ApplicationProperties, []byte) {
	img := control.FilesystemImage()
	if img == nil {
		return nil, nil
	}

	root := img.ExtractedRoot()
	if root == nil {
		return nil, nil
	}

	for _, name := range propertiesFileNames {
		f := root.GetFile(name)
		if f == nil {
			continue
		}
		props, err := r.dec.ParseApplicationProperties(f)
		if err != nil {
			return nil, nil
		}
		return props, readIcon(root)
	}
	return nil, nil
}

// readIcon returns the first per-language icon stored in the extracted
// filesystem root, or nil when the title ships none.
func readIcon(root codec.Directory) []byte {
	for _, f := range root.Files() {
		name := f.Name()
		if !strings.HasPrefix(name, "icon_") || !strings.HasSuffix(name, ".dat") {
			continue
		}
		data := make([]byte, f.Size())
		if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil
		}
		return data
	}
	return nil
}

// titleCategory maps a title type to its install category string. Only
// Update and AddOnContent are recognized; anything else (notably base
// Application titles found inside a submission package or gamecard image)
// maps to "", which drops the candidate. Raw .nca files never reach this
// check, so they are listed unconditionally while base-game NSP/XCI files
// are not. That asymmetry is preserved from the original install flow.
func titleCategory(t codec.TitleType) string {
	switch t {
	case codec.TitleTypeUpdate:
		return "Update"
	case codec.TitleTypeAddOnContent:
		return "DLC"
	default:
		return ""
	}
}

// formatLabel builds the display label. The two forms are mutually
// exclusive: decoded application properties always win over the container's
// declared name.
func formatLabel(declaredName string, record *codec.ContentMetadataRecord, category string, props *codec.ApplicationProperties) string {
	if props != nil {
		return fmt.Sprintf("%s (%s) (%s)", props.ApplicationName, category, props.VersionString)
	}
	return fmt.Sprintf("%s (%s) (v%d)", declaredName, category, record.TitleVersion)
}

// ConfirmedPaths filters a caller-toggled candidate list down to the paths
// that are still selected, preserving order.
func ConfirmedPaths(candidates []models.InstallCandidate) []string {
	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Selected {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// osFile adapts an *os.File to the codec.File contract.
type osFile struct {
	file *os.File
	size int64
}

func (f *osFile) ReadAt(p []byte, off int64) (int, error) { return f.file.ReadAt(p, off) }
func (f *osFile) Name() string                            { return filepath.Base(f.file.Name()) }
func (f *osFile) Size() int64                             { return f.size }
