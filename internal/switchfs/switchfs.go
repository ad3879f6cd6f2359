// Package switchfs is the on-disk format codec: it parses submission
// packages (.nsp) and gamecard images (.xci) built from plaintext content
// archives and exposes them through the codec contracts. Encrypted archives
// are detected and surfaced as a partition status error; this package
// carries no key material and performs no decryption.
package switchfs

import (
	"io"
	"strings"

	"github.com/titledock/titledock/internal/codec"
)

// Decoder implements codec.Decoder for plaintext packages.
type Decoder struct{}

// NewDecoder returns the on-disk format decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) DecodeSubmissionPackage(f codec.File) (codec.SecurePartition, error) {
	p, err := readPFS0(f, 0)
	if err != nil {
		return nil, err
	}
	return newSecurePartition(f, declaredName(f.Name()), p), nil
}

func (d *Decoder) DecodeGamecardImage(f codec.File) (codec.SecurePartition, error) {
	p, err := readXCISecurePartition(f)
	if err != nil {
		return nil, err
	}
	return newSecurePartition(f, declaredName(f.Name()), p), nil
}

func (d *Decoder) ParseContentMetadataRecord(f codec.File) (*codec.ContentMetadataRecord, error) {
	return parseCNMT(f)
}

func (d *Decoder) ParseApplicationProperties(f codec.File) (*codec.ApplicationProperties, error) {
	return parseNACP(f)
}

// securePartition implements codec.SecurePartition over a parsed container.
type securePartition struct {
	name     string
	err      error
	archives []*contentArchive
}

// newSecurePartition decodes every content archive in the container. A
// single undecodable archive (encrypted, truncated) marks the whole
// partition as failed; the resolver's status check then skips the file.
func newSecurePartition(r io.ReaderAt, name string, p *partition) *securePartition {
	sp := &securePartition{name: name}
	for _, e := range p.entries {
		if !strings.HasSuffix(strings.ToLower(e.name), ".nca") {
			continue
		}
		archive, err := parseNCA(r, e.offset, e.size, e.name)
		if err != nil {
			sp.err = err
			return sp
		}
		sp.archives = append(sp.archives, archive)
	}
	return sp
}

func (sp *securePartition) Status() error        { return sp.err }
func (sp *securePartition) DeclaredName() string { return sp.name }

// CollapsedContentArchives de-duplicates to one authoritative archive per
// (title, kind) pair. Later entries override earlier ones, so patched
// content replaces the base entry it shadows; the order of first appearance
// is preserved.
func (sp *securePartition) CollapsedContentArchives() []codec.ContentArchive {
	type key struct {
		id   uint64
		kind codec.ContentKind
	}

	index := make(map[key]int)
	collapsed := make([]codec.ContentArchive, 0, len(sp.archives))
	for _, a := range sp.archives {
		k := key{id: a.programID, kind: a.kind}
		if at, ok := index[k]; ok {
			collapsed[at] = a
			continue
		}
		index[k] = len(collapsed)
		collapsed = append(collapsed, a)
	}
	return collapsed
}

// declaredName strips the container extension from a file name.
func declaredName(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i > 0 {
		return fileName[:i]
	}
	return fileName
}
