// Content metadata (CNMT) record parsing.

package switchfs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/titledock/titledock/internal/codec"
)

const cnmtHeaderSize = 0x20

// Raw content meta type values as stored in the CNMT header.
const (
	rawTypeSystemProgram = 0x01
	rawTypeSystemData    = 0x02
	rawTypeSystemUpdate  = 0x03
	rawTypeApplication   = 0x80
	rawTypePatch         = 0x81
	rawTypeAddOnContent  = 0x82
	rawTypeDelta         = 0x83
)

// parseCNMT decodes the fixed header of a packaged content metadata record:
// {u64 title id, u32 title version, u8 meta type, ...}.
func parseCNMT(f codec.File) (*codec.ContentMetadataRecord, error) {
	header := make([]byte, cnmtHeaderSize)
	if n, err := f.ReadAt(header, 0); err != nil && err != io.EOF || n < 0x10 {
		return nil, fmt.Errorf("failed to read CNMT header of %s: short read (%d bytes)", f.Name(), n)
	}

	return &codec.ContentMetadataRecord{
		TitleID:      binary.LittleEndian.Uint64(header[0:8]),
		TitleVersion: binary.LittleEndian.Uint32(header[8:12]),
		TitleType:    titleType(header[0xC]),
	}, nil
}

func titleType(raw byte) codec.TitleType {
	switch raw {
	case rawTypeSystemProgram:
		return codec.TitleTypeSystemProgram
	case rawTypeSystemData:
		return codec.TitleTypeSystemData
	case rawTypeSystemUpdate:
		return codec.TitleTypeSystemUpdate
	case rawTypeApplication:
		return codec.TitleTypeApplication
	case rawTypePatch:
		return codec.TitleTypeUpdate
	case rawTypeAddOnContent:
		return codec.TitleTypeAddOnContent
	case rawTypeDelta:
		return codec.TitleTypeDeltaTitle
	default:
		return codec.TitleTypeUnknown
	}
}
