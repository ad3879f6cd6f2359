// Application properties (NACP) record parsing.

package switchfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/titledock/titledock/internal/codec"
)

const (
	nacpSize           = 0x4000
	nacpTitleEntrySize = 0x300
	nacpTitleNameSize  = 0x200
	nacpTitleCount     = 16
	nacpVersionOffset  = 0x3060
	nacpVersionSize    = 0x10
)

// parseNACP decodes the application name and display version. The name
// block holds one entry per supported language; the first populated entry
// wins, which matches how the install flow labels titles.
func parseNACP(f codec.File) (*codec.ApplicationProperties, error) {
	if f.Size() < nacpSize {
		return nil, fmt.Errorf("NACP file %s too small (%d bytes)", f.Name(), f.Size())
	}

	raw := make([]byte, nacpSize)
	if _, err := f.ReadAt(raw, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read NACP file %s: %w", f.Name(), err)
	}

	props := &codec.ApplicationProperties{
		VersionString: trimNulls(raw[nacpVersionOffset : nacpVersionOffset+nacpVersionSize]),
	}

	for i := 0; i < nacpTitleCount; i++ {
		entry := raw[i*nacpTitleEntrySize:]
		name := trimNulls(entry[:nacpTitleNameSize])
		if name != "" {
			props.ApplicationName = name
			break
		}
	}

	return props, nil
}

func trimNulls(raw []byte) string {
	return string(bytes.TrimRight(raw, "\x00"))
}
