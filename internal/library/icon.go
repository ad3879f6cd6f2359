package library

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/nfnt/resize"
)

const iconSize uint = 128

// GenerateIcon takes the raw icon data extracted from a title's Control
// archive, scales it down, encodes it as a Base64 JPEG, and returns it as
// a data URI string ready for the candidate list.
func GenerateIcon(iconData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(iconData))
	if err != nil {
		return "", fmt.Errorf("failed to decode icon: %w", err)
	}

	// Title icons are square; cap the longer edge either way.
	var resized image.Image
	if img.Bounds().Dy() > img.Bounds().Dx() {
		resized = resize.Resize(0, iconSize, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(iconSize, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	// Encode the resized image as a JPEG. Quality 75 is a good balance.
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 75}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}

	// Encode the byte buffer to a Base64 string and format as a data URI.
	base64Str := base64.StdEncoding.EncodeToString(buf.Bytes())
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64Str), nil
}
