//go:build noheif

package normalize

import (
	"errors"
	"image"
)

// HEIFSupported reports whether this build can decode HEIC/HEIF.
const HEIFSupported = false

func decodeHEIF([]byte) (image.Image, error) {
	return nil, errors.New("heif decoding not built in (noheif)")
}
