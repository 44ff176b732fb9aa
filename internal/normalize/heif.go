//go:build !noheif

package normalize

import (
	"bytes"
	"fmt"
	"image"

	"github.com/jdeng/goheif"
)

// HEIFSupported reports whether this build can decode HEIC/HEIF.
const HEIFSupported = true

// decodeHEIF decodes the primary image of a HEIC/HEIF container.
func decodeHEIF(src []byte) (img image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = fmt.Errorf("heif decoder panicked: %v", rec)
		}
	}()
	return goheif.Decode(bytes.NewReader(src))
}
