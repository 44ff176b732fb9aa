package normalize

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
)

// ReencodeConverter converts HEIC/HEIF, and anything else the registered
// decoders understand, into JPEG. HEIC is read with goheif unless the binary
// was built with the noheif tag.
type ReencodeConverter struct{}

// Convert implements Converter.
func (ReencodeConverter) Convert(ctx context.Context, src []byte, targetType string, quality float64) ([]byte, error) {
	if targetType != TargetType {
		return nil, fmt.Errorf("unsupported target type %q", targetType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := decodeSource(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	return imaging.EncodeJPEG(img, int(math.Round(quality*100)))
}

// decodeSource reads src with goheif when it sniffs as HEIC/HEIF. Anything
// else tries the registered decoders, then goheif.
func decodeSource(src []byte) (image.Image, error) {
	if NeedsConversion(mimetype.Detect(src).String()) {
		return decodeHEIF(src)
	}
	img, err := imaging.Decode(src)
	if err == nil {
		return img, nil
	}
	if heif, herr := decodeHEIF(src); herr == nil {
		return heif, nil
	}
	return nil, err
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, src []byte, targetType string, quality float64) ([]byte, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(ctx context.Context, src []byte, targetType string, quality float64) ([]byte, error) {
	return f(ctx, src, targetType, quality)
}
