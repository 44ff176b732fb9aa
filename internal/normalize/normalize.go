package normalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
)

// TargetType is the format converted images are written in.
const TargetType = "image/jpeg"

// Source is an image as uploaded by the shopper.
type Source struct {
	Data []byte
	// DeclaredType is the browser-reported type or data-URL prefix, used when
	// content sniffing is inconclusive.
	DeclaredType string
	Name         string
}

// Converter is the external format-conversion primitive.
type Converter interface {
	Convert(ctx context.Context, src []byte, targetType string, quality float64) ([]byte, error)
}

// Normalizer turns uploads into a decodable resource, converting formats the
// decoders cannot read.
type Normalizer struct {
	converter    Converter
	quality      float64
	tempDir      string
	maxDimension int
}

// New creates a Normalizer. A nil converter uses ReencodeConverter.
func New(cfg config.NormalizerConfig, converter Converter) *Normalizer {
	if converter == nil {
		converter = ReencodeConverter{}
	}
	return &Normalizer{
		converter:    converter,
		quality:      cfg.ConvertQuality,
		tempDir:      cfg.TempDir,
		maxDimension: cfg.MaxDimension,
	}
}

// Normalize writes src to a temporary decodable resource, converting it to
// JPEG first when its format needs it.
//
// Conversion failure is not an error: the original bytes are kept and the
// failure is logged. The caller owns the returned Handle and must Release it.
func (n *Normalizer) Normalize(ctx context.Context, src Source) (*Handle, error) {
	if len(src.Data) == 0 {
		return nil, perrors.InvalidInput("image data is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detected := SniffType(src.Data, src.DeclaredType)
	data := src.Data
	mimeType := detected
	converted := false

	if NeedsConversion(detected) {
		out, err := n.converter.Convert(ctx, src.Data, TargetType, n.quality)
		if err == nil {
			data, mimeType, converted = out, TargetType, true
		} else {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.WithFields(logrus.Fields{
				"name":   src.Name,
				"format": detected,
			}).WithError(perrors.ConversionFailed("format conversion failed", err)).Warn("using original image bytes")
		}
	}

	h, err := writeTemp(n.tempDir, data, mimeType)
	if err != nil {
		return nil, err
	}
	h.sourceType = detected
	h.converted = converted

	logger.WithFields(logrus.Fields{
		"name":      src.Name,
		"format":    detected,
		"converted": converted,
		"bytes":     len(data),
	}).Debug("image normalized")

	return h, nil
}

// DecodeRaster reads a normalized resource into a Raster, bounded by the
// configured maximum dimension.
func (n *Normalizer) DecodeRaster(h *Handle) (*imaging.Raster, error) {
	data, err := h.Open()
	if err != nil {
		return nil, perrors.ImageDecodeFailed("failed to read normalized image", err)
	}

	r, err := imaging.DecodeRaster(data, n.maxDimension)
	if err != nil {
		return nil, perrors.ImageDecodeFailed("failed to decode image", err)
	}
	return r, nil
}

// SniffType detects the MIME type of data, falling back to the declared type.
func SniffType(data []byte, declared string) string {
	m := mimetype.Detect(data)
	if !m.Is("application/octet-stream") {
		return m.String()
	}

	d := strings.ToLower(strings.TrimSpace(declared))
	d = strings.TrimPrefix(d, "data:")
	if i := strings.IndexAny(d, ";,"); i >= 0 {
		d = d[:i]
	}
	if d != "" {
		return d
	}
	return m.String()
}

// NeedsConversion reports whether a MIME type must be converted before decoding.
func NeedsConversion(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return false
}

// Handle is a temporary file holding a decodable image.
type Handle struct {
	path       string
	mimeType   string
	sourceType string
	converted  bool

	once       sync.Once
	releaseErr error
}

func writeTemp(dir string, data []byte, mimeType string) (*Handle, error) {
	f, err := os.CreateTemp(dir, "placement-bg-*"+extensionFor(mimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return &Handle{path: f.Name(), mimeType: mimeType}, nil
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil {
		return m.Extension()
	}
	return ""
}

// URI returns a file URI for the resource.
func (h *Handle) URI() string {
	return "file://" + filepath.ToSlash(h.path)
}

// Path returns the filesystem path of the resource.
func (h *Handle) Path() string { return h.path }

// MimeType returns the type of the stored bytes.
func (h *Handle) MimeType() string { return h.mimeType }

// SourceType returns the type detected for the original upload.
func (h *Handle) SourceType() string { return h.sourceType }

// Converted reports whether the stored bytes were produced by the converter.
func (h *Handle) Converted() bool { return h.converted }

// Open reads the resource.
func (h *Handle) Open() ([]byte, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.URI(), err)
	}
	return data, nil
}

// Release removes the temporary file. It is safe to call more than once.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			h.releaseErr = fmt.Errorf("failed to release %s: %w", h.URI(), err)
		}
	})
	return h.releaseErr
}
