package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Decode rasterizes encoded image bytes.
//
// Registered decoders are tried first with EXIF auto-orientation so that phone
// photos come out upright. Extended WebP variants the pure-Go decoder rejects
// are retried with libwebp.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}

	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// DecodeRaster decodes data and bounds the result to maxDimension on its longest
// side. A maxDimension of 0 keeps full resolution.
func DecodeRaster(data []byte, maxDimension int) (*Raster, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if maxDimension > 0 && (b.Dx() > maxDimension || b.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	return FromImage(img), nil
}

// ImageCache provides thread-safe caching of decoded images keyed by file path.
//
// Overlays and dimension queries for the same file decode it once; the server
// empties the cache when it shuts down.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// The image is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Dimensions contains the width and height of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of a cached or freshly loaded image.
func GetDimensions(cache *ImageCache, path string) (*Dimensions, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &Dimensions{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
