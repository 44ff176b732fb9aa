package features

import (
	"fmt"
	"sync"

	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
)

// Primitive is the image-processing backend used by the detector.
//
// Buffers are row-major. Grayscale takes 4-channel RGBA and returns one byte per
// pixel; Blur and FindCorners operate on that single-channel layout. FindCorners
// returns a flat list of pixel coordinates: x0, y0, x1, y1, ...
type Primitive interface {
	Name() string
	Grayscale(pix []byte, width, height int) ([]byte, error)
	Blur(gray []byte, width, height int, radius float64) ([]byte, error)
	FindCorners(gray []byte, width, height, threshold int) ([]int, error)
}

// Loader initializes a backend. It runs at most once per Library.
type Loader func() (Primitive, error)

// Library lazily loads a Primitive on first use and memoizes the result,
// including a failure. A failed load is not retried for the lifetime of the
// Library.
type Library struct {
	load Loader

	once sync.Once
	prim Primitive
	err  error
}

// NewLibrary creates a Library around load.
func NewLibrary(load Loader) *Library {
	return &Library{load: load}
}

// EnsureLoaded returns the loaded Primitive, loading it on the first call.
// Concurrent callers block until the single load finishes.
func (l *Library) EnsureLoaded() (Primitive, error) {
	l.once.Do(func() {
		l.prim, l.err = safeLoad(l.load)
		if l.err == nil && l.prim == nil {
			l.err = fmt.Errorf("loader returned no primitive")
		}
		if l.err != nil {
			l.prim = nil
			l.err = perrors.DetectionUnavailable("feature library failed to load", l.err)
		}
	})
	return l.prim, l.err
}

func safeLoad(load Loader) (p Primitive, err error) {
	if load == nil {
		return nil, fmt.Errorf("no loader configured")
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return load()
}

var (
	defaultLibrary     *Library
	defaultLibraryOnce sync.Once
)

// DefaultLibrary returns the process-wide library backed by the compiled-in
// backend.
func DefaultLibrary() *Library {
	defaultLibraryOnce.Do(func() {
		defaultLibrary = NewLibrary(loadBackend)
	})
	return defaultLibrary
}
