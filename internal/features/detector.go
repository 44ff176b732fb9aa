package features

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

// Fixed detection parameters.
const (
	// BlurRadius is the Gaussian blur radius applied before corner detection.
	BlurRadius = 3.0
	// PointConfidence is the confidence assigned to every detected point.
	PointConfidence = 0.8
)

// Detector finds corner features in a raster using a lazily loaded Primitive.
type Detector struct {
	lib             *Library
	threshold       int
	blurRadius      float64
	pointConfidence float64
}

// NewDetector creates a Detector. A nil lib uses DefaultLibrary.
func NewDetector(lib *Library, cfg config.DetectorConfig) *Detector {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Detector{
		lib:             lib,
		threshold:       cfg.CornerThreshold,
		blurRadius:      BlurRadius,
		pointConfidence: PointConfidence,
	}
}

// Detect runs grayscale, blur and corner detection over the whole raster and
// returns the corners as percent-coordinate points.
//
// A library that cannot load yields a detection_unavailable error. Any failure
// or panic inside the primitive yields analysis_failed. Cancellation of ctx
// between steps returns ctx.Err().
func (d *Detector) Detect(ctx context.Context, r *imaging.Raster) (points []surface.Point, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prim, err := d.lib.EnsureLoaded()
	if err != nil {
		return nil, err
	}

	if err := r.Validate(); err != nil {
		return nil, perrors.AnalysisFailed("invalid raster", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			points = nil
			err = perrors.AnalysisFailed("feature primitive panicked", fmt.Errorf("%v", rec))
		}
	}()

	gray := r.Pix
	if r.Channels == 4 {
		if gray, err = prim.Grayscale(r.Pix, r.Width, r.Height); err != nil {
			return nil, perrors.AnalysisFailed("grayscale failed", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred, err := prim.Blur(gray, r.Width, r.Height, d.blurRadius)
	if err != nil {
		return nil, perrors.AnalysisFailed("blur failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	corners, err := prim.FindCorners(blurred, r.Width, r.Height, d.threshold)
	if err != nil {
		return nil, perrors.AnalysisFailed("corner detection failed", err)
	}
	if len(corners)%2 != 0 {
		return nil, perrors.AnalysisFailed("corner detection failed", fmt.Errorf("odd coordinate count %d", len(corners)))
	}

	points = make([]surface.Point, 0, len(corners)/2)
	for i := 0; i < len(corners); i += 2 {
		points = append(points, surface.Point{
			X:          float64(corners[i]) / float64(r.Width) * 100,
			Y:          float64(corners[i+1]) / float64(r.Height) * 100,
			Confidence: d.pointConfidence,
		})
	}
	return points, nil
}

// Analyze detects features and derives a placement suggestion. It never
// fails: any detection error becomes an unavailable outcome carrying the
// default suggestion and the error as its reason.
func (d *Detector) Analyze(ctx context.Context, r *imaging.Raster) surface.Outcome {
	start := time.Now()

	points, err := d.Detect(ctx, r)
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).WithField("kind", perrors.KindOf(err)).Warn("surface detection unavailable, using default placement")
		}
		return surface.Unavailable(err)
	}

	analysis := surface.Analyze(points, r.Width, r.Height)
	logger.WithFields(logrus.Fields{
		"points":     len(points),
		"candidates": len(analysis.Candidates),
		"scale":      analysis.Suggestion.Scale,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("surface analysis complete")

	return surface.Success(analysis, points)
}
