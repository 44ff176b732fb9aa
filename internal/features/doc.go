// Package features detects corner features in background photos.
//
// Detection is three steps over the full image: grayscale, Gaussian blur
// (radius 3 by default) and FAST corner detection (threshold 25 by default).
// Every corner becomes a surface.Point in percent coordinates with a fixed
// confidence.
//
// # Backends
//
// The image primitives sit behind the Primitive interface and are loaded once
// per process through a Library. The default build uses bild for grayscale and
// blur plus a native FAST-9 implementation. Building with -tags gocv switches
// to OpenCV via gocv, which requires the OpenCV shared libraries at runtime;
// when they are missing the load fails and every analysis degrades to the
// default suggestion.
//
// # Failure Modes
//
//   - library load failure: detection_unavailable, memoized, never retried
//   - primitive error or panic during a run: analysis_failed
//   - context cancellation: ctx.Err(), the run is abandoned
package features
