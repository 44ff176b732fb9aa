// Package imaging holds the raster model and the image I/O used by the preview
// pipeline.
//
// # Rasters
//
// A Raster is a decoded photo in row-major bytes, either RGBA (4 channels) or
// grayscale (1 channel). Rasters are produced once per background image by
// DecodeRaster and are treated as immutable afterwards; the feature detector
// reads them without copying.
//
// # Decoding
//
// Decode accepts JPEG, PNG, GIF, BMP, TIFF and WebP. EXIF orientation is applied
// so that phone photos are analyzed upright, in the same frame the shopper sees.
// Formats that need conversion first (HEIC) are handled by the normalize package.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left. Overlay rendering
// takes positions in percent of width and height with the same origin.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. RenderSurfaceOverlay allocates its own
// output and can be called concurrently.
package imaging
