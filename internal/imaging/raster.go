package imaging

import (
	"fmt"
	"image"
	"image/draw"
)

// Raster is a decoded image in row-major byte layout.
//
// Channels is 4 for RGBA and 1 for grayscale. A Raster is never modified after
// it is produced; stages that transform pixels return new slices.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// FromImage copies img into a 4-channel RGBA raster.
func FromImage(img image.Image) *Raster {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	pix := make([]byte, len(rgba.Pix))
	copy(pix, rgba.Pix)

	return &Raster{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Pix:      pix,
	}
}

// Validate checks that the pixel buffer matches the declared geometry.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("raster is nil")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("raster has invalid dimensions %dx%d", r.Width, r.Height)
	}
	if r.Channels != 1 && r.Channels != 4 {
		return fmt.Errorf("raster has unsupported channel count %d", r.Channels)
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		return fmt.Errorf("raster buffer is %d bytes, want %d", len(r.Pix), r.Width*r.Height*r.Channels)
	}
	return nil
}

// Image returns a view of the raster as an image.Image sharing Pix.
func (r *Raster) Image() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.Channels == 1 {
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}
	}
	return &image.RGBA{Pix: r.Pix, Stride: 4 * r.Width, Rect: rect}
}

// AspectRatio returns width over height, or 1 for degenerate rasters.
func (r *Raster) AspectRatio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 1
	}
	return float64(r.Width) / float64(r.Height)
}
