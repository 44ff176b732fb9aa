package features

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// BildPrimitive is the pure-Go backend: bild for grayscale and Gaussian blur,
// and an in-package FAST-9 detector.
type BildPrimitive struct{}

// Name implements Primitive.
func (BildPrimitive) Name() string { return "bild" }

// Grayscale implements Primitive.
func (BildPrimitive) Grayscale(pix []byte, width, height int) ([]byte, error) {
	if err := checkBuffer(pix, width, height, 4); err != nil {
		return nil, err
	}
	src := &image.RGBA{Pix: pix, Stride: 4 * width, Rect: image.Rect(0, 0, width, height)}
	g := effect.Grayscale(src)

	// effect.Grayscale writes the luminance into every color channel.
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < width; x++ {
			out[y*width+x] = row[4*x]
		}
	}
	return out, nil
}

// Blur implements Primitive.
func (BildPrimitive) Blur(gray []byte, width, height int, radius float64) ([]byte, error) {
	if err := checkBuffer(gray, width, height, 1); err != nil {
		return nil, err
	}
	if radius <= 0 {
		out := make([]byte, len(gray))
		copy(out, gray)
		return out, nil
	}

	src := &image.Gray{Pix: gray, Stride: width, Rect: image.Rect(0, 0, width, height)}
	blurred := blur.Gaussian(src, radius)

	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := blurred.Pix[y*blurred.Stride:]
		for x := 0; x < width; x++ {
			out[y*width+x] = row[4*x]
		}
	}
	return out, nil
}

// FindCorners implements Primitive.
func (BildPrimitive) FindCorners(gray []byte, width, height, threshold int) ([]int, error) {
	if err := checkBuffer(gray, width, height, 1); err != nil {
		return nil, err
	}
	return fastCorners(gray, width, height, threshold), nil
}

func checkBuffer(buf []byte, width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(buf) != width*height*channels {
		return fmt.Errorf("buffer is %d bytes, want %d", len(buf), width*height*channels)
	}
	return nil
}
