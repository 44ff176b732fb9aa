//go:build gocv

package features

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// GocvPrimitive runs the detector on OpenCV.
type GocvPrimitive struct{}

func loadBackend() (Primitive, error) {
	if gocv.OpenCVVersion() == "" {
		return nil, fmt.Errorf("opencv is not available")
	}
	return GocvPrimitive{}, nil
}

// Name implements Primitive.
func (GocvPrimitive) Name() string { return "opencv " + gocv.OpenCVVersion() }

// Grayscale implements Primitive.
func (GocvPrimitive) Grayscale(pix []byte, width, height int) ([]byte, error) {
	if err := checkBuffer(pix, width, height, 4); err != nil {
		return nil, err
	}
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap rgba buffer: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)

	return gray.ToBytes(), nil
}

// Blur implements Primitive.
func (GocvPrimitive) Blur(gray []byte, width, height int, radius float64) ([]byte, error) {
	if err := checkBuffer(gray, width, height, 1); err != nil {
		return nil, err
	}
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap gray buffer: %w", err)
	}
	defer src.Close()

	if radius <= 0 {
		return src.ToBytes(), nil
	}

	k := 2*int(math.Ceil(radius)) + 1
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Pt(k, k), radius, radius, gocv.BorderDefault)

	return dst.ToBytes(), nil
}

// FindCorners implements Primitive.
func (GocvPrimitive) FindCorners(gray []byte, width, height, threshold int) ([]int, error) {
	if err := checkBuffer(gray, width, height, 1); err != nil {
		return nil, err
	}
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap gray buffer: %w", err)
	}
	defer src.Close()

	fd := gocv.NewFastFeatureDetectorWithParams(threshold, false, gocv.FastFeatureDetectorType916)
	defer fd.Close()

	kps := fd.Detect(src)
	corners := make([]int, 0, 2*len(kps))
	for _, kp := range kps {
		corners = append(corners, int(math.Round(kp.X)), int(math.Round(kp.Y)))
	}
	return corners, nil
}
