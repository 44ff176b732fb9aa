//go:build !gocv

package features

func loadBackend() (Primitive, error) {
	return BildPrimitive{}, nil
}
