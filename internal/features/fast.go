package features

// circle holds the 16 offsets of a radius-3 Bresenham circle, clockwise from the top.
var circle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const (
	arcLength = 9
	border    = 3
)

// fastCorners runs the FAST-9 segment test on a grayscale buffer.
//
// A pixel is a corner when at least 9 contiguous circle pixels are all brighter
// than center+threshold or all darker than center-threshold. No non-maximum
// suppression is applied; pixels within 3 of the border are skipped.
func fastCorners(gray []byte, width, height, threshold int) []int {
	var corners []int
	if width <= 2*border || height <= 2*border {
		return corners
	}

	var offsets [16]int
	for i, o := range circle {
		offsets[i] = o[1]*width + o[0]
	}

	var state [16]int8
	for y := border; y < height-border; y++ {
		row := y * width
		for x := border; x < width-border; x++ {
			idx := row + x
			center := int(gray[idx])
			hi := center + threshold
			lo := center - threshold

			// Any 9-arc covers at least two of the four compass pixels.
			brighter, darker := 0, 0
			for k := 0; k < 16; k += 4 {
				v := int(gray[idx+offsets[k]])
				if v > hi {
					brighter++
				} else if v < lo {
					darker++
				}
			}
			if brighter < 2 && darker < 2 {
				continue
			}

			for k := 0; k < 16; k++ {
				v := int(gray[idx+offsets[k]])
				switch {
				case v > hi:
					state[k] = 1
				case v < lo:
					state[k] = -1
				default:
					state[k] = 0
				}
			}

			if hasArc(&state, 1) || hasArc(&state, -1) {
				corners = append(corners, x, y)
			}
		}
	}
	return corners
}

// hasArc reports whether state contains arcLength contiguous entries equal to
// want, wrapping around the circle.
func hasArc(state *[16]int8, want int8) bool {
	run := 0
	for i := 0; i < 16+arcLength-1; i++ {
		if state[i%16] == want {
			run++
			if run >= arcLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
