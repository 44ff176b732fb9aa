package surface

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Grid and scoring constants.
const (
	GridSize       = 8
	CellSize       = 100.0 / GridSize
	CellArea       = CellSize * CellSize
	MaxCandidates  = 5
	LowerBandStart = 40.0

	emptyArea       = 2500.0
	emptyConfidence = 0.3
	minConfidence   = 0.1
)

// Suggestion position and scale bounds.
const (
	MinSuggestX     = 20.0
	MaxSuggestX     = 80.0
	MinSuggestY     = 30.0
	MaxSuggestY     = 70.0
	MinSuggestScale = 1.5
	MaxSuggestScale = 5.0
)

// Vec is a position in percent of the image, origin top-left.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is a detected feature location.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Candidate is a low-density grid cell considered a plausible placement region.
type Candidate struct {
	Center     Vec     `json:"center"`
	Area       float64 `json:"area"`
	Confidence float64 `json:"confidence"`
}

// Suggestion is a recommended overlay position and scale.
type Suggestion struct {
	Position Vec     `json:"position"`
	Scale    float64 `json:"scale"`
}

// Analysis is the result of clustering a point set.
type Analysis struct {
	Suggestion Suggestion  `json:"suggestion"`
	Candidates []Candidate `json:"candidates"`
}

// DefaultSuggestion is used whenever detection produces nothing usable.
func DefaultSuggestion() Suggestion {
	return Suggestion{Position: Vec{X: 50, Y: 50}, Scale: 2.5}
}

// Analyze clusters points into an 8x8 grid, scores sparse cells and derives a
// placement suggestion for an image of the given pixel size.
//
// The result depends only on the inputs. Points outside [0,100] are clamped into
// the edge cells.
func Analyze(points []Point, imageWidth, imageHeight int) Analysis {
	if len(points) == 0 {
		return Analysis{
			Suggestion: DefaultSuggestion(),
			Candidates: []Candidate{{
				Center:     Vec{X: 50, Y: 50},
				Area:       emptyArea,
				Confidence: emptyConfidence,
			}},
		}
	}

	candidates := findCandidates(points)
	return Analysis{
		Suggestion: Suggestion{
			Position: choosePosition(candidates),
			Scale:    deriveScale(candidates, imageWidth, imageHeight),
		},
		Candidates: candidates,
	}
}

// cellIndex maps a percent coordinate to a grid column or row.
func cellIndex(p float64) int {
	i := int(math.Floor(p / CellSize))
	if i < 0 {
		return 0
	}
	if i > GridSize-1 {
		return GridSize - 1
	}
	return i
}

func findCandidates(points []Point) []Candidate {
	var counts [GridSize][GridSize]int
	for _, p := range points {
		counts[cellIndex(p.Y)][cellIndex(p.X)]++
	}

	threshold := math.Max(1, float64(len(points))/(GridSize*GridSize)*2)

	var candidates []Candidate
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			count := float64(counts[row][col])
			if count > threshold {
				continue
			}
			candidates = append(candidates, Candidate{
				Center: Vec{
					X: (float64(col) + 0.5) * CellSize,
					Y: (float64(row) + 0.5) * CellSize,
				},
				Area:       CellArea,
				Confidence: math.Max(minConfidence, 1-count/threshold),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

func choosePosition(candidates []Candidate) Vec {
	if len(candidates) == 0 {
		return DefaultSuggestion().Position
	}

	pool := candidates
	var lower []Candidate
	for _, c := range candidates {
		if c.Center.Y > LowerBandStart {
			lower = append(lower, c)
		}
	}
	if len(lower) > 0 {
		pool = lower
	}

	best := pool[0]
	return Vec{
		X: clamp(best.Center.X, MinSuggestX, MaxSuggestX),
		Y: clamp(best.Center.Y, MinSuggestY, MaxSuggestY),
	}
}

func deriveScale(candidates []Candidate, imageWidth, imageHeight int) float64 {
	mean := 0.0
	if len(candidates) > 0 {
		conf := make([]float64, len(candidates))
		for i, c := range candidates {
			conf[i] = c.Confidence
		}
		mean = stat.Mean(conf, nil)
	}

	scale := 2 + 2*mean

	aspect := 1.0
	if imageWidth > 0 && imageHeight > 0 {
		aspect = float64(imageWidth) / float64(imageHeight)
	}
	if aspect > 1.5 {
		scale *= 1.2
	} else if aspect < 0.7 {
		scale *= 0.8
	}

	return clamp(scale, MinSuggestScale, MaxSuggestScale)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
