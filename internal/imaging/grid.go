package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

// Tint endpoints for candidate confidence: low confidence is red, high is green.
var (
	lowConfidence  = colorful.Color{R: 0.85, G: 0.1, B: 0.1}
	highConfidence = colorful.Color{R: 0.1, G: 0.8, B: 0.2}
)

const tintAlpha = 0.35

// OverlayResult contains the analysis overlay image
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Cells       int    `json:"cells"`
}

// ConfidenceColor maps a confidence in [0,1] to a red-to-green Lab blend.
func ConfidenceColor(confidence float64) colorful.Color {
	t := math.Max(0, math.Min(1, confidence))
	return lowConfidence.BlendLab(highConfidence, t).Clamped()
}

// RenderSurfaceOverlay draws the 8x8 analysis grid over img, tints each
// candidate cell by confidence, labels it with the confidence percentage and
// marks the suggested position with a crosshair.
func RenderSurfaceOverlay(img image.Image, candidates []surface.Candidate, suggestion surface.Suggestion, gridColorHex string) (*OverlayResult, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("cannot overlay an empty image")
	}

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 255, 255, 160}
	}

	result := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	for _, c := range candidates {
		x0, y0, x1, y1 := cellRect(c, width, height)
		tint := ConfidenceColor(c.Confidence)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				result.Set(x, y, blendOver(result.RGBAAt(x, y), tint, tintAlpha))
			}
		}
		label := strconv.Itoa(int(math.Round(c.Confidence * 100)))
		drawLabel(result, x0+2, y0+2, label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
	}

	for i := 1; i < surface.GridSize; i++ {
		x := int(float64(i) * float64(width) / surface.GridSize)
		for y := 0; y < height; y++ {
			result.Set(x, y, gridColor)
		}
		y := int(float64(i) * float64(height) / surface.GridSize)
		for x := 0; x < width; x++ {
			result.Set(x, y, gridColor)
		}
	}

	drawCrosshair(result, suggestion.Position, color.RGBA{255, 220, 0, 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Cells:       len(candidates),
	}, nil
}

// cellRect converts a candidate's percent center and area to a pixel rectangle.
func cellRect(c surface.Candidate, width, height int) (x0, y0, x1, y1 int) {
	half := math.Sqrt(c.Area) / 2
	x0 = clampInt(int(math.Round((c.Center.X-half)*float64(width)/100)), 0, width)
	x1 = clampInt(int(math.Round((c.Center.X+half)*float64(width)/100)), 0, width)
	y0 = clampInt(int(math.Round((c.Center.Y-half)*float64(height)/100)), 0, height)
	y1 = clampInt(int(math.Round((c.Center.Y+half)*float64(height)/100)), 0, height)
	return x0, y0, x1, y1
}

func blendOver(dst color.RGBA, tint colorful.Color, alpha float64) color.RGBA {
	base := colorful.Color{R: float64(dst.R) / 255, G: float64(dst.G) / 255, B: float64(dst.B) / 255}
	r, g, b := base.BlendRgb(tint, alpha).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: dst.A}
}

func drawCrosshair(img *image.RGBA, p surface.Vec, c color.RGBA) {
	b := img.Bounds()
	cx := int(math.Round(p.X * float64(b.Dx()) / 100))
	cy := int(math.Round(p.Y * float64(b.Dy()) / 100))
	arm := b.Dx() / 40
	if arm < 3 {
		arm = 3
	}
	for d := -arm; d <= arm; d++ {
		for w := -1; w <= 1; w++ {
			if pt := image.Pt(cx+d, cy+w); pt.In(b) {
				img.Set(pt.X, pt.Y, c)
			}
			if pt := image.Pt(cx+w, cy+d); pt.In(b) {
				img.Set(pt.X, pt.Y, c)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	switch len(hex) {
	case 6:
		c, err := colorful.Hex("#" + hex)
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b := c.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
}

// drawLabel draws digits with a tiny 3x5 bitmap font on a dark background.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if pt := image.Pt(x+dx, y+dy); pt.In(bounds) {
				img.Set(pt.X, pt.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if pt := image.Pt(cx+col, y+row); pt.In(bounds) {
					img.Set(pt.X, pt.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
