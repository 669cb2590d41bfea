package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownPalette is returned by ParsePalette for an unrecognised name.
var ErrUnknownPalette = errors.New("visualization: unknown palette")

// Palette is a colour ramp sampled at evenly spaced stops.
type Palette []colorful.Color

var viridisStops = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// Viridis is the perceptually uniform matplotlib default.
var Viridis = mustPalette(viridisStops...)

// Gray is a plain black to white ramp.
var Gray = mustPalette("#000000", "#ffffff")

// ViridisHex returns the viridis stops as hex strings for chart libraries.
func ViridisHex() []string {
	return append([]string(nil), viridisStops...)
}

func mustPalette(hexes ...string) Palette {
	p := make(Palette, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("visualization: bad palette stop %q: %v", h, err))
		}
		p[i] = c
	}
	return p
}

// ParsePalette resolves a palette name. The empty string means no colouring
// and returns a nil palette.
func ParsePalette(name string) (Palette, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "viridis":
		return Viridis, nil
	case "gray", "grey":
		return Gray, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
}

// At returns the colour at t in [0, 1], blending neighbouring stops in Lab
// space. t is clamped.
func (p Palette) At(t float64) colorful.Color {
	if len(p) == 1 {
		return p[0]
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(p)-1)
	i := int(pos)
	if i >= len(p)-1 {
		return p[len(p)-1]
	}
	return p[i].BlendLab(p[i+1], pos-float64(i)).Clamped()
}

// Colorize maps each gray level of src through p.
func Colorize(src *image.Gray, p Palette) *image.RGBA {
	var lut [256]color.RGBA
	for v := range lut {
		r, g, b := p.At(float64(v) / 255).RGB255()
		lut[v] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		in := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):][:bounds.Dx()]
		for x, v := range in {
			c := lut[v]
			off := dst.PixOffset(x, y)
			dst.Pix[off+0] = c.R
			dst.Pix[off+1] = c.G
			dst.Pix[off+2] = c.B
			dst.Pix[off+3] = c.A
		}
	}
	return dst
}
