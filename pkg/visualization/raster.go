package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidAdjustment is returned for brightness or contrast outside [0, 200].
var ErrInvalidAdjustment = errors.New("visualization: adjustment out of range")

// MaxAdjustment is the largest accepted brightness or contrast percentage.
const MaxAdjustment = 200

// ToGray converts a grid of 0..255 values into an 8-bit image. Row i of g
// becomes image row i. Out-of-range values are clamped.
func ToGray(g *mat.Dense) *image.Gray {
	rows, cols := g.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		line := img.Pix[i*img.Stride : i*img.Stride+cols]
		for j := range line {
			line[j] = clampByte(g.At(i, j))
		}
	}
	return img
}

// EncodePNG writes img as a PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Adjust applies brightness then contrast, both as percentages where 100 is
// the identity. Brightness scales intensity; contrast stretches it around
// mid-gray.
func Adjust(src *image.Gray, brightness, contrast float64) (*image.Gray, error) {
	if !(brightness >= 0 && brightness <= MaxAdjustment) || !(contrast >= 0 && contrast <= MaxAdjustment) {
		return nil, fmt.Errorf("%w: brightness=%v contrast=%v", ErrInvalidAdjustment, brightness, contrast)
	}

	b, c := brightness/100, contrast/100
	var lut [256]uint8
	for v := range lut {
		x := float64(v) / 255 * b
		x = (x-0.5)*c + 0.5
		lut[v] = clampByte(math.Round(x * 255))
	}

	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		in := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):][:bounds.Dx()]
		out := dst.Pix[y*dst.Stride:][:bounds.Dx()]
		for x, v := range in {
			out[x] = lut[v]
		}
	}
	return dst, nil
}

func clampByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
