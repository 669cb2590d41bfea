package mixer

import (
	"errors"
	"fmt"

	"ftbeamlab/pkg/spectral"
)

// ErrInvalidMask is returned when a mask rectangle lies outside [0,1].
var ErrInvalidMask = errors.New("mixer: invalid mask")

// Mask is a rectangular region of the centered spectrum. X, Y, W and H are
// fractions of the spectrum width and height. With Inner set the rectangle is
// kept and everything outside is zeroed; otherwise the rectangle is zeroed.
type Mask struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Inner bool    `json:"inner"`
}

// CenteredMask returns a square mask of the given fractional size centered on
// the zero frequency. Small inner masks act as low-pass filters, small outer
// masks as high-pass filters.
func CenteredMask(size float64, inner bool) Mask {
	offset := (1 - size) / 2
	return Mask{X: offset, Y: offset, W: size, H: size, Inner: inner}
}

// Validate checks every field lies within [0,1].
func (m Mask) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"x", m.X}, {"y", m.Y}, {"w", m.W}, {"h", m.H}} {
		if !(f.v >= 0 && f.v <= 1) {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrInvalidMask, f.name, f.v)
		}
	}
	return nil
}

// Grid returns the binary rows x cols mask: 1 where content is kept, 0 where
// it is removed. The pixel rectangle is clipped to the grid.
func (m Mask) Grid(rows, cols int) []float64 {
	x0 := int(m.X * float64(cols))
	y0 := int(m.Y * float64(rows))
	x1 := min(x0+int(m.W*float64(cols)), cols)
	y1 := min(y0+int(m.H*float64(rows)), rows)

	inside, outside := 1.0, 0.0
	if !m.Inner {
		inside, outside = 0.0, 1.0
	}

	grid := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if i >= y0 && i < y1 && j >= x0 && j < x1 {
				grid[i*cols+j] = inside
			} else {
				grid[i*cols+j] = outside
			}
		}
	}
	return grid
}

// Apply multiplies the mask into s in place.
func (m Mask) Apply(s *spectral.Spectrum) {
	grid := m.Grid(s.Rows, s.Cols)
	for i, keep := range grid {
		if keep == 0 {
			s.Data[i] = 0
		}
	}
}
