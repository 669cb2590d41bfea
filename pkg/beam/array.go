// Package beam simulates the wave field radiated by linear phased arrays of
// point sources over a square 2D domain.
package beam

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrequency is returned for a unit whose frequency is not positive.
	ErrInvalidFrequency = errors.New("beam: frequency must be positive")

	// ErrInvalidElements is returned for a negative element count.
	ErrInvalidElements = errors.New("beam: element count must not be negative")
)

// ArrayUnit is one linear phased array. Its elements lie on a line parallel to
// the y axis, centered on (X, Y), spaced half a wavelength apart.
type ArrayUnit struct {
	ID        int     `json:"id" yaml:"id"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Elements  int     `json:"num_elements" yaml:"numElements"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// Validate checks the unit can be simulated.
func (u ArrayUnit) Validate() error {
	if !(u.Frequency > 0) {
		return fmt.Errorf("%w: unit %d has frequency %v", ErrInvalidFrequency, u.ID, u.Frequency)
	}
	if u.Elements < 0 {
		return fmt.Errorf("%w: unit %d has %d elements", ErrInvalidElements, u.ID, u.Elements)
	}
	return nil
}

// Wavelength returns waveSpeed / Frequency.
func (u ArrayUnit) Wavelength(waveSpeed float64) float64 {
	return waveSpeed / u.Frequency
}

// Spacing returns the element pitch, half a wavelength, which keeps grating
// lobes out of the visible region.
func (u ArrayUnit) Spacing(waveSpeed float64) float64 {
	return u.Wavelength(waveSpeed) / 2
}

// ElementPositions returns the coordinates of every element. Element k sits at
// offset k - (N-1)/2 spacings from the unit's centre, so even counts use
// half-integer offsets and the array stays symmetric about (X, Y).
func (u ArrayUnit) ElementPositions(waveSpeed float64) (xs, ys []float64) {
	n := u.Elements
	if n <= 0 {
		return nil, nil
	}
	spacing := u.Spacing(waveSpeed)
	centre := float64(n-1) / 2

	xs = make([]float64, n)
	ys = make([]float64, n)
	for k := 0; k < n; k++ {
		xs[k] = u.X
		ys[k] = u.Y + (float64(k)-centre)*spacing
	}
	return xs, ys
}
