// Package visualization turns real-valued grids produced by the mixer and the
// beam simulator into 8-bit rasters, colour maps and charts.
package visualization

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"ftbeamlab/pkg/spectral"
)

const (
	// DefaultEpsilon keeps min-max normalization finite on flat grids.
	DefaultEpsilon = 1e-5

	// PeakEpsilon keeps peak normalization finite on all-zero fields.
	PeakEpsilon = 1e-9
)

// Normalize maps g linearly onto [0, 255] using (v-min)/(max-min+eps)*255,
// truncated toward zero. A flat grid maps to all zeros.
func Normalize(g *mat.Dense, eps float64) *mat.Dense {
	lo, hi := mat.Min(g), mat.Max(g)
	span := hi - lo + eps

	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Trunc((v - lo) / span * 255)
	}, g)
	return &out
}

// NormalizePeak scales g by its maximum, v/(max+eps)*255 truncated, so zero
// stays black regardless of the field's minimum.
func NormalizePeak(g *mat.Dense, eps float64) *mat.Dense {
	peak := mat.Max(g) + eps

	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Trunc(v / peak * 255)
	}, g)
	return &out
}

// PreviewGrid prepares a component view for display. Magnitude, real and
// imaginary views are log-compressed with log(1+|v|); phase and the raw image
// pass through unchanged.
func PreviewGrid(c spectral.Component, raw *mat.Dense) *mat.Dense {
	var out mat.Dense
	switch c {
	case spectral.Magnitude, spectral.Real, spectral.Imaginary:
		out.Apply(func(_, _ int, v float64) float64 {
			return math.Log1p(math.Abs(v))
		}, raw)
	default:
		out.CloneFrom(raw)
	}
	return &out
}

// Preview renders a component view as a grayscale image, min-max normalized
// with the given epsilon.
func Preview(c spectral.Component, raw *mat.Dense, eps float64) *image.Gray {
	return ToGray(Normalize(PreviewGrid(c, raw), eps))
}
