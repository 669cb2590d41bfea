package spectral

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch is returned when two grids of different sizes are compared.
var ErrShapeMismatch = errors.New("spectral: grid shapes differ")

// histogramBins is the number of intensity bins used for entropy.
const histogramBins = 256

// Stats summarises the values of a grid.
type Stats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Entropy float64 `json:"entropy_bits"`
}

// Quality compares a grid against a reference of the same shape.
type Quality struct {
	RMSE        float64 `json:"rmse"`
	SSIM        float64 `json:"ssim"`
	EntropyDiff float64 `json:"entropy_diff"`
}

func flatten(g *mat.Dense) []float64 {
	rows, cols := g.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, g.RawRowView(i)...)
	}
	return out
}

// Describe computes summary statistics of g.
func Describe(g *mat.Dense) Stats {
	data := flatten(g)
	mean, std := stat.MeanStdDev(data, nil)

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	return Stats{
		Mean:    mean,
		StdDev:  std,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Entropy: entropy(data, sorted[0], sorted[len(sorted)-1]),
	}
}

// entropy is the Shannon entropy in bits of a 256-bin histogram over [lo, hi].
// A constant grid has zero entropy.
func entropy(data []float64, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	hist := make([]float64, histogramBins)
	width := (hi - lo) / histogramBins
	for _, v := range data {
		bin := int((v - lo) / width)
		bin = max(0, min(histogramBins-1, bin))
		hist[bin]++
	}
	for i := range hist {
		hist[i] /= float64(len(data))
	}
	return stat.Entropy(hist) / math.Ln2
}

// Compare measures how closely got reproduces ref. SSIM is the global
// structural similarity over the 0..255 dynamic range.
func Compare(ref, got *mat.Dense) (Quality, error) {
	rr, rc := ref.Dims()
	gr, gc := got.Dims()
	if rr != gr || rc != gc {
		return Quality{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, rr, rc, gr, gc)
	}

	x, y := flatten(ref), flatten(got)

	var mse float64
	for i := range x {
		d := x[i] - y[i]
		mse += d * d
	}
	mse /= float64(len(x))

	const (
		dynamicRange = 255.0
		k1, k2       = 0.01, 0.03
	)
	c1 := (k1 * dynamicRange) * (k1 * dynamicRange)
	c2 := (k2 * dynamicRange) * (k2 * dynamicRange)

	muX, muY := stat.Mean(x, nil), stat.Mean(y, nil)
	varX, varY := stat.PopVariance(x, nil), stat.PopVariance(y, nil)
	cov := stat.Covariance(x, y, nil) * float64(len(x)-1) / float64(len(x))
	if len(x) == 1 {
		cov = 0
	}

	ssim := ((2*muX*muY + c1) * (2*cov + c2)) /
		((muX*muX + muY*muY + c1) * (varX + varY + c2))

	sx, sy := Describe(ref), Describe(got)
	return Quality{
		RMSE:        math.Sqrt(mse),
		SSIM:        ssim,
		EntropyDiff: math.Abs(sx.Entropy - sy.Entropy),
	}, nil
}
