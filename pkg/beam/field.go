package beam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"ftbeamlab/internal/monitoring"
)

var (
	// ErrInvalidParams is returned for a malformed simulation request.
	ErrInvalidParams = errors.New("beam: invalid parameters")

	// ErrLimitExceeded is returned when a request is larger than the configured limits.
	ErrLimitExceeded = errors.New("beam: request exceeds limits")
)

// Limits bounds the cost of one simulation. Zero fields are unlimited.
type Limits struct {
	MaxResolution int `yaml:"maxResolution"`
	MaxElements   int `yaml:"maxElements"`
	MaxUnits      int `yaml:"maxUnits"`
}

// Params describes one field simulation.
type Params struct {
	// Units are the radiating arrays. Their order defines which phase shift
	// applies to which unit.
	Units []ArrayUnit

	// PhaseShifts holds the steering ramp of each unit in radians per element.
	// Units past the end of the list use 0.
	PhaseShifts []float64

	// Speed is the wave propagation speed, e.g. 3e8 for radio or 1540 for
	// ultrasound in tissue.
	Speed float64

	// MapSize is the side length of the square domain [0, MapSize]^2.
	MapSize float64

	// Resolution is the number of samples per side.
	Resolution int
}

// Validate checks p against physical constraints and the given limits.
func (p Params) Validate(l Limits) error {
	if p.Resolution < 1 {
		return fmt.Errorf("%w: resolution %d", ErrInvalidParams, p.Resolution)
	}
	if !(p.Speed > 0) {
		return fmt.Errorf("%w: speed %v", ErrInvalidParams, p.Speed)
	}
	if !(p.MapSize > 0) {
		return fmt.Errorf("%w: map size %v", ErrInvalidParams, p.MapSize)
	}
	if l.MaxResolution > 0 && p.Resolution > l.MaxResolution {
		return fmt.Errorf("%w: resolution %d > %d", ErrLimitExceeded, p.Resolution, l.MaxResolution)
	}
	return validateUnits(p.Units, l)
}

func validateUnits(units []ArrayUnit, l Limits) error {
	if l.MaxUnits > 0 && len(units) > l.MaxUnits {
		return fmt.Errorf("%w: %d units > %d", ErrLimitExceeded, len(units), l.MaxUnits)
	}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return err
		}
		if l.MaxElements > 0 && u.Elements > l.MaxElements {
			return fmt.Errorf("%w: unit %d has %d elements > %d", ErrLimitExceeded, u.ID, u.Elements, l.MaxElements)
		}
	}
	return nil
}

// shift returns the steering ramp of unit i.
func (p Params) shift(i int) float64 {
	if i < len(p.PhaseShifts) {
		return p.PhaseShifts[i]
	}
	return 0
}

// Field is the sampled magnitude of the superposed wave field.
type Field struct {
	// Magnitude has Resolution rows (y) and Resolution columns (x).
	Magnitude *mat.Dense

	// Axis holds the sample coordinates shared by both axes.
	Axis []float64
}

// Simulator computes fields with a bounded number of worker goroutines.
type Simulator struct {
	// Workers is the number of grid rows computed concurrently. Zero or
	// negative uses runtime.NumCPU().
	Workers int

	// Limits are enforced before any work starts.
	Limits Limits
}

// NewSimulator creates a simulator using all available cores.
func NewSimulator(limits Limits) *Simulator {
	return &Simulator{Workers: runtime.NumCPU(), Limits: limits}
}

// source is one radiating element with its unit's wavenumber and steering phase.
type source struct {
	x, y  float64
	k     float64
	phase float64
}

// sources flattens the units into radiating elements. Element e of unit i
// carries the phase ramp PhaseShifts[i] * e.
func (p Params) sources() []source {
	var out []source
	for i, u := range p.Units {
		xs, ys := u.ElementPositions(p.Speed)
		k := 2 * math.Pi / u.Wavelength(p.Speed)
		shift := p.shift(i)
		for e := range xs {
			out = append(out, source{x: xs[e], y: ys[e], k: k, phase: shift * float64(e)})
		}
	}
	return out
}

// superpose returns |sum exp(i (k*dist + phase))| at (x, y).
func superpose(srcs []source, x, y float64) float64 {
	var re, im float64
	for _, s := range srcs {
		dist := math.Hypot(x-s.x, y-s.y)
		sin, cos := math.Sincos(s.k*dist + s.phase)
		re += cos
		im += sin
	}
	return math.Hypot(re, im)
}

// Axis returns n evenly spaced samples over [0, size], endpoints included.
func Axis(n int, size float64) []float64 {
	axis := make([]float64, n)
	if n == 1 {
		return axis
	}
	floats.Span(axis, 0, size)
	return axis
}

// Synthesize computes the exact near-field superposition of every element of
// every unit at each grid point. Cost is O(units x elements x resolution^2);
// rows are distributed over the worker pool and ctx is checked between rows.
func (s *Simulator) Synthesize(ctx context.Context, p Params) (*Field, error) {
	if err := p.Validate(s.Limits); err != nil {
		return nil, err
	}

	start := time.Now()
	n := p.Resolution
	axis := Axis(n, p.MapSize)
	srcs := p.sources()
	data := make([]float64, n*n)

	if len(srcs) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers())
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				y := axis[i]
				row := data[i*n : (i+1)*n]
				for j, x := range axis {
					row[j] = superpose(srcs, x, y)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	monitoring.Logf("beam: synthesized %dx%d field from %d units (%d elements) in %v",
		n, n, len(p.Units), len(srcs), time.Since(start).Round(time.Millisecond))

	return &Field{Magnitude: mat.NewDense(n, n, data), Axis: axis}, nil
}

func (s *Simulator) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}
