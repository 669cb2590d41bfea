package beam

import (
	"context"
	"fmt"
	"math"
)

// ProfileParams describes an angular cut through the field: samples taken on a
// circle of Radius around (CenterX, CenterY).
type ProfileParams struct {
	Units       []ArrayUnit
	PhaseShifts []float64
	Speed       float64

	CenterX, CenterY float64
	Radius           float64

	// Samples is the number of angles from -180 to +180 degrees inclusive.
	Samples int
}

// Profile is the field magnitude as a function of bearing. Angle 0 points
// along +x, away from the array axis.
type Profile struct {
	AnglesDeg []float64 `json:"angles_deg"`
	Magnitude []float64 `json:"magnitude"`
}

// Peak returns the bearing with the largest magnitude.
func (p *Profile) Peak() (angleDeg, magnitude float64) {
	for i, m := range p.Magnitude {
		if i == 0 || m > magnitude {
			angleDeg, magnitude = p.AnglesDeg[i], m
		}
	}
	return angleDeg, magnitude
}

// Profile evaluates the same superposition as Synthesize along a circle, which
// gives the beam pattern seen at a fixed range.
func (s *Simulator) Profile(ctx context.Context, pp ProfileParams) (*Profile, error) {
	if pp.Samples < 2 {
		return nil, fmt.Errorf("%w: %d profile samples", ErrInvalidParams, pp.Samples)
	}
	if !(pp.Radius > 0) {
		return nil, fmt.Errorf("%w: radius %v", ErrInvalidParams, pp.Radius)
	}
	if !(pp.Speed > 0) {
		return nil, fmt.Errorf("%w: speed %v", ErrInvalidParams, pp.Speed)
	}
	if s.Limits.MaxResolution > 0 && pp.Samples > s.Limits.MaxResolution*s.Limits.MaxResolution {
		return nil, fmt.Errorf("%w: %d profile samples", ErrLimitExceeded, pp.Samples)
	}
	if err := validateUnits(pp.Units, s.Limits); err != nil {
		return nil, err
	}

	srcs := Params{Units: pp.Units, PhaseShifts: pp.PhaseShifts, Speed: pp.Speed}.sources()
	angles := Axis(pp.Samples, 360)
	out := &Profile{
		AnglesDeg: make([]float64, pp.Samples),
		Magnitude: make([]float64, pp.Samples),
	}
	for i, a := range angles {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		deg := a - 180
		theta := deg * math.Pi / 180
		x := pp.CenterX + pp.Radius*math.Cos(theta)
		y := pp.CenterY + pp.Radius*math.Sin(theta)
		out.AnglesDeg[i] = deg
		out.Magnitude[i] = superpose(srcs, x, y)
	}
	return out, nil
}
