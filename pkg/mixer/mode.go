package mixer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a mode name is not recognised.
var ErrUnknownMode = errors.New("mixer: unknown mode")

// Mode selects how image spectra are recombined.
type Mode int

const (
	// MagPhase mixes weighted magnitudes and weighted phases separately and
	// recombines them as M * exp(i * phi).
	MagPhase Mode = iota

	// RealImag mixes weighted real and imaginary parts and recombines them as
	// R + i * I.
	RealImag
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case MagPhase:
		return "mag_phase"
	case RealImag:
		return "real_imag"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "mag_phase" / "real_imag" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mag_phase":
		return MagPhase, nil
	case "real_imag":
		return RealImag, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Weights maps "{imageID}_{component}" keys to coefficients, where component is
// one of mag, phase, real or imag. Absent keys weigh zero.
type Weights map[string]float64

// For returns the weight of one component of one image.
func (w Weights) For(id, component string) float64 {
	return w[id+"_"+component]
}
