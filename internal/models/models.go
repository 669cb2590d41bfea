// Package models holds the request and response bodies exchanged with API
// clients and their conversion into engine parameters.
package models

import (
	"fmt"

	"ftbeamlab/pkg/beam"
	"ftbeamlab/pkg/mixer"
)

// Region is the optional frequency-domain filter of a mix request. X, Y, W and
// H are fractions of the spectrum. Inner defaults to true (keep the inside).
type Region struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Inner *bool   `json:"inner,omitempty"`
}

// Mask converts the region into a validated mixer mask.
func (r *Region) Mask() (*mixer.Mask, error) {
	if r == nil {
		return nil, nil
	}
	m := mixer.Mask{X: r.X, Y: r.Y, W: r.W, H: r.H, Inner: r.Inner == nil || *r.Inner}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// MixRequest is the body of POST /api/mixer/process.
type MixRequest struct {
	Weights map[string]float64 `json:"weights"`
	Mode    string             `json:"mode"`
	Region  *Region            `json:"region,omitempty"`
}

// BeamDefaults fills fields a beam request leaves out.
type BeamDefaults struct {
	Resolution     int
	Speed          float64
	MapSize        float64
	ProfileSamples int
}

// BeamRequest is the body of the beam simulation endpoints. Omitted numeric
// fields take the server defaults.
type BeamRequest struct {
	Units       []beam.ArrayUnit `json:"units"`
	PhaseShifts []float64        `json:"phase_shifts"`
	Resolution  *int             `json:"resolution,omitempty"`
	Speed       *float64         `json:"speed,omitempty"`
	MapSize     *float64         `json:"map_size,omitempty"`

	// Colormap selects a palette for the PNG; empty renders grayscale.
	Colormap string `json:"colormap,omitempty"`
}

// Params resolves the request against d.
func (r *BeamRequest) Params(d BeamDefaults) beam.Params {
	return beam.Params{
		Units:       r.Units,
		PhaseShifts: r.PhaseShifts,
		Speed:       orFloat(r.Speed, d.Speed),
		MapSize:     orFloat(r.MapSize, d.MapSize),
		Resolution:  orInt(r.Resolution, d.Resolution),
	}
}

// ProfileRequest is the body of POST /api/beam/profile. The circle defaults
// to the centroid of the units with a radius of half the map size.
type ProfileRequest struct {
	BeamRequest

	CenterX *float64 `json:"center_x,omitempty"`
	CenterY *float64 `json:"center_y,omitempty"`
	Radius  *float64 `json:"radius,omitempty"`
	Samples *int     `json:"samples,omitempty"`

	// Format is "png" (default) or "json".
	Format string `json:"format,omitempty"`
}

// Params resolves the request against d.
func (r *ProfileRequest) Params(d BeamDefaults) beam.ProfileParams {
	var cx, cy float64
	for _, u := range r.Units {
		cx += u.X
		cy += u.Y
	}
	if n := len(r.Units); n > 0 {
		cx /= float64(n)
		cy /= float64(n)
	}

	return beam.ProfileParams{
		Units:       r.Units,
		PhaseShifts: r.PhaseShifts,
		Speed:       orFloat(r.Speed, d.Speed),
		CenterX:     orFloat(r.CenterX, cx),
		CenterY:     orFloat(r.CenterY, cy),
		Radius:      orFloat(r.Radius, orFloat(r.MapSize, d.MapSize)/2),
		Samples:     orInt(r.Samples, d.ProfileSamples),
	}
}

// ProfileFormat validates and returns the requested output format.
func (r *ProfileRequest) ProfileFormat() (string, error) {
	switch r.Format {
	case "", "png":
		return "png", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unknown profile format %q", r.Format)
	}
}

// ProfileResponse is the JSON form of a beam profile.
type ProfileResponse struct {
	AnglesDeg []float64 `json:"angles_deg"`
	Magnitude []float64 `json:"magnitude"`
	PeakDeg   float64   `json:"peak_deg"`
	PeakValue float64   `json:"peak_value"`
}

// ImageInfo describes one stored image.
type ImageInfo struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageList is the body of GET /api/mixer/images.
type ImageList struct {
	Images []ImageInfo `json:"images"`
}

// StatusResponse is a plain acknowledgement.
type StatusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// SessionResponse carries a newly created session id.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

func orFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func orInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}
