package api

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"ftbeamlab/internal/models"
	"ftbeamlab/internal/monitoring"
	"ftbeamlab/pkg/config"
	"ftbeamlab/pkg/visualization"
)

func (s *Server) beamDefaults() models.BeamDefaults {
	return models.BeamDefaults{
		Resolution:     s.cfg.Beam.Resolution,
		Speed:          s.cfg.Beam.Speed,
		MapSize:        s.cfg.Beam.MapSize,
		ProfileSamples: s.cfg.Beam.ProfileSamples,
	}
}

// decodeBeam reads a beam request. It writes the error response itself and
// returns nil on failure. A request without units has nothing to show and is
// answered like an empty mixer store.
func (s *Server) decodeBeam(w http.ResponseWriter, r *http.Request) *models.BeamRequest {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	var req models.BeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return nil
	}
	if len(req.Units) == 0 {
		writeJSONError(w, http.StatusUnprocessableEntity, "no data")
		return nil
	}
	return &req
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req := s.decodeBeam(w, r)
	if req == nil {
		return
	}
	// Checked before synthesis so a bad name costs no field computation.
	palette, err := visualization.ParsePalette(req.Colormap)
	if err != nil {
		writeError(w, err)
		return
	}

	field, err := s.sim.Synthesize(r.Context(), req.Params(s.beamDefaults()))
	if err != nil {
		writeError(w, err)
		return
	}

	var gray *image.Gray
	if s.cfg.Beam.Normalization == config.NormalizeRange {
		gray = visualization.ToGray(visualization.Normalize(field.Magnitude, s.cfg.Mixer.Epsilon))
	} else {
		gray = visualization.ToGray(visualization.NormalizePeak(field.Magnitude, s.cfg.Beam.PeakEpsilon))
	}

	if palette == nil {
		writePNG(w, gray)
		return
	}
	writePNG(w, visualization.Colorize(gray, palette))
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	req := s.decodeBeam(w, r)
	if req == nil {
		return
	}
	field, err := s.sim.Synthesize(r.Context(), req.Params(s.beamDefaults()))
	if err != nil {
		writeError(w, err)
		return
	}

	title := fmt.Sprintf("Beam field: %d units", len(req.Units))
	var buf bytes.Buffer
	if err := visualization.HeatmapHTML(&buf, field.Magnitude, field.Axis, title); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("failed to write heatmap: %v", err)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	var req models.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	format, err := req.ProfileFormat()
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	if len(req.Units) == 0 {
		writeJSONError(w, http.StatusUnprocessableEntity, "no data")
		return
	}

	profile, err := s.sim.Profile(r.Context(), req.Params(s.beamDefaults()))
	if err != nil {
		writeError(w, err)
		return
	}
	peakDeg, peak := profile.Peak()

	if format == "json" {
		writeJSON(w, http.StatusOK, models.ProfileResponse{
			AnglesDeg: profile.AnglesDeg,
			Magnitude: profile.Magnitude,
			PeakDeg:   peakDeg,
			PeakValue: peak,
		})
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Beam profile (peak %.1f°)", peakDeg)
	if err := visualization.ProfilePlot(&buf, profile.AnglesDeg, profile.Magnitude, title); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("failed to write profile plot: %v", err)
	}
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := s.cfg.Scenarios
	if scenarios == nil {
		scenarios = []config.Scenario{}
	}
	writeJSON(w, http.StatusOK, map[string][]config.Scenario{"scenarios": scenarios})
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	scenario, ok := s.cfg.Scenario(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown scenario %q", name))
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}
