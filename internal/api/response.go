package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"

	"ftbeamlab/internal/monitoring"
	"ftbeamlab/internal/session"
	"ftbeamlab/pkg/beam"
	"ftbeamlab/pkg/mixer"
	"ftbeamlab/pkg/spectral"
	"ftbeamlab/pkg/visualization"
)

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// writeJSONError writes {"error": msg} with the given status code.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePNG encodes img before touching the response so an encoder failure
// can still be reported as a 500.
func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := visualization.EncodePNG(&buf, img); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("failed to write png response: %v", err)
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, mixer.ErrNoData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mixer.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytes),
		errors.Is(err, spectral.ErrImageTooLarge),
		errors.Is(err, beam.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, spectral.ErrDecode),
		errors.Is(err, spectral.ErrEmptyImage),
		errors.Is(err, spectral.ErrUnknownComponent),
		errors.Is(err, mixer.ErrInvalidMask),
		errors.Is(err, mixer.ErrUnknownMode),
		errors.Is(err, beam.ErrInvalidFrequency),
		errors.Is(err, beam.ErrInvalidElements),
		errors.Is(err, beam.ErrInvalidParams),
		errors.Is(err, visualization.ErrInvalidAdjustment),
		errors.Is(err, visualization.ErrUnknownPalette),
		errors.Is(err, session.ErrInvalidID),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// writeError reports err with the status statusFor assigns. An empty store is
// reported with the fixed message "no data".
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, mixer.ErrNoData):
		msg = "no data"
	case status == http.StatusInternalServerError:
		monitoring.Logf("internal error: %v", err)
	}
	writeJSONError(w, status, msg)
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
