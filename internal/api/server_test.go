package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftbeamlab/internal/models"
	"ftbeamlab/internal/monitoring"
	"ftbeamlab/internal/session"
	"ftbeamlab/pkg/config"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) http.Handler {
	t.Helper()
	prev := monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	cfg := config.DefaultConfig()
	cfg.Beam.Workers = 2
	for _, m := range mutate {
		m(cfg)
	}
	return NewServer(cfg, session.NewRegistry()).Handler()
}

func pngBytes(t *testing.T, w, h int, fn func(x, y int) uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = fn(x, y)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func flat(v uint8) func(int, int) uint8 { return func(int, int) uint8 { return v } }

type request struct {
	method, path string
	body         io.Reader
	header       map[string]string
}

func do(t *testing.T, h http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(req.method, req.path, req.body)
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func postJSON(t *testing.T, h http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	hdr := map[string]string{"Content-Type": "application/json"}
	if len(header) == 2 {
		hdr[header[0]] = header[1]
	}
	return do(t, h, request{method: http.MethodPost, path: path, body: strings.NewReader(body), header: hdr})
}

func upload(t *testing.T, h http.Handler, id string, data []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	hdr := map[string]string{"Content-Type": "image/png"}
	if len(header) == 2 {
		hdr[header[0]] = header[1]
	}
	return do(t, h, request{method: http.MethodPost, path: "/api/mixer/upload/" + id, body: bytes.NewReader(data), header: hdr})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body["error"]
}

func decodePNG(t *testing.T, w *httptest.ResponseRecorder) image.Image {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	return img
}

func listImages(t *testing.T, h http.Handler, header ...string) models.ImageList {
	t.Helper()
	hdr := map[string]string{}
	if len(header) == 2 {
		hdr[header[0]] = header[1]
	}
	w := do(t, h, request{method: http.MethodGet, path: "/api/mixer/images", header: hdr})
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ImageList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	return list
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, request{method: http.MethodGet, path: "/"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Server is running"}`, w.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, h, request{method: http.MethodGet, path: "/nope"}).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, request{method: http.MethodGet, path: "/api/mixer/process"}).Code)
}

func TestMixEmptyStoreIsNoData(t *testing.T) {
	h := newTestServer(t)
	w := postJSON(t, h, "/api/mixer/process", `{"weights": {}, "mode": "mag_phase"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no data", decodeError(t, w))
}

func TestUploadRawAndMultipart(t *testing.T) {
	h := newTestServer(t)

	w := upload(t, h, "a", pngBytes(t, 20, 16, flat(10)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Uploaded"}`, w.Body.String())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "b.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 12, 24, flat(200)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w = do(t, h, request{
		method: http.MethodPost,
		path:   "/api/mixer/upload/b",
		body:   &body,
		header: map[string]string{"Content-Type": mw.FormDataContentType()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	want := models.ImageList{Images: []models.ImageInfo{
		{ID: "a", Width: 12, Height: 16},
		{ID: "b", Width: 12, Height: 16},
	}}
	if diff := cmp.Diff(want, listImages(t, h)); diff != "" {
		t.Errorf("image list mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadRejectsGarbageWithoutTouchingStore(t *testing.T) {
	h := newTestServer(t)

	w := upload(t, h, "a", []byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, listImages(t, h).Images)
}

func TestUploadTooLarge(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 128 })

	noise := pngBytes(t, 64, 64, func(x, y int) uint8 { return uint8(x*37 ^ y*101) })
	require.Greater(t, len(noise), 128)

	w := upload(t, h, "a", noise)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Empty(t, listImages(t, h).Images)
}

func TestUploadPixelLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Server.MaxImagePixels = 32 * 32 })

	// A flat raster is tiny on the wire but over the pixel budget.
	wide := pngBytes(t, 64, 64, flat(0))
	w := upload(t, h, "a", wide)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Contains(t, decodeError(t, w), "too large")
	assert.Empty(t, listImages(t, h).Images)

	w = upload(t, h, "a", pngBytes(t, 32, 32, flat(9)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, listImages(t, h).Images, 1)
}

func TestMixBodyLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 64 })
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 4, 4, flat(1))).Code)

	body := `{"weights": {"` + strings.Repeat("a", 256) + `": 1}, "mode": "MAG_PHASE"}`
	w := postJSON(t, h, "/api/mixer/process", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestMixReturnsPNG(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 16, 16, func(x, y int) uint8 { return uint8(x * 16) })).Code)

	for _, body := range []string{
		`{"weights": {"a_mag": 1, "a_phase": 1}, "mode": "mag_phase"}`,
		`{"weights": {"a_real": 1, "a_imag": 1}, "mode": "real_imag"}`,
		`{"weights": {"a_mag": 1, "a_phase": 1}, "mode": "mag_phase", "region": {"x": 0.25, "y": 0.25, "w": 0.5, "h": 0.5, "inner": false}}`,
	} {
		img := decodePNG(t, postJSON(t, h, "/api/mixer/process", body))
		assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	}
}

func TestMixSelfIsIdentity(t *testing.T) {
	h := newTestServer(t)
	ramp := func(x, y int) uint8 { return uint8(x*8 + y) }
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 16, 16, ramp)).Code)

	img := decodePNG(t, postJSON(t, h, "/api/mixer/process", `{"weights": {"a_mag": 1, "a_phase": 1}, "mode": "mag_phase"}`))
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "mix output is %T", img)

	// min-max normalization of the ramp 0..135 keeps its ordering.
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(254), gray.GrayAt(15, 15).Y)
	assert.Less(t, gray.GrayAt(3, 0).Y, gray.GrayAt(4, 0).Y)
}

func TestMixRejectsBadRequests(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 8, 8, flat(1))).Code)

	for name, body := range map[string]string{
		"unknown mode":  `{"weights": {}, "mode": "polar"}`,
		"bad region":    `{"weights": {}, "mode": "mag_phase", "region": {"x": 2, "y": 0, "w": 1, "h": 1}}`,
		"unknown field": `{"weights": {}, "mode": "mag_phase", "gain": 3}`,
		"not json":      `weights=1`,
	} {
		t.Run(name, func(t *testing.T) {
			w := postJSON(t, h, "/api/mixer/process", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestComponentPreview(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 10, 6, func(x, y int) uint8 { return uint8(x * y) })).Code)

	for _, c := range []string{"magnitude", "phase", "real", "imaginary", "raw"} {
		img := decodePNG(t, do(t, h, request{method: http.MethodGet, path: "/api/mixer/component/a/" + c}))
		assert.Equal(t, image.Rect(0, 0, 10, 6), img.Bounds(), c)
	}

	img := decodePNG(t, do(t, h, request{method: http.MethodGet, path: "/api/mixer/component/a/raw?brightness=0"}))
	gray := img.(*image.Gray)
	for _, v := range gray.Pix {
		require.Zero(t, v)
	}

	for path, status := range map[string]int{
		"/api/mixer/component/a/imag":                   http.StatusBadRequest,
		"/api/mixer/component/zzz/raw":                  http.StatusNotFound,
		"/api/mixer/component/a/raw?brightness=300":     http.StatusBadRequest,
		"/api/mixer/component/a/raw?contrast=very-high": http.StatusBadRequest,
	} {
		w := do(t, h, request{method: http.MethodGet, path: path})
		assert.Equal(t, status, w.Code, path)
	}
}

func TestImageStatsAndCompare(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 8, 8, flat(100))).Code)
	require.Equal(t, http.StatusOK, upload(t, h, "b", pngBytes(t, 8, 8, flat(110))).Code)

	w := do(t, h, request{method: http.MethodGet, path: "/api/mixer/images/a/stats"})
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "a", stats["id"])
	assert.Equal(t, 100.0, stats["mean"])
	assert.Equal(t, 0.0, stats["std_dev"])
	assert.Equal(t, 8.0, stats["width"])

	w = do(t, h, request{method: http.MethodGet, path: "/api/mixer/images/a/compare/b"})
	require.Equal(t, http.StatusOK, w.Code)
	var q map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.InDelta(t, 10.0, q["rmse"], 1e-9)

	w = do(t, h, request{method: http.MethodGet, path: "/api/mixer/images/missing/stats"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveAndClearImages(t *testing.T) {
	h := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, upload(t, h, id, pngBytes(t, 4, 4, flat(9))).Code)
	}

	assert.Equal(t, http.StatusNoContent, do(t, h, request{method: http.MethodDelete, path: "/api/mixer/images/b"}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, request{method: http.MethodDelete, path: "/api/mixer/images/b"}).Code)
	assert.Len(t, listImages(t, h).Images, 2)

	assert.Equal(t, http.StatusNoContent, do(t, h, request{method: http.MethodDelete, path: "/api/mixer/images"}).Code)
	assert.Empty(t, listImages(t, h).Images)
}

func TestSessionsIsolateStores(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, request{method: http.MethodPost, path: "/api/sessions"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, created.SessionID, w.Header().Get(SessionHeader))

	require.Equal(t, http.StatusOK, upload(t, h, "a", pngBytes(t, 4, 4, flat(1)), SessionHeader, created.SessionID).Code)
	assert.Len(t, listImages(t, h, SessionHeader, created.SessionID).Images, 1)
	assert.Empty(t, listImages(t, h).Images)

	w = postJSON(t, h, "/api/mixer/process", `{"weights": {}, "mode": "mag_phase"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, request{method: http.MethodDelete, path: "/api/sessions/" + created.SessionID}).Code)
	w = upload(t, h, "a", pngBytes(t, 4, 4, flat(1)), SessionHeader, created.SessionID)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = upload(t, h, "a", pngBytes(t, 4, 4, flat(1)), SessionHeader, "not-a-session")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const singleElement = `{"units": [{"id": 1, "x": 0.5, "y": 0.5, "num_elements": 1, "frequency": 1e9}], "phase_shifts": [0], "resolution": 20, "map_size": 1.0`

func TestSimulateBeam(t *testing.T) {
	h := newTestServer(t)

	img := decodePNG(t, postJSON(t, h, "/api/beam/simulate", singleElement+`}`))
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "simulate output is %T", img)
	assert.Equal(t, image.Rect(0, 0, 20, 20), gray.Bounds())
	// A uniform field of 1.0 at peak normalization.
	for _, v := range gray.Pix {
		require.Equal(t, uint8(254), v)
	}

	img = decodePNG(t, postJSON(t, h, "/api/beam/simulate", singleElement+`, "colormap": "viridis"}`))
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	// Level 254 sits at the bright yellow end of viridis.
	r, g, b, _ := img.At(3, 3).RGBA()
	assert.InDelta(t, 0xfd, r>>8, 8)
	assert.InDelta(t, 0xe7, g>>8, 8)
	assert.InDelta(t, 0x25, b>>8, 8)
}

func TestSimulateBeamRangeNormalization(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Beam.Normalization = config.NormalizeRange })

	gray := decodePNG(t, postJSON(t, h, "/api/beam/simulate", singleElement+`}`)).(*image.Gray)
	for _, v := range gray.Pix {
		require.Zero(t, v)
	}
}

func TestSimulateBeamErrors(t *testing.T) {
	h := newTestServer(t)

	w := postJSON(t, h, "/api/beam/simulate", `{"units": [], "phase_shifts": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no data", decodeError(t, w))

	for name, tc := range map[string]struct {
		body   string
		status int
	}{
		"zero frequency":   {`{"units": [{"id": 1, "x": 1, "y": 1, "num_elements": 4, "frequency": 0}], "phase_shifts": [0]}`, http.StatusBadRequest},
		"negative count":   {`{"units": [{"id": 1, "x": 1, "y": 1, "num_elements": -4, "frequency": 1e9}], "phase_shifts": [0]}`, http.StatusBadRequest},
		"zero resolution":  {singleElement + `, "resolution": 0}`, http.StatusBadRequest},
		"huge resolution":  {`{"units": [{"id": 1, "x": 1, "y": 1, "num_elements": 4, "frequency": 1e9}], "phase_shifts": [0], "resolution": 5000}`, http.StatusRequestEntityTooLarge},
		"unknown colormap": {singleElement + `, "colormap": "jet"}`, http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			w := postJSON(t, h, "/api/beam/simulate", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	// The colormap is rejected before the field is even validated.
	w = postJSON(t, h, "/api/beam/simulate", `{"units": [{"id": 1, "x": 1, "y": 1, "num_elements": 4, "frequency": 1e9}], "phase_shifts": [0], "resolution": 5000, "colormap": "jet"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decodeError(t, w), "unknown palette")
}

func TestBeamHeatmap(t *testing.T) {
	h := newTestServer(t)
	w := postJSON(t, h, "/api/beam/heatmap", singleElement+`}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "echarts")
}

func TestBeamProfile(t *testing.T) {
	h := newTestServer(t)
	const pair = `{"units": [{"id": 1, "x": 0, "y": 0, "num_elements": 2, "frequency": 3e9}], "phase_shifts": [0], "radius": 2, "samples": 361`

	w := postJSON(t, h, "/api/beam/profile", pair+`, "format": "json"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Magnitude, 361)
	assert.InDelta(t, 2.0, resp.PeakValue, 1e-9)
	assert.InDelta(t, 0.0, resp.Magnitude[270], 1e-9)

	img := decodePNG(t, postJSON(t, h, "/api/beam/profile", pair+`}`))
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())

	w = postJSON(t, h, "/api/beam/profile", pair+`, "format": "svg"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, "/api/beam/profile", `{"units": [], "phase_shifts": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestScenarios(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, request{method: http.MethodGet, path: "/api/beam/scenarios"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Scenarios []config.Scenario `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	var names []string
	for _, s := range body.Scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"default", "5g", "ultrasound"}, names)
	assert.Equal(t, 1540.0, body.Scenarios[2].Speed)
}

func TestScenarioByName(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, request{method: http.MethodGet, path: "/api/beam/scenarios/5g"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s config.Scenario
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "5g", s.Name)
	require.Len(t, s.Units, 2)
	assert.Equal(t, 28e9, s.Units[0].Frequency)

	w = do(t, h, request{method: http.MethodGet, path: "/api/beam/scenarios/radar"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeError(t, w), "radar")
}

func TestCORS(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, request{method: http.MethodOptions, path: "/api/mixer/process", header: map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), SessionHeader)

	h = newTestServer(t, func(c *config.Config) { c.Server.AllowedOrigins = []string{"http://app.local"} })
	w = do(t, h, request{method: http.MethodGet, path: "/", header: map[string]string{"Origin": "http://app.local"}})
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))
	w = do(t, h, request{method: http.MethodGet, path: "/", header: map[string]string{"Origin": "http://evil.local"}})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
