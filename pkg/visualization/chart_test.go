package visualization

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func axis(n int, size float64) []float64 {
	a := make([]float64, n)
	for i := range a {
		a[i] = size * float64(i) / float64(n-1)
	}
	return a
}

func TestHeatmapHTML(t *testing.T) {
	const n = 250
	g := mat.NewDense(n, n, nil)
	g.Apply(func(i, j int, _ float64) float64 { return float64(i + j) }, g)

	var buf bytes.Buffer
	if err := HeatmapHTML(&buf, g, axis(n, 5), "Beam field"); err != nil {
		t.Fatalf("HeatmapHTML: %v", err)
	}
	page := buf.String()
	for _, want := range []string{"<html", "echarts", "Beam field", "stride 3"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHeatmapHTMLAxisMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := HeatmapHTML(&buf, mat.NewDense(4, 4, nil), axis(3, 1), "x"); err == nil {
		t.Error("expected error for short axis")
	}
}

func TestProfilePlot(t *testing.T) {
	const n = 181
	angles := make([]float64, n)
	mags := make([]float64, n)
	for i := range angles {
		angles[i] = -180 + 2*float64(i)
		mags[i] = math.Abs(math.Cos(angles[i] * math.Pi / 180))
	}

	var buf bytes.Buffer
	if err := ProfilePlot(&buf, angles, mags, "Beam profile"); err != nil {
		t.Fatalf("ProfilePlot: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() <= b.Dy() || b.Dy() == 0 {
		t.Errorf("unexpected plot size %v", b)
	}
}

func TestProfilePlotRejectsMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := ProfilePlot(&buf, []float64{0, 1}, []float64{1}, ""); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
