package visualization

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ProfilePlot draws magnitude against bearing as a PNG line chart and marks
// the main lobe.
func ProfilePlot(w io.Writer, anglesDeg, magnitude []float64, title string) error {
	if len(anglesDeg) != len(magnitude) || len(anglesDeg) < 2 {
		return fmt.Errorf("profile plot: %d angles for %d magnitudes", len(anglesDeg), len(magnitude))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Bearing (deg)"
	p.Y.Label.Text = "Magnitude"
	p.X.Min, p.X.Max = anglesDeg[0], anglesDeg[len(anglesDeg)-1]
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(anglesDeg))
	peak := 0
	for i := range anglesDeg {
		pts[i] = plotter.XY{X: anglesDeg[i], Y: magnitude[i]}
		if magnitude[i] > magnitude[peak] {
			peak = i
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	line.Width = vg.Points(1.5)
	p.Add(line)

	marker, err := plotter.NewScatter(plotter.XYs{pts[peak]})
	if err != nil {
		return err
	}
	marker.GlyphStyle.Color = color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff}
	marker.GlyphStyle.Radius = vg.Points(4)
	p.Add(marker)
	p.Legend.Add(fmt.Sprintf("peak %.1f°", anglesDeg[peak]), marker)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("profile plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("profile plot: %w", err)
	}
	return nil
}
