package visualization

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
)

// MaxHeatmapCells caps the cells per side sent to the browser.
const MaxHeatmapCells = 100

// HeatmapHTML renders a field magnitude grid as a standalone interactive HTML
// page. Rows of g are y samples and columns are x samples, both at the
// coordinates in axis. Large grids are decimated to at most MaxHeatmapCells
// per side.
func HeatmapHTML(w io.Writer, g *mat.Dense, axis []float64, title string) error {
	rows, cols := g.Dims()
	if len(axis) < rows || len(axis) < cols {
		return fmt.Errorf("heatmap: axis has %d samples for a %dx%d grid", len(axis), rows, cols)
	}

	stride := 1
	if n := max(rows, cols); n > MaxHeatmapCells {
		stride = (n + MaxHeatmapCells - 1) / MaxHeatmapCells
	}

	peak := mat.Max(g)
	if peak <= 0 {
		peak = 1
	}

	data := make([]opts.ScatterData, 0, (rows/stride+1)*(cols/stride+1))
	for i := 0; i < rows; i += stride {
		for j := 0; j < cols; j += stride {
			data = append(data, opts.ScatterData{Value: []interface{}{axis[j], axis[i], g.At(i, j)}})
		}
	}

	lo, hi := axis[0], axis[len(axis)-1]
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d samples, stride %d, peak %.3g", rows, cols, stride, peak)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: lo, Max: hi, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: lo, Max: hi, Name: "y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: ViridisHex()},
		}),
	)
	scatter.AddSeries("magnitude", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 9}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	return nil
}
