package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
)

type PlotOptions struct {
	Width  int
	Height int
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width <= 0 {
		o.Width = 80
	}
	if o.Height <= 0 {
		o.Height = 10
	}
	return o
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Red, asciigraph.Green, asciigraph.Blue,
	asciigraph.Yellow, asciigraph.Cyan, asciigraph.Magenta,
}

// Column extracts entry i of every row. Short rows yield NaN.
func Column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for k, r := range rows {
		if i < len(r) {
			out[k] = r[i]
		} else {
			out[k] = math.NaN()
		}
	}
	return out
}

// PlotSeries draws one series over its sample index.
func PlotSeries(caption string, data []float64, opts PlotOptions) string {
	opts = opts.withDefaults()
	return asciigraph.Plot(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Precision(3),
		asciigraph.Caption(caption),
	)
}

// PlotColumns overlays the chosen state columns in one chart, each in its
// own color, followed by a legend.
func PlotColumns(rows [][]float64, cols []int, labels []string, opts PlotOptions) (string, error) {
	opts = opts.withDefaults()
	if len(rows) == 0 {
		return "", fmt.Errorf("viz: no samples to plot")
	}
	series := make([][]float64, 0, len(cols))
	colors := make([]asciigraph.AnsiColor, 0, len(cols))
	var legend strings.Builder
	for k, c := range cols {
		if c < 0 || c >= len(rows[0]) {
			return "", fmt.Errorf("viz: column %d out of range [0, %d)", c, len(rows[0]))
		}
		series = append(series, Column(rows, c))
		color := seriesColors[k%len(seriesColors)]
		colors = append(colors, color)
		name := fmt.Sprintf("x%d", c)
		if c < len(labels) {
			name = labels[c]
		}
		fmt.Fprintf(&legend, "  %s■\x1b[0m %s", color, name)
	}
	chart := asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(colors...),
	)
	return chart + "\n" + legend.String(), nil
}

// PhasePlot draws ys against xs as a connected Braille curve on a canvas
// of w x h cells.
func PhasePlot(xs, ys []float64, w, h int) string {
	c := NewCanvas(w, h)
	n := min(len(xs), len(ys))
	if n == 0 {
		return c.String()
	}
	xlo, xhi := bounds(xs[:n])
	ylo, yhi := bounds(ys[:n])
	pw, ph := c.PixelWidth()-1, c.PixelHeight()-1
	px := func(v float64) int { return int(math.Round((v - xlo) / (xhi - xlo) * float64(pw))) }
	py := func(v float64) int { return ph - int(math.Round((v-ylo)/(yhi-ylo)*float64(ph))) }

	started := false
	var x0, y0 int
	for i := 0; i < n; i++ {
		if !finite(xs[i]) || !finite(ys[i]) {
			started = false
			continue
		}
		x1, y1 := px(xs[i]), py(ys[i])
		if started {
			c.DrawLine(x0, y0, x1, y1)
		} else {
			c.Set(x1, y1)
		}
		x0, y0, started = x1, y1, true
	}
	return c.String()
}

// bounds returns a non-empty [lo, hi] covering the finite values of v.
func bounds(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if !finite(x) {
			continue
		}
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
