package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// BarChart describes a grouped bar chart: one bar per series inside each
// category group.
type BarChart struct {
	Title       string
	YLabel      string
	LegendTitle string
	// Series label the rows of Values; Categories label its columns.
	Series     []string
	Categories []string
	Values     [][]float64
	// YAxisInMillions divides every value by one million.
	YAxisInMillions bool
}

// ChartFromTable charts a table with its columns as series and its samples
// as categories.
func ChartFromTable(t *Table, title string) BarChart {
	return BarChart{
		Title:      title,
		Series:     append([]string(nil), t.Columns...),
		Categories: append([]string(nil), t.Samples...),
		Values:     t.Transpose(),
	}
}

func (c BarChart) validate() error {
	if len(c.Series) == 0 || len(c.Categories) == 0 {
		return fmt.Errorf("%w: chart %q has no data", ErrShapeMismatch, c.Title)
	}
	if len(c.Values) != len(c.Series) {
		return fmt.Errorf("%w: %d value rows for %d series", ErrShapeMismatch, len(c.Values), len(c.Series))
	}
	for i, row := range c.Values {
		if len(row) != len(c.Categories) {
			return fmt.Errorf("%w: series %q has %d values for %d categories", ErrShapeMismatch, c.Series[i], len(row), len(c.Categories))
		}
	}
	return nil
}

// GroupedBarChart renders c to path. The image format follows the file
// extension (png, svg, pdf, ...).
func GroupedBarChart(path string, c BarChart) error {
	if err := c.validate(); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.Y.Label.Text = c.YLabel
	p.Legend.Top = true
	if c.LegendTitle != "" {
		p.Legend.Add(c.LegendTitle)
	}

	scale := 1.0
	if c.YAxisInMillions {
		scale = 1e6
	}

	n := len(c.Series)
	barWidth := vg.Points(60 / float64(n))
	for i, name := range c.Series {
		values := make(plotter.Values, len(c.Categories))
		for j, v := range c.Values[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			values[j] = v / scale
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return fmt.Errorf("series %q: %w", name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(n-1)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.NominalX(c.Categories...)

	width := vg.Length(len(c.Categories))*vg.Points(80) + 2*vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving chart %s: %w", path, err)
	}
	return nil
}
