// Package chart renders analysis results as PNG files with gonum/plot.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/KaramelBytes/gdpscope-cli/internal/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNothingToPlot is returned when the input holds no drawable values.
var ErrNothingToPlot = errors.New("nothing to plot")

// geoFile names a per-geography chart. Geography codes that could escape the chart
// directory are rejected.
func geoFile(prefix, geo string) (string, error) {
	if geo == "" || geo == "." || geo == ".." || strings.ContainsAny(geo, `/\`) {
		return "", fmt.Errorf("invalid geography code %q for a chart file name", geo)
	}
	return prefix + "_" + geo + ".png", nil
}

// Renderer writes charts into one directory.
type Renderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// New returns a renderer producing 12×6 inch charts in dir.
func New(dir string) *Renderer {
	return &Renderer{Dir: dir, Width: 12 * vg.Inch, Height: 6 * vg.Inch}
}

func (r *Renderer) save(p *plot.Plot, name string, w, h vg.Length) (string, error) {
	if err := utils.EnsureDir(r.Dir); err != nil {
		return "", err
	}
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(r.Dir, name)
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	slog.Debug("chart written", "path", path, "bytes", buf.Len())
	return path, nil
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	return p
}

func rotateXTicks(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

func rowsXY(rows []dataset.Row) plotter.XYs {
	pts := make(plotter.XYs, 0, len(rows))
	for _, row := range rows {
		if math.IsNaN(row.Value) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(row.Year), Y: row.Value})
	}
	return pts
}

// TimeSeries draws one line per geography across the years in f.
func (r *Renderer) TimeSeries(f *dataset.Filtered, geos []string, unit string) (string, error) {
	p := newPlot("GDP over time", "Year", fmt.Sprintf("GDP (%s)", unit))
	var lines []interface{}
	for _, g := range geos {
		pts := rowsXY(f.ForGeo(g))
		if len(pts) == 0 {
			continue
		}
		lines = append(lines, g, pts)
	}
	if len(lines) == 0 {
		return "", ErrNothingToPlot
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return "", fmt.Errorf("time series: %w", err)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return r.save(p, "timeseries.png", r.Width, r.Height)
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ.
type corrGrid struct{ m *analysis.CorrMatrix }

func (g corrGrid) Dims() (c, r int)   { return len(g.m.Columns), len(g.m.Columns) }
func (g corrGrid) Z(c, r int) float64 { return g.m.Values[r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// Correlation draws the matrix as a heat map on a blue-red scale from −1 to 1.
func (r *Renderer) Correlation(m *analysis.CorrMatrix) (string, error) {
	if m == nil || len(m.Columns) == 0 {
		return "", ErrNothingToPlot
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	h := plotter.NewHeatMap(corrGrid{m}, cm.Palette(255))
	h.Min, h.Max = -1, 1
	h.NaN = color.Gray{Y: 200}

	p := newPlot("GDP correlation between countries", "", "")
	p.Add(h)
	p.NominalX(m.Columns...)
	p.NominalY(m.Columns...)
	rotateXTicks(p)
	side := 12 * vg.Inch
	return r.save(p, "correlation.png", side, side)
}

// Boxes draws one box per geography from the raw yearly values in f.
func (r *Renderer) Boxes(f *dataset.Filtered, geos []string) (string, error) {
	p := newPlot("GDP distribution by country", "", "GDP")
	var names []string
	for _, g := range geos {
		rows := f.ForGeo(g)
		if len(rows) == 0 {
			continue
		}
		vals := make(plotter.Values, len(rows))
		for i, row := range rows {
			vals[i] = row.Value
		}
		b, err := plotter.NewBoxPlot(vg.Points(12), float64(len(names)), vals)
		if err != nil {
			return "", fmt.Errorf("box plot %s: %w", g, err)
		}
		p.Add(b)
		names = append(names, g)
	}
	if len(names) == 0 {
		return "", ErrNothingToPlot
	}
	p.NominalX(names...)
	rotateXTicks(p)
	return r.save(p, "distribution.png", r.Width, r.Height)
}

// Trend draws the observed series of one geography with its fitted line.
func (r *Renderer) Trend(geo string, rows []dataset.Row, t *analysis.Trend) (string, error) {
	name, err := geoFile("trend", geo)
	if err != nil {
		return "", err
	}
	pts := rowsXY(rows)
	if len(pts) == 0 || t == nil {
		return "", ErrNothingToPlot
	}
	p := newPlot(fmt.Sprintf("GDP trend: %s", geo), "Year", "GDP")
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("trend points: %w", err)
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(3)
	s.GlyphStyle.Color = plotutil.Color(0)

	fit := plotter.XYs{
		{X: float64(t.FirstYear), Y: t.At(t.FirstYear)},
		{X: float64(t.LastYear), Y: t.At(t.LastYear)},
	}
	l, err := plotter.NewLine(fit)
	if err != nil {
		return "", fmt.Errorf("trend line: %w", err)
	}
	l.Color = plotutil.Color(1)
	l.Width = vg.Points(2)
	p.Add(s, l)
	p.Legend.Add(geo, s)
	p.Legend.Add(fmt.Sprintf("fit (R²=%.3f)", t.R2), l)
	p.Legend.Top = true
	p.Legend.Left = true
	return r.save(p, name, r.Width, r.Height)
}

// Growth draws the year-over-year growth rate of one geography.
func (r *Renderer) Growth(geo string, growth []analysis.GrowthPoint) (string, error) {
	name, err := geoFile("growth", geo)
	if err != nil {
		return "", err
	}
	pts := make(plotter.XYs, 0, len(growth))
	for _, g := range growth {
		if math.IsNaN(g.GrowthPct) || math.IsInf(g.GrowthPct, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(g.Year), Y: g.GrowthPct})
	}
	if len(pts) == 0 {
		return "", ErrNothingToPlot
	}
	p := newPlot(fmt.Sprintf("GDP growth rate: %s", geo), "Year", "Growth (%)")
	if err := plotutil.AddLinePoints(p, geo, pts); err != nil {
		return "", fmt.Errorf("growth: %w", err)
	}
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(zero)
	return r.save(p, name, r.Width, r.Height)
}

// Clusters draws each geography's mean value coloured by its cluster.
func (r *Renderer) Clusters(c *ml.Clustering) (string, error) {
	if c == nil || len(c.Assignments) == 0 {
		return "", ErrNothingToPlot
	}
	p := newPlot(fmt.Sprintf("GDP clustering (%d clusters)", c.K), "Country", "Mean GDP")
	names := make([]string, len(c.Assignments))
	byCluster := make(map[int]plotter.XYs)
	for i, a := range c.Assignments {
		names[i] = a.Geo
		byCluster[a.Cluster] = append(byCluster[a.Cluster], plotter.XY{X: float64(i), Y: a.Mean})
	}
	for k := 0; k < c.K; k++ {
		pts, ok := byCluster[k]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return "", fmt.Errorf("cluster %d: %w", k, err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(5)
		s.GlyphStyle.Color = plotutil.Color(k)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", k), s)
	}
	p.NominalX(names...)
	rotateXTicks(p)
	p.Legend.Top = true
	return r.save(p, "clusters.png", r.Width, r.Height)
}

// Elbow draws inertia against k and marks the knee when one was found.
func (r *Renderer) Elbow(e *ml.ElbowResult) (string, error) {
	if e == nil || len(e.K) == 0 {
		return "", ErrNothingToPlot
	}
	pts := make(plotter.XYs, len(e.K))
	for i, k := range e.K {
		pts[i] = plotter.XY{X: float64(k), Y: e.Inertia[i]}
	}
	p := newPlot("Elbow method: inertia by cluster count", "Clusters", "Inertia")
	if err := plotutil.AddLinePoints(p, "inertia", pts); err != nil {
		return "", fmt.Errorf("elbow: %w", err)
	}
	if k, ok := e.Optimal(); ok {
		lo, hi := pts[0].Y, pts[0].Y
		for _, pt := range pts {
			lo = math.Min(lo, pt.Y)
			hi = math.Max(hi, pt.Y)
		}
		knee, err := plotter.NewLine(plotter.XYs{{X: float64(k), Y: lo}, {X: float64(k), Y: hi}})
		if err != nil {
			return "", fmt.Errorf("elbow marker: %w", err)
		}
		knee.Color = color.RGBA{R: 220, A: 255}
		knee.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(knee)
		p.Legend.Add(fmt.Sprintf("optimal: %d", k), knee)
	}
	p.Legend.Top = true
	return r.save(p, "elbow.png", 8*vg.Inch, 5*vg.Inch)
}

// Anomalies draws the year-over-year changes of the flagged geographies.
func (r *Renderer) Anomalies(a *ml.Anomalies) (string, error) {
	if a == nil || a.Changes == nil {
		return "", ErrNothingToPlot
	}
	var lines []interface{}
	for _, g := range a.Outliers() {
		col := a.Changes.Column(g)
		pts := make(plotter.XYs, 0, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(a.Changes.Years[i]), Y: v})
		}
		if len(pts) > 0 {
			lines = append(lines, g, pts)
		}
	}
	if len(lines) == 0 {
		return "", ErrNothingToPlot
	}
	p := newPlot("Anomalies in GDP trends", "Year", "GDP change")
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return "", fmt.Errorf("anomalies: %w", err)
	}
	p.Legend.Top = true
	return r.save(p, "anomalies.png", r.Width, r.Height)
}
