package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/KaramelBytes/gdpscope-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/gdpscope-cli/internal/config"
	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
)

// session is one loaded dataset plus the configuration it is analysed with.
type session struct {
	cfg   *cfgpkg.Global
	table *dataset.Table
	// notes collects warnings so a report can list them.
	notes []string
}

func openSession() (*session, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	t, err := dataset.Load(c.DataFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (run 'gdpscope fetch' first)", err)
		}
		return nil, err
	}
	fmt.Printf("✓ Loaded %d rows from %s\n", len(t.Rows), c.DataFile)
	s := &session{cfg: c, table: t}
	if t.Malformed > 0 {
		s.warn(fmt.Sprintf("%d OBS_VALUE cells were not numbers and were treated as missing", t.Malformed))
	}
	return s, nil
}

func (s *session) warn(msg string) {
	fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", msg)
	s.notes = append(s.notes, msg)
}

func (s *session) warnDrops(step string, d dataset.DropStats) {
	for _, w := range d.Warnings() {
		s.warn(fmt.Sprintf("%s: %s", step, w))
	}
}

func (s *session) year() int {
	if flagYear > 0 {
		return flagYear
	}
	return s.cfg.AnalysisYear(time.Now())
}

// latest returns the single-year view used by rankings.
func (s *session) latest() *dataset.Filtered {
	f := dataset.FilterYear(s.table, s.cfg.Criteria(), s.year())
	s.warnDrops(fmt.Sprintf("year %d", s.year()), f.Dropped)
	return f
}

// series returns all years from the configured minimum year on.
func (s *session) series() *dataset.Filtered {
	f := dataset.FilterSeries(s.table, s.cfg.Criteria())
	s.warnDrops("series", f.Dropped)
	return f
}

// topGeos ranks the single-year view and returns the n leading geographies.
func (s *session) topGeos(n int) ([]string, error) {
	top := analysis.TopN(s.latest().Rows, n)
	if len(top) == 0 {
		return nil, fmt.Errorf("no %s/%s observations for %d", s.cfg.Indicator, s.cfg.Unit, s.year())
	}
	return analysis.Geos(top), nil
}

func (s *session) panel(f *dataset.Filtered) (*panel.Panel, error) {
	p, err := panel.Pivot(f.Rows)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if p.Cols() == 0 {
		return nil, fmt.Errorf("no %s/%s observations since %d", s.cfg.Indicator, s.cfg.Unit, s.cfg.MinYear)
	}
	return p, nil
}

func (s *session) renderer() *chart.Renderer {
	if !flagCharts {
		return nil
	}
	return chart.New(s.cfg.ChartsDir)
}

// emitChart reports a rendered chart. Empty inputs are a warning, not a failure.
func (s *session) emitChart(path string, err error) (string, error) {
	if errors.Is(err, chart.ErrNothingToPlot) {
		s.warn("chart skipped: nothing to plot")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	fmt.Printf("✓ Chart written to %s\n", path)
	return path, nil
}
