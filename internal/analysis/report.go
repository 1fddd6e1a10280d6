package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/google/uuid"
)

// Report collects the results of one full analysis run. Sections left nil are
// omitted from the rendered output.
type Report struct {
	RunID     string    `yaml:"run_id"`
	Generated time.Time `yaml:"generated"`
	Source    string    `yaml:"source"`
	Indicator string    `yaml:"indicator"`
	Unit      string    `yaml:"unit"`
	Year      int       `yaml:"year"`

	Top        []dataset.Row   `yaml:"top,omitempty"`
	TrendGeo   string          `yaml:"trend_geo,omitempty"`
	Trend      *Trend          `yaml:"trend,omitempty"`
	Growth     []GrowthPoint   `yaml:"growth,omitempty"`
	Corr       *CorrMatrix     `yaml:"correlation,omitempty"`
	CorrTop    []PairCorr      `yaml:"top_pairs,omitempty"`
	Boxes      []BoxSummary    `yaml:"distribution,omitempty"`
	Clusters   *ml.Clustering  `yaml:"clusters,omitempty"`
	Elbow      *ml.ElbowResult `yaml:"elbow,omitempty"`
	Anomalies  *ml.Anomalies   `yaml:"anomalies,omitempty"`
	Notes      []string        `yaml:"notes,omitempty"`
	ChartFiles []string        `yaml:"charts,omitempty"`
}

// NewReport stamps a report with a fresh run id.
func NewReport(source, indicator, unit string, year int) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Generated: time.Now().UTC(),
		Source:    source,
		Indicator: indicator,
		Unit:      unit,
		Year:      year,
	}
}

// Markdown renders the report as sectioned plain text.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[RUN]\n")
	b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	if !r.Generated.IsZero() {
		b.WriteString(fmt.Sprintf("Generated: %s\n", r.Generated.Format(time.RFC3339)))
	}
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("Indicator: %s (%s)\n", r.Indicator, r.Unit))

	if len(r.Top) > 0 {
		b.WriteString(fmt.Sprintf("\n[TOP %d IN %d]\n", len(r.Top), r.Year))
		for i, row := range r.Top {
			b.WriteString(fmt.Sprintf("%2d. %-10s %s\n", i+1, row.Geo, num(row.Value)))
		}
	}

	if r.Trend != nil {
		t := r.Trend
		b.WriteString(fmt.Sprintf("\n[TREND %s]\n", r.TrendGeo))
		b.WriteString(fmt.Sprintf("Years: %d–%d (n=%d)\n", t.FirstYear, t.LastYear, t.N))
		b.WriteString(fmt.Sprintf("Slope: %s per year (stderr %s)\n", num(t.Slope), num(t.StdErr)))
		b.WriteString(fmt.Sprintf("Intercept: %s (stderr %s)\n", num(t.Intercept), num(t.InterceptError)))
		b.WriteString(fmt.Sprintf("r: %.4f, R²: %.4f, p-value: %.4g\n", t.R, t.R2, t.PValue))
	}

	if len(r.Growth) > 0 {
		b.WriteString(fmt.Sprintf("\n[GROWTH %s]\n", r.TrendGeo))
		for _, g := range r.Growth {
			b.WriteString(fmt.Sprintf("- %d: %s (%s)\n", g.Year, num(g.Value), pct(g.GrowthPct)))
		}
	}

	if r.Corr != nil {
		b.WriteString("\n[CORRELATIONS]\n")
		b.WriteString(fmt.Sprintf("Matrix: %d×%d\n", len(r.Corr.Columns), len(r.Corr.Columns)))
		for _, p := range r.CorrTop {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}

	if len(r.Boxes) > 0 {
		b.WriteString("\n[DISTRIBUTION]\n")
		for _, box := range r.Boxes {
			b.WriteString(fmt.Sprintf("- %s: median %s, IQR %s–%s, range %s–%s",
				box.Geo, num(box.Median), num(box.Q1), num(box.Q3), num(box.Min), num(box.Max)))
			if len(box.Outliers) > 0 {
				b.WriteString(fmt.Sprintf("; %d outliers", len(box.Outliers)))
			}
			b.WriteString("\n")
		}
	}

	if r.Clusters != nil {
		b.WriteString(fmt.Sprintf("\n[CLUSTERS k=%d]\n", r.Clusters.K))
		b.WriteString(fmt.Sprintf("Inertia: %s\n", num(r.Clusters.Inertia)))
		for c := 0; c < r.Clusters.K; c++ {
			b.WriteString(fmt.Sprintf("- %d: %s\n", c, strings.Join(r.Clusters.Members(c), ", ")))
		}
	}

	if r.Elbow != nil {
		b.WriteString("\n[ELBOW]\n")
		for i, k := range r.Elbow.K {
			b.WriteString(fmt.Sprintf("- k=%d: %s\n", k, num(r.Elbow.Inertia[i])))
		}
		if k, ok := r.Elbow.Optimal(); ok {
			b.WriteString(fmt.Sprintf("Optimal clusters: %d\n", k))
		} else {
			b.WriteString("Optimal clusters: none detected\n")
		}
	}

	if r.Anomalies != nil {
		b.WriteString("\n[ANOMALIES]\n")
		out := r.Anomalies.Outliers()
		if len(out) == 0 {
			b.WriteString("No anomalous geographies\n")
		} else {
			b.WriteString(fmt.Sprintf("Anomalous: %s\n", strings.Join(out, ", ")))
		}
	}

	if len(r.Notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range r.Notes {
			b.WriteString(fmt.Sprintf("- %s\n", n))
		}
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", v)
}
