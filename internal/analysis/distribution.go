package analysis

import (
	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/aclements/go-moremath/stats"
)

// BoxSummary is the five-number summary behind a box plot, plus the values lying
// beyond 1.5·IQR from the quartiles.
type BoxSummary struct {
	Geo      string    `yaml:"geo"`
	Count    int       `yaml:"count"`
	Mean     float64   `yaml:"mean"`
	Min      float64   `yaml:"min"`
	Q1       float64   `yaml:"q1"`
	Median   float64   `yaml:"median"`
	Q3       float64   `yaml:"q3"`
	Max      float64   `yaml:"max"`
	IQR      float64   `yaml:"iqr"`
	Outliers []float64 `yaml:"outliers,omitempty"`
}

// Spread is the box width relative to the median; smaller means a steadier economy.
func (b BoxSummary) Spread() float64 {
	if b.Median == 0 {
		return 0
	}
	return b.IQR / b.Median
}

// Distribution summarizes each geography's values across years. Geographies with no
// rows are omitted; the result follows the order of geos.
func Distribution(f *dataset.Filtered, geos []string) []BoxSummary {
	byGeo := make(map[string][]float64)
	for _, r := range f.Rows {
		byGeo[r.Geo] = append(byGeo[r.Geo], r.Value)
	}
	var out []BoxSummary
	for _, g := range geos {
		vals := byGeo[g]
		if len(vals) == 0 {
			continue
		}
		s := stats.Sample{Xs: append([]float64(nil), vals...)}
		s.Sort()
		b := BoxSummary{Geo: g, Count: len(vals), Mean: s.Mean()}
		b.Min, b.Max = s.Bounds()
		b.Q1 = dataset.Quantile(s.Xs, 0.25)
		b.Median = dataset.Quantile(s.Xs, 0.5)
		b.Q3 = dataset.Quantile(s.Xs, 0.75)
		b.IQR = b.Q3 - b.Q1
		lo, hi := b.Q1-1.5*b.IQR, b.Q3+1.5*b.IQR
		for _, v := range s.Xs {
			if v < lo || v > hi {
				b.Outliers = append(b.Outliers, v)
			}
		}
		out = append(out, b)
	}
	return out
}
