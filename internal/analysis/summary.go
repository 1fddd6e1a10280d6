package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
)

// DefaultTopN is the ranking length used when callers pass n <= 0.
const DefaultTopN = 10

// TopN returns the n rows with the largest values, descending. Ties are broken by
// geography code so the ranking is stable across runs.
func TopN(rows []dataset.Row, n int) []dataset.Row {
	if n <= 0 {
		n = DefaultTopN
	}
	sorted := append([]dataset.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value == sorted[j].Value {
			return sorted[i].Geo < sorted[j].Geo
		}
		return sorted[i].Value > sorted[j].Value
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Geos extracts the geography codes of rows in order.
func Geos(rows []dataset.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Geo
	}
	return out
}

// PctChange returns (v[t]/v[t-1] − 1)·100 for each period. The first period has no
// predecessor and is NaN.
func PctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (values[i]/values[i-1] - 1) * 100
	}
	return out
}

// GrowthPoint pairs a year's value with its percent change from the previous year.
type GrowthPoint struct {
	Year      int     `yaml:"year"`
	Value     float64 `yaml:"value"`
	GrowthPct float64 `yaml:"growth_pct"`
}

// Growth derives the growth-rate series of one geography's rows.
func Growth(rows []dataset.Row) []GrowthPoint {
	sorted := append([]dataset.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	vals := make([]float64, len(sorted))
	for i, r := range sorted {
		vals[i] = r.Value
	}
	pct := PctChange(vals)
	out := make([]GrowthPoint, len(sorted))
	for i, r := range sorted {
		out[i] = GrowthPoint{Year: r.Year, Value: r.Value, GrowthPct: pct[i]}
	}
	return out
}
