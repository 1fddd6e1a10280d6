package analysis

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestTopNOrdersDescendingAndDefaultsToTen(t *testing.T) {
	var rows []dataset.Row
	for i, g := range []string{"AT", "BE", "CZ", "DE", "DK", "EE", "ES", "FI", "FR", "HU", "IT", "PL"} {
		rows = append(rows, dataset.Row{Year: 2023, Geo: g, Value: float64(100 * (i%5 + 1))})
	}
	top := TopN(rows, 0)
	if len(top) != DefaultTopN {
		t.Fatalf("len = %d, want %d", len(top), DefaultTopN)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Value > top[i-1].Value {
			t.Fatalf("not descending at %d: %v", i, top)
		}
	}
	// Ties break on geography code.
	if got := Geos(top[:2]); !reflect.DeepEqual(got, []string{"DK", "HU"}) {
		t.Fatalf("leaders = %v", got)
	}
	if got := TopN(rows[:3], 1); len(got) != 1 || got[0].Geo != "CZ" {
		t.Fatalf("top 1 = %v", got)
	}
}

func TestTopNEndToEnd(t *testing.T) {
	csv := strings.Join([]string{
		"na_item,unit,TIME_PERIOD,geo,OBS_VALUE",
		"B1GQ,CP_MEUR,2023,DE,4121160",
		"B1GQ,CP_MEUR,2023,EU27_2020,17000000",
		"B1GQ,CP_MEUR,2023,FR,2803010",
		"B1GQ,CP_MEUR,2022,DE,3876810",
		"B1GQ,CP_MEUR,2023,HU,",
	}, "\n")
	tbl, err := dataset.Read(strings.NewReader(csv), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f := dataset.FilterYear(tbl, dataset.Criteria{Indicator: "B1GQ", Unit: "CP_MEUR", Exclude: []string{"EU27_2020"}}, 2023)
	top := TopN(f.Rows, 1)
	if len(top) != 1 || top[0].Geo != "DE" {
		t.Fatalf("top = %v, want DE", top)
	}
}

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110, 99})
	if !math.IsNaN(got[0]) {
		t.Fatalf("first = %v, want NaN", got[0])
	}
	if !approx(got[1], 10, 1e-9) || !approx(got[2], -10, 1e-9) {
		t.Fatalf("pct = %v", got)
	}
	g := Growth([]dataset.Row{{Year: 2021, Value: 110}, {Year: 2020, Value: 100}})
	if g[0].Year != 2020 || !math.IsNaN(g[0].GrowthPct) || !approx(g[1].GrowthPct, 10, 1e-9) {
		t.Fatalf("growth = %+v", g)
	}
}

func series(ys ...float64) []dataset.Row {
	out := make([]dataset.Row, len(ys))
	for i, y := range ys {
		out[i] = dataset.Row{Year: i + 1, Geo: "HU", Value: y}
	}
	return out
}

func TestFitTrend(t *testing.T) {
	tr, err := FitTrend(series(1, 3, 2, 5, 4))
	if err != nil {
		t.Fatalf("FitTrend: %v", err)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"slope", tr.Slope, 0.8},
		{"intercept", tr.Intercept, 0.6},
		{"r", tr.R, 0.8},
		{"r2", tr.R2, 0.64},
		{"p", tr.PValue, 0.104088},
		{"stderr", tr.StdErr, 0.346410},
		{"intercept stderr", tr.InterceptError, 1.148913},
	}
	for _, c := range checks {
		if !approx(c.got, c.want, 1e-5) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if tr.N != 5 || tr.FirstYear != 1 || tr.LastYear != 5 {
		t.Fatalf("unexpected range: %+v", tr)
	}
	if !approx(tr.At(6), 5.4, 1e-9) {
		t.Fatalf("At(6) = %v", tr.At(6))
	}
}

func TestFitTrendPerfectLine(t *testing.T) {
	rows := []dataset.Row{{Year: 2002, Value: 5}, {Year: 2000, Value: 1}, {Year: 2001, Value: 3}, {Year: 2003, Value: 7}}
	tr, err := FitTrend(rows)
	if err != nil {
		t.Fatalf("FitTrend: %v", err)
	}
	if !approx(tr.Slope, 2, 1e-9) || !approx(tr.R, 1, 1e-12) || tr.PValue > 1e-6 || tr.StdErr > 1e-6 {
		t.Fatalf("unexpected fit: %+v", tr)
	}
}

func TestFitTrendErrors(t *testing.T) {
	if _, err := FitTrend(series(1)); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("one point: %v", err)
	}
	same := []dataset.Row{{Year: 2020, Value: 1}, {Year: 2020, Value: 2}}
	if _, err := FitTrend(same); !errors.Is(err, ErrConstantX) {
		t.Fatalf("constant x: %v", err)
	}
	tr, err := FitTrend(series(4, 4))
	if err != nil {
		t.Fatalf("two equal points: %v", err)
	}
	if tr.PValue != 1 || tr.R != 0 {
		t.Fatalf("flat two-point fit = %+v", tr)
	}
}

func TestCorrelatePairwiseComplete(t *testing.T) {
	nan := math.NaN()
	p := &panel.Panel{
		Years: []int{2000, 2001, 2002, 2003},
		Geos:  []string{"A", "B", "C", "D"},
		Values: [][]float64{
			{1, 2, 4, 5},
			{2, 4, 3, 5},
			{3, 6, 2, 5},
			{4, 8, nan, 5},
		},
	}
	m := Correlate(p)
	if !approx(m.Values[0][1], 1, 1e-12) {
		t.Fatalf("r(A,B) = %v", m.Values[0][1])
	}
	if !approx(m.Values[0][2], -1, 1e-12) || m.Values[2][0] != m.Values[0][2] {
		t.Fatalf("r(A,C) = %v", m.Values[0][2])
	}
	if !math.IsNaN(m.Values[0][3]) {
		t.Fatalf("constant column should give NaN, got %v", m.Values[0][3])
	}
	for i := range m.Columns {
		if m.Values[i][i] != 1 {
			t.Fatalf("diagonal %d = %v", i, m.Values[i][i])
		}
	}
	pairs := m.TopPairs(2)
	if len(pairs) != 2 {
		t.Fatalf("pairs = %v", pairs)
	}
	for _, pr := range pairs {
		if pr.A == "D" || pr.B == "D" {
			t.Fatalf("undefined pair listed: %v", pr)
		}
	}
}

func TestDistribution(t *testing.T) {
	f := &dataset.Filtered{}
	for i, v := range []float64{5, 1, 9, 100, 3, 7, 2, 8, 4, 6} {
		f.Rows = append(f.Rows, dataset.Row{Year: 2000 + i, Geo: "AT", Value: v})
	}
	f.Rows = append(f.Rows, dataset.Row{Year: 2000, Geo: "BE", Value: 1})
	boxes := Distribution(f, []string{"AT", "XX", "BE"})
	if len(boxes) != 2 || boxes[0].Geo != "AT" || boxes[1].Geo != "BE" {
		t.Fatalf("boxes = %+v", boxes)
	}
	at := boxes[0]
	if at.Count != 10 || at.Min != 1 || at.Max != 100 {
		t.Fatalf("AT = %+v", at)
	}
	if !approx(at.Median, 5.5, 1e-9) {
		t.Fatalf("median = %v", at.Median)
	}
	// Linear interpolation between closest ranks, as pandas quantile() does.
	if !approx(at.Q1, 3.25, 1e-9) || !approx(at.Q3, 7.75, 1e-9) || !approx(at.IQR, 4.5, 1e-9) {
		t.Fatalf("quartiles = %v/%v iqr %v", at.Q1, at.Q3, at.IQR)
	}
	if !approx(at.Spread(), 4.5/5.5, 1e-12) {
		t.Fatalf("spread = %v", at.Spread())
	}
	if !reflect.DeepEqual(at.Outliers, []float64{100}) {
		t.Fatalf("outliers = %v", at.Outliers)
	}
	if boxes[1].IQR != 0 || len(boxes[1].Outliers) != 0 {
		t.Fatalf("single value box = %+v", boxes[1])
	}
}

func TestReportMarkdown(t *testing.T) {
	r := NewReport("eurostat_gdp_data.csv", "B1GQ", "CP_MEUR", 2023)
	if r.RunID == "" {
		t.Fatal("missing run id")
	}
	r.Top = []dataset.Row{{Year: 2023, Geo: "DE", Value: 4121160}}
	r.TrendGeo = "HU"
	r.Trend, _ = FitTrend(series(1, 3, 2, 5, 4))
	r.Growth = Growth(series(100, 110))
	r.Elbow = &ml.ElbowResult{K: []int{1, 2}, Inertia: []float64{10, 1}}
	r.Anomalies = &ml.Anomalies{Flags: []ml.AnomalyFlag{{Geo: "IE", Outlier: true, Score: 0.7}}}
	r.Notes = append(r.Notes, "top: excluded 2 aggregate-region rows")

	md := r.Markdown()
	for _, want := range []string{
		"Run: " + r.RunID,
		"[TOP 1 IN 2023]",
		" 1. DE",
		"[TREND HU]",
		"[GROWTH HU]",
		"n/a",
		"+10.00%",
		"Optimal clusters: none detected",
		"Anomalous: IE",
		"top: excluded 2 aggregate-region rows",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "[CLUSTERS") || strings.Contains(md, "[CORRELATIONS]") {
		t.Fatalf("empty sections rendered:\n%s", md)
	}
}
