package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleCSV = `DATAFLOW,LAST UPDATE,freq,unit,na_item,geo,TIME_PERIOD,OBS_VALUE,OBS_FLAG
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,DE,2021,3617450,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,DE,2022,3876810,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,FR,2022,2639092,p
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,HU,2022,168563.1,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,EU27_2020,2022,15824565,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,EA20,2022,13466940,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,LI,2022,,c
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,CH,2022,n/a,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CLV10_MEUR,B1GQ,DE,2022,3300000,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,P3,DE,2022,2000000,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,DE,1999,2000000,
ESTAT:NAMA_10_GDP(1.0),01/01/25,A,CP_MEUR,B1GQ,AT,20X1,400000,
`

var criteria = Criteria{
	Indicator: "B1GQ",
	Unit:      "CP_MEUR",
	Exclude:   []string{"EU27_2020", "EA", "EA12", "EA19", "EA20"},
	MinYear:   2000,
}

func loadSample(t *testing.T) *Table {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gdp.csv")
	if err := os.WriteFile(p, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tbl
}

func TestLoadParsesRequiredColumns(t *testing.T) {
	tbl := loadSample(t)
	if tbl.Name != "gdp.csv" {
		t.Fatalf("name = %q", tbl.Name)
	}
	if len(tbl.Rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(tbl.Rows))
	}
	if tbl.Malformed != 1 {
		t.Fatalf("malformed = %d, want 1 (the n/a cell)", tbl.Malformed)
	}
	first := tbl.Rows[0]
	if first.Geo != "DE" || first.Unit != "CP_MEUR" || first.Indicator != "B1GQ" || first.Value != 3617450 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if y, ok := first.Year(); !ok || y != 2021 {
		t.Fatalf("year = %d/%v", y, ok)
	}
	if !tbl.Rows[6].Missing() {
		t.Fatalf("empty OBS_VALUE should be missing: %+v", tbl.Rows[6])
	}
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("geo,TIME_PERIOD,OBS_VALUE\nDE,2022,1\n"), 0)
	var mc *MissingColumnError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
	if mc.Column != ColIndicator {
		t.Fatalf("column = %q", mc.Column)
	}
}

func TestReadStripsBOMAndHandlesTabs(t *testing.T) {
	in := "\ufeffna_item\tunit\tTIME_PERIOD\tgeo\tOBS_VALUE\nB1GQ\tCP_MEUR\t2022\tHU\t1.5\n"
	tbl, err := Read(strings.NewReader(in), '\t')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0].Value != 1.5 {
		t.Fatalf("unexpected rows: %+v", tbl.Rows)
	}
}

func TestFilterYearExcludesAggregatesAndMissing(t *testing.T) {
	tbl := loadSample(t)
	f := FilterYear(tbl, criteria, 2022)
	geos := f.Geos()
	want := []string{"DE", "FR", "HU"}
	if strings.Join(geos, ",") != strings.Join(want, ",") {
		t.Fatalf("geos = %v, want %v", geos, want)
	}
	for _, r := range f.Rows {
		if math.IsNaN(r.Value) {
			t.Fatalf("row with missing value survived: %+v", r)
		}
		for _, ex := range criteria.Exclude {
			if r.Geo == ex {
				t.Fatalf("excluded geo survived: %+v", r)
			}
		}
	}
	if f.Dropped.Excluded != 2 {
		t.Fatalf("excluded = %d, want 2", f.Dropped.Excluded)
	}
	if f.Dropped.MissingValue != 2 {
		t.Fatalf("missing = %d, want 2", f.Dropped.MissingValue)
	}
	if f.Dropped.BadPeriod != 1 {
		t.Fatalf("bad period = %d, want 1", f.Dropped.BadPeriod)
	}
	if len(f.Dropped.Warnings()) != 3 {
		t.Fatalf("warnings = %v", f.Dropped.Warnings())
	}
}

func TestFilterSeriesAppliesMinYear(t *testing.T) {
	tbl := loadSample(t)
	f := FilterSeries(tbl, criteria)
	de := f.ForGeo("DE")
	if len(de) != 2 {
		t.Fatalf("DE rows = %+v", de)
	}
	if de[0].Year != 2021 || de[1].Year != 2022 {
		t.Fatalf("DE rows not ordered by year: %+v", de)
	}
	if f.Dropped.BeforeMinYear != 1 {
		t.Fatalf("before min year = %d, want 1", f.Dropped.BeforeMinYear)
	}
	if f.Dropped.Total() != f.Dropped.Excluded+f.Dropped.MissingValue+f.Dropped.BadPeriod+1 {
		t.Fatalf("total mismatch: %+v", f.Dropped)
	}
	only := f.OnlyGeos([]string{"HU"})
	if len(only.Rows) != 1 || only.Rows[0].Geo != "HU" {
		t.Fatalf("OnlyGeos = %+v", only.Rows)
	}
}

func TestDescribe(t *testing.T) {
	in := "na_item,unit,TIME_PERIOD,geo,OBS_VALUE\n" +
		"B1GQ,CP_MEUR,2020,A,1\n" +
		"B1GQ,CP_MEUR,2020,B,2\n" +
		"B1GQ,CP_MEUR,2020,C,3\n" +
		"B1GQ,CP_MEUR,2020,D,\n"
	tbl, err := Read(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	s := Describe(tbl)
	if s.Count != 3 || s.Missing != 1 {
		t.Fatalf("count/missing = %d/%d", s.Count, s.Missing)
	}
	if s.Mean != 2 || s.Min != 1 || s.Max != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if math.Abs(s.Median-2) > 1e-9 || math.Abs(s.Q1-1.5) > 1e-9 || math.Abs(s.Q3-2.5) > 1e-9 {
		t.Fatalf("unexpected quartiles: %+v", s)
	}
	if math.Abs(s.Std-1) > 1e-12 {
		t.Fatalf("std = %v, want 1", s.Std)
	}
	if !strings.Contains(s.String(), "count   3 (missing 1)") {
		t.Fatalf("unexpected rendering: %s", s.String())
	}
}

func TestLoadWorkbook(t *testing.T) {
	p := filepath.Join(t.TempDir(), "gdp.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"freq", "unit", "na_item", "geo", "TIME_PERIOD", "OBS_VALUE"},
		{"A", "CP_MEUR", "B1GQ", "DE", "2022", 3876810},
		{},
		{"A", "CP_MEUR", "B1GQ", "HU", "2022", 168563.1},
		{"A", "CP_MEUR", "B1GQ", "LI", "2022", ""},
	}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = f.Close()

	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Name != "gdp.xlsx" || len(tbl.Rows) != 3 {
		t.Fatalf("name/rows = %s/%d", tbl.Name, len(tbl.Rows))
	}
	if tbl.Rows[0].Geo != "DE" || tbl.Rows[0].Value != 3876810 {
		t.Fatalf("unexpected first row: %+v", tbl.Rows[0])
	}
	if tbl.Rows[1].Value != 168563.1 || !tbl.Rows[2].Missing() {
		t.Fatalf("unexpected values: %+v", tbl.Rows[1:])
	}
	f2 := FilterYear(tbl, criteria, 2022)
	if len(f2.Rows) != 2 || f2.Dropped.MissingValue != 1 {
		t.Fatalf("filter: %+v", f2)
	}
}

func TestQuantileLinear(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	cases := []struct {
		q, want float64
	}{
		{-1, 1}, {0, 1}, {0.25, 1.75}, {0.5, 2.5}, {0.75, 3.25}, {1, 4}, {2, 4},
	}
	for _, c := range cases {
		if got := Quantile(xs, c.q); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Quantile(%v) = %v, want %v", c.q, got, c.want)
		}
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Fatalf("empty input should yield NaN")
	}
}
