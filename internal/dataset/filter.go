package dataset

import (
	"fmt"
	"sort"
)

// Criteria selects the observations an analysis works on.
type Criteria struct {
	Indicator string
	Unit      string
	// Exclude lists geography codes dropped from every result (supranational aggregates).
	Exclude []string
	// MinYear bounds FilterSeries from below; 0 disables the bound.
	MinYear int
}

// DropStats makes the rows a filter discarded observable instead of silent.
type DropStats struct {
	// Excluded rows matched the criteria but belong to an excluded aggregate.
	Excluded int
	// MissingValue rows matched but had no usable observed value.
	MissingValue int
	// BadPeriod rows matched indicator and unit but carried an unparseable period.
	BadPeriod int
	// BeforeMinYear rows were older than Criteria.MinYear.
	BeforeMinYear int
}

// Total is the number of rows dropped for any reason.
func (d DropStats) Total() int {
	return d.Excluded + d.MissingValue + d.BadPeriod + d.BeforeMinYear
}

// Warnings describes non-zero drop counts in a form suitable for console output.
func (d DropStats) Warnings() []string {
	var out []string
	if d.MissingValue > 0 {
		out = append(out, fmt.Sprintf("dropped %d rows with missing OBS_VALUE", d.MissingValue))
	}
	if d.BadPeriod > 0 {
		out = append(out, fmt.Sprintf("dropped %d rows with unparseable TIME_PERIOD", d.BadPeriod))
	}
	if d.BeforeMinYear > 0 {
		out = append(out, fmt.Sprintf("dropped %d rows before the minimum year", d.BeforeMinYear))
	}
	if d.Excluded > 0 {
		out = append(out, fmt.Sprintf("excluded %d aggregate-region rows", d.Excluded))
	}
	return out
}

// Row is a filtered observation with its parsed year.
type Row struct {
	Year  int     `yaml:"year"`
	Geo   string  `yaml:"geo"`
	Value float64 `yaml:"value"`
}

// Filtered is the result of a filter call. It is never mutated after creation.
type Filtered struct {
	Rows    []Row
	Dropped DropStats
}

// ForGeo returns the rows for one geography ordered by year.
func (f *Filtered) ForGeo(geo string) []Row {
	var out []Row
	for _, r := range f.Rows {
		if r.Geo == geo {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Geos returns the distinct geography codes in ascending order.
func (f *Filtered) Geos() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range f.Rows {
		if _, ok := seen[r.Geo]; ok {
			continue
		}
		seen[r.Geo] = struct{}{}
		out = append(out, r.Geo)
	}
	sort.Strings(out)
	return out
}

// OnlyGeos returns a new Filtered restricted to the given geographies.
func (f *Filtered) OnlyGeos(geos []string) *Filtered {
	keep := make(map[string]struct{}, len(geos))
	for _, g := range geos {
		keep[g] = struct{}{}
	}
	out := &Filtered{Dropped: f.Dropped}
	for _, r := range f.Rows {
		if _, ok := keep[r.Geo]; ok {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// FilterYear returns rows for one indicator, unit and year, without excluded
// aggregates and without missing values.
func FilterYear(t *Table, c Criteria, year int) *Filtered {
	excluded := toSet(c.Exclude)
	out := &Filtered{}
	for _, o := range t.Rows {
		if o.Indicator != c.Indicator || o.Unit != c.Unit {
			continue
		}
		y, ok := o.Year()
		if !ok {
			out.Dropped.BadPeriod++
			continue
		}
		if y != year {
			continue
		}
		if o.Missing() {
			out.Dropped.MissingValue++
			continue
		}
		if _, ok := excluded[o.Geo]; ok {
			out.Dropped.Excluded++
			continue
		}
		out.Rows = append(out.Rows, Row{Year: y, Geo: o.Geo, Value: o.Value})
	}
	return out
}

// FilterSeries returns rows for one indicator and unit across all years from
// Criteria.MinYear on, without excluded aggregates and without missing values.
func FilterSeries(t *Table, c Criteria) *Filtered {
	excluded := toSet(c.Exclude)
	out := &Filtered{}
	for _, o := range t.Rows {
		if o.Indicator != c.Indicator || o.Unit != c.Unit {
			continue
		}
		if _, ok := excluded[o.Geo]; ok {
			out.Dropped.Excluded++
			continue
		}
		y, ok := o.Year()
		if !ok {
			out.Dropped.BadPeriod++
			continue
		}
		if o.Missing() {
			out.Dropped.MissingValue++
			continue
		}
		if c.MinYear > 0 && y < c.MinYear {
			out.Dropped.BeforeMinYear++
			continue
		}
		out.Rows = append(out.Rows, Row{Year: y, Geo: o.Geo, Value: o.Value})
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}
