// Package panel reshapes long-format observations into a wide year × geography matrix.
package panel

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// Panel is a wide matrix: one row per year (ascending), one column per geography
// (ascending). Absent cells hold NaN.
type Panel struct {
	Years  []int
	Geos   []string
	Values [][]float64 // Values[year][geo]
}

// DuplicateError reports two observations for the same (year, geo) cell.
type DuplicateError struct {
	Year int
	Geo  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate observation for %s in %d", e.Geo, e.Year)
}

// Pivot builds a panel from filtered rows. Duplicate cells are rejected rather than
// resolved by picking one of them.
func Pivot(rows []dataset.Row) (*Panel, error) {
	yearSet := map[int]struct{}{}
	geoSet := map[string]struct{}{}
	for _, r := range rows {
		yearSet[r.Year] = struct{}{}
		geoSet[r.Geo] = struct{}{}
	}
	p := &Panel{
		Years: make([]int, 0, len(yearSet)),
		Geos:  make([]string, 0, len(geoSet)),
	}
	for y := range yearSet {
		p.Years = append(p.Years, y)
	}
	for g := range geoSet {
		p.Geos = append(p.Geos, g)
	}
	sort.Ints(p.Years)
	sort.Strings(p.Geos)

	yi := make(map[int]int, len(p.Years))
	for i, y := range p.Years {
		yi[y] = i
	}
	gi := make(map[string]int, len(p.Geos))
	for j, g := range p.Geos {
		gi[g] = j
	}
	p.Values = nanMatrix(len(p.Years), len(p.Geos))
	seen := make(map[[2]int]struct{}, len(rows))
	for _, r := range rows {
		i, j := yi[r.Year], gi[r.Geo]
		if _, dup := seen[[2]int{i, j}]; dup {
			return nil, &DuplicateError{Year: r.Year, Geo: r.Geo}
		}
		seen[[2]int{i, j}] = struct{}{}
		p.Values[i][j] = r.Value
	}
	return p, nil
}

// Rows returns the number of years.
func (p *Panel) Rows() int { return len(p.Years) }

// Cols returns the number of geographies.
func (p *Panel) Cols() int { return len(p.Geos) }

// Missing counts NaN cells.
func (p *Panel) Missing() int {
	n := 0
	for _, row := range p.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// Fill returns a copy with gaps forward-filled along increasing time, then leading
// gaps backward-filled. Columns without any value stay NaN.
func (p *Panel) Fill() *Panel {
	out := p.clone()
	for j := range out.Geos {
		last := math.NaN()
		for i := range out.Years {
			if math.IsNaN(out.Values[i][j]) {
				out.Values[i][j] = last
			} else {
				last = out.Values[i][j]
			}
		}
		next := math.NaN()
		for i := len(out.Years) - 1; i >= 0; i-- {
			if math.IsNaN(out.Values[i][j]) {
				out.Values[i][j] = next
			} else {
				next = out.Values[i][j]
			}
		}
	}
	return out
}

// DropEmpty returns a copy without columns that hold no value at all, plus the
// geographies it removed.
func (p *Panel) DropEmpty() (*Panel, []string) {
	var keep, dropped []string
	for j, g := range p.Geos {
		empty := true
		for i := range p.Years {
			if !math.IsNaN(p.Values[i][j]) {
				empty = false
				break
			}
		}
		if empty {
			dropped = append(dropped, g)
		} else {
			keep = append(keep, g)
		}
	}
	if len(dropped) == 0 {
		return p.clone(), nil
	}
	return p.Select(keep), dropped
}

// Diff returns the first difference along time: row t holds value[t] − value[t−1].
// The first year has no predecessor and is dropped.
func (p *Panel) Diff() *Panel {
	out := &Panel{Geos: append([]string(nil), p.Geos...)}
	if len(p.Years) < 2 {
		return out
	}
	out.Years = append([]int(nil), p.Years[1:]...)
	out.Values = make([][]float64, len(out.Years))
	for i := 1; i < len(p.Years); i++ {
		row := make([]float64, len(p.Geos))
		for j := range p.Geos {
			row[j] = p.Values[i][j] - p.Values[i-1][j]
		}
		out.Values[i-1] = row
	}
	return out
}

// Select returns a copy restricted to the given geographies, in the given order.
// Unknown geographies are skipped.
func (p *Panel) Select(geos []string) *Panel {
	idx := make([]int, 0, len(geos))
	out := &Panel{Years: append([]int(nil), p.Years...)}
	for _, g := range geos {
		if j := p.index(g); j >= 0 {
			idx = append(idx, j)
			out.Geos = append(out.Geos, g)
		}
	}
	out.Values = make([][]float64, len(p.Years))
	for i := range p.Years {
		row := make([]float64, len(idx))
		for k, j := range idx {
			row[k] = p.Values[i][j]
		}
		out.Values[i] = row
	}
	return out
}

// Column returns the values of one geography ordered by year, or nil if absent.
func (p *Panel) Column(geo string) []float64 {
	j := p.index(geo)
	if j < 0 {
		return nil
	}
	out := make([]float64, len(p.Years))
	for i := range p.Years {
		out[i] = p.Values[i][j]
	}
	return out
}

// Dense returns the panel as a years × geos matrix.
func (p *Panel) Dense() *mat.Dense {
	r, c := len(p.Years), len(p.Geos)
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, r*c)
	for _, row := range p.Values {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

// Samples returns the transposed panel: one row per geography, one feature per year.
// This is the layout the clustering and anomaly models consume.
func (p *Panel) Samples() *mat.Dense {
	d := p.Dense()
	if d.IsEmpty() {
		return d
	}
	return mat.DenseCopyOf(d.T())
}

func (p *Panel) index(geo string) int {
	for j, g := range p.Geos {
		if g == geo {
			return j
		}
	}
	return -1
}

func (p *Panel) clone() *Panel {
	out := &Panel{
		Years:  append([]int(nil), p.Years...),
		Geos:   append([]string(nil), p.Geos...),
		Values: make([][]float64, len(p.Values)),
	}
	for i, row := range p.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

func nanMatrix(r, c int) [][]float64 {
	m := make([][]float64, r)
	for i := range m {
		row := make([]float64, c)
		for j := range row {
			row[j] = math.NaN()
		}
		m[i] = row
	}
	return m
}
