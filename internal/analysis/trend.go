package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrTooFewPoints is returned when a trend is requested for fewer than two years.
	ErrTooFewPoints = errors.New("linear trend needs at least 2 points")
	// ErrConstantX is returned when every point shares the same year.
	ErrConstantX = errors.New("cannot fit a linear trend when all years are identical")
)

// Trend is an ordinary least squares fit of value against year.
type Trend struct {
	Slope          float64 `yaml:"slope"`
	Intercept      float64 `yaml:"intercept"`
	R              float64 `yaml:"r"`
	R2             float64 `yaml:"r2"`
	PValue         float64 `yaml:"p_value"`
	StdErr         float64 `yaml:"stderr"`
	InterceptError float64 `yaml:"intercept_stderr"`
	N              int     `yaml:"n"`
	FirstYear      int     `yaml:"first_year"`
	LastYear       int     `yaml:"last_year"`
}

// At evaluates the fitted line at a year.
func (t *Trend) At(year int) float64 {
	return t.Intercept + t.Slope*float64(year)
}

// FitTrend fits value = intercept + slope·year over the given rows. The p-value is the
// two-sided test of zero slope against Student's t with n−2 degrees of freedom.
func FitTrend(rows []dataset.Row) (*Trend, error) {
	if len(rows) < 2 {
		return nil, ErrTooFewPoints
	}
	sorted := append([]dataset.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	n := len(sorted)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, r := range sorted {
		xs[i] = float64(r.Year)
		ys[i] = r.Value
	}
	mx, my := stat.Mean(xs, nil), stat.Mean(ys, nil)
	var sxx, syy, sxy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 {
		return nil, ErrConstantX
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	t := &Trend{
		Slope:     slope,
		Intercept: intercept,
		N:         n,
		FirstYear: sorted[0].Year,
		LastYear:  sorted[n-1].Year,
	}
	if syy != 0 {
		t.R = sxy / math.Sqrt(sxx*syy)
		if t.R > 1 {
			t.R = 1
		} else if t.R < -1 {
			t.R = -1
		}
	}
	t.R2 = t.R * t.R

	if n == 2 {
		// Two points fit exactly; there is no residual variance to test against.
		if ys[0] == ys[1] {
			t.PValue = 1
		}
		return t, nil
	}
	df := float64(n - 2)
	const tiny = 1e-20
	tstat := t.R * math.Sqrt(df/((1-t.R+tiny)*(1+t.R+tiny)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	t.PValue = 2 * dist.Survival(math.Abs(tstat))
	t.StdErr = math.Sqrt((1 - t.R2) * syy / sxx / df)
	t.InterceptError = t.StdErr * math.Sqrt(sxx/float64(n)+mx*mx)
	return t, nil
}
