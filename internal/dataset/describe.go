package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/stats"
)

// Summary is a describe-style digest of a numeric column.
type Summary struct {
	Count   int
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Q1      float64
	Median  float64
	Q3      float64
	Max     float64
}

// Describe summarizes the observed values of a table, skipping missing cells.
func Describe(t *Table) Summary {
	var s Summary
	sample := stats.Sample{}
	for _, o := range t.Rows {
		if o.Missing() {
			s.Missing++
			continue
		}
		sample.Xs = append(sample.Xs, o.Value)
	}
	s.Count = len(sample.Xs)
	if s.Count == 0 {
		s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan(), nan(), nan(), nan(), nan(), nan(), nan()
		return s
	}
	sample.Sort()
	s.Mean = sample.Mean()
	s.Std = math.NaN()
	if s.Count > 1 {
		s.Std = sample.StdDev()
	}
	s.Min, s.Max = sample.Bounds()
	s.Q1 = Quantile(sample.Xs, 0.25)
	s.Median = Quantile(sample.Xs, 0.5)
	s.Q3 = Quantile(sample.Xs, 0.75)
	return s
}

// String renders the summary as aligned console lines.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "count   %d (missing %d)\n", s.Count, s.Missing)
	fmt.Fprintf(&b, "mean    %.6g\n", s.Mean)
	fmt.Fprintf(&b, "std     %.6g\n", s.Std)
	fmt.Fprintf(&b, "min     %.6g\n", s.Min)
	fmt.Fprintf(&b, "25%%     %.6g\n", s.Q1)
	fmt.Fprintf(&b, "50%%     %.6g\n", s.Median)
	fmt.Fprintf(&b, "75%%     %.6g\n", s.Q3)
	fmt.Fprintf(&b, "max     %.6g\n", s.Max)
	return b.String()
}

func nan() float64 { return math.NaN() }
