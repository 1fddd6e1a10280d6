package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
	"gonum.org/v1/gonum/mat"
)

// blobPanel builds a panel of three well separated groups of four geographies each,
// observed over two years.
func blobPanel() *panel.Panel {
	p := &panel.Panel{Years: []int{2020, 2021}}
	bases := map[string]float64{"A": 10, "B": 100, "C": 200}
	for _, grp := range []string{"A", "B", "C"} {
		for m := 1; m <= 4; m++ {
			p.Geos = append(p.Geos, fmt.Sprintf("%s%d", grp, m))
		}
	}
	p.Values = make([][]float64, len(p.Years))
	for i := range p.Years {
		row := make([]float64, len(p.Geos))
		for j, g := range p.Geos {
			row[j] = bases[g[:1]] + float64(j%4) + 0.5*float64(i)
		}
		p.Values[i] = row
	}
	return p
}

func TestClusterSeparatesObviousGroups(t *testing.T) {
	c, err := Cluster(blobPanel(), KMeansOptions{K: 3, NInit: 10, MaxIter: 300, Seed: 42})
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	var labels []int
	for _, a := range c.Assignments {
		labels = append(labels, a.Cluster)
	}
	want := []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	if got := c.Members(2); !reflect.DeepEqual(got, []string{"C1", "C2", "C3", "C4"}) {
		t.Fatalf("cluster 2 = %v", got)
	}
	if a := c.Assignments[0]; math.Abs(a.Mean-10.25) > 1e-12 {
		t.Fatalf("mean of A1 = %v, want 10.25", a.Mean)
	}
}

func TestClusterIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	p := &panel.Panel{Years: []int{1, 2, 3}}
	for j := 0; j < 15; j++ {
		p.Geos = append(p.Geos, fmt.Sprintf("G%02d", j))
	}
	for range p.Years {
		row := make([]float64, len(p.Geos))
		for j := range row {
			row[j] = rng.Float64() * 100
		}
		p.Values = append(p.Values, row)
	}
	opts := DefaultKMeansOptions()
	first, err := Cluster(p, opts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	second, err := Cluster(p, opts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated fit differs:\n%+v\n%+v", first, second)
	}
}

func TestClusterInsufficientDataDoesNotFit(t *testing.T) {
	orig := fitKMeans
	defer func() { fitKMeans = orig }()
	fitKMeans = func(*mat.Dense, KMeansOptions) (*KMeans, error) {
		t.Fatal("model fitted despite too few geographies")
		return nil, nil
	}
	p := &panel.Panel{
		Years:  []int{2020, 2021},
		Geos:   []string{"DE", "FR", "ZZ"},
		Values: [][]float64{{1, 2, math.NaN()}, {3, 4, math.NaN()}},
	}
	_, err := Cluster(p, KMeansOptions{K: 3})
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	// ZZ has no value at all and cannot take part.
	if ide.Have != 2 || ide.Want != 3 {
		t.Fatalf("unexpected error fields: %+v", ide)
	}
}

func TestFitKMeansInertiaIsZeroWhenKEqualsSamples(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{0, 0, 5, 5, 9, 1})
	m, err := FitKMeans(x, KMeansOptions{K: 3})
	if err != nil {
		t.Fatalf("FitKMeans: %v", err)
	}
	if m.Inertia != 0 {
		t.Fatalf("inertia = %v, want 0", m.Inertia)
	}
	if !reflect.DeepEqual(m.Labels, []int{0, 1, 2}) {
		t.Fatalf("labels = %v", m.Labels)
	}
}

func TestFindKnee(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	knee, ok := FindKnee(xs, []float64{100, 30, 10, 8, 7, 6, 5, 4, 3, 2})
	if !ok || knee != 3 {
		t.Fatalf("knee = %v, %v; want 3, true", knee, ok)
	}
	line := make([]float64, len(xs))
	for i, x := range xs {
		line[i] = 50 - 4*x
	}
	if knee, ok := FindKnee(xs, line); ok {
		t.Fatalf("straight line reported a knee at %v", knee)
	}
	if _, ok := FindKnee(xs[:2], []float64{2, 1}); ok {
		t.Fatal("two points cannot have a knee")
	}
}

func TestElbowFindsBlobCount(t *testing.T) {
	res, err := Elbow(blobPanel(), 8, DefaultKMeansOptions())
	if err != nil {
		t.Fatalf("Elbow: %v", err)
	}
	if !reflect.DeepEqual(res.K, []int{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("k range = %v", res.K)
	}
	if k, ok := res.Optimal(); !ok || k != 3 {
		t.Fatalf("optimal = %d, %v; want 3, true", k, ok)
	}
}

func TestElbowCapsRangeAtSampleCount(t *testing.T) {
	p := &panel.Panel{
		Years:  []int{2020, 2021},
		Geos:   []string{"A", "B", "C"},
		Values: [][]float64{{1, 2, 30}, {1, 2, 31}},
	}
	res, err := Elbow(p, 10, DefaultKMeansOptions())
	if err != nil {
		t.Fatalf("Elbow: %v", err)
	}
	if len(res.K) != 3 {
		t.Fatalf("k range = %v, want 1..3", res.K)
	}
}

func uniformPanel(n int, seed uint64) *panel.Panel {
	rng := rand.New(rand.NewPCG(seed, seed))
	p := &panel.Panel{Years: []int{2018, 2019, 2020, 2021, 2022}}
	for j := 0; j < n; j++ {
		p.Geos = append(p.Geos, fmt.Sprintf("G%02d", j))
	}
	level := make([]float64, n)
	for range p.Years {
		row := make([]float64, n)
		for j := range row {
			level[j] += rng.Float64()
			row[j] = level[j]
		}
		p.Values = append(p.Values, row)
	}
	return p
}

func TestDetectAnomaliesFlagsAboutContaminationShare(t *testing.T) {
	a, err := DetectAnomalies(uniformPanel(20, 3), DefaultForestOptions())
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if len(a.Flags) != 20 {
		t.Fatalf("flags = %d, want 20", len(a.Flags))
	}
	if got := len(a.Outliers()); got > 1 {
		t.Fatalf("flagged %d of 20 at 5%% contamination", got)
	}
	if a.Changes.Rows() != 4 {
		t.Fatalf("difference rows = %d, want 4", a.Changes.Rows())
	}
}

func TestDetectAnomaliesFlagsExtremeChange(t *testing.T) {
	p := uniformPanel(19, 5)
	p.Geos = append(p.Geos, "ZZ")
	for i := range p.Values {
		p.Values[i] = append(p.Values[i], float64(i)*1000)
	}
	a, err := DetectAnomalies(p, DefaultForestOptions())
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if got := a.Outliers(); !reflect.DeepEqual(got, []string{"ZZ"}) {
		t.Fatalf("outliers = %v, want [ZZ]", got)
	}
}

func TestDetectAnomaliesIsDeterministic(t *testing.T) {
	p := uniformPanel(12, 9)
	a, err := DetectAnomalies(p, DefaultForestOptions())
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	b, err := DetectAnomalies(p, DefaultForestOptions())
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if !reflect.DeepEqual(a.Flags, b.Flags) {
		t.Fatal("scores differ between identical runs")
	}
}

func TestAvgPathLength(t *testing.T) {
	if avgPathLength(1) != 0 || avgPathLength(2) != 1 {
		t.Fatal("small-n path lengths wrong")
	}
	// c(256) ≈ 10.24
	if got := avgPathLength(256); math.Abs(got-10.2448) > 1e-3 {
		t.Fatalf("c(256) = %v", got)
	}
}

func TestClusterReportsFewerDistinctClustersThanK(t *testing.T) {
	p := &panel.Panel{
		Years:  []int{2020, 2021},
		Geos:   []string{"A", "B", "C", "D"},
		Values: [][]float64{{1, 1, 50, 50}, {2, 2, 60, 60}},
	}
	c, err := Cluster(p, KMeansOptions{K: 3, NInit: 4, MaxIter: 50, Seed: 42})
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if c.K != 3 || c.Distinct() != 2 {
		t.Fatalf("k=%d distinct=%d, want 3 and 2", c.K, c.Distinct())
	}
	if !reflect.DeepEqual(c.Members(0), []string{"A", "B"}) || !reflect.DeepEqual(c.Members(1), []string{"C", "D"}) {
		t.Fatalf("members = %v / %v", c.Members(0), c.Members(1))
	}
	if len(c.Members(2)) != 0 {
		t.Fatalf("third cluster should be empty, got %v", c.Members(2))
	}
}
