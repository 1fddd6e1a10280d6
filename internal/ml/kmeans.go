// Package ml holds the unsupervised models run on a reshaped GDP panel: k-means
// clustering, elbow-based selection of k and isolation-forest anomaly detection.
package ml

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyInput is returned when a model is asked to fit zero samples.
var ErrEmptyInput = errors.New("no samples to fit")

// InsufficientDataError reports fewer geographies than requested clusters.
type InsufficientDataError struct {
	Have int
	Want int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("too few geographies (%d) to form %d clusters", e.Have, e.Want)
}

// KMeansOptions controls a k-means fit.
type KMeansOptions struct {
	K       int
	NInit   int // independent k-means++ restarts; the lowest inertia wins
	MaxIter int
	Seed    uint64
}

// DefaultKMeansOptions returns 3 clusters, 10 restarts, 300 iterations, seed 42.
func DefaultKMeansOptions() KMeansOptions {
	return KMeansOptions{K: 3, NInit: 10, MaxIter: 300, Seed: 42}
}

func (o KMeansOptions) normalized() KMeansOptions {
	d := DefaultKMeansOptions()
	if o.NInit <= 0 {
		o.NInit = d.NInit
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	return o
}

// KMeans is a fitted model.
type KMeans struct {
	Centroids [][]float64
	Labels    []int
	Inertia   float64 // sum of squared distances to the assigned centroid
	Iter      int
}

// fitKMeans is swapped out in tests to prove preconditions are checked before fitting.
var fitKMeans = FitKMeans

// FitKMeans partitions the rows of x into opts.K clusters. The same options and input
// always produce the same labels.
func FitKMeans(x *mat.Dense, opts KMeansOptions) (*KMeans, error) {
	opts = opts.normalized()
	if x.IsEmpty() {
		return nil, ErrEmptyInput
	}
	n, _ := x.Dims()
	if opts.K < 1 {
		return nil, fmt.Errorf("cluster count must be positive, got %d", opts.K)
	}
	if n < opts.K {
		return nil, &InsufficientDataError{Have: n, Want: opts.K}
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = x.RawRowView(i)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	var best *KMeans
	for run := 0; run < opts.NInit; run++ {
		m := lloyd(rows, seedPlusPlus(rows, opts.K, rng), opts.MaxIter)
		if best == nil || m.Inertia < best.Inertia {
			best = m
		}
	}
	best.Labels = canonicalLabels(best.Labels, &best.Centroids)
	slog.Debug("kmeans fitted", "k", opts.K, "samples", n, "inertia", best.Inertia, "iter", best.Iter)
	return best, nil
}

// seedPlusPlus picks initial centroids with k-means++: the first uniformly, each
// further one with probability proportional to its squared distance to the nearest
// centroid chosen so far.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), rows[rng.IntN(n)]...))
	d2 := make([]float64, n)
	for i, r := range rows {
		d2[i] = sqDist(r, centers[0])
	}
	for len(centers) < k {
		total := floats.Sum(d2)
		next := 0
		if total == 0 {
			// All remaining points coincide with a centroid.
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range d2 {
				if d == 0 {
					continue
				}
				next = i
				acc += d
				if acc >= target {
					break
				}
			}
		}
		c := append([]float64(nil), rows[next]...)
		centers = append(centers, c)
		for i, r := range rows {
			if d := sqDist(r, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

func lloyd(rows [][]float64, centers [][]float64, maxIter int) *KMeans {
	n, k := len(rows), len(centers)
	dim := len(rows[0])
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, r := range rows {
			c, _ := nearest(r, centers)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, r := range rows {
			counts[labels[i]]++
			floats.Add(sums[labels[i]], r)
		}
		for c := range centers {
			if counts[c] == 0 {
				// Re-seed an empty cluster with the point farthest from its centroid.
				far := farthest(rows, labels, centers)
				copy(centers[c], rows[far])
				labels[far] = c
				changed = true
				continue
			}
			floats.ScaleTo(centers[c], 1/float64(counts[c]), sums[c])
		}
		if !changed {
			break
		}
	}
	inertia := 0.0
	for i, r := range rows {
		c, d := nearest(r, centers)
		labels[i] = c
		inertia += d
	}
	return &KMeans{Centroids: centers, Labels: labels, Inertia: inertia, Iter: iter}
}

func nearest(r []float64, centers [][]float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centers {
		if d := sqDist(r, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func farthest(rows [][]float64, labels []int, centers [][]float64) int {
	idx, maxD := 0, -1.0
	for i, r := range rows {
		if d := sqDist(r, centers[labels[i]]); d > maxD {
			idx, maxD = i, d
		}
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// canonicalLabels renumbers clusters in order of first appearance so identical
// partitions always carry identical ids.
func canonicalLabels(labels []int, centers *[][]float64) []int {
	remap := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := remap[l]
		if !ok {
			id = len(remap)
			remap[l] = id
		}
		out[i] = id
	}
	reordered := make([][]float64, len(*centers))
	for old, c := range *centers {
		if id, ok := remap[old]; ok {
			reordered[id] = c
		}
	}
	// Centroids that own no sample keep trailing slots.
	next := len(remap)
	for old, c := range *centers {
		if _, ok := remap[old]; !ok {
			reordered[next] = c
			next++
		}
	}
	*centers = reordered
	return out
}

// Assignment is one geography's cluster membership.
type Assignment struct {
	Geo     string  `yaml:"geo"`
	Cluster int     `yaml:"cluster"`
	Mean    float64 `yaml:"mean"` // average value over the panel's years
}

// Clustering is the result of Cluster.
type Clustering struct {
	K           int          `yaml:"k"`
	Inertia     float64      `yaml:"inertia"`
	Assignments []Assignment `yaml:"assignments"`
	Dropped     []string     `yaml:"dropped,omitempty"` // geographies without any value
}

// Members lists the geographies assigned to one cluster.
func (c *Clustering) Members(cluster int) []string {
	var out []string
	for _, a := range c.Assignments {
		if a.Cluster == cluster {
			out = append(out, a.Geo)
		}
	}
	return out
}

// Distinct counts the clusters that own at least one geography. It is below K when
// the samples hold fewer distinct points than K.
func (c *Clustering) Distinct() int {
	seen := map[int]struct{}{}
	for _, a := range c.Assignments {
		seen[a.Cluster] = struct{}{}
	}
	return len(seen)
}

// Cluster gap-fills the panel, treats each geography's yearly values as one sample
// and partitions the geographies into exactly opts.K clusters.
func Cluster(p *panel.Panel, opts KMeansOptions) (*Clustering, error) {
	filled, dropped := p.Fill().DropEmpty()
	slog.Debug("kmeans input", "geos", filled.Cols(), "years", filled.Rows(), "dropped", dropped)
	if filled.Cols() < opts.K {
		return nil, &InsufficientDataError{Have: filled.Cols(), Want: opts.K}
	}
	if filled.Rows() == 0 {
		return nil, ErrEmptyInput
	}
	x := filled.Samples()
	m, err := fitKMeans(x, opts)
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}
	out := &Clustering{K: opts.K, Inertia: m.Inertia, Dropped: dropped}
	for i, g := range filled.Geos {
		out.Assignments = append(out.Assignments, Assignment{
			Geo:     g,
			Cluster: m.Labels[i],
			Mean:    floats.Sum(x.RawRowView(i)) / float64(filled.Rows()),
		})
	}
	if d := out.Distinct(); d < opts.K {
		slog.Debug("kmeans produced empty clusters", "k", opts.K, "distinct", d)
	}
	return out, nil
}
