package ml

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
	"gonum.org/v1/gonum/mat"
)

// ForestOptions controls an isolation forest.
type ForestOptions struct {
	Trees         int
	MaxSamples    int     // per-tree subsample cap
	Contamination float64 // expected share of outliers, in (0, 0.5]
	Seed          uint64
}

// DefaultForestOptions returns 100 trees, 256 samples, 5% contamination, seed 42.
func DefaultForestOptions() ForestOptions {
	return ForestOptions{Trees: 100, MaxSamples: 256, Contamination: 0.05, Seed: 42}
}

func (o ForestOptions) normalized() ForestOptions {
	d := DefaultForestOptions()
	if o.Trees <= 0 {
		o.Trees = d.Trees
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = d.MaxSamples
	}
	if o.Contamination <= 0 {
		o.Contamination = d.Contamination
	}
	return o
}

// IsolationForest is a fitted ensemble of random isolation trees.
type IsolationForest struct {
	trees      []*isoNode
	sampleSize int
}

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int // samples reaching a leaf
}

func (n *isoNode) leaf() bool { return n.left == nil }

// FitForest grows opts.Trees isolation trees on random subsamples of the rows of x.
func FitForest(x *mat.Dense, opts ForestOptions) (*IsolationForest, error) {
	opts = opts.normalized()
	if x.IsEmpty() {
		return nil, ErrEmptyInput
	}
	n, _ := x.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = x.RawRowView(i)
	}
	psi := min(opts.MaxSamples, n)
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	f := &IsolationForest{sampleSize: psi}
	for t := 0; t < opts.Trees; t++ {
		perm := rng.Perm(n)[:psi]
		sub := make([][]float64, psi)
		for i, idx := range perm {
			sub[i] = rows[idx]
		}
		f.trees = append(f.trees, grow(sub, 0, maxDepth, rng))
	}
	return f, nil
}

func grow(data [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(data) <= 1 {
		return &isoNode{size: len(data)}
	}
	// Only features that vary within the node can separate it.
	var candidates []int
	for j := range data[0] {
		lo, hi := bounds(data, j)
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(data)}
	}
	feature := candidates[rng.IntN(len(candidates))]
	lo, hi := bounds(data, feature)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range data {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    grow(left, depth+1, maxDepth, rng),
		right:   grow(right, depth+1, maxDepth, rng),
	}
}

func bounds(data [][]float64, j int) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range data {
		lo = math.Min(lo, r[j])
		hi = math.Max(hi, r[j])
	}
	return lo, hi
}

// Score returns the anomaly score 2^(−E[h(x)]/c(ψ)) of one sample. Scores close to 1
// mark easily isolated samples; scores well below 0.5 mark ordinary ones.
func (f *IsolationForest) Score(sample []float64) float64 {
	total := 0.0
	for _, t := range f.trees {
		total += pathLength(sample, t, 0)
	}
	mean := total / float64(len(f.trees))
	c := avgPathLength(float64(f.sampleSize))
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

func pathLength(sample []float64, n *isoNode, depth int) float64 {
	for !n.leaf() {
		if sample[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + avgPathLength(float64(n.size))
}

// avgPathLength is c(n), the mean path length of an unsuccessful search in a binary
// search tree of n nodes.
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// AnomalyFlag is one geography's isolation-forest verdict.
type AnomalyFlag struct {
	Geo     string  `yaml:"geo"`
	Outlier bool    `yaml:"outlier"`
	Score   float64 `yaml:"score"`
}

// Anomalies is the result of DetectAnomalies.
type Anomalies struct {
	Threshold float64       `yaml:"threshold"` // scores above this are outliers
	Flags     []AnomalyFlag `yaml:"flags"`
	Changes   *panel.Panel  `yaml:"-"` // first differences the forest was fitted on
}

// Outliers lists the geographies flagged as anomalous, in panel order.
func (a *Anomalies) Outliers() []string {
	var out []string
	for _, f := range a.Flags {
		if f.Outlier {
			out = append(out, f.Geo)
		}
	}
	return out
}

// DetectAnomalies gap-fills the panel, takes year-over-year changes and fits an
// isolation forest with one sample per geography. The contamination share of
// geographies with the highest scores is flagged.
func DetectAnomalies(p *panel.Panel, opts ForestOptions) (*Anomalies, error) {
	opts = opts.normalized()
	if opts.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5], got %g", opts.Contamination)
	}
	filled, dropped := p.Fill().DropEmpty()
	if len(dropped) > 0 {
		slog.Debug("anomaly input dropped empty geographies", "dropped", dropped)
	}
	changes := filled.Diff()
	if changes.Rows() == 0 || changes.Cols() == 0 {
		return nil, ErrEmptyInput
	}
	x := changes.Samples()
	forest, err := FitForest(x, opts)
	if err != nil {
		return nil, fmt.Errorf("isolation forest: %w", err)
	}
	scores := make([]float64, changes.Cols())
	for i := range scores {
		scores[i] = forest.Score(x.RawRowView(i))
	}

	// Negated scores put outliers at the low end; the cut is the contamination
	// percentile of that distribution with linear interpolation.
	neg := make([]float64, len(scores))
	for i, s := range scores {
		neg[i] = -s
	}
	sort.Float64s(neg)
	offset := dataset.Quantile(neg, opts.Contamination)

	out := &Anomalies{Threshold: -offset, Changes: changes}
	for i, g := range changes.Geos {
		out.Flags = append(out.Flags, AnomalyFlag{
			Geo:     g,
			Outlier: -scores[i] < offset,
			Score:   scores[i],
		})
	}
	slog.Debug("isolation forest fitted", "samples", len(scores), "threshold", out.Threshold, "outliers", len(out.Outliers()))
	return out, nil
}
