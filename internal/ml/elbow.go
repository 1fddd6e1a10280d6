package ml

import (
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
)

// ElbowResult holds the inertia curve of k = 1..len(K) and its knee, if any.
type ElbowResult struct {
	K       []int     `yaml:"k"`
	Inertia []float64 `yaml:"inertia"`
	Dropped []string  `yaml:"dropped,omitempty"`
	Knee    int       `yaml:"knee,omitempty"` // 0 when no knee was found
}

// Optimal returns the cluster count at the knee of the curve. ok is false when the
// curve has no detectable knee.
func (r *ElbowResult) Optimal() (k int, ok bool) {
	return r.Knee, r.Knee > 0
}

// Elbow fits k-means for k = 1..min(maxK, geographies) on the gap-filled panel,
// dropping geographies that have no value at all, and locates the knee of the
// inertia curve.
func Elbow(p *panel.Panel, maxK int, opts KMeansOptions) (*ElbowResult, error) {
	if maxK < 1 {
		return nil, fmt.Errorf("max clusters must be positive, got %d", maxK)
	}
	filled, dropped := p.Fill().DropEmpty()
	if filled.Cols() == 0 || filled.Rows() == 0 {
		return nil, ErrEmptyInput
	}
	if filled.Cols() < maxK {
		slog.Debug("elbow range capped by sample count", "max_k", maxK, "geos", filled.Cols())
		maxK = filled.Cols()
	}
	x := filled.Samples()
	res := &ElbowResult{Dropped: dropped}
	xs := make([]float64, 0, maxK)
	for k := 1; k <= maxK; k++ {
		o := opts
		o.K = k
		m, err := fitKMeans(x, o)
		if err != nil {
			return nil, fmt.Errorf("kmeans k=%d: %w", k, err)
		}
		res.K = append(res.K, k)
		res.Inertia = append(res.Inertia, m.Inertia)
		xs = append(xs, float64(k))
	}
	if knee, ok := FindKnee(xs, res.Inertia); ok {
		res.Knee = int(knee)
	}
	return res, nil
}
