package pipeline

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Forest defaults.
const (
	DefaultEstimators      = 100
	defaultMinSamplesSplit = 2
)

// RandomForest averages bootstrap-trained regression trees.
type RandomForest struct {
	NEstimators     int     `json:"n_estimators"`
	NFeatures       int     `json:"n_features"`
	MaxDepth        int     `json:"max_depth,omitempty"`
	MinSamplesSplit int     `json:"min_samples_split"`
	Seed            int64   `json:"seed"`
	Trees           []*Tree `json:"trees"`

	workers int
}

// ForestOption configures a RandomForest.
type ForestOption func(*RandomForest)

// WithMaxDepth caps tree depth; 0 grows trees until leaves are pure.
func WithMaxDepth(depth int) ForestOption {
	return func(f *RandomForest) {
		if depth >= 0 {
			f.MaxDepth = depth
		}
	}
}

// WithWorkers bounds how many trees are fitted concurrently.
func WithWorkers(n int) ForestOption {
	return func(f *RandomForest) {
		if n > 0 {
			f.workers = n
		}
	}
}

// NewRandomForest returns an unfitted forest. Seed fixes every bootstrap draw.
func NewRandomForest(nEstimators int, seed int64, opts ...ForestOption) *RandomForest {
	if nEstimators < 1 {
		nEstimators = DefaultEstimators
	}
	f := &RandomForest{
		NEstimators:     nEstimators,
		MinSamplesSplit: defaultMinSamplesSplit,
		Seed:            seed,
		workers:         runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Regressor.
func (f *RandomForest) Name() string { return RandomForestName }

// Fit grows NEstimators trees on bootstrap resamples. Per-tree seeds are drawn
// up front so the result does not depend on worker scheduling.
func (f *RandomForest) Fit(x mat.Matrix, y []float64) error {
	rows, cols, err := checkTraining(x, y)
	if err != nil {
		return err
	}
	data := rowsOf(x)
	f.NFeatures = cols

	rng := rand.New(rand.NewSource(f.Seed)) //nolint:gosec // reproducible bootstrap
	seeds := make([]int64, f.NEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]*Tree, f.NEstimators)
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(max(f.workers, 1), f.NEstimators)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				trees[i] = f.fitTree(data, y, rows, seeds[i])
			}
		}()
	}
	for i := range trees {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	f.Trees = trees
	return nil
}

func (f *RandomForest) fitTree(x [][]float64, y []float64, rows int, seed int64) *Tree {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible bootstrap
	sample := make([]int, rows)
	for i := range sample {
		sample[i] = rng.Intn(rows)
	}
	t := &Tree{maxDepth: f.MaxDepth, minSamplesSplit: max(f.MinSamplesSplit, defaultMinSamplesSplit)}
	t.grow(x, y, sample, 0)
	return t
}

// Predict implements Regressor.
func (f *RandomForest) Predict(x mat.Matrix) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("%s: %w", f.Name(), ErrNotFitted)
	}
	if _, cols := x.Dims(); cols != f.NFeatures {
		return nil, fmt.Errorf("%s: %w: got %d columns, want %d", f.Name(), ErrDimension, cols, f.NFeatures)
	}
	data := rowsOf(x)
	out := make([]float64, len(data))
	for i, row := range data {
		var s float64
		for _, t := range f.Trees {
			s += t.predictRow(row)
		}
		out[i] = s / float64(len(f.Trees))
	}
	return out, nil
}

// Validate checks every tree against the expected input width.
func (f *RandomForest) Validate(nFeatures int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("%s: %w", f.Name(), ErrNotFitted)
	}
	if f.NFeatures != nFeatures {
		return fmt.Errorf("%s: %w: fitted on %d columns, want %d", f.Name(), ErrDimension, f.NFeatures, nFeatures)
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("%s: tree %d missing", f.Name(), i)
		}
		if err := t.Validate(nFeatures); err != nil {
			return fmt.Errorf("%s: tree %d: %w", f.Name(), i, err)
		}
	}
	return nil
}
