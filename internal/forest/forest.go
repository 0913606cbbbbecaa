// Package forest implements a random forest classifier: bootstrap-sampled
// CART trees with weighted Gini splits and soft-vote probabilities.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidModel is returned by Validate for a structurally broken forest.
var ErrInvalidModel = errors.New("invalid forest model")

// Config controls forest training.
type Config struct {
	NumTrees        int
	Seed            uint64
	MaxFeatures     int // 0 selects floor(sqrt(features))
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int
	MinSamplesLeaf  int
	Workers         int
}

// DefaultConfig returns the production configuration: 100 trees, seed 42.
func DefaultConfig() Config {
	return Config{
		NumTrees:        100,
		Seed:            42,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Workers:         4,
	}
}

func (c Config) maxFeatures(d int) int {
	if c.MaxFeatures > 0 {
		return min(c.MaxFeatures, d)
	}
	return max(1, int(math.Sqrt(float64(d))))
}

// Forest is a trained ensemble. Every field is exported so the model can be
// gob-encoded as part of an artifact.
type Forest struct {
	NumClasses   int
	NumFeatures  int
	ClassWeights []float64
	Importances  []float64
	Trees        []Tree
}

// BalancedClassWeights returns n/(k*count) for every class present in y and
// 0 for absent classes.
func BalancedClassWeights(y []int, numClasses int) []float64 {
	counts := make([]int, numClasses)
	for _, c := range y {
		counts[c]++
	}
	weights := make([]float64, numClasses)
	for c, n := range counts {
		if n > 0 {
			weights[c] = float64(len(y)) / float64(numClasses*n)
		}
	}
	return weights
}

// Fit trains a forest on X (rows of equal width) and class codes y in
// [0,numClasses). Trees are grown concurrently but the result depends only
// on the data and cfg.Seed.
func Fit(ctx context.Context, X [][]float64, y []int, numClasses int, cfg Config) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("cannot fit forest on zero rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("X has %d rows but y has %d labels", len(X), len(y))
	}
	if numClasses < 1 {
		return nil, fmt.Errorf("numClasses must be positive, got %d", numClasses)
	}
	if cfg.NumTrees < 1 {
		return nil, fmt.Errorf("NumTrees must be positive, got %d", cfg.NumTrees)
	}

	d := len(X[0])
	if d == 0 {
		return nil, fmt.Errorf("cannot fit forest on zero features")
	}
	cols := make([][]float64, d)
	for j := range cols {
		cols[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), d)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d feature %d is not finite", i, j)
			}
			cols[j][i] = v
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, fmt.Errorf("row %d has class %d outside [0,%d)", i, y[i], numClasses)
		}
	}

	start := time.Now()
	classWeights := BalancedClassWeights(y, numClasses)

	// Seeds are drawn up front so scheduling cannot change the result.
	master := rand.New(rand.NewPCG(cfg.Seed, 0))
	seeds := make([]uint64, cfg.NumTrees)
	for t := range seeds {
		seeds[t] = master.Uint64()
	}

	trees := make([]Tree, cfg.NumTrees)
	importances := make([][]float64, cfg.NumTrees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[t], uint64(t)))
			tree, imp := growTree(cols, y, classWeights, numClasses, cfg, rng)
			trees[t] = *tree
			importances[t] = imp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest training aborted: %w", err)
	}

	f := &Forest{
		NumClasses:   numClasses,
		NumFeatures:  d,
		ClassWeights: classWeights,
		Importances:  meanImportances(importances, d),
		Trees:        trees,
	}

	log.Info().
		Int("trees", cfg.NumTrees).
		Int("rows", len(X)).
		Int("features", d).
		Int("max_features", cfg.maxFeatures(d)).
		Dur("duration", time.Since(start)).
		Msg("Random forest trained")

	return f, nil
}

// growTree draws a bootstrap sample of n rows and grows one tree on it.
// Sample weight is draw count times class weight.
func growTree(cols [][]float64, y []int, classWeights []float64, numClasses int, cfg Config, rng *rand.Rand) (*Tree, []float64) {
	n := len(y)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[rng.IntN(n)]++
	}

	w := make([]float64, n)
	idx := make([]int, 0, n)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		w[i] = float64(c) * classWeights[y[i]]
		if w[i] > 0 {
			idx = append(idx, i)
		}
	}

	b := newBuilder(cols, y, w, numClasses, cfg, rng)
	if len(idx) == 0 {
		b.tree.addNode()
		b.setLeaf(0, make([]float64, numClasses), 0)
		return b.tree, b.importances
	}
	b.build(idx, 0)
	return b.tree, b.importances
}

// meanImportances normalizes each tree's impurity decrease, averages over
// trees that split at least once and normalizes the result to sum 1.
func meanImportances(perTree [][]float64, d int) []float64 {
	out := make([]float64, d)
	used := 0
	for _, imp := range perTree {
		var sum float64
		for _, v := range imp {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / sum
		}
		used++
	}
	if used == 0 {
		return out
	}
	var total float64
	for j := range out {
		out[j] /= float64(used)
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// PredictProba returns the mean of the leaf distributions over all trees,
// normalized to sum to 1.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrInvalidModel)
	}
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", f.NumFeatures, len(x))
	}
	for j, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d is not finite", j)
		}
	}

	proba := make([]float64, f.NumClasses)
	for t := range f.Trees {
		for c, p := range f.Trees[t].leaf(x) {
			proba[c] += p
		}
	}

	var sum float64
	for _, p := range proba {
		sum += p
	}
	if sum <= 0 {
		return nil, fmt.Errorf("forest produced an empty distribution")
	}
	for c := range proba {
		proba[c] /= sum
	}
	return proba, nil
}

// Predict returns the most probable class code.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return Argmax(proba), nil
}

// Argmax returns the index of the largest value; the lowest index wins ties.
func Argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// FeatureImportances returns the normalized mean decrease in impurity per
// feature.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

// Validate checks the structure of a decoded forest: node references are
// in range and point forward, and leaves hold a distribution over
// NumClasses classes.
func (f *Forest) Validate() error {
	if f.NumClasses < 1 || f.NumFeatures < 1 {
		return fmt.Errorf("%w: %d classes, %d features", ErrInvalidModel, f.NumClasses, f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidModel)
	}
	if len(f.Importances) != 0 && len(f.Importances) != f.NumFeatures {
		return fmt.Errorf("%w: %d importances for %d features", ErrInvalidModel, len(f.Importances), f.NumFeatures)
	}

	for t := range f.Trees {
		if err := f.validateTree(&f.Trees[t]); err != nil {
			return fmt.Errorf("%w: tree %d: %v", ErrInvalidModel, t, err)
		}
	}
	return nil
}

func (f *Forest) validateTree(tree *Tree) error {
	n := tree.NodeCount()
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(tree.Threshold) != n || len(tree.Left) != n || len(tree.Right) != n || len(tree.Value) != n {
		return fmt.Errorf("node arrays have different lengths")
	}

	for node := 0; node < n; node++ {
		if tree.Feature[node] < 0 {
			value := tree.Value[node]
			if len(value) != f.NumClasses {
				return fmt.Errorf("leaf %d has %d classes, expected %d", node, len(value), f.NumClasses)
			}
			for _, p := range value {
				if math.IsNaN(p) || p < 0 || p > 1 {
					return fmt.Errorf("leaf %d has invalid probability %v", node, p)
				}
			}
			continue
		}
		if tree.Feature[node] >= f.NumFeatures {
			return fmt.Errorf("node %d splits on feature %d", node, tree.Feature[node])
		}
		if math.IsNaN(tree.Threshold[node]) {
			return fmt.Errorf("node %d has NaN threshold", node)
		}
		l, r := tree.Left[node], tree.Right[node]
		if l <= node || r <= node || l >= n || r >= n {
			return fmt.Errorf("node %d has children %d/%d", node, l, r)
		}
	}
	return nil
}
