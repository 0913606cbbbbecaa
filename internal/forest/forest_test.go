package forest

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusters returns three well separated classes on feature 0 plus two noise
// features.
func clusters(n int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, 1))
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		c := i % 3
		X = append(X, []float64{
			float64(c)*10 + rng.Float64(),
			rng.NormFloat64(),
			rng.NormFloat64(),
		})
		y = append(y, c)
	}
	return X, y
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumTrees = 15
	return cfg
}

func TestFit_SeparatesClusters(t *testing.T) {
	X, y := clusters(150, 7)
	f, err := Fit(context.Background(), X, y, 3, smallConfig())
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	assert.Len(t, f.Trees, 15)
	for c, x := range [][]float64{{0.5, 0, 0}, {10.5, 0, 0}, {20.5, 0, 0}} {
		got, err := f.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestPredictProba_IsDistribution(t *testing.T) {
	X, y := clusters(90, 3)
	f, err := Fit(context.Background(), X, y, 3, smallConfig())
	require.NoError(t, err)

	for _, x := range X {
		p, err := f.PredictProba(x)
		require.NoError(t, err)
		require.Len(t, p, 3)
		var sum float64
		for _, v := range p {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestFit_DeterministicAcrossWorkerCounts(t *testing.T) {
	X, y := clusters(120, 11)

	cfg := smallConfig()
	cfg.Workers = 1
	a, err := Fit(context.Background(), X, y, 3, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	b, err := Fit(context.Background(), X, y, 3, cfg)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	cfg.Seed = 43
	c, err := Fit(context.Background(), X, y, 3, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Trees, c.Trees, "different seed grows different trees")
}

func TestFeatureImportances_FavorInformativeFeature(t *testing.T) {
	X, y := clusters(150, 5)
	f, err := Fit(context.Background(), X, y, 3, smallConfig())
	require.NoError(t, err)

	imp := f.FeatureImportances()
	require.Len(t, imp, 3)
	var sum float64
	for _, v := range imp {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, imp[0], imp[1])
	assert.Greater(t, imp[0], imp[2])
}

func TestBalancedClassWeights(t *testing.T) {
	w := BalancedClassWeights([]int{0, 0, 0, 1}, 3)
	assert.InDelta(t, 4.0/9.0, w[0], 1e-12)
	assert.InDelta(t, 4.0/3.0, w[1], 1e-12)
	assert.Equal(t, 0.0, w[2], "absent class")
}

func TestBalancedWeights_MinorityClassStillPredicted(t *testing.T) {
	// 95 majority rows and 5 minority rows at a distinct location.
	var X [][]float64
	var y []int
	for i := 0; i < 95; i++ {
		X = append(X, []float64{float64(i % 10), 0})
		y = append(y, 0)
	}
	for i := 0; i < 5; i++ {
		X = append(X, []float64{100 + float64(i), 1})
		y = append(y, 1)
	}

	f, err := Fit(context.Background(), X, y, 2, smallConfig())
	require.NoError(t, err)
	got, err := f.Predict([]float64{102, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestArgmax_LowestIndexWinsTies(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float64{0.4, 0.4, 0.2}))
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
}

func TestFit_InputErrors(t *testing.T) {
	ctx := context.Background()
	cfg := smallConfig()

	tests := []struct {
		name string
		X    [][]float64
		y    []int
		k    int
	}{
		{"no rows", nil, nil, 2},
		{"length mismatch", [][]float64{{1}}, []int{0, 1}, 2},
		{"ragged", [][]float64{{1, 2}, {3}}, []int{0, 1}, 2},
		{"class out of range", [][]float64{{1}, {2}}, []int{0, 2}, 2},
		{"NaN feature", [][]float64{{math.NaN()}, {2}}, []int{0, 1}, 2},
		{"zero features", [][]float64{{}, {}}, []int{0, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(ctx, tt.X, tt.y, tt.k, cfg)
			assert.Error(t, err)
		})
	}
}

func TestFit_CancelledContext(t *testing.T) {
	X, y := clusters(60, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, X, y, 3, smallConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPredictProba_InputErrors(t *testing.T) {
	X, y := clusters(30, 2)
	f, err := Fit(context.Background(), X, y, 3, smallConfig())
	require.NoError(t, err)

	_, err = f.PredictProba([]float64{1, 2})
	assert.Error(t, err)
	_, err = f.PredictProba([]float64{1, math.Inf(1), 0})
	assert.Error(t, err)
}

func TestValidate_DetectsCorruption(t *testing.T) {
	X, y := clusters(60, 9)

	tests := []struct {
		name   string
		mutate func(f *Forest)
	}{
		{"no trees", func(f *Forest) { f.Trees = nil }},
		{"backward child", func(f *Forest) {
			tr := &f.Trees[0]
			tr.Left[0] = 0
		}},
		{"feature out of range", func(f *Forest) { f.Trees[0].Feature[0] = 99 }},
		{"short leaf", func(f *Forest) {
			tr := &f.Trees[0]
			for n := range tr.Feature {
				if tr.Feature[n] < 0 {
					tr.Value[n] = []float64{1}
					return
				}
			}
		}},
		{"ragged arrays", func(f *Forest) { f.Trees[0].Threshold = f.Trees[0].Threshold[:1] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Fit(context.Background(), X, y, 3, smallConfig())
			require.NoError(t, err)
			require.Greater(t, f.Trees[0].NodeCount(), 1)

			tt.mutate(f)
			err = f.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidModel))
		})
	}
}

func TestTree_Depth(t *testing.T) {
	tr := &Tree{
		Feature:   []int{0, -1, 0, -1, -1},
		Threshold: []float64{1, 0, 2, 0, 0},
		Left:      []int{1, -1, 3, -1, -1},
		Right:     []int{2, -1, 4, -1, -1},
		Value:     [][]float64{nil, {1, 0}, nil, {0, 1}, {1, 0}},
	}
	assert.Equal(t, 2, tr.Depth())
	assert.Equal(t, []float64{1, 0}, tr.leaf([]float64{0.5}))
	assert.Equal(t, []float64{0, 1}, tr.leaf([]float64{1.5}))
	assert.Equal(t, []float64{1, 0}, tr.leaf([]float64{3}))
}
