package ml

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"exoplanet-classifier/internal/forest"
)

// FeatureImportance describes the contribution of one input column.
// Impurity is the forest's mean decrease in impurity; Permutation is the
// drop in held-out accuracy when the column is shuffled.
type FeatureImportance struct {
	Name        string  `json:"name"`
	Impurity    float64 `json:"impurity"`
	Permutation float64 `json:"permutation"`
}

// rankFeatures pairs importances with column names, most important first.
// Ties keep column order.
func rankFeatures(names []string, impurity, permutation []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(names))
	for i, name := range names {
		out[i] = FeatureImportance{Name: name}
		if i < len(impurity) {
			out[i].Impurity = impurity[i]
		}
		if i < len(permutation) {
			out[i].Permutation = permutation[i]
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Impurity > out[j].Impurity })
	return out
}

// TopFeatures returns the names of the n most important features.
func TopFeatures(importances []FeatureImportance, n int) []string {
	n = min(n, len(importances))
	out := make([]string, 0, n)
	for _, fi := range importances[:n] {
		out = append(out, fi.Name)
	}
	return out
}

// permutationImportance shuffles one raw input column at a time across the
// held-out rows and reports the accuracy lost. Columns are indexed like the
// raw input, before preprocessing.
func permutationImportance(ctx context.Context, p *Pipeline, X [][]float64, y []int, seed uint64) ([]float64, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("no rows for permutation importance")
	}
	width := len(X[0])

	baseline, err := accuracy(p, X, y)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(seed, uint64(width)))
	out := make([]float64, width)
	shuffled := make([][]float64, len(X))
	for i, row := range X {
		shuffled[i] = append([]float64(nil), row...)
	}

	for j := 0; j < width; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		perm := rng.Perm(len(X))
		for i := range shuffled {
			shuffled[i][j] = X[perm[i]][j]
		}
		score, err := accuracy(p, shuffled, y)
		if err != nil {
			return nil, err
		}
		out[j] = baseline - score

		for i := range shuffled {
			shuffled[i][j] = X[i][j]
		}
	}
	return out, nil
}

func accuracy(p *Pipeline, X [][]float64, y []int) (float64, error) {
	correct := 0
	for i, row := range X {
		proba, err := p.PredictProba(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if forest.Argmax(proba) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}
