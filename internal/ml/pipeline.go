package ml

import (
	"fmt"

	"exoplanet-classifier/internal/forest"
	"exoplanet-classifier/internal/preprocess"
)

// Pipeline chains the fitted preprocessor and the forest. It operates on
// raw rows in the preprocessor's input column order.
type Pipeline struct {
	Preprocessor *preprocess.Preprocessor
	Forest       *forest.Forest
}

// PredictProba transforms one raw row and returns class probabilities.
func (p *Pipeline) PredictProba(x []float64) ([]float64, error) {
	t, err := p.Preprocessor.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return p.Forest.PredictProba(t)
}

// Predict returns the most probable class code for one raw row.
func (p *Pipeline) Predict(x []float64) (int, error) {
	proba, err := p.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return forest.Argmax(proba), nil
}

// PredictAll returns class codes for every row.
func (p *Pipeline) PredictAll(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, row := range X {
		c, err := p.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// Validate checks both stages and that they agree on the feature width.
func (p *Pipeline) Validate() error {
	if p.Preprocessor == nil || p.Forest == nil {
		return fmt.Errorf("pipeline is missing a stage")
	}
	if err := p.Preprocessor.Validate(); err != nil {
		return fmt.Errorf("preprocessor: %w", err)
	}
	if err := p.Forest.Validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if out := len(p.Preprocessor.OutputColumns()); out != p.Forest.NumFeatures {
		return fmt.Errorf("preprocessor emits %d features, forest expects %d", out, p.Forest.NumFeatures)
	}
	return nil
}
