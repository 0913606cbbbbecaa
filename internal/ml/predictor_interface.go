// Package ml provides the training and inference pipelines of the
// disposition classifier: the persisted model artifact, the trainer that
// produces it, the predictor that serves it and the HTTP surface around it.
package ml

import "exoplanet-classifier/internal/observation"

// Classifier is the narrow interface the presentation layer calls.
type Classifier interface {
	// Predict classifies a validated observation.
	Predict(obs observation.Observation) (Prediction, error)

	// PredictValues classifies a complete name->value feature mapping.
	// Malformed input is reported as *observation.MalformedInputError.
	PredictValues(values map[string]float64) (Prediction, error)

	// PredictInput classifies decoded JSON input whose values may be
	// numbers, json.Number or numeric strings.
	PredictInput(values map[string]any) (Prediction, error)

	// Info describes the loaded model.
	Info() ModelInfo
}

var _ Classifier = (*Predictor)(nil)
