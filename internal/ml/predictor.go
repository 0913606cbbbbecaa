package ml

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"exoplanet-classifier/internal/forest"
	"exoplanet-classifier/internal/observation"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionInc(label string)
	PredictionFailureInc()
	RejectedInputInc()
	PredictionLatencyObserve(seconds float64)
	PredictionConfidenceObserve(p float64)
	ModelAgeSet(seconds float64)
	ArtifactLoadInc(ok bool)
}

// ClassProbability is the probability assigned to one class.
type ClassProbability struct {
	Class       string  `json:"class"`
	Index       int     `json:"index"`
	Probability float64 `json:"probability"`
}

// Prediction is the result for one observation. Probabilities has one entry
// per class in encoder order and sums to 1.
type Prediction struct {
	Label         string             `json:"label"`
	ClassIndex    int                `json:"class_index"`
	Probabilities []ClassProbability `json:"probabilities"`
}

// Confidence returns the probability of the predicted class.
func (p Prediction) Confidence() float64 {
	if p.ClassIndex < 0 || p.ClassIndex >= len(p.Probabilities) {
		return 0
	}
	return p.Probabilities[p.ClassIndex].Probability
}

// Probability returns the probability of the named class, 0 if unknown.
func (p Prediction) Probability(class string) float64 {
	for _, cp := range p.Probabilities {
		if cp.Class == class {
			return cp.Probability
		}
	}
	return 0
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	FormatVersion int                 `json:"format_version"`
	RunID         string              `json:"run_id"`
	TrainedAt     time.Time           `json:"trained_at"`
	Columns       []string            `json:"columns"`
	Classes       []string            `json:"classes"`
	NumTrees      int                 `json:"num_trees"`
	TrainingRows  int                 `json:"training_rows"`
	TestRows      int                 `json:"test_rows"`
	Evaluation    Evaluation          `json:"evaluation"`
	Importances   []FeatureImportance `json:"importances"`
}

// Predictor serves predictions from a loaded artifact. It holds no mutable
// state after construction and is safe for concurrent use.
type Predictor struct {
	artifact *Artifact
	metrics  MetricsInterface
}

// NewPredictor wraps a validated artifact. Every artifact column must be a
// known observation feature.
func NewPredictor(artifact *Artifact, metrics MetricsInterface) (*Predictor, error) {
	if artifact == nil {
		return nil, fmt.Errorf("nil artifact")
	}
	if artifact.Encoder() == nil {
		if err := artifact.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
		}
	}
	for _, name := range artifact.Columns {
		if _, ok := observation.Default().Value(name); !ok {
			return nil, fmt.Errorf("%w: unknown input column %q", ErrArtifactCorrupt, name)
		}
	}

	p := &Predictor{artifact: artifact, metrics: metrics}
	if metrics != nil && !artifact.Metadata.TrainedAt.IsZero() {
		metrics.ModelAgeSet(p.ModelAge().Seconds())
	}
	return p, nil
}

// LoadPredictor loads the artifact at path and wraps it. It never falls
// back to a default model.
func LoadPredictor(path string, metrics MetricsInterface) (*Predictor, error) {
	artifact, err := LoadArtifact(path)
	if metrics != nil {
		metrics.ArtifactLoadInc(err == nil)
	}
	if err != nil {
		return nil, err
	}
	return NewPredictor(artifact, metrics)
}

// Predict classifies one observation.
func (p *Predictor) Predict(obs observation.Observation) (Prediction, error) {
	start := time.Now()

	if err := obs.Validate(); err != nil {
		p.reject(err)
		return Prediction{}, err
	}
	x, err := obs.Vector(p.artifact.Columns)
	if err != nil {
		p.reject(err)
		return Prediction{}, err
	}

	proba, err := p.artifact.Pipeline.PredictProba(x)
	if err != nil {
		return Prediction{}, p.fail(err)
	}
	idx := forest.Argmax(proba)
	encoder := p.artifact.Encoder()
	label, err := encoder.Inverse(idx)
	if err != nil {
		return Prediction{}, p.fail(err)
	}

	pred := Prediction{
		Label:         label,
		ClassIndex:    idx,
		Probabilities: make([]ClassProbability, len(proba)),
	}
	for c, v := range proba {
		pred.Probabilities[c] = ClassProbability{Class: encoder.Classes[c], Index: c, Probability: v}
	}

	if p.metrics != nil {
		p.metrics.PredictionInc(label)
		p.metrics.PredictionConfidenceObserve(pred.Confidence())
		p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	}
	log.Debug().
		Str("label", label).
		Float64("confidence", pred.Confidence()).
		Dur("latency", time.Since(start)).
		Msg("Prediction made")

	return pred, nil
}

// PredictValues classifies a complete feature mapping.
func (p *Predictor) PredictValues(values map[string]float64) (Prediction, error) {
	obs, err := observation.FromMap(values)
	if err != nil {
		p.reject(err)
		return Prediction{}, err
	}
	return p.Predict(obs)
}

// PredictInput classifies decoded JSON input; see observation.FromAny.
func (p *Predictor) PredictInput(values map[string]any) (Prediction, error) {
	obs, err := observation.FromAny(values)
	if err != nil {
		p.reject(err)
		return Prediction{}, err
	}
	return p.Predict(obs)
}

func (p *Predictor) reject(err error) {
	if p.metrics != nil && errors.Is(err, observation.ErrMalformedInput) {
		p.metrics.RejectedInputInc()
	}
}

func (p *Predictor) fail(err error) error {
	if p.metrics != nil {
		p.metrics.PredictionFailureInc()
	}
	log.Error().Err(err).Msg("Prediction failed")
	return fmt.Errorf("prediction failed: %w", err)
}

// ModelAge returns the time since the model was trained.
func (p *Predictor) ModelAge() time.Duration {
	if p.artifact.Metadata.TrainedAt.IsZero() {
		return 0
	}
	return time.Since(p.artifact.Metadata.TrainedAt)
}

// Info describes the loaded model.
func (p *Predictor) Info() ModelInfo {
	a := p.artifact
	return ModelInfo{
		FormatVersion: a.FormatVersion,
		RunID:         a.Metadata.RunID,
		TrainedAt:     a.Metadata.TrainedAt,
		Columns:       append([]string(nil), a.Columns...),
		Classes:       append([]string(nil), a.Classes...),
		NumTrees:      len(a.Pipeline.Forest.Trees),
		TrainingRows:  a.Metadata.TrainRows,
		TestRows:      a.Metadata.TestRows,
		Evaluation:    a.Metadata.Evaluation,
		Importances:   append([]FeatureImportance(nil), a.Metadata.Importances...),
	}
}
