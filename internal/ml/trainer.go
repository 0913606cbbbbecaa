package ml

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"exoplanet-classifier/internal/common"
	"exoplanet-classifier/internal/dataset"
	"exoplanet-classifier/internal/forest"
	"exoplanet-classifier/internal/preprocess"
	"exoplanet-classifier/internal/storage"
)

// TrainingMetrics receives a summary of each completed run.
type TrainingMetrics interface {
	TrainingRunObserve(seconds float64, rows int, accuracy float64)
}

// RunRecorder persists completed runs.
type RunRecorder interface {
	RecordRun(run storage.RunRecord) error
}

// TrainerConfig fixes the dataset layout and training hyperparameters.
type TrainerConfig struct {
	SkipRows        int
	Target          string
	Drop            []string
	Features        []string
	NumericFeatures []string
	FlagFeatures    []string
	Classes         []string // expected encoder classes; nil accepts any
	TestSize        float64
	SplitSeed       uint64
	Forest          forest.Config
}

// DefaultTrainerConfig returns the KOI training configuration.
func DefaultTrainerConfig() TrainerConfig {
	fc := forest.DefaultConfig()
	fc.NumTrees = common.NumTrees
	fc.Seed = common.ForestSeed

	return TrainerConfig{
		SkipRows:        common.DatasetSkipRows,
		Target:          common.TargetColumn,
		Drop:            common.DroppedColumns,
		Features:        common.FeatureNames,
		NumericFeatures: common.NumericFeatures,
		FlagFeatures:    common.FlagFeatures,
		Classes:         common.ClassNames,
		TestSize:        common.TestSize,
		SplitSeed:       common.SplitSeed,
		Forest:          fc,
	}
}

// TrainingReport summarizes a training run.
type TrainingReport struct {
	RunID        string              `json:"run_id"`
	DatasetPath  string              `json:"dataset_path,omitempty"`
	ArtifactPath string              `json:"artifact_path,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	Duration     time.Duration       `json:"duration"`
	Rows         int                 `json:"rows"`
	TrainRows    int                 `json:"train_rows"`
	TestRows     int                 `json:"test_rows"`
	ClassCounts  map[string]int      `json:"class_counts"`
	Evaluation   Evaluation          `json:"evaluation"`
	Importances  []FeatureImportance `json:"importances"`
}

// Trainer runs the training pipeline end to end.
type Trainer struct {
	config   TrainerConfig
	metrics  TrainingMetrics
	recorder RunRecorder
}

// NewTrainer creates a trainer. metrics and recorder may be nil.
func NewTrainer(config TrainerConfig, metrics TrainingMetrics, recorder RunRecorder) *Trainer {
	return &Trainer{config: config, metrics: metrics, recorder: recorder}
}

// Run loads the dataset, trains, evaluates and writes the artifact. Nothing
// is written to artifactPath unless every step succeeds.
func (t *Trainer) Run(ctx context.Context, datasetPath, artifactPath string) (*TrainingReport, error) {
	log.Info().Str("dataset", datasetPath).Msg("Loading and cleaning data")

	table, err := dataset.LoadCSV(datasetPath, t.config.SkipRows)
	if err != nil {
		return nil, err
	}
	samples, err := dataset.Split(table, dataset.SplitOptions{
		Features: t.config.Features,
		Flags:    t.config.FlagFeatures,
		Target:   t.config.Target,
		Drop:     t.config.Drop,
	})
	if err != nil {
		return nil, err
	}

	artifact, report, err := t.Train(ctx, samples)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("training cancelled before saving: %w", err)
	}

	artifact.Metadata.DatasetPath = datasetPath
	report.DatasetPath = datasetPath
	report.ArtifactPath = artifactPath

	log.Info().Str("path", artifactPath).Msg("Saving model")
	if err := artifact.Save(artifactPath); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	report.Duration = time.Since(report.StartedAt)

	if t.recorder != nil {
		err := t.recorder.RecordRun(storage.RunRecord{
			RunID:        report.RunID,
			DatasetPath:  datasetPath,
			ArtifactPath: artifactPath,
			StartedAt:    report.StartedAt,
			FinishedAt:   report.StartedAt.Add(report.Duration),
			Rows:         report.Rows,
			TrainRows:    report.TrainRows,
			TestRows:     report.TestRows,
			ClassCounts:  report.ClassCounts,
			Accuracy:     report.Evaluation.Accuracy,
			MacroF1:      report.Evaluation.MacroF1,
			NumTrees:     t.config.Forest.NumTrees,
		})
		if err != nil {
			// The artifact is already in place; the registry is bookkeeping.
			log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to record training run")
		}
	}
	if t.metrics != nil {
		t.metrics.TrainingRunObserve(report.Duration.Seconds(), report.Rows, report.Evaluation.Accuracy)
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("rows", report.Rows).
		Int("train_rows", report.TrainRows).
		Int("test_rows", report.TestRows).
		Float64("accuracy", report.Evaluation.Accuracy).
		Float64("macro_f1", report.Evaluation.MacroF1).
		Dur("duration", report.Duration).
		Str("artifact", artifactPath).
		Msg("Model training and saving complete")

	return report, nil
}

// Train fits the encoder, preprocessor and forest on samples and returns
// the in-memory artifact. It does not touch the filesystem.
func (t *Trainer) Train(ctx context.Context, samples *dataset.Samples) (*Artifact, *TrainingReport, error) {
	started := time.Now()
	report := &TrainingReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Rows:      samples.Len(),
	}

	if !slices.Equal(samples.Features, t.config.Features) {
		return nil, nil, fmt.Errorf("%w: sample columns %v differ from configured features", dataset.ErrTrainingData, samples.Features)
	}

	var encoder preprocess.LabelEncoder
	if err := encoder.Fit(samples.Labels); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", dataset.ErrTrainingData, err)
	}
	if t.config.Classes != nil && !slices.Equal(encoder.Classes, t.config.Classes) {
		return nil, nil, fmt.Errorf("%w: dataset classes %q, expected %q", dataset.ErrTrainingData, encoder.Classes, t.config.Classes)
	}
	y, err := encoder.TransformAll(samples.Labels)
	if err != nil {
		return nil, nil, err
	}

	report.ClassCounts = make(map[string]int, encoder.NumClasses())
	for _, l := range samples.Labels {
		report.ClassCounts[l]++
	}

	log.Info().Msg("Splitting data and training model")
	trainIdx, testIdx, err := StratifiedSplit(y, encoder.NumClasses(), t.config.TestSize, t.config.SplitSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", dataset.ErrTrainingData, err)
	}
	xTrain, yTrain := subset(samples.X, y, trainIdx)
	xTest, yTest := subset(samples.X, y, testIdx)
	report.TrainRows, report.TestRows = len(trainIdx), len(testIdx)

	pre, err := preprocess.NewPreprocessor(t.config.Features, t.config.NumericFeatures, t.config.FlagFeatures)
	if err != nil {
		return nil, nil, err
	}
	if err := pre.Fit(xTrain); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", dataset.ErrTrainingData, err)
	}
	xTrainT, err := pre.TransformAll(xTrain)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("training cancelled: %w", err)
	}

	model, err := forest.Fit(ctx, xTrainT, yTrain, encoder.NumClasses(), t.config.Forest)
	if err != nil {
		return nil, nil, err
	}
	pipeline := Pipeline{Preprocessor: pre, Forest: model}

	predicted, err := pipeline.PredictAll(xTest)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}
	report.Evaluation, err = Evaluate(yTest, predicted, encoder.Classes)
	if err != nil {
		return nil, nil, err
	}

	permutation, err := permutationImportance(ctx, &pipeline, xTest, yTest, t.config.SplitSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("permutation importance: %w", err)
	}
	report.Importances = rankFeatures(t.config.Features, inputImportances(pre, model.FeatureImportances()), permutation)

	artifact := &Artifact{
		FormatVersion: ArtifactFormatVersion,
		Columns:       append([]string(nil), t.config.Features...),
		Classes:       append([]string(nil), encoder.Classes...),
		Pipeline:      pipeline,
		Metadata: ArtifactMetadata{
			RunID:        report.RunID,
			TrainedAt:    time.Now().UTC(),
			DatasetRows:  report.Rows,
			TrainRows:    report.TrainRows,
			TestRows:     report.TestRows,
			ClassCounts:  report.ClassCounts,
			Evaluation:   report.Evaluation,
			Importances:  report.Importances,
			Baseline:     buildBaseline(t.config.Features, xTrain),
			ForestConfig: t.config.Forest,
		},
	}
	if err := artifact.Validate(); err != nil {
		return nil, nil, fmt.Errorf("trained artifact is inconsistent: %w", err)
	}

	report.Duration = time.Since(started)
	log.Info().
		Float64("accuracy", report.Evaluation.Accuracy).
		Float64("macro_f1", report.Evaluation.MacroF1).
		Strs("top_features", TopFeatures(report.Importances, 5)).
		Msg("Model evaluated on held-out split")

	return artifact, report, nil
}

// inputImportances maps forest importances, which follow the preprocessor
// output order, back to input column order.
func inputImportances(pre *preprocess.Preprocessor, imp []float64) []float64 {
	out := make([]float64, len(pre.Columns))
	for k, j := range pre.NumericIndex {
		out[j] = imp[k]
	}
	n := len(pre.NumericIndex)
	for k, j := range pre.FlagIndex {
		out[j] = imp[n+k]
	}
	return out
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
