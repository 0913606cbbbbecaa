package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exoplanet-classifier/internal/common"
	"exoplanet-classifier/internal/dataset"
	"exoplanet-classifier/internal/preprocess"
	"exoplanet-classifier/internal/storage"
)

type failingRecorder struct{ calls int }

func (r *failingRecorder) RecordRun(storage.RunRecord) error {
	r.calls++
	return errors.New("registry unavailable")
}

func loadSamples(t *testing.T, path string, cfg TrainerConfig) *dataset.Samples {
	t.Helper()
	table, err := dataset.LoadCSV(path, cfg.SkipRows)
	require.NoError(t, err)
	samples, err := dataset.Split(table, dataset.SplitOptions{
		Features: cfg.Features,
		Flags:    cfg.FlagFeatures,
		Target:   cfg.Target,
		Drop:     cfg.Drop,
	})
	require.NoError(t, err)
	return samples
}

func TestTrainer_Run(t *testing.T) {
	datasetPath := writeSyntheticDataset(t, 300, 11)
	artifactPath := filepath.Join(t.TempDir(), "model.koi")

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	metrics := &MockMetrics{}
	report, err := NewTrainer(testTrainerConfig(), metrics, store).Run(context.Background(), datasetPath, artifactPath)
	require.NoError(t, err)

	assert.Equal(t, 300, report.Rows)
	assert.Equal(t, 60, report.TestRows)
	assert.Equal(t, 240, report.TrainRows)
	assert.Equal(t, datasetPath, report.DatasetPath)
	assert.Equal(t, artifactPath, report.ArtifactPath)
	assert.Greater(t, report.Evaluation.Accuracy, 0.6)
	assert.Equal(t, 60, report.Evaluation.Samples)

	total := 0
	for _, c := range common.ClassNames {
		total += report.ClassCounts[c]
	}
	assert.Equal(t, 300, total)

	require.Len(t, report.Importances, len(common.FeatureNames))
	sum := 0.0
	for i, fi := range report.Importances {
		sum += fi.Impurity
		if i > 0 {
			assert.GreaterOrEqual(t, report.Importances[i-1].Impurity, fi.Impurity)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	a, err := LoadArtifact(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, a.Metadata.RunID)
	assert.Equal(t, datasetPath, a.Metadata.DatasetPath)
	assert.Len(t, a.Pipeline.Forest.Trees, 20)

	run, err := store.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, report.RunID, run.RunID)
	assert.Equal(t, 20, run.NumTrees)

	assert.Equal(t, 1, metrics.trainingRuns)
	assert.Equal(t, 300, metrics.lastRows)
	assert.Equal(t, report.Evaluation.Accuracy, metrics.lastAccuracy)
}

func TestTrainer_RunSurvivesRecorderFailure(t *testing.T) {
	datasetPath := writeSyntheticDataset(t, 200, 5)
	artifactPath := filepath.Join(t.TempDir(), "model.koi")
	recorder := &failingRecorder{}

	_, err := NewTrainer(testTrainerConfig(), nil, recorder).Run(context.Background(), datasetPath, artifactPath)
	require.NoError(t, err)
	assert.Equal(t, 1, recorder.calls)
	assert.FileExists(t, artifactPath)
}

func TestTrainer_RunMissingDataset(t *testing.T) {
	artifactPath := filepath.Join(t.TempDir(), "model.koi")

	_, err := NewTrainer(testTrainerConfig(), nil, nil).Run(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), artifactPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrTrainingData)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, artifactPath)
}

func TestTrainer_RunCancelled(t *testing.T) {
	datasetPath := writeSyntheticDataset(t, 200, 5)
	artifactPath := filepath.Join(t.TempDir(), "model.koi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTrainer(testTrainerConfig(), nil, nil).Run(ctx, datasetPath, artifactPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, artifactPath)
}

func TestTrainer_UnexpectedClasses(t *testing.T) {
	cfg := testTrainerConfig()
	samples := loadSamples(t, writeSyntheticDataset(t, 150, 3), cfg)

	cfg.Classes = []string{"CONFIRMED", "FALSE POSITIVE"}
	_, _, err := NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrTrainingData)
}

func TestTrainer_FeatureMismatch(t *testing.T) {
	cfg := testTrainerConfig()
	samples := loadSamples(t, writeSyntheticDataset(t, 150, 3), cfg)
	samples.Features = append([]string(nil), samples.Features...)
	samples.Features[0], samples.Features[1] = samples.Features[1], samples.Features[0]

	_, _, err := NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	assert.ErrorIs(t, err, dataset.ErrTrainingData)
}

func TestTrainer_Deterministic(t *testing.T) {
	cfg := testTrainerConfig()
	samples := loadSamples(t, writeSyntheticDataset(t, 200, 8), cfg)

	a1, r1, err := NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	require.NoError(t, err)

	cfg.Forest.Workers = 1
	a2, r2, err := NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	require.NoError(t, err)

	assert.NotEqual(t, r1.RunID, r2.RunID)
	assert.Equal(t, r1.Evaluation, r2.Evaluation)
	assert.Equal(t, a1.Pipeline.Preprocessor, a2.Pipeline.Preprocessor)
	assert.Equal(t, a1.Pipeline.Forest.Trees, a2.Pipeline.Forest.Trees)
}

func TestTrainer_ImputesMissingValues(t *testing.T) {
	cfg := testTrainerConfig()
	samples := loadSamples(t, writeSyntheticDataset(t, 200, 21), cfg)
	for i := range samples.X {
		if i%3 == 0 {
			samples.X[i][0] = math.NaN()
		}
	}

	a, _, err := NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	require.NoError(t, err)

	row := append([]float64(nil), samples.X[0]...)
	p, err := a.Pipeline.PredictProba(row)
	require.NoError(t, err)
	sum := 0.0
	for _, v := range p {
		assert.False(t, math.IsNaN(v))
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTrainer_PreprocessorFitOnTrainingSplitOnly(t *testing.T) {
	cfg := testTrainerConfig()
	a := trainedArtifact(t)
	samples := trainedSamples(t)

	var encoder preprocess.LabelEncoder
	require.NoError(t, encoder.Fit(samples.Labels))
	y, err := encoder.TransformAll(samples.Labels)
	require.NoError(t, err)
	trainIdx, _, err := StratifiedSplit(y, encoder.NumClasses(), cfg.TestSize, cfg.SplitSeed)
	require.NoError(t, err)
	xTrain, _ := subset(samples.X, y, trainIdx)

	onTrain, err := preprocess.NewPreprocessor(cfg.Features, cfg.NumericFeatures, cfg.FlagFeatures)
	require.NoError(t, err)
	require.NoError(t, onTrain.Fit(xTrain))

	onAll, err := preprocess.NewPreprocessor(cfg.Features, cfg.NumericFeatures, cfg.FlagFeatures)
	require.NoError(t, err)
	require.NoError(t, onAll.Fit(samples.X))

	got := a.Pipeline.Preprocessor.Scaler
	assert.Equal(t, onTrain.Scaler.Medians, got.Medians)
	assert.Equal(t, onTrain.Scaler.Means, got.Means)
	assert.Equal(t, onTrain.Scaler.Scales, got.Scales)
	assert.NotEqual(t, onAll.Scaler.Means, got.Means, "held-out rows must not leak into the scaler")
}

func TestDefaultTrainerConfig_FixedConstants(t *testing.T) {
	cfg := DefaultTrainerConfig()

	assert.Equal(t, common.NumTrees, cfg.Forest.NumTrees)
	assert.Equal(t, uint64(common.ForestSeed), cfg.Forest.Seed)
	assert.Equal(t, uint64(common.SplitSeed), cfg.SplitSeed)
	assert.Equal(t, common.TestSize, cfg.TestSize)
	assert.Equal(t, common.DatasetSkipRows, cfg.SkipRows)
	assert.Equal(t, common.FeatureNames, cfg.Features)
	assert.Equal(t, common.ClassNames, cfg.Classes)
}
