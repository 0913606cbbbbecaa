package ml

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"exoplanet-classifier/internal/dataset"
)

// MockMetrics implements MetricsInterface and TrainingMetrics for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  map[string]int
	failures     int
	rejected     int
	latencySum   float64
	confidences  []float64
	modelAge     float64
	loadsOK      int
	loadsFailed  int
	trainingRuns int
	lastAccuracy float64
	lastRows     int
}

func (m *MockMetrics) PredictionInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) PredictionFailureInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) RejectedInputInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) PredictionConfidenceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = append(m.confidences, v)
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) ArtifactLoadInc(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.loadsOK++
	} else {
		m.loadsFailed++
	}
}

func (m *MockMetrics) TrainingRunObserve(_ float64, rows int, accuracy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRuns++
	m.lastRows = rows
	m.lastAccuracy = accuracy
}

func (m *MockMetrics) totalPredictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.predictions {
		n += c
	}
	return n
}

// writeSyntheticDataset writes a synthetic KOI export to a temp dir.
func writeSyntheticDataset(t *testing.T, rows int, seed uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "koi.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	defer f.Close()
	if err := dataset.GenerateKOI(f, dataset.SyntheticOptions{Rows: rows, Seed: seed, MissingRate: 0.03}); err != nil {
		t.Fatalf("generate dataset: %v", err)
	}
	return path
}

// testTrainerConfig is the production configuration with a smaller forest.
func testTrainerConfig() TrainerConfig {
	cfg := DefaultTrainerConfig()
	cfg.Forest.NumTrees = 20
	return cfg
}

var (
	fixtureOnce     sync.Once
	fixtureArtifact *Artifact
	fixtureSamples  *dataset.Samples
	fixtureErr      error
)

// trainedArtifact trains one small model shared by the package's tests.
// Callers must not mutate it.
func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()
	fixtureOnce.Do(func() {
		dir, err := os.MkdirTemp("", "koi-fixture-*")
		if err != nil {
			fixtureErr = err
			return
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "koi.csv")
		f, err := os.Create(path)
		if err != nil {
			fixtureErr = err
			return
		}
		fixtureErr = dataset.GenerateKOI(f, dataset.SyntheticOptions{Rows: 400, Seed: 42, MissingRate: 0.03})
		f.Close()
		if fixtureErr != nil {
			return
		}

		cfg := testTrainerConfig()
		table, err := dataset.LoadCSV(path, cfg.SkipRows)
		if err != nil {
			fixtureErr = err
			return
		}
		samples, err := dataset.Split(table, dataset.SplitOptions{
			Features: cfg.Features,
			Flags:    cfg.FlagFeatures,
			Target:   cfg.Target,
			Drop:     cfg.Drop,
		})
		if err != nil {
			fixtureErr = err
			return
		}
		fixtureSamples = samples
		fixtureArtifact, _, fixtureErr = NewTrainer(cfg, nil, nil).Train(context.Background(), samples)
	})
	if fixtureErr != nil {
		t.Fatalf("train fixture model: %v", fixtureErr)
	}
	return fixtureArtifact
}

// trainedSamples returns the rows the shared model was trained on.
// Callers must not mutate them.
func trainedSamples(t *testing.T) *dataset.Samples {
	t.Helper()
	trainedArtifact(t)
	return fixtureSamples
}
