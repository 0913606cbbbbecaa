package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.PredictionInc("CONFIRMED")
	wrapper.PredictionInc("CONFIRMED")
	wrapper.PredictionInc("FALSE POSITIVE")

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("CONFIRMED")); v != 2 {
		t.Errorf("Expected 2 CONFIRMED predictions, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("FALSE POSITIVE")); v != 1 {
		t.Errorf("Expected 1 FALSE POSITIVE prediction, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("CANDIDATE")); v != 0 {
		t.Errorf("Expected 0 CANDIDATE predictions, got %f", v)
	}
}

func TestMetricsWrapper_FailuresCountAsErrors(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.PredictionFailureInc()
	wrapper.RejectedInputInc()
	wrapper.ArtifactLoadInc(false)
	wrapper.ArtifactLoadInc(true)

	if v := testutil.ToFloat64(metrics.PredictionFailures); v != 1 {
		t.Errorf("Expected 1 failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RejectedInputs); v != 1 {
		t.Errorf("Expected 1 rejected input, got %f", v)
	}
	// Rejected input is a client error and is not counted.
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 2 {
		t.Errorf("Expected 2 errors, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ArtifactLoads.WithLabelValues("ok")); v != 1 {
		t.Errorf("Expected 1 successful load, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ArtifactLoads.WithLabelValues("error")); v != 1 {
		t.Errorf("Expected 1 failed load, got %f", v)
	}
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.TrainingRunObserve(12.5, 9564, 0.89)
	if v := testutil.ToFloat64(metrics.TrainingRuns); v != 1 {
		t.Errorf("Expected 1 training run, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.TrainingRows); v != 9564 {
		t.Errorf("Expected 9564 training rows, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.TestAccuracy); v != 0.89 {
		t.Errorf("Expected accuracy 0.89, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionLatencyObserve(0.002)
	wrapper.PredictionConfidenceObserve(0.75)
	wrapper.PredictionConfidenceObserve(0.95)

	if n := testutil.CollectAndCount(metrics.PredictionLatency); n != 1 {
		t.Errorf("Expected 1 latency metric, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "koi_prediction_confidence" {
			continue
		}
		if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
			t.Errorf("Expected 2 confidence samples, got %d", count)
		}
		return
	}
	t.Error("koi_prediction_confidence not gathered")
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewWithRegistry(registry)
}

func TestWriteTextfile_TrainingRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	wrapper := NewWrapper(NewWithRegistry(registry))
	wrapper.TrainingRunObserve(12.5, 300, 0.9)

	path := filepath.Join(t.TempDir(), "koi_train.prom")
	if err := WriteTextfile(path, registry); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	for _, want := range []string{"koi_training_runs_total 1", "koi_training_rows 300", "koi_test_accuracy 0.9"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q", want)
		}
	}
}

func TestWriteTextfile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "koi_train.prom")
	if err := WriteTextfile(path, prometheus.NewRegistry()); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
