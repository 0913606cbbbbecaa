package metrics

// MetricsWrapper adapts *Metrics to the narrow interfaces used by the
// predictor and trainer, so those packages do not import Prometheus types.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) PredictionFailureInc() {
	w.m.PredictionFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) RejectedInputInc() {
	w.m.RejectedInputs.Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) PredictionConfidenceObserve(p float64) {
	w.m.PredictionConfidence.Observe(p)
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *MetricsWrapper) ArtifactLoadInc(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
		w.m.ErrorsTotal.Inc()
	}
	w.m.ArtifactLoads.WithLabelValues(result).Inc()
}

// TrainingRunObserve records a completed training run.
func (w *MetricsWrapper) TrainingRunObserve(seconds float64, rows int, accuracy float64) {
	w.m.TrainingRuns.Inc()
	w.m.TrainingDuration.Observe(seconds)
	w.m.TrainingRows.Set(float64(rows))
	w.m.TestAccuracy.Set(accuracy)
}
