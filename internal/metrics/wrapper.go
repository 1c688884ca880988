package metrics

// Wrapper adapts Metrics to the narrow interface the predictor consumes,
// avoiding a package cycle between serving and metrics.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) FailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *Wrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) ConfidenceObserve(confidence float64) {
	w.m.PredictionConfidence.Observe(confidence)
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}
