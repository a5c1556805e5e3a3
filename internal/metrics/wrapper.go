package metrics

// Wrapper adapts Metrics to the small method-style interfaces the pipeline
// packages consume, so they never import prometheus directly.
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

func (w *Wrapper) LatencyObserve(v float64) {
	w.m.ModelLatency.Observe(v)
}

func (w *Wrapper) ModelAgeSet(v float64) {
	w.m.ModelAge.Set(v)
}

func (w *Wrapper) PredictionLatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *Wrapper) CacheHitsInc() {
	w.m.CacheHits.Inc()
}

func (w *Wrapper) FeatureRowsSet(v float64) {
	w.m.FeatureRowsUsable.Set(v)
}

func (w *Wrapper) FeatureErrorsInc() {
	w.m.FeatureErrors.Inc()
}

func (w *Wrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}
