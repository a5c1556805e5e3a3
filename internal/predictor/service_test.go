package predictor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frostcast/internal/features"
	"frostcast/internal/ml"
	"frostcast/internal/timeseries"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type mockMetrics struct {
	cacheHits     int
	errors        int
	featureErrors int
	latencies     int
}

func (m *mockMetrics) PredictionLatencyObserve(float64) { m.latencies++ }
func (m *mockMetrics) CacheHitsInc()                    { m.cacheHits++ }
func (m *mockMetrics) FeatureRowsSet(float64)           {}
func (m *mockMetrics) FeatureErrorsInc()                { m.featureErrors++ }
func (m *mockMetrics) ErrorsInc()                       { m.errors++ }

type mockJournal struct {
	saved []time.Time
}

func (j *mockJournal) Guardar(fecha time.Time, _ any) error {
	j.saved = append(j.saved, fecha)
	return nil
}

func synthStore(t *testing.T, n int) *timeseries.Store {
	t.Helper()
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]timeseries.Observation, n)
	for i := range obs {
		obs[i] = timeseries.Observation{
			Date:   start.AddDate(0, 0, i),
			Target: 3 + 2*math.Sin(float64(i)/8),
			Aux: map[string]float64{
				"PREC_A": float64(i % 4),
				"PREC_B": float64((i + 1) % 3),
				"TMax_A": 17 + math.Sin(float64(i)/5),
				"TMax_B": 19 + math.Cos(float64(i)/6),
			},
		}
	}
	store, err := timeseries.New(obs)
	require.NoError(t, err)
	return store
}

func identityBundle(name string, featureNames ...string) *ml.Bundle {
	coef := make([]float64, len(featureNames))
	mean := make([]float64, len(featureNames))
	scale := make([]float64, len(featureNames))
	coef[0] = 1
	for i := range scale {
		scale[i] = 1
	}
	return &ml.Bundle{
		Name:     name,
		Model:    &ml.LinearModel{Coef: coef, Intercept: 0},
		Scaler:   &ml.Scaler{Mean: mean, Scale: scale},
		Features: featureNames,
	}
}

func constantBundle(name string, margin float64) *ml.Bundle {
	return &ml.Bundle{
		Name:     name,
		Model:    &ml.LinearModel{Coef: []float64{0}, Intercept: margin},
		Scaler:   &ml.Scaler{Mean: []float64{0}, Scale: []float64{1}},
		Features: []string{"PREC_binaria"},
	}
}

func newTestService(t *testing.T, rows int, frostMargin float64, clock Clock, m MetricsInterface, j Journal) *Service {
	t.Helper()
	builder := features.NewBuilder(features.Schema{
		Target: "TMin",
		Precip: []string{"PREC_A", "PREC_B"},
		TMax:   []string{"TMax_A", "TMax_B"},
	})
	svc, err := NewService(Config{
		Store:       synthStore(t, rows),
		Builder:     builder,
		TempBundle:  identityBundle("temperatura", "TMIN_lag_1"),
		FrostBundle: constantBundle("helada", frostMargin),
		Clock:       clock,
		Journal:     j,
		Metrics:     m,
	})
	require.NoError(t, err)
	return svc
}

func TestPredecir_InsufficientData(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, 40, 0, clock, nil, nil)

	resp := svc.Predecir(nil)
	require.True(t, resp.Failed())
	assert.Equal(t, "Datos insuficientes", resp.Error)
	assert.Nil(t, resp.Resultado)
}

func TestPredecir_WellFormedResult(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, 60, 0, clock, nil, nil)

	resp := svc.Predecir(nil)
	require.False(t, resp.Failed(), "unexpected error: %s", resp.Error)
	res := resp.Resultado
	require.NotNil(t, res)

	// Query date resolves to the latest available date; prediction is for
	// the next day.
	lastDate := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 59)
	assert.True(t, res.FechaConsulta.Time().Equal(lastDate))
	assert.True(t, res.FechaPrediccion.Time().Equal(lastDate.AddDate(0, 0, 1)))

	// The identity temperature bundle returns the last usable row's 1-day
	// lag, the target of the second-to-last observation.
	wantTemp := 3 + 2*math.Sin(float64(58)/8)
	assert.InDelta(t, wantTemp, res.TemperaturaPredicha, 1e-9)

	// Margin 0 converts to probability 50 and no frost label.
	assert.InDelta(t, 50.0, res.ProbabilidadHelada, 1e-12)
	assert.Equal(t, 0, res.HeladaPredicha)

	assert.NotEmpty(t, res.Riesgo)
	assert.NotEmpty(t, res.ColorMapa)
	assert.Len(t, res.Historial30d, 30)

	wantAyer := 3 + 2*math.Sin(float64(59)/8)
	assert.InDelta(t, wantAyer, res.TempAyer, 1e-9)
	assert.InDelta(t, res.TemperaturaPredicha-res.TempAyer, res.CambioEsperado, 1e-12)
	assert.True(t, res.TempMaxima7d >= res.TempPromedio7d && res.TempPromedio7d >= res.TempMinima7d)
	assert.Equal(t, clock.now, res.Timestamp)
}

func TestPredecir_SameDayCacheIgnoresQueryDate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)}
	m := &mockMetrics{}
	svc := newTestService(t, 60, 0, clock, m, nil)

	first := svc.Predecir(nil)
	require.False(t, first.Failed())

	// A different query date on the same wall-clock day still hits the
	// cache and returns the identical result.
	otherDate := time.Date(2023, 6, 25, 0, 0, 0, 0, time.UTC)
	clock.now = clock.now.Add(6 * time.Hour)
	second := svc.Predecir(&otherDate)
	require.False(t, second.Failed())

	assert.Same(t, first.Resultado, second.Resultado)
	assert.Equal(t, 1, m.cacheHits)

	// The next calendar day invalidates the cache unconditionally.
	clock.now = clock.now.AddDate(0, 0, 1)
	third := svc.Predecir(nil)
	require.False(t, third.Failed())
	assert.NotSame(t, first.Resultado, third.Resultado)
}

func TestPredecir_FrostProbabilitySymmetry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)}

	margin := 1.7
	pos := newTestService(t, 60, margin, clock, nil, nil).Predecir(nil)
	neg := newTestService(t, 60, -margin, clock, nil, nil).Predecir(nil)
	require.False(t, pos.Failed())
	require.False(t, neg.Failed())

	assert.InDelta(t, 100.0, pos.Resultado.ProbabilidadHelada+neg.Resultado.ProbabilidadHelada, 1e-9)
	assert.Equal(t, 1, pos.Resultado.HeladaPredicha)
	assert.Equal(t, 0, neg.Resultado.HeladaPredicha)
}

func TestPredecir_FeatureConstructionError(t *testing.T) {
	// Enough rows to pass the minimum sample size, but too few
	// target-present rows for any usable feature vector.
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]timeseries.Observation, 55)
	for i := range obs {
		target := 4.0
		if i >= 25 {
			target = math.NaN()
		}
		obs[i] = timeseries.Observation{Date: start.AddDate(0, 0, i), Target: target}
	}
	store, err := timeseries.New(obs)
	require.NoError(t, err)

	m := &mockMetrics{}
	svc, err := NewService(Config{
		Store:       store,
		Builder:     features.NewBuilder(features.Schema{Target: "TMin"}),
		TempBundle:  identityBundle("temperatura", "TMIN_lag_1"),
		FrostBundle: constantBundle("helada", 0),
		Clock:       &fakeClock{now: time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)},
		Metrics:     m,
	})
	require.NoError(t, err)

	resp := svc.Predecir(nil)
	require.True(t, resp.Failed())
	assert.Equal(t, "No se pudieron crear features de temperatura", resp.Error)
	assert.Equal(t, 1, m.featureErrors)
	assert.Equal(t, 1, m.errors)
}

func TestPredecir_RecoversFromPanic(t *testing.T) {
	// A bundle with no scaler panics during evaluation; the service
	// boundary must absorb it into the error payload.
	broken := &ml.Bundle{
		Name:     "temperatura",
		Model:    &ml.LinearModel{Coef: []float64{1}, Intercept: 0},
		Features: []string{"TMIN_lag_1"},
	}

	svc, err := NewService(Config{
		Store:       synthStore(t, 60),
		Builder:     features.NewBuilder(features.Schema{Target: "TMin"}),
		TempBundle:  broken,
		FrostBundle: constantBundle("helada", 0),
		Clock:       &fakeClock{now: time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	resp := svc.Predecir(nil)
	require.True(t, resp.Failed())
	assert.NotEmpty(t, resp.Error)
}

func TestPredecir_WritesJournal(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)}
	j := &mockJournal{}
	svc := newTestService(t, 60, 0, clock, nil, j)

	resp := svc.Predecir(nil)
	require.False(t, resp.Failed())
	require.Len(t, j.saved, 1)
	assert.True(t, j.saved[0].Equal(resp.Resultado.FechaConsulta.Time()))

	// Cache hits do not re-persist.
	svc.Predecir(nil)
	assert.Len(t, j.saved, 1)
}

func TestObtenerHistorial(t *testing.T) {
	svc := newTestService(t, 60, 0, &fakeClock{now: time.Now()}, nil, nil)

	got := svc.ObtenerHistorial(10)
	require.Len(t, got, 10)
	assert.True(t, got[0].Fecha.Before(got[9].Fecha))
}

func TestEstadisticasGenerales(t *testing.T) {
	svc := newTestService(t, 60, 0, &fakeClock{now: time.Now()}, nil, nil)

	r, err := svc.EstadisticasGenerales()
	require.NoError(t, err)
	assert.Equal(t, 60, r.TotalRegistros)
}
