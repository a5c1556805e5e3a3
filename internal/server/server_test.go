package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frostcast/internal/features"
	"frostcast/internal/ml"
	"frostcast/internal/predictor"
	"frostcast/internal/timeseries"
)

var historyStart = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, nanAt ...int) *httptest.Server {
	t.Helper()

	obs := make([]timeseries.Observation, 60)
	for i := range obs {
		obs[i] = timeseries.Observation{
			Date:   historyStart.AddDate(0, 0, i),
			Target: 3 + 2*math.Sin(float64(i)/8),
		}
	}
	for _, i := range nanAt {
		obs[i].Target = math.NaN()
	}
	store, err := timeseries.New(obs)
	require.NoError(t, err)

	tempBundle := &ml.Bundle{
		Name:     "temperatura",
		Model:    &ml.LinearModel{Coef: []float64{1}, Intercept: 0},
		Scaler:   &ml.Scaler{Mean: []float64{0}, Scale: []float64{1}},
		Features: []string{"TMIN_lag_1"},
	}
	frostBundle := &ml.Bundle{
		Name:     "helada",
		Model:    &ml.LinearModel{Coef: []float64{0}, Intercept: -1},
		Scaler:   &ml.Scaler{Mean: []float64{0}, Scale: []float64{1}},
		Features: []string{"TMIN_lag_1"},
	}

	svc, err := predictor.NewService(predictor.Config{
		Store:       store,
		Builder:     features.NewBuilder(features.Schema{Target: "TMin"}),
		TempBundle:  tempBundle,
		FrostBundle: frostBundle,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(NewServer(svc).Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	code := getJSON(t, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPrediccion_Default(t *testing.T) {
	ts := newTestServer(t)

	var resp predictor.Respuesta
	code := getJSON(t, ts.URL+"/api/prediccion", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, resp.Error)
	require.NotNil(t, resp.Resultado)

	lastDate := historyStart.AddDate(0, 0, 59)
	assert.True(t, resp.Resultado.FechaPrediccion.Time().Equal(lastDate.AddDate(0, 0, 1)))
	assert.NotEmpty(t, resp.Resultado.Riesgo)
}

func TestPrediccion_ExplicitDate(t *testing.T) {
	ts := newTestServer(t)

	fecha := historyStart.AddDate(0, 0, 55).Format("2006-01-02")
	var resp predictor.Respuesta
	code := getJSON(t, ts.URL+"/api/prediccion?fecha="+fecha, &resp)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Resultado)
	assert.Equal(t, fecha, resp.Resultado.FechaConsulta.Time().Format("2006-01-02"))
}

func TestPrediccion_MalformedDate(t *testing.T) {
	ts := newTestServer(t)
	code := getJSON(t, ts.URL+"/api/prediccion?fecha=01-05-2023", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPrediccion_PipelineErrorIsPayloadNotHTTPError(t *testing.T) {
	ts := newTestServer(t)

	// A cutoff too early for the minimum sample size fails inside the
	// pipeline; the transport still answers 200 with the error payload.
	fecha := historyStart.AddDate(0, 0, 10).Format("2006-01-02")
	var resp predictor.Respuesta
	code := getJSON(t, ts.URL+"/api/prediccion?fecha="+fecha, &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Datos insuficientes", resp.Error)
	assert.Nil(t, resp.Resultado)
}

func TestHistorial_DefaultAndExplicit(t *testing.T) {
	ts := newTestServer(t)

	var puntos []timeseries.Punto
	code := getJSON(t, ts.URL+"/api/historial", &puntos)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, puntos, 30)

	puntos = nil
	code = getJSON(t, ts.URL+"/api/historial?dias=5", &puntos)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, puntos, 5)
}

func TestHistorial_InvalidDias(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/historial?dias=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/historial?dias=0", nil))
}

func TestHistorial_MissingTargetServedAsNull(t *testing.T) {
	// A sensor dropout inside the served window must not break the wire
	// format; the missing reading travels as null.
	ts := newTestServer(t, 55)

	resp, err := http.Get(ts.URL + "/api/historial?dias=30")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var puntos []timeseries.Punto
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&puntos))
	require.Len(t, puntos, 30)

	missing := historyStart.AddDate(0, 0, 55)
	found := false
	for _, p := range puntos {
		if p.Fecha.Equal(missing) {
			found = true
			assert.True(t, math.IsNaN(p.Temperatura))
		} else {
			assert.False(t, math.IsNaN(p.Temperatura))
		}
	}
	assert.True(t, found)
}

func TestPrediccion_MissingYesterdayServedAsNull(t *testing.T) {
	// The latest reading is missing: feature construction compacts it away
	// and still predicts, while temp_ayer rides as null.
	ts := newTestServer(t, 59)

	resp, err := http.Get(ts.URL + "/api/prediccion")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotContains(t, payload, "error")

	resultado, ok := payload["resultado"].(map[string]any)
	require.True(t, ok, "resultado missing from payload")
	assert.Nil(t, resultado["temp_ayer"])
	assert.Nil(t, resultado["cambio_esperado"])
	assert.NotNil(t, resultado["temperatura_predicha"])
	assert.NotNil(t, resultado["temp_promedio_7d"])
}

func TestEstadisticas(t *testing.T) {
	ts := newTestServer(t)

	var r timeseries.Resumen
	code := getJSON(t, ts.URL+"/api/estadisticas", &r)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 60, r.TotalRegistros)
	assert.Equal(t, "2023-05-01", r.FechaInicio.Format("2006-01-02"))
}
