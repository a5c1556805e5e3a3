// Package ml loads and evaluates the pretrained model bundles. A bundle is
// an opaque trained estimator plus its input scaler and ordered feature-name
// list, exported from the training pipeline as JSON artifacts. The service
// only relies on the predict / decision-margin contracts; coefficients are
// never interpreted.
package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"frostcast/internal/features"
)

// MetricsInterface defines the metrics methods needed by a bundle.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(float64)
	ModelAgeSet(float64)
}

// Scaler standardizes raw feature values to the distribution the estimator
// was trained on.
type Scaler struct {
	Mean  []float64 `json:"media"`
	Scale []float64 `json:"escala"`
}

// Transform returns (x - mean) / scale elementwise.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

// LinearModel is the persisted estimator form: a coefficient vector and an
// intercept. Both the regression prediction and the classification decision
// margin are the same affine map over scaled features.
type LinearModel struct {
	Tipo      string    `json:"tipo"`
	Coef      []float64 `json:"coeficientes"`
	Intercept float64   `json:"intercepto"`
}

func (m *LinearModel) eval(x []float64) (float64, error) {
	if len(x) != len(m.Coef) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Coef), len(x))
	}
	sum := m.Intercept
	for i, v := range x {
		sum += m.Coef[i] * v
	}
	return sum, nil
}

// Bundle binds an estimator, its scaler and its ordered feature-name list.
type Bundle struct {
	Name     string
	Model    *LinearModel
	Scaler   *Scaler
	Features []string
	metrics  MetricsInterface
}

// LoadBundle reads the three artifacts of a task from dir:
// modelo_<name>.json, scaler_<name>.json and features_<name>.json. Any
// missing or malformed artifact is fatal; the artifacts are static, so no
// retry applies.
func LoadBundle(dir, name string, metrics MetricsInterface) (*Bundle, error) {
	b := &Bundle{Name: name, metrics: metrics}

	modelPath := filepath.Join(dir, "modelo_"+name+".json")
	if err := readJSON(modelPath, &b.Model); err != nil {
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	if err := readJSON(filepath.Join(dir, "scaler_"+name+".json"), &b.Scaler); err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", name, err)
	}
	if err := readJSON(filepath.Join(dir, "features_"+name+".json"), &b.Features); err != nil {
		return nil, fmt.Errorf("load feature list %s: %w", name, err)
	}

	if len(b.Features) == 0 {
		return nil, fmt.Errorf("bundle %s: empty feature list", name)
	}
	if len(b.Model.Coef) != len(b.Features) {
		return nil, fmt.Errorf("bundle %s: %d coefficients for %d features", name, len(b.Model.Coef), len(b.Features))
	}
	if len(b.Scaler.Mean) != len(b.Features) || len(b.Scaler.Scale) != len(b.Features) {
		return nil, fmt.Errorf("bundle %s: scaler dimensions do not match feature list", name)
	}
	for i, s := range b.Scaler.Scale {
		if s == 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("bundle %s: invalid scale for feature %s", name, b.Features[i])
		}
	}

	if metrics != nil {
		if info, err := os.Stat(modelPath); err == nil {
			metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	}

	log.Info().
		Str("bundle", name).
		Str("dir", dir).
		Int("features", len(b.Features)).
		Msg("model bundle loaded")

	return b, nil
}

// Predict evaluates the regression estimator on the given feature vector.
// Every feature in the bundle's list must be present and non-missing.
func (b *Bundle) Predict(v features.Vector) (float64, error) {
	return b.eval(v)
}

// DecisionFunction evaluates the classifier's raw decision margin on the
// given feature vector. Positive margin means the positive (frost) class.
func (b *Bundle) DecisionFunction(v features.Vector) (float64, error) {
	return b.eval(v)
}

func (b *Bundle) eval(v features.Vector) (float64, error) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	x := make([]float64, len(b.Features))
	for i, name := range b.Features {
		val, ok := v[name]
		if !ok {
			b.fail()
			return 0, fmt.Errorf("bundle %s: feature %s missing from vector", b.Name, name)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			b.fail()
			return 0, fmt.Errorf("bundle %s: feature %s is not finite", b.Name, name)
		}
		x[i] = val
	}

	scaled, err := b.Scaler.Transform(x)
	if err != nil {
		b.fail()
		return 0, fmt.Errorf("bundle %s: %w", b.Name, err)
	}

	out, err := b.Model.eval(scaled)
	if err != nil {
		b.fail()
		return 0, fmt.Errorf("bundle %s: %w", b.Name, err)
	}

	if b.metrics != nil {
		b.metrics.PredictionsInc()
	}
	return out, nil
}

func (b *Bundle) fail() {
	if b.metrics != nil {
		b.metrics.FailuresInc()
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
