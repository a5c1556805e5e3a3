// Package evaluation replays the prediction pipeline over the historical
// record and scores it against the observed next-day values. Each evaluated
// day sees only the data available up to that day, so the replay measures
// what the service would actually have forecast.
package evaluation

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"frostcast/internal/features"
	"frostcast/internal/ml"
	"frostcast/internal/risk"
	"frostcast/internal/timeseries"
)

// Sample is one evaluated day: the forecast made with data up to Fecha,
// compared against the observation of the following day.
type Sample struct {
	Fecha           time.Time `json:"fecha"`
	TempPredicha    float64   `json:"temperatura_predicha"`
	TempObservada   float64   `json:"temperatura_observada"`
	ErrorAbs        float64   `json:"error_absoluto"`
	ProbHelada      float64   `json:"probabilidad_helada"`
	HeladaPredicha  bool      `json:"helada_predicha"`
	HeladaObservada bool      `json:"helada_observada"`
	Riesgo          string    `json:"riesgo"`
}

// Results holds the replay outcome and the derived quality metrics.
type Results struct {
	Samples   []Sample  `json:"-"`
	Evaluated int       `json:"evaluated"`
	Skipped   int       `json:"skipped"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Temperature regression metrics
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	Bias float64 `json:"bias"`

	// Frost classification metrics
	TruePositives  int     `json:"true_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
}

// Engine walks the record forward, one forecast per day.
type Engine struct {
	store       *timeseries.Store
	builder     *features.Builder
	tempBundle  *ml.Bundle
	frostBundle *ml.Bundle
	results     *Results
}

func NewEngine(store *timeseries.Store, builder *features.Builder, tempBundle, frostBundle *ml.Bundle) *Engine {
	return &Engine{
		store:       store,
		builder:     builder,
		tempBundle:  tempBundle,
		frostBundle: frostBundle,
		results:     &Results{},
	}
}

// Run evaluates every date in [start, end] whose next-day observation exists.
// Zero start/end mean the full record. Days with too little history or an
// unusable feature row are skipped, not failed: the replay's job is to score
// the days the service would have answered.
func (e *Engine) Run(start, end time.Time) error {
	record := e.store.Historial(e.store.Len())
	if len(record) < 2 {
		return timeseries.ErrInsufficientData
	}

	log.Info().
		Time("start", record[0].Fecha).
		Time("end", record[len(record)-1].Fecha).
		Int("rows", len(record)).
		Msg("starting walk-forward evaluation")

	for i := 0; i < len(record)-1; i++ {
		fecha := record[i].Fecha
		if !start.IsZero() && fecha.Before(start) {
			continue
		}
		if !end.IsZero() && fecha.After(end) {
			break
		}

		observada := record[i+1].Temperatura
		if math.IsNaN(observada) {
			e.results.Skipped++
			continue
		}

		sample, ok := e.evaluateDay(fecha, observada)
		if !ok {
			e.results.Skipped++
			continue
		}
		e.results.Samples = append(e.results.Samples, sample)
	}

	e.calculateMetrics()
	return nil
}

// evaluateDay forecasts with data up to fecha and scores against observada.
func (e *Engine) evaluateDay(fecha time.Time, observada float64) (Sample, bool) {
	slice, err := e.store.Slice(fecha)
	if err != nil {
		return Sample{}, false
	}

	tempRow, err := e.builder.Temperature(slice).Last()
	if err != nil {
		return Sample{}, false
	}
	tempPredicha, err := e.tempBundle.Predict(tempRow.Features)
	if err != nil {
		log.Debug().Err(err).Time("fecha", fecha).Msg("temperature model rejected row")
		return Sample{}, false
	}

	frostRow, err := e.builder.Frost(slice).Last()
	if err != nil {
		return Sample{}, false
	}
	score, err := e.frostBundle.DecisionFunction(frostRow.Features)
	if err != nil {
		log.Debug().Err(err).Time("fecha", fecha).Msg("frost model rejected row")
		return Sample{}, false
	}

	return Sample{
		Fecha:           fecha,
		TempPredicha:    tempPredicha,
		TempObservada:   observada,
		ErrorAbs:        math.Abs(tempPredicha - observada),
		ProbHelada:      100 / (1 + math.Exp(-score)),
		HeladaPredicha:  score > 0,
		HeladaObservada: observada <= 0,
		Riesgo:          risk.Classify(tempPredicha).Riesgo,
	}, true
}

func (e *Engine) calculateMetrics() {
	r := e.results
	r.Evaluated = len(r.Samples)
	if r.Evaluated == 0 {
		return
	}

	r.StartDate = r.Samples[0].Fecha
	r.EndDate = r.Samples[len(r.Samples)-1].Fecha

	absErrors := make([]float64, len(r.Samples))
	signedErrors := make([]float64, len(r.Samples))
	var sqSum float64
	for i, s := range r.Samples {
		absErrors[i] = s.ErrorAbs
		signedErrors[i] = s.TempPredicha - s.TempObservada
		sqSum += signedErrors[i] * signedErrors[i]

		switch {
		case s.HeladaPredicha && s.HeladaObservada:
			r.TruePositives++
		case !s.HeladaPredicha && !s.HeladaObservada:
			r.TrueNegatives++
		case s.HeladaPredicha && !s.HeladaObservada:
			r.FalsePositives++
		default:
			r.FalseNegatives++
		}
	}

	r.MAE = stat.Mean(absErrors, nil)
	r.Bias = stat.Mean(signedErrors, nil)
	r.RMSE = math.Sqrt(sqSum / float64(r.Evaluated))

	r.Accuracy = float64(r.TruePositives+r.TrueNegatives) / float64(r.Evaluated)
	if predicted := r.TruePositives + r.FalsePositives; predicted > 0 {
		r.Precision = float64(r.TruePositives) / float64(predicted)
	}
	if observed := r.TruePositives + r.FalseNegatives; observed > 0 {
		r.Recall = float64(r.TruePositives) / float64(observed)
	}
}

// GetResults returns the evaluation results.
func (e *Engine) GetResults() *Results {
	return e.results
}
