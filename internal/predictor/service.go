// Package predictor orchestrates the prediction pipeline: historical slice,
// feature construction, the two pretrained model bundles and risk
// classification, with a one-slot same-day cache. It is the single recovery
// point of the pipeline: construction failures are fatal, per-call failures
// are converted into an error payload and never propagate.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"frostcast/internal/features"
	"frostcast/internal/ml"
	"frostcast/internal/risk"
	"frostcast/internal/timeseries"
)

// MetricsInterface defines the metrics methods needed by the service.
type MetricsInterface interface {
	PredictionLatencyObserve(float64)
	CacheHitsInc()
	FeatureRowsSet(float64)
	FeatureErrorsInc()
	ErrorsInc()
}

// Journal persists computed results; nil disables persistence.
type Journal interface {
	Guardar(fecha time.Time, v any) error
}

// FeatureConstructionError reports that no row survived the missing-value
// drop after feature derivation for the named feature set.
type FeatureConstructionError struct {
	Set string
}

func (e *FeatureConstructionError) Error() string {
	return "No se pudieron crear features de " + e.Set
}

// Config wires the service's collaborators. Store, Builder and both bundles
// are required; Clock, Cache, Journal and Metrics are optional.
type Config struct {
	Store       *timeseries.Store
	Builder     *features.Builder
	TempBundle  *ml.Bundle
	FrostBundle *ml.Bundle
	Clock       Clock
	Cache       *DayCache
	Journal     Journal
	Metrics     MetricsInterface
}

// Service owns the prediction pipeline. Construction is eager: all
// collaborators are already loaded, so a constructed service is usable until
// process exit.
type Service struct {
	store       *timeseries.Store
	builder     *features.Builder
	tempBundle  *ml.Bundle
	frostBundle *ml.Bundle
	clock       Clock
	cache       *DayCache
	journal     Journal
	metrics     MetricsInterface
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Builder == nil {
		return nil, fmt.Errorf("store and builder are required")
	}
	if cfg.TempBundle == nil || cfg.FrostBundle == nil {
		return nil, fmt.Errorf("both model bundles are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Cache == nil {
		cfg.Cache = NewDayCache()
	}
	return &Service{
		store:       cfg.Store,
		builder:     cfg.Builder,
		tempBundle:  cfg.TempBundle,
		frostBundle: cfg.FrostBundle,
		clock:       cfg.Clock,
		cache:       cfg.Cache,
		journal:     cfg.Journal,
		metrics:     cfg.Metrics,
	}, nil
}

// Predecir forecasts the minimum temperature and frost probability for the
// day after fechaConsulta (latest available date when nil). Within a single
// wall-clock calendar day the second call returns the cached result
// unchanged, regardless of the query date argument.
func (s *Service) Predecir(fechaConsulta *time.Time) (resp Respuesta) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("prediction pipeline panicked")
			s.errorsInc()
			resp = Respuesta{Error: fmt.Sprintf("%v", r)}
		}
		if s.metrics != nil {
			s.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	hoy := s.clock.Now().Format(dayLayout)
	if cached, ok := s.cache.Get(hoy); ok {
		if s.metrics != nil {
			s.metrics.CacheHitsInc()
		}
		log.Debug().Str("day", hoy).Msg("returning cached prediction")
		return Respuesta{Resultado: cached}
	}

	res, err := s.predecir(fechaConsulta)
	if err != nil {
		s.errorsInc()
		log.Error().Err(err).Msg("prediction failed")
		return Respuesta{Error: userMessage(err)}
	}

	s.cache.Put(hoy, res)

	if s.journal != nil {
		if err := s.journal.Guardar(res.FechaConsulta.Time(), res); err != nil {
			log.Warn().Err(err).Msg("failed to persist prediction")
		}
	}

	return Respuesta{Resultado: res}
}

func (s *Service) predecir(fechaConsulta *time.Time) (*Resultado, error) {
	var fecha time.Time
	if fechaConsulta != nil {
		fecha = *fechaConsulta
	} else {
		latest, err := s.store.Latest()
		if err != nil {
			return nil, err
		}
		fecha = latest
	}

	slice, err := s.store.Slice(fecha)
	if err != nil {
		return nil, err
	}

	// Temperature prediction
	tempFrame := s.builder.Temperature(slice)
	if s.metrics != nil {
		s.metrics.FeatureRowsSet(float64(tempFrame.UsableCount()))
	}
	lastTemp, err := tempFrame.Last()
	if err != nil {
		s.featureErrorsInc()
		return nil, &FeatureConstructionError{Set: "temperatura"}
	}

	tempPredicha, err := s.tempBundle.Predict(lastTemp.Features)
	if err != nil {
		return nil, fmt.Errorf("temperature model: %w", err)
	}

	// Frost prediction
	frostFrame := s.builder.Frost(slice)
	lastFrost, err := frostFrame.Last()
	if err != nil {
		s.featureErrorsInc()
		return nil, &FeatureConstructionError{Set: "helada"}
	}

	score, err := s.frostBundle.DecisionFunction(lastFrost.Features)
	if err != nil {
		return nil, fmt.Errorf("frost model: %w", err)
	}

	probabilidad := 100 / (1 + math.Exp(-score))
	heladaPredicha := 0
	if score > 0 {
		heladaPredicha = 1
	}

	nivel := risk.Classify(tempPredicha)

	tempAyer := slice[len(slice)-1].Target
	promedio7d, minima7d, maxima7d := trailingStats(slice, 7)

	res := &Resultado{
		FechaConsulta:       Fecha(fecha),
		FechaPrediccion:     Fecha(fecha.AddDate(0, 0, 1)),
		TemperaturaPredicha: tempPredicha,
		ProbabilidadHelada:  probabilidad,
		HeladaPredicha:      heladaPredicha,
		Riesgo:              nivel.Riesgo,
		EmojiRiesgo:         nivel.Emoji,
		ColorMapa:           nivel.Color,
		TempAyer:            tempAyer,
		TempPromedio7d:      promedio7d,
		TempMinima7d:        minima7d,
		TempMaxima7d:        maxima7d,
		CambioEsperado:      tempPredicha - tempAyer,
		Historial30d:        trailingHistory(slice, 30),
		Timestamp:           s.clock.Now(),
	}

	log.Info().
		Str("fecha_consulta", fecha.Format(dayLayout)).
		Float64("temperatura_predicha", tempPredicha).
		Float64("probabilidad_helada", probabilidad).
		Str("riesgo", nivel.Riesgo).
		Msg("prediction computed")

	return res, nil
}

// ObtenerHistorial returns the trailing dias (date, temperature) pairs of
// the full history.
func (s *Service) ObtenerHistorial(dias int) []timeseries.Punto {
	return s.store.Historial(dias)
}

// EstadisticasGenerales returns descriptive aggregates over the whole
// history. Cheap to recompute, so no caching applies.
func (s *Service) EstadisticasGenerales() (timeseries.Resumen, error) {
	return s.store.Estadisticas()
}

// trailingStats computes mean/min/max of the target over the last n rows of
// the slice (row count, not a calendar window), skipping missing values.
func trailingStats(slice []timeseries.Observation, n int) (mean, min, max float64) {
	start := len(slice) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	count := 0
	min, max = math.NaN(), math.NaN()
	for _, o := range slice[start:] {
		if math.IsNaN(o.Target) {
			continue
		}
		sum += o.Target
		count++
		if math.IsNaN(min) || o.Target < min {
			min = o.Target
		}
		if math.IsNaN(max) || o.Target > max {
			max = o.Target
		}
	}
	if count == 0 {
		return math.NaN(), min, max
	}
	return sum / float64(count), min, max
}

func trailingHistory(slice []timeseries.Observation, n int) []timeseries.Punto {
	start := len(slice) - n
	if start < 0 {
		start = 0
	}
	out := make([]timeseries.Punto, 0, len(slice)-start)
	for _, o := range slice[start:] {
		out = append(out, timeseries.Punto{Fecha: o.Date, Temperatura: o.Target})
	}
	return out
}

// userMessage maps pipeline errors to the stable error payload strings.
func userMessage(err error) string {
	if errors.Is(err, timeseries.ErrInsufficientData) {
		return "Datos insuficientes"
	}
	var fce *FeatureConstructionError
	if errors.As(err, &fce) {
		return fce.Error()
	}
	return err.Error()
}

func (s *Service) errorsInc() {
	if s.metrics != nil {
		s.metrics.ErrorsInc()
	}
}

func (s *Service) featureErrorsInc() {
	if s.metrics != nil {
		s.metrics.FeatureErrorsInc()
	}
}
