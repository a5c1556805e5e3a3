// Package timeseries holds the historical daily climate record and exposes
// ordered slicing by date for feature construction, plus descriptive
// statistics over the full history.
package timeseries

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MinObservations is the minimum sample size required for feature generation.
const MinObservations = 50

// ErrInsufficientData is returned when a slice holds fewer than
// MinObservations rows at query time.
var ErrInsufficientData = errors.New("datos insuficientes")

// Observation is one row of the historical record. Missing readings are NaN.
type Observation struct {
	Date   time.Time
	Target float64
	Aux    map[string]float64
}

// Punto is a single (date, target) pair as served to callers of the history
// endpoints. A missing reading travels as JSON null, never as NaN.
type Punto struct {
	Fecha       time.Time `json:"fecha"`
	Temperatura float64   `json:"temperatura"`
}

type puntoJSON struct {
	Fecha       time.Time `json:"fecha"`
	Temperatura *float64  `json:"temperatura"`
}

func (p Punto) MarshalJSON() ([]byte, error) {
	return json.Marshal(puntoJSON{Fecha: p.Fecha, Temperatura: nullable(p.Temperatura)})
}

func (p *Punto) UnmarshalJSON(b []byte) error {
	var raw puntoJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Fecha = raw.Fecha
	if raw.Temperatura == nil {
		p.Temperatura = math.NaN()
	} else {
		p.Temperatura = *raw.Temperatura
	}
	return nil
}

// nullable maps NaN to nil so json encoding emits null instead of failing.
func nullable(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Resumen contains descriptive aggregates over the whole history. Frost is
// defined as target <= 0.
type Resumen struct {
	TotalRegistros    int       `json:"total_registros"`
	FechaInicio       time.Time `json:"fecha_inicio"`
	FechaFin          time.Time `json:"fecha_fin"`
	TempPromedio      float64   `json:"temp_promedio"`
	TempMinima        float64   `json:"temp_minima"`
	TempMaxima        float64   `json:"temp_maxima"`
	HeladasTotales    int       `json:"heladas_totales"`
	PorcentajeHeladas float64   `json:"porcentaje_heladas"`
}

// Store holds the record sorted ascending by date. It is immutable after
// construction.
type Store struct {
	obs []Observation
}

// New builds a store from observations already sorted ascending by unique
// date. LoadCSV is the usual constructor; New exists for tests and synthetic
// histories.
func New(obs []Observation) (*Store, error) {
	for i := 1; i < len(obs); i++ {
		if !obs[i].Date.After(obs[i-1].Date) {
			return nil, fmt.Errorf("observations must be strictly increasing by date, got %s after %s",
				obs[i].Date.Format("2006-01-02"), obs[i-1].Date.Format("2006-01-02"))
		}
	}
	return &Store{obs: obs}, nil
}

// Len returns the number of observations held.
func (s *Store) Len() int { return len(s.obs) }

// Latest returns the most recent date in the record.
func (s *Store) Latest() (time.Time, error) {
	if len(s.obs) == 0 {
		return time.Time{}, fmt.Errorf("store is empty")
	}
	return s.obs[len(s.obs)-1].Date, nil
}

// Slice returns the ascending sub-sequence of observations with date <=
// cutoff. Rows with a missing target are kept; only feature construction
// filters on target presence. Returns ErrInsufficientData when fewer than
// MinObservations rows remain.
func (s *Store) Slice(cutoff time.Time) ([]Observation, error) {
	n := 0
	for n < len(s.obs) && !s.obs[n].Date.After(cutoff) {
		n++
	}
	if n < MinObservations {
		return nil, fmt.Errorf("%w: %d observations up to %s, need %d",
			ErrInsufficientData, n, cutoff.Format("2006-01-02"), MinObservations)
	}
	return s.obs[:n], nil
}

// Historial returns the trailing dias (date, target) pairs of the full record.
func (s *Store) Historial(dias int) []Punto {
	if dias < 0 {
		dias = 0
	}
	start := len(s.obs) - dias
	if start < 0 {
		start = 0
	}
	out := make([]Punto, 0, len(s.obs)-start)
	for _, o := range s.obs[start:] {
		out = append(out, Punto{Fecha: o.Date, Temperatura: o.Target})
	}
	return out
}

// Estadisticas computes descriptive aggregates over the full record. Missing
// targets are excluded from the temperature aggregates and never count as
// frost.
func (s *Store) Estadisticas() (Resumen, error) {
	if len(s.obs) == 0 {
		return Resumen{}, fmt.Errorf("store is empty")
	}

	var values []float64
	heladas := 0
	for _, o := range s.obs {
		if math.IsNaN(o.Target) {
			continue
		}
		values = append(values, o.Target)
		if o.Target <= 0 {
			heladas++
		}
	}

	r := Resumen{
		TotalRegistros:    len(s.obs),
		FechaInicio:       s.obs[0].Date,
		FechaFin:          s.obs[len(s.obs)-1].Date,
		HeladasTotales:    heladas,
		PorcentajeHeladas: float64(heladas) / float64(len(s.obs)) * 100,
	}

	if len(values) > 0 {
		r.TempPromedio = stat.Mean(values, nil)
		r.TempMinima = values[0]
		r.TempMaxima = values[0]
		for _, v := range values[1:] {
			if v < r.TempMinima {
				r.TempMinima = v
			}
			if v > r.TempMaxima {
				r.TempMaxima = v
			}
		}
	} else {
		r.TempPromedio = math.NaN()
		r.TempMinima = math.NaN()
		r.TempMaxima = math.NaN()
	}

	return r, nil
}
