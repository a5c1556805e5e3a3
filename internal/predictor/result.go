package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"frostcast/internal/timeseries"
)

const dayLayout = "2006-01-02"

// Fecha is a calendar date that marshals as "YYYY-MM-DD".
type Fecha time.Time

func (f Fecha) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(f).Format(dayLayout) + `"`), nil
}

func (f *Fecha) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"`+dayLayout+`"`, string(b))
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	*f = Fecha(t)
	return nil
}

func (f Fecha) Time() time.Time {
	return time.Time(f)
}

// Resultado is the immutable snapshot produced by one prediction. Field
// names are the wire format consumed by downstream rendering and must stay
// stable.
type Resultado struct {
	FechaConsulta       Fecha              `json:"fecha_consulta"`
	FechaPrediccion     Fecha              `json:"fecha_prediccion"`
	TemperaturaPredicha float64            `json:"temperatura_predicha"`
	ProbabilidadHelada  float64            `json:"probabilidad_helada"`
	HeladaPredicha      int                `json:"helada_predicha"`
	Riesgo              string             `json:"riesgo"`
	EmojiRiesgo         string             `json:"emoji_riesgo"`
	ColorMapa           string             `json:"color_mapa"`
	TempAyer            float64            `json:"temp_ayer"`
	TempPromedio7d      float64            `json:"temp_promedio_7d"`
	TempMinima7d        float64            `json:"temp_minima_7d"`
	TempMaxima7d        float64            `json:"temp_maxima_7d"`
	CambioEsperado      float64            `json:"cambio_esperado"`
	Historial30d        []timeseries.Punto `json:"historial_30d"`
	Timestamp           time.Time          `json:"timestamp"`
}

// MarshalJSON emits the historical-context fields as null when the underlying
// reading is missing. The model outputs themselves are always finite (the
// bundles reject non-finite inputs), so only the context fields need this.
func (r Resultado) MarshalJSON() ([]byte, error) {
	type alias Resultado
	return json.Marshal(struct {
		alias
		TempAyer       *float64 `json:"temp_ayer"`
		TempPromedio7d *float64 `json:"temp_promedio_7d"`
		TempMinima7d   *float64 `json:"temp_minima_7d"`
		TempMaxima7d   *float64 `json:"temp_maxima_7d"`
		CambioEsperado *float64 `json:"cambio_esperado"`
	}{
		alias:          alias(r),
		TempAyer:       nullable(r.TempAyer),
		TempPromedio7d: nullable(r.TempPromedio7d),
		TempMinima7d:   nullable(r.TempMinima7d),
		TempMaxima7d:   nullable(r.TempMaxima7d),
		CambioEsperado: nullable(r.CambioEsperado),
	})
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Respuesta is the tagged union returned by Predecir: exactly one of
// Resultado or Error is set. Per-call failures are absorbed into the Error
// branch and never propagate past the service boundary.
type Respuesta struct {
	Resultado *Resultado `json:"resultado,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Failed reports whether the response carries an error instead of a result.
func (r Respuesta) Failed() bool {
	return r.Error != ""
}
