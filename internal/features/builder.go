package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"frostcast/internal/timeseries"
)

// ErrNoUsableRows is returned when no row survives the drop-any-missing
// policy after feature derivation.
var ErrNoUsableRows = errors.New("no usable feature rows")

// Lag and window sets shared by the two feature sets.
var (
	lagSteps     = []int{1, 2, 3, 7, 14, 21, 30}
	rollWindows  = []int{3, 7, 14, 30}
	diffSteps    = []int{1, 7, 30}
	trendWindows = []int{7, 14, 30}
	precLagSteps = []int{2, 3, 7}
	auxWindows   = []int{3, 7, 14}
)

// Vector is a feature vector keyed by feature name.
type Vector map[string]float64

// Row is one usable feature row: a date and its complete feature vector.
type Row struct {
	Date     time.Time
	Features Vector
}

// Schema names the target column and the role-tagged auxiliary columns.
type Schema struct {
	Target string
	Precip []string
	TMax   []string
}

// Frame is a column-oriented feature table. Columns are stored in insertion
// order; all columns have the same length as the date index.
type Frame struct {
	dates   []time.Time
	order   []string
	columns map[string][]float64
}

func newFrame(dates []time.Time) *Frame {
	return &Frame{
		dates:   dates,
		columns: make(map[string][]float64),
	}
}

// add appends a column. Caller guarantees len(col) == len(f.dates).
func (f *Frame) add(name string, col []float64) {
	if _, exists := f.columns[name]; !exists {
		f.order = append(f.order, name)
	}
	f.columns[name] = col
}

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) []float64 {
	return f.columns[name]
}

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	return f.order
}

// Len returns the number of rows, usable or not.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Rows returns the ordered usable rows: every row where all columns are
// non-missing. Rows near the start of history, where lags and windows are
// not yet defined, are excluded here.
func (f *Frame) Rows() []Row {
	var rows []Row
	for i := range f.dates {
		if !f.usable(i) {
			continue
		}
		v := make(Vector, len(f.order))
		for _, name := range f.order {
			v[name] = f.columns[name][i]
		}
		rows = append(rows, Row{Date: f.dates[i], Features: v})
	}
	return rows
}

// Last returns the most recent usable row, the one used for live inference.
func (f *Frame) Last() (Row, error) {
	for i := len(f.dates) - 1; i >= 0; i-- {
		if !f.usable(i) {
			continue
		}
		v := make(Vector, len(f.order))
		for _, name := range f.order {
			v[name] = f.columns[name][i]
		}
		return Row{Date: f.dates[i], Features: v}, nil
	}
	return Row{}, ErrNoUsableRows
}

// UsableCount returns how many rows survive the drop-any-missing policy.
func (f *Frame) UsableCount() int {
	count := 0
	for i := range f.dates {
		if f.usable(i) {
			count++
		}
	}
	return count
}

func (f *Frame) usable(i int) bool {
	for _, name := range f.order {
		if math.IsNaN(f.columns[name][i]) {
			return false
		}
	}
	return true
}

// Builder derives the temperature and frost feature sets from a slice of
// ordered observations.
type Builder struct {
	schema Schema
}

func NewBuilder(schema Schema) *Builder {
	return &Builder{schema: schema}
}

// Temperature builds the temperature feature set: calendar encodings, lags,
// trailing-window statistics, differences, trend slopes, ranges, quartiles
// and acceleration of the target series. Rows with a missing target are
// filtered out before derivation, so lags and windows run over the compacted
// target-present sequence.
func (b *Builder) Temperature(obs []timeseries.Observation) *Frame {
	dates, target, _ := b.filterTarget(obs, false)
	frame := newFrame(dates)
	frame.add(b.schema.Target, target)
	b.addTemperatureFeatures(frame, target)
	return frame
}

// Frost builds the frost feature set: the temperature set plus lagged and
// aggregated auxiliary precipitation/max-temperature features and their
// interactions. Missing auxiliary readings are imputed with the column mean
// over the target-filtered slice. The raw auxiliary columns never enter the
// frame; only lagged and aggregated forms may reach the model.
func (b *Builder) Frost(obs []timeseries.Observation) *Frame {
	dates, target, aux := b.filterTarget(obs, true)
	for _, col := range aux {
		imputeMean(col)
	}

	frame := newFrame(dates)
	frame.add(b.schema.Target, target)
	b.addTemperatureFeatures(frame, target)

	n := len(dates)

	if len(b.schema.Precip) > 0 {
		precLags := make([][]float64, len(b.schema.Precip))
		for i, col := range b.schema.Precip {
			precLags[i] = Lag(aux[col], 1)
			frame.add(col+"_lag1", precLags[i])
		}

		precMean := rowwiseMean(precLags, n)
		frame.add("PREC_promedio", precMean)
		frame.add("PREC_max", rowwiseMax(precLags, n))
		frame.add("PREC_std", rowwiseStd(precLags, n))

		for _, lag := range precLagSteps {
			frame.add(fmt.Sprintf("PREC_promedio_lag%d", lag), Lag(precMean, lag))
		}
		for _, w := range auxWindows {
			frame.add(fmt.Sprintf("PREC_suma_%d", w), RollingSum(Lag(precMean, 1), w))
		}
	}

	if len(b.schema.TMax) > 0 {
		tmaxLags := make([][]float64, len(b.schema.TMax))
		for i, col := range b.schema.TMax {
			tmaxLags[i] = Lag(aux[col], 1)
			frame.add(col+"_lag1", tmaxLags[i])
		}

		tmaxMean := rowwiseMean(tmaxLags, n)
		frame.add("TMAX_promedio", tmaxMean)
		frame.add("TMAX_std", rowwiseStd(tmaxLags, n))

		tminLag1 := frame.Column("TMIN_lag_1")
		rango := make([]float64, n)
		for i := 0; i < n; i++ {
			rango[i] = tmaxMean[i] - tminLag1[i]
		}
		frame.add("Rango_termico_lag1", rango)

		for _, w := range auxWindows {
			frame.add(fmt.Sprintf("TMAX_ma_%d", w), RollingMean(Lag(tmaxMean, 1), w))
		}
		frame.add("TMAX_diff_1", Diff(tmaxMean, 1))
	}

	if tmaxMean := frame.Column("TMAX_promedio"); tmaxMean != nil {
		// The +1 in the denominator guards division by near-zero lags.
		tminLag1 := frame.Column("TMIN_lag_1")
		ratio := make([]float64, n)
		for i := 0; i < n; i++ {
			ratio[i] = tmaxMean[i] / (math.Abs(tminLag1[i]) + 1)
		}
		frame.add("TMax_TMin_ratio", ratio)
	}

	if precMean := frame.Column("PREC_promedio"); precMean != nil {
		binary := make([]float64, n)
		for i := 0; i < n; i++ {
			if precMean[i] > 0 {
				binary[i] = 1
			}
		}
		frame.add("PREC_binaria", binary)
	}

	return frame
}

func (b *Builder) addTemperatureFeatures(frame *Frame, target []float64) {
	n := len(frame.dates)

	mes := make([]float64, n)
	diaAnio := make([]float64, n)
	trimestre := make([]float64, n)
	diaSemana := make([]float64, n)
	semana := make([]float64, n)
	for i, d := range frame.dates {
		mes[i] = float64(d.Month())
		diaAnio[i] = float64(d.YearDay())
		trimestre[i] = quarter(d)
		diaSemana[i] = weekdayIndex(d)
		semana[i] = isoWeek(d)
	}
	frame.add("Mes", mes)
	frame.add("DíaAño", diaAnio)
	frame.add("Trimestre", trimestre)
	frame.add("DiaSemana", diaSemana)
	frame.add("Semana", semana)

	addCyclical(frame, "Mes", mes, periodMonth)
	addCyclical(frame, "DíaAño", diaAnio, periodDayOfYear)
	addCyclical(frame, "Semana", semana, periodWeek)
	addCyclical(frame, "DiaSemana", diaSemana, periodWeekday)

	for _, lag := range lagSteps {
		frame.add(fmt.Sprintf("TMIN_lag_%d", lag), Lag(target, lag))
	}

	shifted := Lag(target, 1)
	for _, w := range rollWindows {
		frame.add(fmt.Sprintf("TMIN_ma_%d", w), RollingMean(shifted, w))
		frame.add(fmt.Sprintf("TMIN_std_%d", w), RollingStd(shifted, w))
		frame.add(fmt.Sprintf("TMIN_min_%d", w), RollingMin(shifted, w))
		frame.add(fmt.Sprintf("TMIN_max_%d", w), RollingMax(shifted, w))
	}

	for _, k := range diffSteps {
		frame.add(fmt.Sprintf("TMIN_diff_%d", k), Diff(target, k))
	}

	for _, w := range trendWindows {
		frame.add(fmt.Sprintf("TMIN_tendencia_%d", w), RollingSlope(shifted, w))
	}

	for _, w := range trendWindows {
		maxCol := frame.Column(fmt.Sprintf("TMIN_max_%d", w))
		minCol := frame.Column(fmt.Sprintf("TMIN_min_%d", w))
		rango := make([]float64, n)
		for i := 0; i < n; i++ {
			rango[i] = maxCol[i] - minCol[i]
		}
		frame.add(fmt.Sprintf("TMIN_rango_%d", w), rango)
	}

	for _, w := range trendWindows {
		frame.add(fmt.Sprintf("TMIN_q25_%d", w), RollingQuantile(shifted, w, 0.25))
		frame.add(fmt.Sprintf("TMIN_q75_%d", w), RollingQuantile(shifted, w, 0.75))
	}

	frame.add("TMIN_aceleracion", Acceleration(target))
}

func addCyclical(frame *Frame, name string, col []float64, period float64) {
	sinCol := make([]float64, len(col))
	cosCol := make([]float64, len(col))
	for i, v := range col {
		sinCol[i], cosCol[i] = cyclical(v, period)
	}
	frame.add(name+"_sin", sinCol)
	frame.add(name+"_cos", cosCol)
}

// filterTarget keeps only rows with a present target, preserving order. When
// withAux is set the declared auxiliary columns are extracted alongside.
func (b *Builder) filterTarget(obs []timeseries.Observation, withAux bool) ([]time.Time, []float64, map[string][]float64) {
	var dates []time.Time
	var target []float64
	var aux map[string][]float64
	auxCols := append(append([]string{}, b.schema.Precip...), b.schema.TMax...)
	if withAux {
		aux = make(map[string][]float64, len(auxCols))
	}

	for _, o := range obs {
		if math.IsNaN(o.Target) {
			continue
		}
		dates = append(dates, o.Date)
		target = append(target, o.Target)
		if !withAux {
			continue
		}
		for _, col := range auxCols {
			v, ok := o.Aux[col]
			if !ok {
				v = math.NaN()
			}
			aux[col] = append(aux[col], v)
		}
	}
	return dates, target, aux
}

// imputeMean replaces NaN entries with the mean of the non-missing entries.
// A column with no readings at all is left as-is.
func imputeMean(col []float64) {
	var sum float64
	count := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return
	}
	mean := sum / float64(count)
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = mean
		}
	}
}
