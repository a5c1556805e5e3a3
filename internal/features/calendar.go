package features

import (
	"math"
	"time"
)

// Cyclical periods for the calendar encodings.
const (
	periodMonth     = 12
	periodDayOfYear = 365
	periodWeek      = 52
	periodWeekday   = 7
)

// weekdayIndex maps a date to the Monday=0 .. Sunday=6 convention the models
// were trained with.
func weekdayIndex(t time.Time) float64 {
	return float64((int(t.Weekday()) + 6) % 7)
}

func quarter(t time.Time) float64 {
	return float64((int(t.Month())-1)/3 + 1)
}

func isoWeek(t time.Time) float64 {
	_, week := t.ISOWeek()
	return float64(week)
}

// cyclical encodes a value on a circle of the given period, so the feature
// has no discontinuity at the period boundary.
func cyclical(v, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * v / period
	return math.Sin(angle), math.Cos(angle)
}
