// Package features derives, from a date-ordered temperature series and its
// auxiliary precipitation/max-temperature series, the fixed-schema numeric
// feature vectors consumed by the trained model bundles.
//
// Missing values are represented as NaN throughout. Every window-based
// feature follows the as-of discipline: the window ends at t-1 (the series is
// shifted by one step before rolling), so no feature for row t can see the
// target at t or any later value.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Lag returns x shifted back by k steps. The first k entries are NaN.
func Lag(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = x[i-k]
		}
	}
	return out
}

// Diff returns x minus x shifted back by k steps.
func Diff(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = x[i] - x[i-k]
		}
	}
	return out
}

// rollingApply computes f over every fully populated trailing window of the
// given size. Entries with an incomplete window, or with any NaN inside the
// window, are NaN.
func rollingApply(x []float64, window int, f func([]float64) float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		win := x[i+1-window : i+1]
		if hasNaN(win) {
			out[i] = math.NaN()
			continue
		}
		out[i] = f(win)
	}
	return out
}

// RollingMean computes the trailing-window mean.
func RollingMean(x []float64, window int) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		return stat.Mean(win, nil)
	})
}

// RollingStd computes the trailing-window sample standard deviation.
func RollingStd(x []float64, window int) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		return stat.StdDev(win, nil)
	})
}

// RollingMin computes the trailing-window minimum.
func RollingMin(x []float64, window int) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		m := win[0]
		for _, v := range win[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollingMax computes the trailing-window maximum.
func RollingMax(x []float64, window int) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		m := win[0]
		for _, v := range win[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollingSum computes the trailing-window sum.
func RollingSum(x []float64, window int) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		var s float64
		for _, v := range win {
			s += v
		}
		return s
	})
}

// RollingQuantile computes the trailing-window quantile p in [0,1] using the
// linear interpolation convention of the training pipeline (position
// p*(n-1) on the sorted window), which differs from gonum's cumulant kinds.
func RollingQuantile(x []float64, window int, p float64) []float64 {
	return rollingApply(x, window, func(win []float64) float64 {
		return quantileLinear(win, p)
	})
}

// RollingSlope computes the ordinary-least-squares slope of each trailing
// window against a 0..n-1 index, or 0 when the fit degenerates. rollingApply
// only passes full NaN-free windows, so rows with too few points are already
// NaN rather than fitted on a short sample.
func RollingSlope(x []float64, window int) []float64 {
	idx := make([]float64, window)
	for i := range idx {
		idx[i] = float64(i)
	}
	return rollingApply(x, window, func(win []float64) float64 {
		_, slope := stat.LinearRegression(idx, win, nil, false)
		if math.IsNaN(slope) || math.IsInf(slope, 0) {
			return 0
		}
		return slope
	})
}

// Acceleration returns the second difference of x: the 1-step difference of
// the 1-step difference series.
func Acceleration(x []float64) []float64 {
	return Diff(Diff(x, 1), 1)
}

func quantileLinear(win []float64, p float64) float64 {
	sorted := make([]float64, len(win))
	copy(sorted, win)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// rowwiseMean averages the same row across columns, skipping NaN. Rows where
// every column is NaN are NaN.
func rowwiseMean(cols [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		count := 0
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				continue
			}
			sum += col[i]
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// rowwiseMax takes the per-row maximum across columns, skipping NaN.
func rowwiseMax(cols [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		m := math.NaN()
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				continue
			}
			if math.IsNaN(m) || col[i] > m {
				m = col[i]
			}
		}
		out[i] = m
	}
	return out
}

// rowwiseStd computes the per-row sample standard deviation across columns,
// skipping NaN. Rows with fewer than two readings are NaN, matching the
// sample (n-1) convention of the training pipeline.
func rowwiseStd(cols [][]float64, n int) []float64 {
	out := make([]float64, n)
	row := make([]float64, 0, len(cols))
	for i := 0; i < n; i++ {
		row = row[:0]
		for _, col := range cols {
			if !math.IsNaN(col[i]) {
				row = append(row, col[i])
			}
		}
		if len(row) < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(row, nil)
	}
	return out
}
