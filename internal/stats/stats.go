// Package stats holds the small numeric helpers shared by the dataset, profiling and
// modelling packages: IQR outlier bounds, winsorization and locale-aware parsing.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IQRFactor is the whisker multiplier of the interquartile-range rule.
const IQRFactor = 1.5

// Observed returns the non-NaN values of vals in their original order.
func Observed(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Sorted returns a sorted copy of the observed values.
func Sorted(vals []float64) []float64 {
	cp := Observed(vals)
	sort.Float64s(cp)
	return cp
}

// Quantile returns the q-th quantile of an ascending slice using linear interpolation
// between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// IQRLimits returns [Q1 - 1.5·IQR, Q3 + 1.5·IQR] over the observed values.
// ok is false when there is nothing to measure.
func IQRLimits(vals []float64) (lower, upper float64, ok bool) {
	s := Sorted(vals)
	if len(s) == 0 {
		return 0, 0, false
	}
	q1 := Quantile(s, 0.25)
	q3 := Quantile(s, 0.75)
	iqr := q3 - q1
	return q1 - IQRFactor*iqr, q3 + IQRFactor*iqr, true
}

// OutlierMask flags every observed value outside its IQR limits.
func OutlierMask(vals []float64) []bool {
	mask := make([]bool, len(vals))
	lo, hi, ok := IQRLimits(vals)
	if !ok {
		return mask
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		mask[i] = v < lo || v > hi
	}
	return mask
}

// HasOutliers reports whether any observed value falls outside its IQR limits.
func HasOutliers(vals []float64) bool {
	for _, m := range OutlierMask(vals) {
		if m {
			return true
		}
	}
	return false
}

// Mean of the observed values; NaN when none.
func Mean(vals []float64) float64 {
	obs := Observed(vals)
	if len(obs) == 0 {
		return math.NaN()
	}
	return stat.Mean(obs, nil)
}

// Median of the observed values; NaN when none.
func Median(vals []float64) float64 {
	return Quantile(Sorted(vals), 0.5)
}

// PercentileOfScore returns the percentile rank (0..100) of score relative to the
// observed values, averaging the strict and weak ranks.
func PercentileOfScore(vals []float64, score float64) float64 {
	obs := Observed(vals)
	n := len(obs)
	if n == 0 {
		return math.NaN()
	}
	var left, right int
	for _, v := range obs {
		if v < score {
			left++
		}
		if v <= score {
			right++
		}
	}
	plus1 := 0
	if right > left {
		plus1 = 1
	}
	return float64(left+right+plus1) * 50.0 / float64(n)
}

// Winsorize clips the lowest `lower` and highest `upper` fractions of the observed
// values to the nearest retained value. NaN cells are left untouched. Limits are
// clamped to [0,1]; a returned slice is always a fresh copy.
func Winsorize(vals []float64, lower, upper float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	s := Sorted(vals)
	n := len(s)
	if n == 0 {
		return out
	}
	lower = clamp01(lower)
	upper = clamp01(upper)
	lowIdx := int(lower * float64(n))
	upIdx := n - int(upper*float64(n))
	if lowIdx >= n {
		lowIdx = n - 1
	}
	if upIdx <= lowIdx {
		upIdx = lowIdx + 1
	}
	lowVal := s[lowIdx]
	upVal := s[upIdx-1]
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if lower > 0 && v < lowVal {
			out[i] = lowVal
		}
		if upper > 0 && v > upVal {
			out[i] = upVal
		}
	}
	return out
}

// MedianMAD computes median and MAD (median absolute deviation) of values.
func MedianMAD(vals []float64) (median, mad float64) {
	cp := Sorted(vals)
	if len(cp) == 0 {
		return 0, 0
	}
	median = Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5)
	return
}

// Pearson returns the correlation of the rows where both a and b are observed.
// The result is 0 when fewer than two pairs exist or a side has no variance.
func Pearson(a, b []float64) float64 {
	var xs, ys []float64
	for i := range a {
		if i >= len(b) || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
