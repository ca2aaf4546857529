// Package impute fills missing (NaN) cells of a row-major numeric matrix.
package impute

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

// Strategy names accepted by Simple.
const (
	Mean         = "mean"
	Median       = "median"
	MostFrequent = "most_frequent"
	Constant     = "constant"
)

// ErrUnknownStrategy is returned for strategy names Simple does not implement.
var ErrUnknownStrategy = errors.New("unknown imputation strategy")

// Result is the filled matrix plus the indexes of columns that had no observed value
// and were filled with the constant fallback.
type Result struct {
	Rows  [][]float64
	Empty []int
}

// Simple fills every missing cell with a per-column statistic.
func Simple(rows [][]float64, strategy string, fill float64) (*Result, error) {
	switch strategy {
	case Mean, Median, MostFrequent, Constant:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	out := cloneRows(rows)
	res := &Result{Rows: out}
	for j := 0; j < width(rows); j++ {
		col := column(rows, j)
		var v float64
		switch strategy {
		case Mean:
			v = stats.Mean(col)
		case Median:
			v = stats.Median(col)
		case MostFrequent:
			v = mode(col)
		case Constant:
			v = fill
		}
		if math.IsNaN(v) {
			v = fill
			res.Empty = append(res.Empty, j)
		}
		for i := range out {
			if math.IsNaN(out[i][j]) {
				out[i][j] = v
			}
		}
	}
	return res, nil
}

// KNN fills each missing cell with the mean of that feature over the k nearest rows
// that observe it. Distances use the NaN-aware euclidean metric: squared differences
// over coordinates present in both rows, scaled by total/present coordinates.
// Rows with no usable donor fall back to the column mean.
func KNN(rows [][]float64, k int) (*Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("neighbors must be positive, got %d", k)
	}
	out := cloneRows(rows)
	res := &Result{Rows: out}
	ncol := width(rows)
	means := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		means[j] = stats.Mean(column(rows, j))
		if math.IsNaN(means[j]) {
			res.Empty = append(res.Empty, j)
			means[j] = 0
		}
	}
	type donor struct {
		row  int
		dist float64
	}
	for i, r := range rows {
		if !hasNaN(r) {
			continue
		}
		dists := make([]float64, len(rows))
		for d := range rows {
			dists[d] = nanEuclidean(r, rows[d])
		}
		for j, v := range r {
			if !math.IsNaN(v) {
				continue
			}
			var donors []donor
			for d, dr := range rows {
				if d == i || math.IsNaN(dr[j]) || math.IsNaN(dists[d]) {
					continue
				}
				donors = append(donors, donor{row: d, dist: dists[d]})
			}
			if len(donors) == 0 {
				out[i][j] = means[j]
				continue
			}
			sort.SliceStable(donors, func(a, b int) bool { return donors[a].dist < donors[b].dist })
			if len(donors) > k {
				donors = donors[:k]
			}
			var sum float64
			for _, dn := range donors {
				sum += rows[dn.row][j]
			}
			out[i][j] = sum / float64(len(donors))
		}
	}
	return res, nil
}

func nanEuclidean(a, b []float64) float64 {
	var sum float64
	present := 0
	for j := range a {
		if j >= len(b) || math.IsNaN(a[j]) || math.IsNaN(b[j]) {
			continue
		}
		d := a[j] - b[j]
		sum += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(a)) / float64(present) * sum)
}

func mode(col []float64) float64 {
	counts := map[float64]int{}
	for _, v := range col {
		if !math.IsNaN(v) {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return math.NaN()
	}
	best, bestN := math.Inf(1), 0
	for v, n := range counts {
		// ties resolve to the smallest value
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

func hasNaN(r []float64) bool {
	for _, v := range r {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func width(rows [][]float64) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

func column(rows [][]float64, j int) []float64 {
	col := make([]float64, len(rows))
	for i := range rows {
		col[i] = rows[i][j]
	}
	return col
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
