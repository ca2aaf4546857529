// Package cluster implements agglomerative hierarchical clustering over the rows of
// a numeric matrix. Each merge records the two joined nodes, their distance and the
// resulting cluster size.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Linkage methods.
const (
	Single   = "single"
	Complete = "complete"
	Average  = "average"
	Weighted = "weighted"
	Ward     = "ward"
	Centroid = "centroid"
	Median   = "median"
)

// Distance metrics.
const (
	Euclidean   = "euclidean"
	SqEuclidean = "sqeuclidean"
	Cityblock   = "cityblock"
	Chebyshev   = "chebyshev"
	Cosine      = "cosine"
	Correlation = "correlation"
)

var (
	ErrUnknownMethod = errors.New("unknown linkage method")
	ErrUnknownMetric = errors.New("unknown distance metric")
	ErrInput         = errors.New("invalid clustering input")
)

// Merge is one row of a linkage matrix: clusters A and B (A < B) joined at Dist into
// a cluster of Size observations. Observations are 0..n-1; the cluster built by the
// i-th merge is n+i.
type Merge struct {
	A, B int
	Dist float64
	Size int
}

// Tree is a linkage result over N observations.
type Tree struct {
	N      int
	Merges []Merge
	Method string
	Metric string
}

// Distance returns the pairwise distance function for metric.
func Distance(metric string) (func(u, v []float64) float64, error) {
	switch metric {
	case Euclidean:
		return func(u, v []float64) float64 { return floats.Distance(u, v, 2) }, nil
	case SqEuclidean:
		return func(u, v []float64) float64 {
			d := floats.Distance(u, v, 2)
			return d * d
		}, nil
	case Cityblock:
		return func(u, v []float64) float64 { return floats.Distance(u, v, 1) }, nil
	case Chebyshev:
		return func(u, v []float64) float64 { return floats.Distance(u, v, math.Inf(1)) }, nil
	case Cosine:
		return func(u, v []float64) float64 {
			nu, nv := floats.Norm(u, 2), floats.Norm(v, 2)
			if nu == 0 || nv == 0 {
				return 0
			}
			return math.Max(0, 1-floats.Dot(u, v)/(nu*nv))
		}, nil
	case Correlation:
		return func(u, v []float64) float64 {
			r := stat.Correlation(u, v, nil)
			if math.IsNaN(r) {
				return 0
			}
			return math.Max(0, 1-r)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
}

// needsEuclidean reports methods whose update formula assumes Euclidean geometry.
func needsEuclidean(method string) bool {
	return method == Ward || method == Centroid || method == Median
}

// Linkage clusters the rows of x. Every row must have the same length and hold only
// finite values.
func Linkage(x [][]float64, method, metric string) (*Tree, error) {
	switch method {
	case Single, Complete, Average, Weighted, Ward, Centroid, Median:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	dist, err := Distance(metric)
	if err != nil {
		return nil, err
	}
	if needsEuclidean(method) && metric != Euclidean {
		return nil, fmt.Errorf("%w: method %q requires the euclidean metric", ErrInput, method)
	}
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", ErrInput, n)
	}
	for i, row := range x {
		if len(row) != len(x[0]) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInput, i, len(row), len(x[0]))
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d holds a non-finite value", ErrInput, i)
			}
		}
	}

	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := dist(x[i], x[j])
			d[i][j], d[j][i] = v, v
		}
	}

	// slot i holds cluster id[i] of size[i]; inactive slots are skipped.
	id := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range id {
		id[i], size[i], active[i] = i, 1, true
	}
	t := &Tree{N: n, Method: method, Metric: metric, Merges: make([]Merge, 0, n-1)}
	for step := 0; step < n-1; step++ {
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < best {
					bi, bj, best = i, j, d[i][j]
				}
			}
		}
		a, b := id[bi], id[bj]
		if a > b {
			a, b = b, a
		}
		si, sj := float64(size[bi]), float64(size[bj])
		t.Merges = append(t.Merges, Merge{A: a, B: b, Dist: best, Size: size[bi] + size[bj]})

		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			v := update(method, d[bi][k], d[bj][k], best, si, sj, float64(size[k]))
			d[bi][k], d[k][bi] = v, v
		}
		id[bi] = n + step
		size[bi] += size[bj]
		active[bj] = false
	}
	return t, nil
}

// update is the Lance-Williams recurrence: the distance from the merge of i and j to k.
func update(method string, dik, djk, dij, si, sj, sk float64) float64 {
	switch method {
	case Single:
		return math.Min(dik, djk)
	case Complete:
		return math.Max(dik, djk)
	case Average:
		return (si*dik + sj*djk) / (si + sj)
	case Weighted:
		return (dik + djk) / 2
	case Ward:
		v := ((si+sk)*dik*dik + (sj+sk)*djk*djk - sk*dij*dij) / (si + sj + sk)
		return math.Sqrt(math.Max(v, 0))
	case Centroid:
		v := (si*dik*dik+sj*djk*djk)/(si+sj) - si*sj*dij*dij/((si+sj)*(si+sj))
		return math.Sqrt(math.Max(v, 0))
	default: // median
		v := dik*dik/2 + djk*djk/2 - dij*dij/4
		return math.Sqrt(math.Max(v, 0))
	}
}

// children returns the two cluster ids merged into node (node >= N).
func (t *Tree) children(node int) (int, int) {
	m := t.Merges[node-t.N]
	return m.A, m.B
}

// Root is the id of the final cluster.
func (t *Tree) Root() int { return t.N + len(t.Merges) - 1 }

// Leaves returns the observations in dendrogram order: a left-first walk from the
// root where the left child is the smaller id.
func (t *Tree) Leaves() []int {
	out := make([]int, 0, t.N)
	stack := []int{t.Root()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node < t.N {
			out = append(out, node)
			continue
		}
		a, b := t.children(node)
		stack = append(stack, b, a)
	}
	return out
}

// heights returns, for every cluster id, the largest merge distance inside it.
func (t *Tree) heights() []float64 {
	h := make([]float64, t.N+len(t.Merges))
	for i, m := range t.Merges {
		h[t.N+i] = math.Max(m.Dist, math.Max(h[m.A], h[m.B]))
	}
	return h
}

// Cut assigns flat cluster labels (1-based) so that every cluster's internal merge
// distances stay within threshold. Labels are numbered in order of each cluster's
// first observation.
func (t *Tree) Cut(threshold float64) []int {
	parent := make([]int, t.N+len(t.Merges))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(v int) int {
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}
	h := t.heights()
	for i, m := range t.Merges {
		node := t.N + i
		if h[node] > threshold {
			continue
		}
		parent[find(m.A)] = node
		parent[find(m.B)] = node
	}
	labels := make([]int, t.N)
	next := map[int]int{}
	for i := range labels {
		r := find(i)
		if _, ok := next[r]; !ok {
			next[r] = len(next) + 1
		}
		labels[i] = next[r]
	}
	return labels
}
