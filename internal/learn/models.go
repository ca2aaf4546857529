// Package learn trains and compares classifiers over repeated validation runs.
package learn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Model names.
const (
	ModelKNN             = "knn"
	ModelNearestCentroid = "nearest_centroid"
	DefaultKNNNeighbors  = 5
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrNotFitted    = errors.New("model not fitted")
	ErrInput        = errors.New("invalid training input")
)

// Classifier is a trainable model over dense numeric features and integer classes.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	Predict(x [][]float64) ([]int, error)
}

// Params tunes model construction.
type Params struct {
	Neighbors int
}

// Models lists the available model names.
func Models() []string { return []string{ModelKNN, ModelNearestCentroid} }

// NewModel builds an untrained classifier by name.
func NewModel(name string, p Params) (Classifier, error) {
	switch name {
	case ModelKNN:
		k := p.Neighbors
		if k <= 0 {
			k = DefaultKNNNeighbors
		}
		return &KNN{K: k}, nil
	case ModelNearestCentroid:
		return &NearestCentroid{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

func checkXY(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("%w: %d rows for %d labels", ErrInput, len(x), len(y))
	}
	for i, row := range x {
		if len(row) != len(x[0]) {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrInput, i, len(row), len(x[0]))
		}
	}
	return nil
}

// KNN votes among the K nearest training rows (Euclidean). Ties go to the class with
// the smallest summed distance, then the smallest label.
type KNN struct {
	K int
	x [][]float64
	y []int
}

func (m *KNN) Fit(x [][]float64, y []int) error {
	if err := checkXY(x, y); err != nil {
		return err
	}
	m.x, m.y = x, y
	return nil
}

func (m *KNN) Predict(x [][]float64) ([]int, error) {
	if m.x == nil {
		return nil, ErrNotFitted
	}
	k := min(m.K, len(m.x))
	type nb struct {
		d float64
		i int
	}
	out := make([]int, len(x))
	nbs := make([]nb, len(m.x))
	for r, row := range x {
		for i, t := range m.x {
			nbs[i] = nb{d: floats.Distance(row, t, 2), i: i}
		}
		sort.Slice(nbs, func(a, b int) bool {
			if nbs[a].d == nbs[b].d {
				return nbs[a].i < nbs[b].i
			}
			return nbs[a].d < nbs[b].d
		})
		votes := map[int]int{}
		dist := map[int]float64{}
		for _, n := range nbs[:k] {
			votes[m.y[n.i]]++
			dist[m.y[n.i]] += n.d
		}
		best, bestVotes, bestDist := 0, -1, math.Inf(1)
		for c, v := range votes {
			switch {
			case v > bestVotes,
				v == bestVotes && dist[c] < bestDist,
				v == bestVotes && dist[c] == bestDist && c < best:
				best, bestVotes, bestDist = c, v, dist[c]
			}
		}
		out[r] = best
	}
	return out, nil
}

// NearestCentroid assigns each row to the class whose training mean is closest.
type NearestCentroid struct {
	classes   []int
	centroids [][]float64
}

func (m *NearestCentroid) Fit(x [][]float64, y []int) error {
	if err := checkXY(x, y); err != nil {
		return err
	}
	sums := map[int][]float64{}
	counts := map[int]float64{}
	for i, row := range x {
		s, ok := sums[y[i]]
		if !ok {
			s = make([]float64, len(row))
			sums[y[i]] = s
		}
		floats.Add(s, row)
		counts[y[i]]++
	}
	m.classes = m.classes[:0]
	for c := range sums {
		m.classes = append(m.classes, c)
	}
	sort.Ints(m.classes)
	m.centroids = make([][]float64, len(m.classes))
	for i, c := range m.classes {
		floats.Scale(1/counts[c], sums[c])
		m.centroids[i] = sums[c]
	}
	return nil
}

func (m *NearestCentroid) Predict(x [][]float64) ([]int, error) {
	if m.centroids == nil {
		return nil, ErrNotFitted
	}
	out := make([]int, len(x))
	for r, row := range x {
		best, bestD := 0, math.Inf(1)
		for i, c := range m.centroids {
			if d := floats.Distance(row, c, 2); d < bestD {
				best, bestD = i, d
			}
		}
		out[r] = m.classes[best]
	}
	return out, nil
}
