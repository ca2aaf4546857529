// Package pca runs principal component analysis on standardized features and the
// Bartlett sphericity test that tells whether PCA is worthwhile at all.
package pca

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/biolearn-cli/internal/plot"
)

// DefaultComponents is used when Fit is asked for zero components.
const DefaultComponents = 2

// ErrInput reports a matrix PCA cannot work with.
var ErrInput = errors.New("invalid pca input")

// Result holds a fitted decomposition.
type Result struct {
	Features []string
	// Coordinates is rows x components.
	Coordinates [][]float64
	// Eigenvalues are the variances of every component, largest first.
	Eigenvalues []float64
	// Explained is each retained component's share of the total variance.
	Explained []float64
	// Loadings is features x components: eigenvector entries scaled by the
	// component's standard deviation.
	Loadings [][]float64
}

// Components returns the retained component names PC1..PCk.
func (r *Result) Components() []string {
	out := make([]string, len(r.Explained))
	for i := range out {
		out[i] = "PC" + strconv.Itoa(i+1)
	}
	return out
}

func dense(x [][]float64) (*mat.Dense, error) {
	if len(x) < 2 || len(x[0]) == 0 {
		return nil, fmt.Errorf("%w: need at least 2 rows and 1 column", ErrInput)
	}
	p := len(x[0])
	m := mat.NewDense(len(x), p, nil)
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInput, i, len(row), p)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d, column %d", ErrInput, i, j)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// standardize centers every column and scales it to unit sample variance. Constant
// columns are only centered.
func standardize(m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := 0; i < r; i++ {
			m.Set(i, j, (col[i]-mean)/std)
		}
	}
}

// Fit projects x (rows are samples) onto its first n principal components.
func Fit(x [][]float64, features []string, n int) (*Result, error) {
	m, err := dense(x)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	if len(features) != cols {
		return nil, fmt.Errorf("%w: %d feature names for %d columns", ErrInput, len(features), cols)
	}
	if n <= 0 {
		n = DefaultComponents
	}
	if limit := min(rows, cols); n > limit {
		return nil, fmt.Errorf("%w: %d components requested, at most %d available", ErrInput, n, limit)
	}
	standardize(m)

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, fmt.Errorf("%w: decomposition failed", ErrInput)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	res := &Result{Features: append([]string(nil), features...), Eigenvalues: vars}
	res.Explained = make([]float64, n)
	for k := 0; k < n; k++ {
		if total > 0 {
			res.Explained[k] = vars[k] / total
		}
	}

	var proj mat.Dense
	proj.Mul(m, vecs.Slice(0, cols, 0, n))
	res.Coordinates = make([][]float64, rows)
	for i := range res.Coordinates {
		res.Coordinates[i] = mat.Row(nil, i, &proj)
	}
	res.Loadings = make([][]float64, cols)
	for j := range res.Loadings {
		res.Loadings[j] = make([]float64, n)
		for k := 0; k < n; k++ {
			res.Loadings[j][k] = vecs.At(j, k) * math.Sqrt(math.Max(vars[k], 0))
		}
	}
	return res, nil
}

// singularLogDet is log(1e-12); flatter correlation matrices are treated as singular.
var singularLogDet = math.Log(1e-12)

// BartlettResult is the outcome of Bartlett's test of sphericity.
type BartlettResult struct {
	ChiSquare float64
	DF        float64
	PValue    float64
}

// Bartlett tests whether the correlation matrix of x is the identity. A small
// p-value means the features correlate enough for PCA to be informative.
func Bartlett(x [][]float64) (*BartlettResult, error) {
	m, err := dense(x)
	if err != nil {
		return nil, err
	}
	n, p := m.Dims()
	if p < 2 {
		return nil, fmt.Errorf("%w: need at least 2 columns", ErrInput)
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, m, nil)
	logDet, sign := mat.LogDet(&corr)
	if sign <= 0 || math.IsNaN(logDet) || logDet < singularLogDet {
		return nil, fmt.Errorf("%w: correlation matrix is singular", ErrInput)
	}
	df := float64(p*(p-1)) / 2
	chi := -(float64(n) - 1 - float64(2*p+5)/6) * logDet
	return &BartlettResult{
		ChiSquare: chi,
		DF:        df,
		PValue:    distuv.ChiSquared{K: df}.Survival(chi),
	}, nil
}

// Plot draws PC1 against PC2 colored by class and writes PCA.png into dir.
func Plot(dir string, r *Result, classes []string) (string, error) {
	if len(r.Explained) < 2 {
		return "", fmt.Errorf("%w: need two components to plot", ErrInput)
	}
	x := make([]float64, len(r.Coordinates))
	y := make([]float64, len(r.Coordinates))
	for i, c := range r.Coordinates {
		x[i], y[i] = c[0], c[1]
	}
	opt := plot.Options{
		Title:  "PCA",
		XLabel: fmt.Sprintf("PC1 (explained variance: %.4g%%)", r.Explained[0]*100),
		YLabel: fmt.Sprintf("PC2 (explained variance: %.4g%%)", r.Explained[1]*100),
		Width:  700,
		Height: 700,
	}
	return plot.Scatter(filepath.Join(dir, "PCA.png"), x, y, classes, opt)
}

// PlotVariance draws the explained variance of each retained component.
func PlotVariance(dir string, r *Result) (string, error) {
	pct := make([]float64, len(r.Explained))
	for i, v := range r.Explained {
		pct[i] = v * 100
	}
	opt := plot.Options{Title: "Explained variance", YLabel: "%"}
	return plot.Bar(filepath.Join(dir, "PCA_variance.png"), r.Components(), pct, opt)
}
