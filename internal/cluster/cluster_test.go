package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var line = [][]float64{{0}, {1}, {5}, {6}, {20}}

func TestLinkageSingle(t *testing.T) {
	tree, err := Linkage(line, Single, Euclidean)
	require.NoError(t, err)
	assert.Equal(t, []Merge{
		{A: 0, B: 1, Dist: 1, Size: 2},
		{A: 2, B: 3, Dist: 1, Size: 2},
		{A: 5, B: 6, Dist: 4, Size: 4},
		{A: 4, B: 7, Dist: 14, Size: 5},
	}, tree.Merges)
	assert.Equal(t, []int{4, 0, 1, 2, 3}, tree.Leaves())
}

func TestLinkageMethods(t *testing.T) {
	cases := []struct {
		method string
		last   [2]float64 // third and fourth merge distances
	}{
		{Complete, [2]float64{6, 20}},
		{Average, [2]float64{5, 17}},
		{Ward, [2]float64{7.0710678, 0}},
	}
	for _, c := range cases {
		t.Run(c.method, func(t *testing.T) {
			tree, err := Linkage(line, c.method, Euclidean)
			require.NoError(t, err)
			require.Len(t, tree.Merges, 4)
			assert.InDelta(t, c.last[0], tree.Merges[2].Dist, 1e-6)
			if c.last[1] > 0 {
				assert.InDelta(t, c.last[1], tree.Merges[3].Dist, 1e-6)
			}
			assert.Equal(t, 5, tree.Merges[3].Size)
		})
	}
}

func TestLinkageErrors(t *testing.T) {
	_, err := Linkage(line, "bogus", Euclidean)
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = Linkage(line, Average, "bogus")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = Linkage(line, Ward, Cityblock)
	assert.ErrorIs(t, err, ErrInput)

	_, err = Linkage([][]float64{{1}}, Average, Euclidean)
	assert.ErrorIs(t, err, ErrInput)

	nan := 0.0
	nan = nan / nan
	_, err = Linkage([][]float64{{1}, {nan}}, Average, Euclidean)
	assert.ErrorIs(t, err, ErrInput)
}

func TestDistanceMetrics(t *testing.T) {
	cos, err := Distance(Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1, cos([]float64{1, 0}, []float64{0, 1}), 1e-12)

	corr, err := Distance(Correlation)
	require.NoError(t, err)
	assert.InDelta(t, 2, corr([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)

	cheb, err := Distance(Chebyshev)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cheb([]float64{0, 0}, []float64{3, -4}))

	city, err := Distance(Cityblock)
	require.NoError(t, err)
	assert.Equal(t, 7.0, city([]float64{0, 0}, []float64{3, -4}))

	sq, err := Distance(SqEuclidean)
	require.NoError(t, err)
	assert.InDelta(t, 25, sq([]float64{0, 0}, []float64{3, -4}), 1e-12)
}

func TestCut(t *testing.T) {
	tree, err := Linkage(line, Single, Euclidean)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2, 3}, tree.Cut(2))
	assert.Equal(t, []int{1, 1, 1, 1, 2}, tree.Cut(4))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, tree.Cut(0.5))
	assert.Equal(t, []int{1, 1, 1, 1, 1}, tree.Cut(100))
}

func TestLayout(t *testing.T) {
	tree, err := Linkage(line, Single, Euclidean)
	require.NoError(t, err)
	links, leaves := tree.Layout(2)
	assert.Equal(t, []int{4, 0, 1, 2, 3}, leaves)
	require.Len(t, links, 4)
	assert.Equal(t, [4]float64{15, 15, 25, 25}, links[0].X)
	assert.Equal(t, [4]float64{0, 1, 1, 0}, links[0].Y)
	assert.Equal(t, 1, links[0].Cluster)
	assert.Equal(t, 2, links[1].Cluster)
	assert.Equal(t, 0, links[3].Cluster)
	assert.Equal(t, [4]float64{5, 5, 30, 30}, links[3].X)
}

func TestFigures(t *testing.T) {
	dir := t.TempDir()
	tree, err := Linkage(line, Average, Euclidean)
	require.NoError(t, err)
	path, err := PlotDendrogram(dir, tree, []string{"s0", "s1", "s2", "s3", "s4"}, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dendogram_euclidean_average.png"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = PlotDendrogram(dir, tree, []string{"only"}, 3)
	assert.ErrorIs(t, err, ErrInput)

	x := [][]float64{{1, 10, 2}, {2, 11, 3}, {3, 9, 4}}
	path, err = PlotHeatmap(dir, x, []string{"a", "b", "c"}, []string{"0", "1", "2"}, []string{"x", "y", "x"}, Average, Euclidean)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "heatmap_euclidean_average.png"), path)
}
