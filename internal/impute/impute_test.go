package impute

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestKNNUsesNearestDonors(t *testing.T) {
	rows := [][]float64{
		{1, 10},
		{2, 20},
		{100, 1000},
		{1.5, nan},
	}
	res, err := KNN(rows, 2)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, res.Rows[3][1], 1e-9)
	assert.True(t, math.IsNaN(rows[3][1]), "input must not be modified")
	assert.Empty(t, res.Empty)
}

func TestKNNFallsBackToMeanWhenNoDistance(t *testing.T) {
	rows := [][]float64{
		{nan, 4},
		{2, nan},
		{4, nan},
	}
	res, err := KNN(rows, 5)
	require.NoError(t, err)
	// row 0 shares no observed coordinate with rows 1 and 2
	assert.InDelta(t, 3.0, res.Rows[0][0], 1e-9)
	assert.InDelta(t, 4.0, res.Rows[1][1], 1e-9)
}

func TestKNNRejectsNonPositiveK(t *testing.T) {
	_, err := KNN([][]float64{{1}}, 0)
	require.Error(t, err)
}

func TestSimpleStrategies(t *testing.T) {
	rows := [][]float64{{1, nan}, {3, 2}, {nan, 2}, {8, 5}}
	cases := map[string]float64{Mean: 4, Median: 3, MostFrequent: 1, Constant: -1}
	for strategy, want := range cases {
		res, err := Simple(rows, strategy, -1)
		require.NoError(t, err, strategy)
		assert.InDelta(t, want, res.Rows[2][0], 1e-9, strategy)
		for _, r := range res.Rows {
			for _, v := range r {
				assert.False(t, math.IsNaN(v), strategy)
			}
		}
	}
}

func TestSimpleEmptyColumn(t *testing.T) {
	res, err := Simple([][]float64{{nan, 1}, {nan, 2}}, Mean, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Empty)
	assert.Equal(t, 0.0, res.Rows[0][0])
}

func TestSimpleUnknownStrategy(t *testing.T) {
	_, err := Simple(nil, "bogus", 0)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}
