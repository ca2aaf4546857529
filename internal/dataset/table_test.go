package dataset

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clinical is a flat table of 20 patients; weight is missing in rows 3 and 11.
func clinical() Source {
	recs := [][]string{{" Age ", "Weight", "Diagnosis", "Site"}}
	for i := 0; i < 20; i++ {
		weight := fmt.Sprint(60 + i)
		if i == 3 || i == 11 {
			weight = "NaN"
		}
		diag := "healthy"
		if i%2 == 1 {
			diag = "sick"
		}
		recs = append(recs, []string{fmt.Sprint(30 + i), weight, diag, []string{"a", "b", "c"}[i%3]})
	}
	return Source{Frame: dataframe.LoadRecords(recs)}
}

// omics has two sections sharing the outcome column, which lives in proteomics.
func omics() Source {
	df := dataframe.New(
		series.New([]float64{1, 2, 3, 4, 5, 6, 7, 8}, series.Float, "c1"),
		series.New([]string{"NaN", "2", "3", "4", "5", "6", "7", "8"}, series.Float, "c2"),
		series.New([]string{"yes", "no", "yes", "no", "yes", "no", "yes", "no"}, series.String, "c3"),
		series.New([]string{"0.1", "NaN", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8"}, series.Float, "c4"),
		series.New([]float64{10, 20, 30, 40, 50, 60, 70, 80}, series.Float, "c5"),
	)
	return Source{Frame: df, Labels: []Label{
		{Section: "Proteomics", Name: "P1"},
		{Section: "Proteomics", Name: "P2"},
		{Section: "Proteomics", Name: "Outcome"},
		{Section: "metabolomics", Name: "M1"},
		{Section: " Metabolomics ", Name: "M2"},
	}}
}

func newTable(t *testing.T, src Source, target string) *Table {
	t.Helper()
	tb, err := New(src, target)
	require.NoError(t, err)
	return tb
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "body_mass", NormalizeName("  Body \t Mass "))
	assert.Equal(t, "body_mass", NormalizeName(NormalizeName("  Body \t Mass ")))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeLabels(t *testing.T) {
	out, sectioned := normalizeLabels([]Label{{Name: "ID"}, {Section: "A", Name: "x"}, {Section: "a", Name: "X"}, {Section: "a"}})
	assert.True(t, sectioned)
	assert.Equal(t, []Label{
		{Section: "id", Name: "id"},
		{Section: "a", Name: "x"},
		{Section: "a", Name: "x_2"},
		{Section: "a", Name: "a"},
	}, out)

	out, sectioned = normalizeLabels([]Label{{Name: "Gene"}, {Name: ""}, {Name: "gene"}})
	assert.False(t, sectioned)
	assert.Equal(t, []Label{{Name: "gene"}, {Name: "column_2"}, {Name: "gene_2"}}, out)
}

func TestNewErrors(t *testing.T) {
	_, err := New(clinical(), " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = New(clinical(), "outcome")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	src := omics()
	src.Labels = src.Labels[:2]
	_, err = New(src, "outcome")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFlatRouting(t *testing.T) {
	tb := newTable(t, clinical(), "Diagnosis")
	assert.False(t, tb.HasSections())
	assert.Equal(t, Flat, tb.State())
	assert.Empty(t, tb.Sections())
	assert.Equal(t, "diagnosis", tb.Target())

	x, err := tb.X("")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "weight"}, x.Names())

	_, err = tb.X("proteomics")
	assert.ErrorIs(t, err, ErrInvalidSection)

	require.NoError(t, tb.RemoveDuplicates(false, "ignored"))
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, 20, df.Nrow())
}

func TestXNeverHoldsNumericTarget(t *testing.T) {
	recs := [][]string{{"a", "b", "class"}, {"1", "2", "0"}, {"3", "4", "1"}, {"5", "6", "0"}}
	tb := newTable(t, Source{Frame: dataframe.LoadRecords(recs)}, "class")
	x, err := tb.X("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, x.Names())
	y, err := tb.Y("")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, y.Float())
}

func TestYDoesNotMutate(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	y1, err := tb.Y("")
	require.NoError(t, err)
	y2, err := tb.Y("")
	require.NoError(t, err)
	assert.Equal(t, series.Int, y1.Type())
	assert.Equal(t, y1.Records(), y2.Records())
	assert.Equal(t, "0", y1.Elem(0).String())
	assert.Equal(t, "1", y1.Elem(1).String())

	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, series.String, df.Col("diagnosis").Type())
	assert.Equal(t, "healthy", df.Col("diagnosis").Elem(0).String())
}

func TestClassBalance(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	assert.Equal(t, []ClassShare{
		{Class: "healthy", Count: 10, Percent: 50},
		{Class: "sick", Count: 10, Percent: 50},
	}, tb.ClassBalance())
}

func TestDropColumnsExample(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	dropped, err := tb.DropColumnsAboveMissing(5, true, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"weight"}, dropped)
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "diagnosis", "site"}, df.Names())
}

func TestDropColumnsBounds(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	dropped, err := tb.DropColumnsAboveMissing(100, false, "")
	require.NoError(t, err)
	assert.Empty(t, dropped)

	dropped, err = tb.DropColumnsAboveMissing(0, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"weight"}, dropped)

	for _, p := range []float64{-1, 101, math.NaN()} {
		_, err = tb.DropColumnsAboveMissing(p, false, "")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestDropColumnsKeepsTarget(t *testing.T) {
	recs := [][]string{{"a", "class"}, {"NaN", "NaN"}, {"NaN", "x"}, {"1", "y"}}
	tb := newTable(t, Source{Frame: dataframe.LoadRecords(recs)}, "class")
	dropped, err := tb.DropColumnsAboveMissing(0, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, dropped)
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, []string{"class"}, df.Names())
}

func TestDropRows(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	dropped, err := tb.DropRowsAboveMissing(20, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "11"}, dropped)
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, 18, df.Nrow())

	dropped, err = tb.DropRowsAboveMissing(100, false, "")
	require.NoError(t, err)
	assert.Empty(t, dropped)
}

func TestMissingSummary(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	cols, err := tb.MissingSummary(Columns, "")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, MissingCount{Label: "weight", Count: 2, Percent: 10}, cols[0])

	rows, err := tb.MissingSummary(Rows, "")
	require.NoError(t, err)
	require.Len(t, rows, 20)
	assert.Equal(t, MissingCount{Label: "3", Count: 1, Percent: 25}, rows[0])
	assert.Equal(t, "11", rows[1].Label)
}

func TestRemoveDuplicatesIdempotent(t *testing.T) {
	recs := [][]string{{"a", "b", "class"}, {"1", "2", "x"}, {"1", "2", "x"}, {"3", "NaN", "y"}, {"3", "NaN", "y"}, {"1", "2", "y"}}
	tb := newTable(t, Source{Frame: dataframe.LoadRecords(recs)}, "class")
	require.NoError(t, tb.RemoveDuplicates(false, ""))
	first, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Nrow())

	require.NoError(t, tb.RemoveDuplicates(false, ""))
	second, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, first.Records(), second.Records())

	require.NoError(t, tb.RemoveDuplicates(true, ""))
	again, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, first.Records(), again.Records())
}

func TestImputeMissing(t *testing.T) {
	for _, method := range []string{ImputeKNN, ImputeMean, ImputeMedian, ImputeMostFrequent, ImputeConstant} {
		t.Run(method, func(t *testing.T) {
			tb := newTable(t, clinical(), "diagnosis")
			require.NoError(t, tb.ImputeMissing(method, 3, ""))
			df, err := tb.Frame("")
			require.NoError(t, err)
			r, c := df.Dims()
			assert.Equal(t, 20, r)
			assert.Equal(t, 4, c)
			assert.Equal(t, []string{"age", "weight", "diagnosis", "site"}, df.Names())
			x, err := tb.X("")
			require.NoError(t, err)
			for _, n := range x.Names() {
				for _, v := range x.Col(n).Float() {
					assert.False(t, math.IsNaN(v), "%s has a missing cell", n)
				}
			}
		})
	}
}

func TestImputeMeanValue(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	require.NoError(t, tb.ImputeMissing(ImputeMean, 0, ""))
	x, err := tb.X("")
	require.NoError(t, err)
	w := x.Col("weight").Float()
	// mean of 60..79 without 63 and 71
	assert.InDelta(t, (1390.0-63-71)/18, w[3], 1e-9)
	assert.InDelta(t, w[3], w[11], 1e-9)
}

func TestImputeMissingNumericTarget(t *testing.T) {
	for _, method := range []string{ImputeKNN, ImputeMean, ImputeMedian, ImputeMostFrequent, ImputeConstant} {
		t.Run(method, func(t *testing.T) {
			src := Source{Frame: dataframe.New(
				series.New([]float64{1, 2, 3, 4, 5, 6}, series.Float, "a"),
				series.New([]string{"2", "NaN", "6", "8", "10", "12"}, series.Float, "b"),
				series.New([]string{"0", "1", "NaN", "1", "0", "NaN"}, series.Float, "y"),
			)}
			tb := newTable(t, src, "y")
			require.NoError(t, tb.ImputeMissing(method, 2, ""))
			df, err := tb.Frame("")
			require.NoError(t, err)
			r, c := df.Dims()
			assert.Equal(t, 6, r)
			assert.Equal(t, 3, c)
			for _, n := range df.Names() {
				col := df.Col(n)
				if col.Type() != series.Float && col.Type() != series.Int {
					continue
				}
				for i, v := range col.Float() {
					assert.False(t, math.IsNaN(v), "%s row %d is still missing", n, i)
				}
			}
			y, err := tb.Y("")
			require.NoError(t, err)
			assert.Equal(t, 6, y.Len())
		})
	}
}

func TestImputeUnsupported(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	before, _ := tb.Frame("")
	err := tb.ImputeMissing("interpolate", 0, "")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	after, _ := tb.Frame("")
	assert.Equal(t, before.Records(), after.Records())
}

func outliers() Source {
	recs := [][]string{{"x", "y", "class"}}
	for i := 1; i <= 10; i++ {
		x := fmt.Sprint(i)
		if i == 10 {
			x = "100"
		}
		recs = append(recs, []string{x, fmt.Sprint(i), []string{"a", "b"}[i%2]})
	}
	return Source{Frame: dataframe.LoadRecords(recs)}
}

func TestOutlierColumns(t *testing.T) {
	tb := newTable(t, outliers(), "class")
	assert.Equal(t, []Label{{Name: "x"}}, tb.OutlierColumns())
}

func TestRemoveOutliersMeanValue(t *testing.T) {
	tb := newTable(t, outliers(), "class")
	require.NoError(t, tb.RemoveOutliers(OutlierMean, false, ""))
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 14.5}, df.Col("x").Float())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, df.Col("y").Float())
}

func TestRemoveOutliersLimit(t *testing.T) {
	tb := newTable(t, outliers(), "class")
	require.NoError(t, tb.RemoveOutliers(OutlierMean, false, ""))
	require.NoError(t, tb.RemoveOutliers(OutlierLimit, true, ""))
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 9}, df.Col("x").Float())
}

func TestRemoveOutliersLog(t *testing.T) {
	tb := newTable(t, outliers(), "class")
	require.NoError(t, tb.RemoveOutliers(OutlierLog, false, ""))
	df, err := tb.Frame("")
	require.NoError(t, err)
	x := df.Col("x").Float()
	assert.InDelta(t, 0, x[0], 1e-12)
	assert.InDelta(t, math.Log(100), x[9], 1e-12)
}

func TestRemoveOutliersErrors(t *testing.T) {
	tb := newTable(t, outliers(), "class")
	assert.ErrorIs(t, tb.RemoveOutliers("", false, ""), ErrInvalidArgument)
	assert.ErrorIs(t, tb.RemoveOutliers("zscore", false, ""), ErrUnsupportedMethod)
}

func TestSectionedSplit(t *testing.T) {
	tb := newTable(t, omics(), "OUTCOME")
	assert.True(t, tb.HasSections())
	assert.Equal(t, Sectioned, tb.State())
	assert.Equal(t, []string{"proteomics", "metabolomics"}, tb.Sections())

	prot, err := tb.Frame("proteomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "outcome"}, prot.Names())
	met, err := tb.Frame("metabolomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "outcome"}, met.Names())

	x, err := tb.X("proteomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, x.Names())
	x, err = tb.X("metabolomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, x.Names())

	y, err := tb.Y("metabolomics")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0, 1, 0, 1, 0}, y.Float())
}

func TestSectionSelectors(t *testing.T) {
	tb := newTable(t, omics(), "outcome")
	_, err := tb.X("")
	assert.ErrorIs(t, err, ErrInvalidSection)
	_, err = tb.X("lipidomics")
	assert.ErrorIs(t, err, ErrInvalidSection)
	_, err = tb.DropColumnsAboveMissing(10, false, "lipidomics")
	assert.ErrorIs(t, err, ErrInvalidSection)
}

func TestSectionedMutationsApplyToEverySection(t *testing.T) {
	tb := newTable(t, omics(), "outcome")
	dropped, err := tb.DropColumnsAboveMissing(0, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"proteomics/p2", "metabolomics/m1"}, dropped)

	for _, sec := range tb.Sections() {
		df, err := tb.Frame(sec)
		require.NoError(t, err)
		assert.Contains(t, df.Names(), "outcome", sec)
	}

	tb = newTable(t, omics(), "outcome")
	dropped, err = tb.DropColumnsAboveMissing(0, false, "metabolomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"metabolomics/m1"}, dropped)
	prot, _ := tb.Frame("proteomics")
	assert.Contains(t, prot.Names(), "p2")
}

func TestSectionedImputeKeepsSections(t *testing.T) {
	tb := newTable(t, omics(), "outcome")
	require.NoError(t, tb.ImputeMissing(ImputeMedian, 0, ""))
	for _, sec := range tb.Sections() {
		x, err := tb.X(sec)
		require.NoError(t, err)
		for _, n := range x.Names() {
			for _, v := range x.Col(n).Float() {
				assert.False(t, math.IsNaN(v))
			}
		}
	}
	prot, _ := tb.X("proteomics")
	assert.InDelta(t, 5, prot.Col("p2").Float()[0], 1e-9)
}

func TestDropSections(t *testing.T) {
	tb := newTable(t, omics(), "outcome")
	err := tb.DropSections([]string{"metabolomics", "lipidomics"})
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.Equal(t, []string{"proteomics", "metabolomics"}, tb.Sections())

	require.NoError(t, tb.DropSections([]string{"metabolomics"}))
	assert.Equal(t, []string{"proteomics"}, tb.Sections())
	x, err := tb.X("")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, x.Names())

	require.NoError(t, tb.DropSections([]string{"proteomics"}))
	_, err = tb.X("")
	assert.ErrorIs(t, err, ErrInvalidSection)
	assert.ErrorIs(t, tb.RemoveDuplicates(false, ""), ErrInvalidSection)
}

func TestEncodeCategorical(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	require.NoError(t, tb.EncodeCategorical([]string{"Site"}))
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, series.Int, df.Col("site").Type())
	assert.Equal(t, []float64{0, 1, 2, 0}, df.Col("site").Float()[:4])

	x, err := tb.X("")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "weight", "site"}, x.Names())

	err = tb.EncodeCategorical([]string{"site", "ward"})
	var ce *ColumnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ward", ce.Column)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEncodeCategoricalSectioned(t *testing.T) {
	tb := newTable(t, omics(), "outcome")
	refs, err := tb.Resolve("outcome")
	require.NoError(t, err)
	assert.Equal(t, []ColumnRef{{Section: "proteomics", Name: "outcome"}, {Section: "metabolomics", Name: "outcome"}}, refs)

	refs, err = tb.Resolve("M2")
	require.NoError(t, err)
	assert.Equal(t, []ColumnRef{{Section: "metabolomics", Name: "m2"}}, refs)

	require.NoError(t, tb.EncodeCategorical([]string{"outcome"}))
	for _, sec := range tb.Sections() {
		df, _ := tb.Frame(sec)
		assert.Equal(t, series.Int, df.Col("outcome").Type(), sec)
	}
}

func TestApplyEncodingsValidatesFirst(t *testing.T) {
	tb := newTable(t, clinical(), "diagnosis")
	enc, err := tb.ComputeEncodings([]string{"site"})
	require.NoError(t, err)
	bad := Encoded{Ref: ColumnRef{Name: "age"}, Series: series.New([]int{1, 2}, series.Int, "age")}
	err = tb.ApplyEncodings(append(enc, bad))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	df, _ := tb.Frame("")
	assert.Equal(t, series.String, df.Col("site").Type())
}

func cleanable() Source {
	return Source{Frame: dataframe.New(
		series.New([]string{"1.5", "2", "NaN"}, series.String, "Amount"),
		series.New([]string{"2024-01-02", "bad", "2024-03-01"}, series.String, "Visit"),
		series.New([]string{"x", "y", "x"}, series.String, "Label"),
		series.New([]float64{1, 2, 3}, series.Float, "Drop Me"),
	)}
}

func TestCleanColumns(t *testing.T) {
	tb := newTable(t, cleanable(), "label")
	err := tb.CleanColumns(CleanOptions{Drop: []string{"Drop Me"}, Dates: []DateColumn{{Name: "visit"}}, TryConvert: true})
	require.NoError(t, err)
	df, err := tb.Frame("")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "visit", "label"}, df.Names())

	amount := df.Col("amount")
	assert.Equal(t, series.Float, amount.Type())
	assert.Equal(t, 1.5, amount.Float()[0])
	assert.True(t, math.IsNaN(amount.Float()[2]))

	visit := df.Col("visit")
	assert.Equal(t, series.String, visit.Type())
	assert.Equal(t, "2024-01-02T00:00:00Z", visit.Elem(0).String())
	assert.True(t, visit.Elem(1).IsNA())
	assert.Equal(t, series.String, df.Col("label").Type())
}

func TestCleanColumnsValidatesFirst(t *testing.T) {
	tb := newTable(t, cleanable(), "label")
	assert.ErrorIs(t, tb.CleanColumns(CleanOptions{Drop: []string{"label"}}), ErrInvalidArgument)

	err := tb.CleanColumns(CleanOptions{Drop: []string{"drop_me", "missing"}})
	var ce *ColumnError
	require.ErrorAs(t, err, &ce)
	df, _ := tb.Frame("")
	assert.Contains(t, df.Names(), "drop_me")
}

func TestEncodeDatetime(t *testing.T) {
	tb := newTable(t, cleanable(), "label")
	require.NoError(t, tb.EncodeDatetime([]DateColumn{{Name: "Visit"}}))
	df, err := tb.Frame("")
	require.NoError(t, err)
	v := df.Col("visit").Float()
	assert.Equal(t, 19724.0, v[0])
	assert.True(t, math.IsNaN(v[1]))

	assert.ErrorIs(t, tb.EncodeDatetime([]DateColumn{{Name: "nope"}}), ErrInvalidArgument)
}
