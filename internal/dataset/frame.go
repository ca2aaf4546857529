package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// missingToken is how gota spells a missing cell when loading from strings.
const missingToken = "NaN"

func isNumeric(s series.Series) bool {
	t := s.Type()
	return t == series.Int || t == series.Float
}

func isMissing(s series.Series, i int) bool {
	e := s.Elem(i)
	if e.IsNA() {
		return true
	}
	return isNumeric(s) && math.IsNaN(e.Float())
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// floatSeries builds a Float series through its string form so NaN cells carry gota's
// NA flag.
func floatSeries(name string, vals []float64) series.Series {
	raw := make([]string, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			raw[i] = missingToken
			continue
		}
		raw[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return series.New(raw, series.Float, name)
}

func stringSeries(name string, vals []string, missing []bool) series.Series {
	raw := make([]string, len(vals))
	for i, v := range vals {
		if missing[i] {
			raw[i] = missingToken
			continue
		}
		raw[i] = v
	}
	return series.New(raw, series.String, name)
}

// codeSeries replaces every distinct non-missing value with its rank among the sorted
// distinct values. Missing cells stay missing.
func codeSeries(s series.Series) series.Series {
	n := s.Len()
	vals := s.Records()
	seen := map[string]struct{}{}
	for i := 0; i < n; i++ {
		if !isMissing(s, i) {
			seen[vals[i]] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	if isNumeric(s) {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.ParseFloat(keys[i], 64)
			b, _ := strconv.ParseFloat(keys[j], 64)
			return a < b
		})
	} else {
		sort.Strings(keys)
	}
	code := make(map[string]int, len(keys))
	for i, k := range keys {
		code[k] = i
	}
	raw := make([]string, n)
	for i := 0; i < n; i++ {
		if isMissing(s, i) {
			raw[i] = missingToken
			continue
		}
		raw[i] = strconv.Itoa(code[vals[i]])
	}
	return series.New(raw, series.Int, s.Name)
}

// columns returns copies of the named columns, renamed when rename is non-nil.
func columns(df dataframe.DataFrame, names []string, rename []string) []series.Series {
	out := make([]series.Series, 0, len(names))
	for i, n := range names {
		s := df.Col(n).Copy()
		if rename != nil {
			s.Name = rename[i]
		}
		out = append(out, s)
	}
	return out
}

// selectColumns keeps names in the given order. An empty selection yields the zero
// DataFrame, which gota reports as 0x0.
func selectColumns(df dataframe.DataFrame, names []string) dataframe.DataFrame {
	if len(names) == 0 {
		return dataframe.DataFrame{}
	}
	return dataframe.New(columns(df, names, nil)...)
}

// subsetRows keeps the given row indexes in order.
func subsetRows(df dataframe.DataFrame, idx []int) dataframe.DataFrame {
	if df.Ncol() == 0 {
		return df
	}
	if len(idx) == 0 {
		cols := make([]series.Series, 0, df.Ncol())
		for i, n := range df.Names() {
			cols = append(cols, series.New([]string{}, df.Types()[i], n))
		}
		return dataframe.New(cols...)
	}
	return df.Subset(idx)
}

func replaceColumn(df dataframe.DataFrame, s series.Series) dataframe.DataFrame {
	return df.Mutate(s)
}

func numericNames(df dataframe.DataFrame, exclude string) []string {
	var out []string
	for i, n := range df.Names() {
		if n == exclude {
			continue
		}
		t := df.Types()[i]
		if t == series.Int || t == series.Float {
			out = append(out, n)
		}
	}
	return out
}

func rowKey(df dataframe.DataFrame, r int) string {
	var b strings.Builder
	for c := 0; c < df.Ncol(); c++ {
		if c > 0 {
			b.WriteByte(0x1f)
		}
		e := df.Elem(r, c)
		if e.IsNA() {
			b.WriteString(missingToken)
			continue
		}
		b.WriteString(e.String())
	}
	return b.String()
}
