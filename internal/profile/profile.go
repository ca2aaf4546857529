// Package profile produces an exploratory summary of a table: inferred column kinds,
// missingness, numeric statistics, outliers, top categories, correlations and
// per-class summaries. Reports render as Markdown or as a standalone HTML page.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

// Options controls profiling behavior.
type Options struct {
	// Title is shown at the top of the report.
	Title string
	// Target, when set, adds class balance and per-class numeric summaries.
	Target string
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// OutlierThreshold is the robust |z| cut-off (MAD). 0 means 3.5.
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		Title:        "Data Analysis",
		SampleRows:   5,
		Correlations: true,
	}
}

// Report is a rendered-agnostic analysis of a tabular dataset.
type Report struct {
	Title    string
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
	Classes  []CategoryCount
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|unknown
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// IQR-rule outliers
	IQROutliers int
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated numeric metrics per target class.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64
}

// Analyze profiles df.
func Analyze(name string, df dataframe.DataFrame, opt Options) (*Report, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, df.Err)
	}
	rep := &Report{Title: opt.Title, Name: name, Rows: df.Nrow()}
	if rep.Title == "" {
		rep.Title = "Data Analysis"
	}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}

	var numCols []string
	numVals := map[string][]float64{}
	for _, n := range df.Names() {
		s := df.Col(n)
		cs := summarize(s, thr)
		if cs.Kind == "numeric" {
			numCols = append(numCols, n)
			numVals[n] = s.Float()
		}
		if cs.Missing > 0 && cs.NonNull == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %s has no observed values", n))
		}
		rep.Cols = append(rep.Cols, cs)
	}

	recs := df.Records()
	for i := 1; i < len(recs) && len(rep.Samples) < sampleRows; i++ {
		rep.Samples = append(rep.Samples, recs[i])
	}

	if opt.Target != "" {
		for _, c := range rep.Cols {
			if c.Name != opt.Target {
				continue
			}
			rep.Classes = classCounts(df.Col(opt.Target))
			rep.Groups = groupSummaries(df.Col(opt.Target), numCols, numVals)
		}
		if rep.Classes == nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("target %s not present", opt.Target))
		}
	}

	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = Correlations(numCols, numVals)
	}
	return rep, nil
}

// Correlations builds the pairwise Pearson matrix of the given columns.
func Correlations(cols []string, vals map[string][]float64) *CorrMatrix {
	n := len(cols)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
		mat[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			r := stats.Pearson(vals[cols[a]], vals[cols[b]])
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), cols...), Values: mat}
}

func summarize(s series.Series, thr float64) ColumnSummary {
	cs := ColumnSummary{Name: s.Name}
	recs := s.Records()
	numeric := s.Type() == series.Int || s.Type() == series.Float
	var observed []string
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() || (numeric && math.IsNaN(e.Float())) {
			cs.Missing++
			continue
		}
		cs.NonNull++
		observed = append(observed, recs[i])
	}
	switch {
	case numeric && cs.NonNull > 0:
		cs.Kind = "numeric"
		vals := stats.Observed(s.Float())
		cs.Min, cs.Max = math.Inf(1), math.Inf(-1)
		for _, v := range vals {
			cs.Min = math.Min(cs.Min, v)
			cs.Max = math.Max(cs.Max, v)
		}
		cs.Mean = stats.Mean(vals)
		if len(vals) > 1 {
			var m2 float64
			for _, v := range vals {
				m2 += (v - cs.Mean) * (v - cs.Mean)
			}
			cs.Std = math.Sqrt(m2 / float64(len(vals)-1))
		}
		for _, m := range stats.OutlierMask(vals) {
			if m {
				cs.IQROutliers++
			}
		}
		if len(vals) >= 8 {
			median, mad := stats.MedianMAD(vals)
			if mad > 0 {
				for _, v := range vals {
					az := math.Abs(0.6745 * (v - median) / mad)
					if az > thr {
						cs.OutliersCount++
					}
					cs.OutliersMaxAbsZ = math.Max(cs.OutliersMaxAbsZ, az)
				}
			}
			cs.OutlierThreshold = thr
		}
	case len(observed) > 0 && allDates(observed):
		cs.Kind = "datetime"
	case len(observed) > 0:
		cats := map[string]int{}
		for _, v := range observed {
			if len(v) <= 64 {
				cats[v]++
			}
		}
		if len(cats) > 0 && len(cats) <= len(observed)/2+1 {
			cs.Kind = "categorical"
			cs.Unique = len(cats)
			cs.TopValues = topCounts(cats, 8)
		} else {
			cs.Kind = "text"
			for i := 0; i < len(observed) && i < 3; i++ {
				cs.ExampleTexts = append(cs.ExampleTexts, observed[i])
			}
		}
	default:
		cs.Kind = "unknown"
	}
	return cs
}

func allDates(vals []string) bool {
	for _, v := range vals {
		if _, ok := stats.ParseTime(v, ""); !ok {
			return false
		}
	}
	return true
}

func topCounts(m map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(m))
	for k, v := range m {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if limit > 0 && len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

func classCounts(s series.Series) []CategoryCount {
	recs := s.Records()
	m := map[string]int{}
	for i := 0; i < s.Len(); i++ {
		if s.Elem(i).IsNA() {
			continue
		}
		m[recs[i]]++
	}
	return topCounts(m, 0)
}

func groupSummaries(target series.Series, numCols []string, vals map[string][]float64) []GroupResult {
	recs := target.Records()
	groups := map[string]*GroupResult{}
	var order []string
	for i := 0; i < target.Len(); i++ {
		if target.Elem(i).IsNA() {
			continue
		}
		key := target.Name + "=" + recs[i]
		g := groups[key]
		if g == nil {
			g = &GroupResult{Key: key, Metrics: map[string]NumSummary{}}
			groups[key] = g
			order = append(order, key)
		}
		g.Size++
		for _, c := range numCols {
			if c == target.Name {
				continue
			}
			v := vals[c][i]
			if math.IsNaN(v) {
				continue
			}
			m, ok := g.Metrics[c]
			if !ok {
				m = NumSummary{Min: v, Max: v}
			}
			m.Mean = (m.Mean*float64(m.Count) + v) / float64(m.Count+1)
			m.Count++
			m.Min = math.Min(m.Min, v)
			m.Max = math.Max(m.Max, v)
			g.Metrics[c] = m
		}
	}
	out := make([]GroupResult, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	return out
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
