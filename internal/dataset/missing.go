package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
)

// Axis selects columns or rows for missing-value accounting.
type Axis int

const (
	Columns Axis = iota
	Rows
)

func (a Axis) String() string {
	if a == Rows {
		return "index"
	}
	return "column"
}

// MissingCount is the number and percent of missing cells of one column or row.
type MissingCount struct {
	Label   string
	Count   int
	Percent float64
}

func countMissing(df dataframe.DataFrame, axis Axis) []MissingCount {
	nrow, ncol := df.Dims()
	var out []MissingCount
	switch axis {
	case Rows:
		counts := make([]int, nrow)
		for _, n := range df.Names() {
			s := df.Col(n)
			for i := 0; i < nrow; i++ {
				if isMissing(s, i) {
					counts[i]++
				}
			}
		}
		out = make([]MissingCount, nrow)
		for i, c := range counts {
			out[i] = MissingCount{Label: strconv.Itoa(i), Count: c, Percent: pct(c, ncol)}
		}
	default:
		out = make([]MissingCount, 0, ncol)
		for _, n := range df.Names() {
			s := df.Col(n)
			c := 0
			for i := 0; i < nrow; i++ {
				if isMissing(s, i) {
					c++
				}
			}
			out = append(out, MissingCount{Label: n, Count: c, Percent: pct(c, nrow)})
		}
	}
	return out
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// MissingSummary counts missing cells per column or per row of the addressed table,
// most missing first.
func (t *Table) MissingSummary(axis Axis, section string) ([]MissingCount, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return nil, err
	}
	return mostMissingFirst(countMissing(df, axis)), nil
}

// mostMissingFirst sorts by count, descending, keeping frame order among ties.
func mostMissingFirst(counts []MissingCount) []MissingCount {
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts
}

func checkPercent(p float64) error {
	if p < 0 || p > 100 || math.IsNaN(p) {
		return fmt.Errorf("%w: percent must be within [0,100], got %v", ErrInvalidArgument, p)
	}
	return nil
}

// DropColumnsAboveMissing drops every column whose missing percentage exceeds
// percent. The target column is always kept. It returns the dropped columns,
// prefixed with their section when sectioned.
func (t *Table) DropColumnsAboveMissing(percent float64, showDropped bool, section string) ([]string, error) {
	if err := checkPercent(percent); err != nil {
		return nil, err
	}
	var dropped []string
	err := t.apply(section, false, func(name string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
		var keep []string
		for _, mc := range countMissing(df, Columns) {
			if mc.Percent > percent && mc.Label != t.targetLabel.Name {
				dropped = append(dropped, Label{Section: name, Name: mc.Label}.key())
				continue
			}
			keep = append(keep, mc.Label)
		}
		return selectColumns(df, keep), nil
	})
	if err != nil {
		return nil, err
	}
	if showDropped {
		t.log.Info("dropped columns above missing threshold", "percent", percent, "columns", dropped)
	}
	return dropped, nil
}

// DropRowsAboveMissing drops every row whose missing percentage exceeds percent.
// It returns the dropped row positions, prefixed with their section when sectioned.
func (t *Table) DropRowsAboveMissing(percent float64, showDropped bool, section string) ([]string, error) {
	if err := checkPercent(percent); err != nil {
		return nil, err
	}
	var dropped []string
	err := t.apply(section, false, func(name string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
		var keep []int
		for i, mc := range countMissing(df, Rows) {
			if mc.Percent > percent {
				dropped = append(dropped, Label{Section: name, Name: mc.Label}.key())
				continue
			}
			keep = append(keep, i)
		}
		return subsetRows(df, keep), nil
	})
	if err != nil {
		return nil, err
	}
	if showDropped {
		t.log.Info("dropped rows above missing threshold", "percent", percent, "rows", dropped)
	}
	return dropped, nil
}

// RemoveDuplicates keeps the first occurrence of every distinct row, preserving order.
// With useOriginal the table restarts from the construction snapshot.
func (t *Table) RemoveDuplicates(useOriginal bool, section string) error {
	return t.apply(section, useOriginal, func(_ string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
		seen := map[string]struct{}{}
		var keep []int
		for r := 0; r < df.Nrow(); r++ {
			k := rowKey(df, r)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keep = append(keep, r)
		}
		if len(keep) == df.Nrow() {
			return df, nil
		}
		return subsetRows(df, keep), nil
	})
}
