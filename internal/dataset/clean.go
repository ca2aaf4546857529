package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

// DateLayout is the canonical representation of converted date columns.
const DateLayout = time.RFC3339

// DateColumn names a column to parse as dates. An empty Layout tries common layouts.
type DateColumn struct {
	Name   string
	Layout string
}

// CleanOptions drives CleanColumns.
type CleanOptions struct {
	// Drop lists columns to remove.
	Drop []string
	// Dates lists columns converted to DateLayout strings. Unparseable cells become missing.
	Dates []DateColumn
	// TryConvert turns text columns whose every value parses as a number into floats.
	TryConvert bool
	// UseOriginal restarts every targeted table from the construction snapshot first.
	UseOriginal bool
	// Numbers pins the separators used by TryConvert.
	Numbers stats.NumberFormat
}

// CleanColumns drops, date-converts and type-coerces columns across every active table.
// Names resolve the way Resolve does, against the starting tables.
func (t *Table) CleanColumns(opt CleanOptions) error {
	for _, c := range opt.Drop {
		if NormalizeName(c) == t.targetLabel.Name {
			return fmt.Errorf("%w: refusing to drop target column %q", ErrInvalidArgument, c)
		}
	}
	names, err := t.targets("")
	if err != nil {
		return err
	}
	start := make(map[string]dataframe.DataFrame, len(names))
	for _, n := range names {
		df, err := t.base(n, opt.UseOriginal)
		if err != nil {
			return err
		}
		start[n] = df
	}
	locate := func(col string) (ColumnRef, error) {
		name := NormalizeName(col)
		for _, n := range names {
			if hasColumn(start[n], name) {
				return ColumnRef{Section: n, Name: name}, nil
			}
		}
		return ColumnRef{}, &ColumnError{Column: col}
	}
	drops := map[string][]string{}
	for _, c := range opt.Drop {
		ref, err := locate(c)
		if err != nil {
			return err
		}
		drops[ref.Section] = append(drops[ref.Section], ref.Name)
	}
	dates := map[string][]DateColumn{}
	for _, d := range opt.Dates {
		ref, err := locate(d.Name)
		if err != nil {
			return err
		}
		dates[ref.Section] = append(dates[ref.Section], DateColumn{Name: ref.Name, Layout: d.Layout})
	}

	next := make(map[string]dataframe.DataFrame, len(names))
	for _, n := range names {
		df := start[n]
		if d := drops[n]; len(d) > 0 {
			df = selectColumns(df, without(df.Names(), d))
		}
		for _, dc := range dates[n] {
			s, bad := toDates(df.Col(dc.Name), dc.Layout)
			if bad > 0 {
				t.log.Warn("unparseable dates set to missing", "column", Label{Section: n, Name: dc.Name}.key(), "cells", bad)
			}
			df = replaceColumn(df, s)
		}
		if opt.TryConvert {
			df = coerceNumeric(df, opt.Numbers)
		}
		if df.Err != nil {
			return fmt.Errorf("clean %q: %w", n, df.Err)
		}
		next[n] = df
	}
	for n, df := range next {
		t.commit(n, df)
	}
	return nil
}

// EncodeDatetime replaces date columns with fractional days since the Unix epoch.
func (t *Table) EncodeDatetime(cols []DateColumn) error {
	type plan struct {
		ref    ColumnRef
		layout string
	}
	var plans []plan
	for _, c := range cols {
		refs, err := t.Resolve(c.Name)
		if err != nil {
			return err
		}
		for _, r := range refs {
			plans = append(plans, plan{ref: r, layout: c.Layout})
		}
	}
	var enc []Encoded
	for _, p := range plans {
		df, _ := t.active(p.ref)
		s := df.Col(p.ref.Name)
		vals := make([]float64, s.Len())
		recs := s.Records()
		for i := range vals {
			vals[i] = math.NaN()
			if isMissing(s, i) {
				continue
			}
			if tm, ok := stats.ParseTime(recs[i], p.layout); ok {
				vals[i] = float64(tm.Unix()) / 86400
			}
		}
		enc = append(enc, Encoded{Ref: p.ref, Series: floatSeries(p.ref.Name, vals)})
	}
	return t.ApplyEncodings(enc)
}

func toDates(s series.Series, layout string) (series.Series, int) {
	recs := s.Records()
	vals := make([]string, len(recs))
	missing := make([]bool, len(recs))
	bad := 0
	for i, r := range recs {
		if isMissing(s, i) {
			missing[i] = true
			continue
		}
		tm, ok := stats.ParseTime(r, layout)
		if !ok {
			missing[i] = true
			bad++
			continue
		}
		vals[i] = tm.UTC().Format(DateLayout)
	}
	return stringSeries(s.Name, vals, missing), bad
}

// coerceNumeric converts text columns when every observed value parses as a number.
func coerceNumeric(df dataframe.DataFrame, nf stats.NumberFormat) dataframe.DataFrame {
	out := df
	for i, n := range df.Names() {
		if df.Types()[i] != series.String {
			continue
		}
		s := df.Col(n)
		recs := s.Records()
		vals := make([]float64, len(recs))
		observed := 0
		ok := true
		for r, v := range recs {
			if isMissing(s, r) {
				vals[r] = math.NaN()
				continue
			}
			f, parsed := stats.ParseNumeric(v, nf)
			if !parsed {
				ok = false
				break
			}
			vals[r] = f
			observed++
		}
		if ok && observed > 0 {
			out = replaceColumn(out, floatSeries(n, vals))
		}
	}
	return out
}

func without(all, drop []string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	var out []string
	for _, a := range all {
		if _, ok := skip[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}
