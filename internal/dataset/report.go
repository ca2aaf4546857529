package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"github.com/KaramelBytes/biolearn-cli/internal/plot"
	"github.com/KaramelBytes/biolearn-cli/internal/profile"
	"github.com/KaramelBytes/biolearn-cli/internal/utils"
)

// Missingness plot values.
const (
	MissingPercent = "percent"
	MissingCountOf = "count"
)

// ProfileReport writes a profile of the addressed table to path and returns the
// written file name. A ".md" path gets Markdown; anything else gets HTML.
func (t *Table) ProfileReport(section, path string) (string, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return "", err
	}
	name := section
	if name == "" {
		name = "dataset"
	}
	opt := profile.DefaultOptions()
	opt.Target = t.targetLabel.Name
	opt.Title = "Profile: " + name
	rep, err := profile.Analyze(name, df, opt)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".md") {
		if err := utils.SafeWriteFile(path, []byte(rep.Markdown())); err != nil {
			return "", err
		}
		return path, nil
	}
	return rep.WriteHTML(path)
}

// PlotCorrelationHeatmap draws the Pearson matrix of the numeric feature columns.
// removeRepeated hides the upper triangle.
func (t *Table) PlotCorrelationHeatmap(section string, showValues, removeRepeated bool, path string) (string, error) {
	x, err := t.X(section)
	if err != nil {
		return "", err
	}
	if x.Ncol() < 2 {
		return "", fmt.Errorf("%w: correlation needs two numeric columns, have %d", ErrInvalidArgument, x.Ncol())
	}
	vals := make(map[string][]float64, x.Ncol())
	for _, n := range x.Names() {
		vals[n] = x.Col(n).Float()
	}
	corr := profile.Correlations(x.Names(), vals)
	g := plot.Grid{
		Rows:      corr.Columns,
		Cols:      corr.Columns,
		Values:    corr.Values,
		Min:       -1,
		Max:       1,
		Diverging: true,
		Annotate:  showValues,
	}
	if removeRepeated {
		g.Mask = plot.UpperMask(len(corr.Columns))
	}
	return plot.Heatmap(path, g, plot.Options{Title: "Correlation"})
}

// PlotPairwise draws a scatter matrix of cols colored by target class. Empty cols
// uses every numeric feature column.
func (t *Table) PlotPairwise(cols []string, section, path string) (string, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		n := NormalizeName(c)
		if !hasColumn(df, n) {
			return "", &ColumnError{Column: c, Section: section}
		}
		if !isNumeric(df.Col(n)) {
			return "", fmt.Errorf("%w: column %q is not numeric", ErrInvalidArgument, c)
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		names = numericNames(df, t.targetLabel.Name)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no numeric columns to plot", ErrInvalidArgument)
	}
	data := make([][]float64, len(names))
	for i, n := range names {
		data[i] = df.Col(n).Float()
	}
	return plot.Pairwise(path, names, data, groups(df, t.targetLabel.Name), plot.Options{Title: "Pairwise"})
}

func groups(df dataframe.DataFrame, target string) []string {
	s := df.Col(target)
	out := s.Records()
	for i := range out {
		if isMissing(s, i) {
			out[i] = "missing"
		}
	}
	return out
}

// PlotMissingness draws a bar per column (or row) with its missing percent or count.
// value must be "percent" or "count".
func (t *Table) PlotMissingness(axis Axis, value, section, path string) (string, error) {
	if value != MissingPercent && value != MissingCountOf {
		return "", fmt.Errorf("%w: value must be %q or %q, got %q", ErrInvalidArgument, MissingPercent, MissingCountOf, value)
	}
	df, err := t.frameFor(section)
	if err != nil {
		return "", err
	}
	counts := mostMissingFirst(countMissing(df, axis))
	labels := make([]string, len(counts))
	vals := make([]float64, len(counts))
	for i, mc := range counts {
		labels[i] = mc.Label
		if value == MissingPercent {
			vals[i] = mc.Percent
		} else {
			vals[i] = float64(mc.Count)
		}
	}
	return plot.Bar(path, labels, vals, plot.Options{Title: "Missing values by " + axis.String(), YLabel: value})
}
