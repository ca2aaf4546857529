// Package dataset implements the section-aware table used by every biolearn command.
//
// A Table wraps either one flat gota DataFrame or, when the input carried a two-level
// header, one DataFrame per top-level label ("section"). Every section holds a copy of
// the shared target column. The state (Flat or Sectioned) is fixed at construction.
//
// Mutating operations take an optional section name. In the Sectioned state an empty
// name applies the operation to every section in order; in the Flat state the name is
// ignored. Accessors (X, Y, Frame and the report passthroughs) are strict: they need a
// single table and reject names that do not exist.
//
// Every operation validates its arguments and computes all replacement frames before
// committing any of them, so a failed call leaves the table unchanged.
//
// A Table is not safe for concurrent mutation. Concurrent readers are fine.
package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

// LevelSep joins section and field names in the flattened snapshot.
const LevelSep = "/"

// State is the storage mode of a Table.
type State int

const (
	Flat State = iota
	Sectioned
)

func (s State) String() string {
	if s == Sectioned {
		return "sectioned"
	}
	return "flat"
}

// Label is one column header. Section is empty for flat headers.
type Label struct {
	Section string
	Name    string
}

func (l Label) key() string {
	if l.Section == "" {
		return l.Name
	}
	return l.Section + LevelSep + l.Name
}

func (l Label) String() string { return l.key() }

// Source is a loaded table. Labels, when set, is parallel to Frame's columns and
// carries the two-level header; nil means a flat header taken from Frame.Names().
type Source struct {
	Frame  dataframe.DataFrame
	Labels []Label
}

// Table is the section-aware dataset.
type Table struct {
	target       string
	targetLabel  Label
	original     dataframe.DataFrame
	labels       []Label
	working      dataframe.DataFrame
	hasSections  bool
	sections     map[string]dataframe.DataFrame
	sectionNames []string
	outlierCols  []Label

	log     *slog.Logger
	verbose bool
}

// Option configures New.
type Option func(*Table)

// WithLogger routes diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.log = l
		}
	}
}

// Verbose logs class balance and outlier columns at construction.
func Verbose(v bool) Option {
	return func(t *Table) { t.verbose = v }
}

// NormalizeName trims, lowercases and joins inner whitespace runs with "_".
// It is idempotent.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// New builds a Table from src with the given target column.
func New(src Source, target string, opts ...Option) (*Table, error) {
	if src.Frame.Err != nil {
		return nil, fmt.Errorf("source frame: %w", src.Frame.Err)
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: target column is required", ErrInvalidArgument)
	}
	names := src.Frame.Names()
	labels := src.Labels
	if labels == nil {
		labels = make([]Label, len(names))
		for i, n := range names {
			labels[i] = Label{Name: n}
		}
	}
	if len(labels) != len(names) {
		return nil, fmt.Errorf("%w: %d header labels for %d columns", ErrInvalidArgument, len(labels), len(names))
	}

	t := &Table{
		target:   NormalizeName(target),
		sections: map[string]dataframe.DataFrame{},
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}

	t.labels, t.hasSections = normalizeLabels(labels)
	keys := make([]string, len(t.labels))
	for i, l := range t.labels {
		keys[i] = l.key()
	}
	t.original = dataframe.New(columns(src.Frame, names, keys)...)
	if t.original.Err != nil {
		return nil, fmt.Errorf("build snapshot: %w", t.original.Err)
	}

	tl, ok := t.findLabel(t.target)
	if !ok {
		return nil, fmt.Errorf("%w: target column %q not found", ErrInvalidArgument, t.target)
	}
	t.targetLabel = tl

	if t.hasSections {
		if err := t.setSections(); err != nil {
			return nil, err
		}
	} else {
		t.working = t.original.Copy()
	}
	t.outlierCols = t.findOutlierColumns()

	if t.verbose {
		t.logDetails()
	}
	return t, nil
}

// normalizeLabels normalizes every label once and makes the flattened keys unique.
// When any label carries a section, flat labels become sections of their own.
func normalizeLabels(in []Label) ([]Label, bool) {
	sectioned := false
	for _, l := range in {
		if NormalizeName(l.Section) != "" {
			sectioned = true
			break
		}
	}
	out := make([]Label, len(in))
	used := map[string]struct{}{}
	for i, l := range in {
		lab := Label{Section: NormalizeName(l.Section), Name: NormalizeName(l.Name)}
		if lab.Name == "" {
			lab.Name = lab.Section
		}
		if lab.Name == "" {
			lab.Name = "column_" + strconv.Itoa(i+1)
		}
		if sectioned && lab.Section == "" {
			lab.Section = lab.Name
		}
		base := lab.Name
		for n := 2; ; n++ {
			if _, dup := used[lab.key()]; !dup {
				break
			}
			lab.Name = base + "_" + strconv.Itoa(n)
		}
		used[lab.key()] = struct{}{}
		out[i] = lab
	}
	return out, sectioned
}

// findLabel locates a column by field name first, then by section name.
func (t *Table) findLabel(name string) (Label, bool) {
	for _, l := range t.labels {
		if l.Name == name {
			return l, true
		}
	}
	for _, l := range t.labels {
		if l.Section == name {
			return l, true
		}
	}
	return Label{}, false
}

func (t *Table) setSections() error {
	for _, l := range t.labels {
		if _, ok := t.sections[l.Section]; ok {
			continue
		}
		df, err := t.splitSection(l.Section)
		if err != nil {
			return err
		}
		t.sections[l.Section] = df
		t.sectionNames = append(t.sectionNames, l.Section)
	}
	return nil
}

// splitSection builds a section table from the original snapshot: the section's
// columns with the level dropped, plus the target when the section lacks it.
func (t *Table) splitSection(name string) (dataframe.DataFrame, error) {
	var keys, rename []string
	hasTarget := false
	for _, l := range t.labels {
		if l.Section != name {
			continue
		}
		keys = append(keys, l.key())
		rename = append(rename, l.Name)
		if l.Name == t.targetLabel.Name {
			hasTarget = true
		}
	}
	if len(keys) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %q", ErrInvalidSection, name)
	}
	if !hasTarget {
		keys = append(keys, t.targetLabel.key())
		rename = append(rename, t.targetLabel.Name)
	} else if t.targetLabel.Section != name {
		t.log.Warn("section has a column named like the target; keeping the section's own column",
			"section", name, "column", t.targetLabel.Name)
	}
	df := dataframe.New(columns(t.original, keys, rename)...)
	if df.Err != nil {
		return df, fmt.Errorf("split section %q: %w", name, df.Err)
	}
	return df, nil
}

// findOutlierColumns flags numeric non-target columns of the flattened snapshot that
// hold at least one value outside their IQR limits. It runs once; later mutations do
// not refresh the list.
func (t *Table) findOutlierColumns() []Label {
	var out []Label
	for _, l := range t.labels {
		if l == t.targetLabel {
			continue
		}
		s := t.original.Col(l.key())
		if !isNumeric(s) {
			continue
		}
		if stats.HasOutliers(s.Float()) {
			out = append(out, l)
		}
	}
	return out
}

func (t *Table) logDetails() {
	bal := t.ClassBalance()
	attrs := make([]any, 0, len(bal)*2)
	for _, c := range bal {
		attrs = append(attrs, c.Class, fmt.Sprintf("%.2f%%", c.Percent))
	}
	t.log.Info("class balance", attrs...)
	if len(t.outlierCols) > 0 {
		names := make([]string, len(t.outlierCols))
		for i, l := range t.outlierCols {
			names[i] = l.key()
		}
		t.log.Info("columns with outliers", "columns", strings.Join(names, ", "))
	}
}

// ClassShare is one target class and its share of the non-missing rows.
type ClassShare struct {
	Class   string
	Count   int
	Percent float64
}

// ClassBalance returns the target's class distribution over the original snapshot,
// largest class first.
func (t *Table) ClassBalance() []ClassShare {
	s := t.original.Col(t.targetLabel.key())
	vals := s.Records()
	counts := map[string]int{}
	total := 0
	for i := 0; i < s.Len(); i++ {
		if isMissing(s, i) {
			continue
		}
		counts[vals[i]]++
		total++
	}
	out := make([]ClassShare, 0, len(counts))
	for k, n := range counts {
		out = append(out, ClassShare{Class: k, Count: n, Percent: float64(n) * 100 / float64(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Class < out[j].Class
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// State reports Flat or Sectioned.
func (t *Table) State() State {
	if t.hasSections {
		return Sectioned
	}
	return Flat
}

// HasSections reports whether the input header was two-level.
func (t *Table) HasSections() bool { return t.hasSections }

// Sections returns the remaining section names in first-appearance order.
func (t *Table) Sections() []string { return append([]string(nil), t.sectionNames...) }

// Target returns the normalized target column name used inside active tables.
func (t *Table) Target() string { return t.targetLabel.Name }

// OutlierColumns returns the columns flagged at construction.
func (t *Table) OutlierColumns() []Label { return append([]Label(nil), t.outlierCols...) }

// Frame returns a copy of the active table addressed by section.
func (t *Table) Frame(section string) (dataframe.DataFrame, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return df.Copy(), nil
}

// frameFor resolves an accessor selector to exactly one table.
func (t *Table) frameFor(section string) (dataframe.DataFrame, error) {
	if !t.hasSections {
		if section != "" {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %q (table has no sections)", ErrInvalidSection, section)
		}
		return t.working, nil
	}
	if section == "" {
		switch len(t.sectionNames) {
		case 0:
			return dataframe.DataFrame{}, fmt.Errorf("%w: no sections remain", ErrInvalidSection)
		case 1:
			return t.sections[t.sectionNames[0]], nil
		default:
			return dataframe.DataFrame{}, fmt.Errorf("%w: section required, choose one of %s", ErrInvalidSection, strings.Join(t.sectionNames, ", "))
		}
	}
	df, ok := t.sections[section]
	if !ok {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	return df, nil
}

// targets resolves a mutation selector to the tables it touches. "" stands for the
// flat table in the Flat state.
func (t *Table) targets(section string) ([]string, error) {
	if !t.hasSections {
		return []string{""}, nil
	}
	if section == "" {
		if len(t.sectionNames) == 0 {
			return nil, fmt.Errorf("%w: no sections remain", ErrInvalidSection)
		}
		return append([]string(nil), t.sectionNames...), nil
	}
	if _, ok := t.sections[section]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	return []string{section}, nil
}

// base returns the starting table for a mutation.
func (t *Table) base(name string, useOriginal bool) (dataframe.DataFrame, error) {
	if !t.hasSections {
		if useOriginal {
			return t.original.Copy(), nil
		}
		return t.working, nil
	}
	if useOriginal {
		return t.splitSection(name)
	}
	return t.sections[name], nil
}

// apply computes a replacement for every targeted table and commits only when all
// of them succeeded.
func (t *Table) apply(section string, useOriginal bool, fn func(name string, df dataframe.DataFrame) (dataframe.DataFrame, error)) error {
	names, err := t.targets(section)
	if err != nil {
		return err
	}
	next := make([]dataframe.DataFrame, len(names))
	for i, n := range names {
		df, err := t.base(n, useOriginal)
		if err != nil {
			return err
		}
		out, err := fn(n, df)
		if err != nil {
			if n != "" {
				return fmt.Errorf("section %q: %w", n, err)
			}
			return err
		}
		if out.Err != nil {
			return fmt.Errorf("table %q: %w", n, out.Err)
		}
		next[i] = out
	}
	for i, n := range names {
		t.commit(n, next[i])
	}
	return nil
}

func (t *Table) commit(name string, df dataframe.DataFrame) {
	if !t.hasSections {
		t.working = df
		return
	}
	t.sections[name] = df
}

// X returns the numeric (int/float) columns of the addressed table without the target.
func (t *Table) X(section string) (dataframe.DataFrame, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return selectColumns(df, numericNames(df, t.targetLabel.Name)), nil
}

// Y returns the target column of the addressed table. Non-numeric targets are
// returned as integer codes; the stored column is never modified.
func (t *Table) Y(section string) (series.Series, error) {
	df, err := t.frameFor(section)
	if err != nil {
		return series.Series{}, err
	}
	s := df.Col(t.targetLabel.Name)
	if s.Err != nil {
		return series.Series{}, fmt.Errorf("target column: %w", s.Err)
	}
	if isNumeric(s) {
		return s.Copy(), nil
	}
	return codeSeries(s), nil
}

// DropSections removes the named sections. Nothing is removed when any name is unknown.
func (t *Table) DropSections(names []string) error {
	for _, n := range names {
		if _, ok := t.sections[n]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSection, n)
		}
	}
	drop := map[string]struct{}{}
	for _, n := range names {
		delete(t.sections, n)
		drop[n] = struct{}{}
	}
	kept := t.sectionNames[:0]
	for _, n := range t.sectionNames {
		if _, ok := drop[n]; !ok {
			kept = append(kept, n)
		}
	}
	t.sectionNames = kept
	return nil
}
