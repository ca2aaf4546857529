package dataset

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ColumnRef addresses one column of one active table. Section is empty when flat.
type ColumnRef struct {
	Section string
	Name    string
}

func (r ColumnRef) String() string { return Label(r).key() }

// Encoded is a replacement column computed for ref.
type Encoded struct {
	Ref    ColumnRef
	Series series.Series
}

// Resolve maps a simple column name to the active column(s) it designates. In the
// Sectioned state the target resolves to its copy in every section; any other name
// resolves to the first section, in order, that holds it.
func (t *Table) Resolve(col string) ([]ColumnRef, error) {
	name := NormalizeName(col)
	if !t.hasSections {
		if !hasColumn(t.working, name) {
			return nil, &ColumnError{Column: col}
		}
		return []ColumnRef{{Name: name}}, nil
	}
	var refs []ColumnRef
	for _, sec := range t.sectionNames {
		if !hasColumn(t.sections[sec], name) {
			continue
		}
		refs = append(refs, ColumnRef{Section: sec, Name: name})
		if name != t.targetLabel.Name {
			break
		}
	}
	if len(refs) == 0 {
		return nil, &ColumnError{Column: col}
	}
	return refs, nil
}

func (t *Table) active(ref ColumnRef) (dataframe.DataFrame, bool) {
	if !t.hasSections {
		return t.working, ref.Section == ""
	}
	df, ok := t.sections[ref.Section]
	return df, ok
}

// ComputeEncodings resolves cols and returns their integer-coded replacements without
// touching the table. It only reads, so calls on disjoint columns may run concurrently.
func (t *Table) ComputeEncodings(cols []string) ([]Encoded, error) {
	var out []Encoded
	for _, c := range cols {
		refs, err := t.Resolve(c)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			df, _ := t.active(r)
			out = append(out, Encoded{Ref: r, Series: codeSeries(df.Col(r.Name))})
		}
	}
	return out, nil
}

// ApplyEncodings stores previously computed encodings. Every ref is checked before
// any column is replaced.
func (t *Table) ApplyEncodings(enc []Encoded) error {
	for _, e := range enc {
		df, ok := t.active(e.Ref)
		if !ok || !hasColumn(df, e.Ref.Name) {
			return &ColumnError{Column: e.Ref.Name, Section: e.Ref.Section}
		}
		if e.Series.Len() != df.Nrow() {
			return fmt.Errorf("%w: encoding for %s has %d rows, table has %d", ErrInvalidArgument, e.Ref, e.Series.Len(), df.Nrow())
		}
	}
	next := map[string]dataframe.DataFrame{}
	for _, e := range enc {
		df, ok := next[e.Ref.Section]
		if !ok {
			df, _ = t.active(e.Ref)
		}
		s := e.Series.Copy()
		s.Name = e.Ref.Name
		df = replaceColumn(df, s)
		if df.Err != nil {
			return fmt.Errorf("encode %s: %w", e.Ref, df.Err)
		}
		next[e.Ref.Section] = df
	}
	for sec, df := range next {
		t.commit(sec, df)
	}
	return nil
}

// EncodeCategorical replaces the listed columns with integer codes of their sorted
// distinct values.
func (t *Table) EncodeCategorical(cols []string) error {
	enc, err := t.ComputeEncodings(cols)
	if err != nil {
		return err
	}
	return t.ApplyEncodings(enc)
}
