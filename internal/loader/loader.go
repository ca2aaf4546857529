// Package loader reads delimited text and .xlsx workbooks into dataset sources,
// from disk or over HTTP. One or two header rows are supported; with two, the first
// row names the sections.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
)

// DefaultNaNValues are the cell spellings read as missing.
var DefaultNaNValues = []string{"", "NA", "NaN", "null", "<nil>"}

var (
	// ErrEmpty reports input without data rows.
	ErrEmpty = errors.New("no data rows")
	// ErrHeaderSize reports a header size other than 1 or 2.
	ErrHeaderSize = errors.New("header size must be 1 or 2")
)

// Options controls parsing.
type Options struct {
	// Delimiter for text input. Zero picks tab for .tsv/.tab and comma otherwise.
	Delimiter rune
	// HeaderSize is the number of header rows, 1 or 2.
	HeaderSize int
	// Sheet selects a workbook sheet by name (case-insensitive).
	Sheet string
	// SheetIndex selects a sheet by 1-based position when Sheet is empty.
	SheetIndex int
	// NaNValues are read as missing cells.
	NaNValues []string
	// HTTPTimeout bounds LoadURL. Zero means no timeout beyond ctx.
	HTTPTimeout time.Duration
	// Client overrides the HTTP client used by LoadURL.
	Client *http.Client
}

// DefaultOptions returns a one-row header, comma-or-tab sniffing and a 60s timeout.
func DefaultOptions() Options {
	return Options{
		HeaderSize:  1,
		NaNValues:   DefaultNaNValues,
		HTTPTimeout: 60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.HeaderSize == 0 {
		o.HeaderSize = 1
	}
	if o.NaNValues == nil {
		o.NaNValues = DefaultNaNValues
	}
	return o
}

// sniffDelimiter picks the delimiter from the file name.
func sniffDelimiter(name string) rune {
	n := strings.ToLower(name)
	if strings.HasSuffix(n, ".tsv") || strings.HasSuffix(n, ".tab") {
		return '\t'
	}
	return ','
}

// LoadFile reads path. .xlsx files go through excelize, anything else is parsed as
// delimited text.
func LoadFile(path string, opt Options) (dataset.Source, error) {
	opt = opt.withDefaults()
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := readXLSX(path, opt)
		if err != nil {
			return dataset.Source{}, err
		}
		return FromRows(rows, opt)
	}
	f, err := os.Open(path)
	if err != nil {
		return dataset.Source{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return Read(f, opt)
}

// LoadURL downloads delimited text from rawURL.
func LoadURL(ctx context.Context, rawURL string, opt Options) (dataset.Source, error) {
	opt = opt.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return dataset.Source{}, fmt.Errorf("invalid dataset url %q", rawURL)
	}
	if opt.HTTPTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.HTTPTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return dataset.Source{}, fmt.Errorf("build request: %w", err)
	}
	client := opt.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return dataset.Source{}, fmt.Errorf("download dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dataset.Source{}, fmt.Errorf("download dataset: status %d", resp.StatusCode)
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(u.Path)
	}
	return Read(resp.Body, opt)
}

// Read parses delimited text from r.
func Read(r io.Reader, opt Options) (dataset.Source, error) {
	opt = opt.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return dataset.Source{}, fmt.Errorf("read delimited: %w", err)
	}
	return FromRows(rows, opt)
}

func readXLSX(path string, opt Options) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	sheet := ""
	if opt.Sheet != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				opt.Sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range: workbook has %d sheets", idx, len(sheets))
		}
		sheet = sheets[idx-1]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// FromRows builds a source from header and data rows. Ragged rows are padded with
// missing cells. With two header rows a blank section label repeats the one to its
// left and a blank field label takes its section's name.
func FromRows(rows [][]string, opt Options) (dataset.Source, error) {
	opt = opt.withDefaults()
	if opt.HeaderSize != 1 && opt.HeaderSize != 2 {
		return dataset.Source{}, fmt.Errorf("%w: got %d", ErrHeaderSize, opt.HeaderSize)
	}
	rows = dropBlank(rows)
	if len(rows) <= opt.HeaderSize {
		return dataset.Source{}, ErrEmpty
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	head := make([][]string, opt.HeaderSize)
	for i := range head {
		head[i] = pad(rows[i], width)
	}

	var labels []dataset.Label
	keys := make([]string, width)
	if opt.HeaderSize == 2 {
		labels = make([]dataset.Label, width)
		section := ""
		for c := 0; c < width; c++ {
			if s := strings.TrimSpace(head[0][c]); s != "" {
				section = s
			}
			name := strings.TrimSpace(head[1][c])
			if name == "" {
				name = section
			}
			labels[c] = dataset.Label{Section: section, Name: name}
			keys[c] = labels[c].String()
		}
	} else {
		for c := 0; c < width; c++ {
			keys[c] = strings.TrimSpace(head[0][c])
		}
	}
	keys = unique(keys)

	records := make([][]string, 0, len(rows)-opt.HeaderSize+1)
	records = append(records, keys)
	for _, r := range rows[opt.HeaderSize:] {
		rec := pad(r, width)
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
		records = append(records, rec)
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(opt.NaNValues),
	)
	if df.Err != nil {
		return dataset.Source{}, fmt.Errorf("build frame: %w", df.Err)
	}
	return dataset.Source{Frame: df, Labels: labels}, nil
}

func pad(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}

func dropBlank(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		for _, v := range r {
			if strings.TrimSpace(v) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// unique suffixes repeated or empty keys so the frame has distinct column names.
func unique(keys []string) []string {
	used := make(map[string]struct{}, len(keys))
	out := make([]string, len(keys))
	for i, k := range keys {
		if k == "" {
			k = fmt.Sprintf("column_%d", i+1)
		}
		base := k
		for n := 2; ; n++ {
			if _, dup := used[k]; !dup {
				break
			}
			k = fmt.Sprintf("%s_%d", base, n)
		}
		used[k] = struct{}{}
		out[i] = k
	}
	return out
}
