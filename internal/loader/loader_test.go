package loader

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadCSV(t *testing.T) {
	p := writeFile(t, "patients.csv", "age,weight,diagnosis\n31,70.5,sick\n42,NA,healthy\n55,,sick\n\n60,81,null\n")
	src, err := LoadFile(p, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, src.Labels)
	assert.Equal(t, []string{"age", "weight", "diagnosis"}, src.Frame.Names())
	assert.Equal(t, 4, src.Frame.Nrow())
	assert.Equal(t, series.Int, src.Frame.Col("age").Type())
	w := src.Frame.Col("weight").Float()
	assert.Equal(t, 70.5, w[0])
	assert.True(t, math.IsNaN(w[1]))
	assert.True(t, math.IsNaN(w[2]))
	assert.True(t, src.Frame.Col("diagnosis").Elem(3).IsNA())
}

func TestLoadTSVRagged(t *testing.T) {
	p := writeFile(t, "genes.tsv", "gene\tvalue\textra\nA\t1\nB\t2\tx\n")
	src, err := LoadFile(p, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gene", "value", "extra"}, src.Frame.Names())
	assert.True(t, src.Frame.Col("extra").Elem(0).IsNA())
	assert.Equal(t, "x", src.Frame.Col("extra").Elem(1).String())
}

func TestTwoLevelHeader(t *testing.T) {
	body := strings.Join([]string{
		"Proteomics,,Metabolomics,,",
		"P1,P2,M1,M2,Outcome",
		"1,2,0.1,0.2,yes",
		"3,4,0.3,0.4,no",
	}, "\n")
	src, err := Read(strings.NewReader(body), Options{HeaderSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Label{
		{Section: "Proteomics", Name: "P1"},
		{Section: "Proteomics", Name: "P2"},
		{Section: "Metabolomics", Name: "M1"},
		{Section: "Metabolomics", Name: "M2"},
		{Section: "Metabolomics", Name: "Outcome"},
	}, src.Labels)
	assert.Equal(t, "Proteomics/P1", src.Frame.Names()[0])

	tb, err := dataset.New(src, "outcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"proteomics", "metabolomics"}, tb.Sections())
	x, err := tb.X("proteomics")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, x.Names())
}

func TestBlankFieldTakesSection(t *testing.T) {
	body := "Sample,Genes,\n,G1,G2\ns1,1,2\ns2,3,4\n"
	src, err := Read(strings.NewReader(body), Options{HeaderSize: 2})
	require.NoError(t, err)
	assert.Equal(t, dataset.Label{Section: "Sample", Name: "Sample"}, src.Labels[0])
	assert.Equal(t, dataset.Label{Section: "Genes", Name: "G2"}, src.Labels[2])
}

func TestFromRowsErrors(t *testing.T) {
	_, err := FromRows([][]string{{"a"}, {"1"}}, Options{HeaderSize: 3})
	assert.ErrorIs(t, err, ErrHeaderSize)
	_, err = FromRows([][]string{{"a", "b"}}, Options{})
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = FromRows([][]string{{"a", "b"}, {"x", "y"}}, Options{HeaderSize: 2})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDuplicateHeaders(t *testing.T) {
	src, err := FromRows([][]string{{"a", "a", ""}, {"1", "2", "3"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a_2", "column_3"}, src.Frame.Names())
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "Raw"))
	_, err := f.NewSheet("Clean")
	require.NoError(t, err)
	rows := [][]any{{"age", "class"}, {30, "a"}, {41, "b"}}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Clean", cell, v))
		}
	}
	require.NoError(t, f.SetCellValue("Raw", "A1", "ignored"))
	require.NoError(t, f.SetCellValue("Raw", "A2", "x"))
	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(p))

	src, err := LoadFile(p, Options{Sheet: "clean"})
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "class"}, src.Frame.Names())
	assert.Equal(t, []float64{30, 41}, src.Frame.Col("age").Float())

	src, err = LoadFile(p, Options{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, src.Frame.Nrow())

	_, err = LoadFile(p, Options{Sheet: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sheets: Raw, Clean")
	_, err = LoadFile(p, Options{SheetIndex: 5})
	assert.Error(t, err)
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.tsv":
			_, _ = w.Write([]byte("a\tb\n1\t2\n3\t4\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := LoadURL(context.Background(), srv.URL+"/data.tsv", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, src.Frame.Names())
	assert.Equal(t, 2, src.Frame.Nrow())

	_, err = LoadURL(context.Background(), srv.URL+"/missing.csv", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = LoadURL(context.Background(), "ftp://example.org/x.csv", DefaultOptions())
	assert.Error(t, err)
}
