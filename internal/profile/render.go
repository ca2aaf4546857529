package profile

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/biolearn-cli/internal/utils"
)

// CorrPair is one off-diagonal correlation.
type CorrPair struct {
	A, B string
	R    float64
}

// TopPairs lists the strongest correlations by |r|, at most limit of them.
func (c *CorrMatrix) TopPairs(limit int) []CorrPair {
	if c == nil {
		return nil
	}
	var pairs []CorrPair
	n := len(c.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, CorrPair{A: c.Columns[i], B: c.Columns[j], R: c.Values[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// MissingPercent is the share of missing cells of the column.
func (c ColumnSummary) MissingPercent() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Missing) * 100 / float64(total)
}

// Detail is the one-line kind-specific description used by both renderers.
func (c ColumnSummary) Detail() string {
	var b strings.Builder
	switch c.Kind {
	case "numeric":
		b.WriteString(fmt.Sprintf("min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		if c.IQROutliers > 0 {
			b.WriteString(fmt.Sprintf("; %d beyond IQR limits", c.IQROutliers))
		}
		if c.OutlierThreshold > 0 {
			b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			if c.OutliersMaxAbsZ > 0 {
				b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
			}
		}
	case "categorical":
		b.WriteString("top: ")
		for i, kv := range c.TopValues {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
		}
		if c.Unique > len(c.TopValues) {
			b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
		}
	case "text":
		if len(c.ExampleTexts) > 0 {
			b.WriteString("e.g., ")
			for i, ex := range c.ExampleTexts {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(ex))
			}
		}
	}
	return b.String()
}

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Table: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, c.MissingPercent()))
		if d := c.Detail(); d != "" {
			b.WriteString(" — ")
			b.WriteString(d)
		}
		b.WriteString("\n")
	}
	if len(r.Classes) > 0 {
		b.WriteString("\n[CLASS BALANCE]\n")
		total := 0
		for _, c := range r.Classes {
			total += c.Count
		}
		for _, c := range r.Classes {
			b.WriteString(fmt.Sprintf("- %s: %d (%.2f%%)\n", safeVal(c.Value), c.Count, float64(c.Count)*100/float64(total)))
		}
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[PER-CLASS SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
	}
	if pairs := r.Corr.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(cell(row, i)))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	v := row[i]
	if len(v) > 80 {
		v = v[:77] + "..."
	}
	return v
}

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"corr":  func(v float64) string { return fmt.Sprintf("%.3f", v) },
	"shade": corrShade,
	"pairs": func(c *CorrMatrix) []CorrPair { return c.TopPairs(10) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;margin:2em;color:#222}
table{border-collapse:collapse;margin:1em 0}
th,td{border:1px solid #ccc;padding:4px 8px;text-align:left;font-size:13px}
th{background:#f3f3f3}
.warn{color:#a60}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{if .Name}}Table <b>{{.Name}}</b>: {{end}}{{.Rows}} rows, {{len .Cols}} columns.</p>
<h2>Variables</h2>
<table>
<tr><th>Column</th><th>Kind</th><th>Non-null</th><th>Missing</th><th>Details</th></tr>
{{range .Cols}}<tr><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.NonNull}}</td><td>{{pct .MissingPercent}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
{{if .Classes}}<h2>Class balance</h2>
<table><tr><th>Class</th><th>Count</th></tr>
{{range .Classes}}<tr><td>{{.Value}}</td><td>{{.Count}}</td></tr>
{{end}}</table>{{end}}
{{if .Corr}}<h2>Correlations</h2>
<table><tr><th></th>{{range .Corr.Columns}}<th>{{.}}</th>{{end}}</tr>
{{range $i, $row := .Corr.Values}}<tr><th>{{index $.Corr.Columns $i}}</th>{{range $row}}<td style="background:{{shade .}}">{{corr .}}</td>{{end}}</tr>
{{end}}</table>
<ul>{{range pairs .Corr}}<li>{{.A}} ~ {{.B}}: r={{corr .R}}</li>{{end}}</ul>{{end}}
{{if .Samples}}<h2>Head</h2>
<table><tr>{{range .Cols}}<th>{{.Name}}</th>{{end}}</tr>
{{range .Samples}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>{{end}}
{{if .Warnings}}<h2>Notes</h2><ul>{{range .Warnings}}<li class="warn">{{.}}</li>{{end}}</ul>{{end}}
</body>
</html>
`))

// corrShade maps r in [-1,1] to a blue-white-red background.
func corrShade(r float64) template.CSS {
	if math.IsNaN(r) {
		return "#fff"
	}
	a := math.Min(math.Abs(r), 1)
	c := int(255 - 155*a)
	if r >= 0 {
		return template.CSS(fmt.Sprintf("rgb(255,%d,%d)", c, c))
	}
	return template.CSS(fmt.Sprintf("rgb(%d,%d,255)", c, c))
}

// HTML renders the report as a standalone page.
func (r *Report) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the report to path, appending ".html" when missing. It returns
// the written path.
func (r *Report) WriteHTML(path string) (string, error) {
	b, err := r.HTML()
	if err != nil {
		return "", err
	}
	path = utils.WithExt(path, ".html")
	if err := utils.SafeWriteFile(path, b); err != nil {
		return "", err
	}
	return path, nil
}
