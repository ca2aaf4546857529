package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
)

func barChart(labels []string, values []float64, opt Options, w, h int) chart.BarChart {
	bars := make([]chart.Value, len(values))
	top := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			v = 0
		}
		bars[i] = chart.Value{Label: labels[i], Value: v}
		top = math.Max(top, v)
	}
	if top == 0 {
		top = 1
	}
	slot := (w - 120) / len(values)
	if slot < 6 {
		slot = 6
	}
	rot := 0.0
	if len(values) > 6 {
		rot = 90
	}
	return chart.BarChart{
		Title:      opt.Title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		BarWidth:   slot * 2 / 3,
		BarSpacing: slot / 3,
		XAxis:      chart.Style{TextRotationDegrees: rot},
		YAxis: chart.YAxis{
			Name:  opt.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
}

// Bar draws one bar per label.
func Bar(path string, labels []string, values []float64, opt Options) (string, error) {
	if len(values) == 0 || len(labels) != len(values) {
		return "", fmt.Errorf("%w: %d labels for %d bars", ErrNoData, len(labels), len(values))
	}
	w, h := opt.size(max(640, 40*len(values)+120), 480)
	bc := barChart(labels, values, opt, w, h)
	b, err := renderPNG(func(buf *bytes.Buffer) error { return bc.Render(chart.PNG, buf) })
	if err != nil {
		return "", err
	}
	return save(path, b)
}

func scatterChart(x, y []float64, groups []string, opt Options, w, h int) chart.Chart {
	var names []string
	idx := map[string][]int{}
	for i := range x {
		g := ""
		if groups != nil {
			g = groups[i]
		}
		if _, ok := idx[g]; !ok {
			names = append(names, g)
		}
		idx[g] = append(idx[g], i)
	}
	sort.Strings(names)
	var series []chart.Series
	for gi, g := range names {
		var xs, ys []float64
		for _, i := range idx[g] {
			if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
				continue
			}
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			xs, ys = append(xs, xs[0]), append(ys, ys[0])
		}
		series = append(series, chart.ContinuousSeries{Name: g, XValues: xs, YValues: ys, Style: dotStyle(Color(gi))})
	}
	ch := chart.Chart{
		Title:      opt.Title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 12, Right: 12, Bottom: 12}},
		XAxis:      chart.XAxis{Name: opt.XLabel, Range: span(x)},
		YAxis:      chart.YAxis{Name: opt.YLabel, Range: span(y)},
		Series:     series,
	}
	if groups != nil && len(names) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch
}

// Scatter draws y against x, one color per group. groups may be nil.
func Scatter(path string, x, y []float64, groups []string, opt Options) (string, error) {
	if len(x) == 0 || len(x) != len(y) || (groups != nil && len(groups) != len(x)) {
		return "", fmt.Errorf("%w: mismatched scatter inputs", ErrNoData)
	}
	w, h := opt.size(800, 600)
	ch := scatterChart(x, y, groups, opt, w, h)
	if len(ch.Series) == 0 {
		return "", fmt.Errorf("%w: no complete points", ErrNoData)
	}
	b, err := renderPNG(func(buf *bytes.Buffer) error { return ch.Render(chart.PNG, buf) })
	if err != nil {
		return "", err
	}
	return save(path, b)
}

// Pairwise draws a k-by-k grid of panels: histograms on the diagonal and
// group-colored scatter plots elsewhere.
func Pairwise(path string, names []string, cols [][]float64, groups []string, opt Options) (string, error) {
	k := len(cols)
	if k == 0 || len(names) != k {
		return "", fmt.Errorf("%w: no columns", ErrNoData)
	}
	panel := 220
	if opt.Width > 0 {
		panel = max(120, opt.Width/k)
	}
	canvas := image.NewRGBA(image.Rect(0, 0, panel*k, panel*k+titleBand(opt.Title)))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawTitle(canvas, opt.Title)
	off := titleBand(opt.Title)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			var (
				b   []byte
				err error
			)
			if r == c {
				labels, counts := histogram(cols[r], 10)
				bc := barChart(labels, counts, Options{Title: names[r]}, panel, panel)
				bc.XAxis = chart.Style{Hidden: true}
				b, err = renderPNG(func(buf *bytes.Buffer) error { return bc.Render(chart.PNG, buf) })
			} else {
				ch := scatterChart(cols[c], cols[r], groups, Options{XLabel: names[c], YLabel: names[r]}, panel, panel)
				ch.Elements = nil
				if len(ch.Series) == 0 {
					continue
				}
				b, err = renderPNG(func(buf *bytes.Buffer) error { return ch.Render(chart.PNG, buf) })
			}
			if err != nil {
				return "", fmt.Errorf("panel %s/%s: %w", names[r], names[c], err)
			}
			img, err := decode(b)
			if err != nil {
				return "", err
			}
			at := image.Pt(c*panel, r*panel+off)
			draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(img.Bounds().Size())}, img, img.Bounds().Min, draw.Src)
		}
	}
	out, err := encode(canvas)
	if err != nil {
		return "", err
	}
	return save(path, out)
}

// histogram bins the finite values into n equal-width bins.
func histogram(vals []float64, n int) ([]string, []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	labels := make([]string, n)
	counts := make([]float64, n)
	if math.IsInf(lo, 1) {
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
		return labels, counts
	}
	width := (hi - lo) / float64(n)
	for i := range labels {
		labels[i] = strconv.FormatFloat(lo+width*(float64(i)+0.5), 'g', 3, 64)
	}
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		b := n - 1
		if width > 0 {
			b = min(int((v-lo)/width), n-1)
		}
		counts[b]++
	}
	return labels, counts
}

// Segment is one polyline of a line drawing, colored by palette index Group.
type Segment struct {
	X, Y  []float64
	Group int
}

// Tick labels a position on the x axis.
type Tick struct {
	At    float64
	Label string
}

// Lines draws unlabeled polylines with optional x tick labels. It backs dendrogram
// output.
func Lines(path string, segs []Segment, ticks []Tick, opt Options) (string, error) {
	if len(segs) == 0 {
		return "", fmt.Errorf("%w: no segments", ErrNoData)
	}
	var xs, ys [][]float64
	series := make([]chart.Series, 0, len(segs))
	for _, s := range segs {
		xs, ys = append(xs, s.X), append(ys, s.Y)
		style := chart.Style{StrokeColor: Color(s.Group), StrokeWidth: 1.5}
		series = append(series, chart.ContinuousSeries{XValues: s.X, YValues: s.Y, Style: style})
	}
	xa := chart.XAxis{Name: opt.XLabel, Range: span(xs...)}
	if len(ticks) > 0 {
		xa.Ticks = make([]chart.Tick, len(ticks))
		for i, t := range ticks {
			xa.Ticks[i] = chart.Tick{Value: t.At, Label: t.Label}
		}
		if len(ticks) > 8 {
			xa.Style = chart.Style{TextRotationDegrees: 90}
		}
	}
	yr := span(ys...)
	yr.Min = math.Min(yr.Min, 0)
	w, h := opt.size(max(800, 18*len(ticks)), 600)
	ch := chart.Chart{
		Title:      opt.Title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 12, Right: 12, Bottom: 12}},
		XAxis:      xa,
		YAxis:      chart.YAxis{Name: opt.YLabel, Range: yr},
		Series:     series,
	}
	b, err := renderPNG(func(buf *bytes.Buffer) error { return ch.Render(chart.PNG, buf) })
	if err != nil {
		return "", err
	}
	return save(path, b)
}
