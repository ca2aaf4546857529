package cluster

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/biolearn-cli/internal/plot"
)

// Link is one U-shaped dendrogram connector in plot coordinates.
type Link struct {
	X, Y    [4]float64
	Cluster int
}

// Layout places leaf i of the dendrogram order at x = 5 + 10*i and every merge at
// the midpoint of its children, at the merge distance. Links whose subtree stays
// under threshold carry that subtree's Cut label; others carry 0.
func (t *Tree) Layout(threshold float64) ([]Link, []int) {
	leaves := t.Leaves()
	x := make([]float64, t.N+len(t.Merges))
	y := make([]float64, len(x))
	for i, leaf := range leaves {
		x[leaf] = 5 + 10*float64(i)
	}
	labels := t.Cut(threshold)
	h := t.heights()
	links := make([]Link, len(t.Merges))
	for i, m := range t.Merges {
		node := t.N + i
		x[node] = (x[m.A] + x[m.B]) / 2
		y[node] = m.Dist
		l := Link{
			X: [4]float64{x[m.A], x[m.A], x[m.B], x[m.B]},
			Y: [4]float64{y[m.A], m.Dist, m.Dist, y[m.B]},
		}
		if h[node] <= threshold {
			l.Cluster = labels[t.firstLeaf(node)]
		}
		links[i] = l
	}
	return links, leaves
}

func (t *Tree) firstLeaf(node int) int {
	for node >= t.N {
		node, _ = t.children(node)
	}
	return node
}

// FileName is the conventional output name for a clustering figure of kind
// "dendogram" or "heatmap".
func FileName(kind, metric, method string) string {
	return fmt.Sprintf("%s_%s_%s.png", kind, metric, method)
}

// PlotDendrogram draws the tree with observation labels under the leaves and writes
// it into dir. It returns the written path.
func PlotDendrogram(dir string, t *Tree, labels []string, threshold float64) (string, error) {
	if len(labels) != t.N {
		return "", fmt.Errorf("%w: %d labels for %d observations", ErrInput, len(labels), t.N)
	}
	links, leaves := t.Layout(threshold)
	segs := make([]plot.Segment, len(links))
	for i, l := range links {
		segs[i] = plot.Segment{X: l.X[:], Y: l.Y[:], Group: l.Cluster}
	}
	ticks := make([]plot.Tick, len(leaves))
	for i, leaf := range leaves {
		ticks[i] = plot.Tick{At: 5 + 10*float64(i), Label: labels[leaf]}
	}
	opt := plot.Options{Title: "Dendrogram - " + t.Method, YLabel: t.Metric}
	return plot.Lines(filepath.Join(dir, FileName("dendogram", t.Metric, t.Method)), segs, ticks, opt)
}

// PlotHeatmap clusters the columns of x (features), reorders them by the resulting
// dendrogram and draws the samples in their original order with a class strip.
func PlotHeatmap(dir string, x [][]float64, features, samples, classes []string, method, metric string) (string, error) {
	if len(x) == 0 || len(features) == 0 {
		return "", fmt.Errorf("%w: empty matrix", ErrInput)
	}
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	if len(features) > 1 {
		t, err := Linkage(transpose(x, len(features)), method, metric)
		if err != nil {
			return "", err
		}
		order = t.Leaves()
	}
	cols := make([]string, len(order))
	for j, o := range order {
		cols[j] = features[o]
	}
	vals := make([][]float64, len(x))
	for i, row := range x {
		vals[i] = make([]float64, len(order))
		for j, o := range order {
			vals[i][j] = row[o]
		}
	}
	g := plot.Grid{Rows: samples, Cols: cols, Values: vals, RowGroups: classes}
	opt := plot.Options{Title: "Dendrogram - " + method}
	return plot.Heatmap(filepath.Join(dir, FileName("heatmap", metric, method)), g, opt)
}

func transpose(x [][]float64, cols int) [][]float64 {
	out := make([][]float64, cols)
	for j := range out {
		out[j] = make([]float64, len(x))
		for i := range x {
			out[j][i] = x[i][j]
		}
	}
	return out
}
