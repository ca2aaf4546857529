package learn

import (
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/biolearn-cli/internal/plot"
	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

func describe(model string, vals []float64) Summary {
	s := stats.Sorted(vals)
	out := Summary{
		Model: model,
		Count: len(s),
		Mean:  stat.Mean(s, nil),
		Min:   s[0],
		Q25:   stats.Quantile(s, 0.25),
		Q50:   stats.Quantile(s, 0.5),
		Q75:   stats.Quantile(s, 0.75),
		Max:   s[len(s)-1],
	}
	if len(s) > 1 {
		out.Std = stat.StdDev(s, nil)
	}
	return out
}

// PlotMetrics draws the median score of every model, one figure per metric, into
// dir as metrics_<metric>.png. It returns the written paths.
func PlotMetrics(dir string, ev *Evaluation) ([]string, error) {
	var paths []string
	for _, m := range ev.Metrics {
		sums := ev.Describe[m]
		labels := make([]string, len(sums))
		vals := make([]float64, len(sums))
		for i, s := range sums {
			labels[i], vals[i] = s.Model, s.Q50
		}
		p, err := plot.Bar(filepath.Join(dir, "metrics_"+m+".png"), labels, vals, plot.Options{Title: "Median " + m, YLabel: m})
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
