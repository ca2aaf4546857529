package learn

import (
	"errors"
	"fmt"
	"sort"
)

// Metric names.
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Metrics lists the available metric names.
func Metrics() []string {
	return []string{MetricAccuracy, MetricPrecision, MetricRecall, MetricF1}
}

// Score computes metric over truth and predictions. Precision, recall and f1 are
// macro averages over the classes present in either slice; a class never predicted
// has precision 0.
func Score(metric string, truth, pred []int) (float64, error) {
	if len(truth) != len(pred) || len(truth) == 0 {
		return 0, fmt.Errorf("%w: %d labels for %d predictions", ErrInput, len(truth), len(pred))
	}
	if metric == MetricAccuracy {
		ok := 0
		for i := range truth {
			if truth[i] == pred[i] {
				ok++
			}
		}
		return float64(ok) / float64(len(truth)), nil
	}
	switch metric {
	case MetricPrecision, MetricRecall, MetricF1:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	tp, fp, fn := map[int]float64{}, map[int]float64{}, map[int]float64{}
	seen := map[int]struct{}{}
	for i := range truth {
		seen[truth[i]] = struct{}{}
		seen[pred[i]] = struct{}{}
		if truth[i] == pred[i] {
			tp[truth[i]]++
			continue
		}
		fp[pred[i]]++
		fn[truth[i]]++
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	sum := 0.0
	for _, c := range classes {
		p := ratio(tp[c], tp[c]+fp[c])
		r := ratio(tp[c], tp[c]+fn[c])
		switch metric {
		case MetricPrecision:
			sum += p
		case MetricRecall:
			sum += r
		default:
			sum += ratio(2*p*r, p+r)
		}
	}
	return sum / float64(len(classes)), nil
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
