package dataset

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"

	"github.com/KaramelBytes/biolearn-cli/internal/impute"
	"github.com/KaramelBytes/biolearn-cli/internal/stats"
)

// Imputation methods.
const (
	ImputeKNN          = "knn"
	ImputeMean         = impute.Mean
	ImputeMedian       = impute.Median
	ImputeMostFrequent = impute.MostFrequent
	ImputeConstant     = impute.Constant
)

// DefaultNeighbors is the k used by KNN imputation when none is given.
const DefaultNeighbors = 5

// Outlier removal methods.
const (
	OutlierLimit = "limit_method"
	OutlierLog   = "log_transformation"
	OutlierMean  = "mean_value"
)

// ImputeMissing fills every missing cell of the numeric columns, a numeric target
// included, keeping column names and row order. Columns without any observed value are filled with 0.
func (t *Table) ImputeMissing(method string, neighbors int, section string) error {
	switch method {
	case ImputeKNN, ImputeMean, ImputeMedian, ImputeMostFrequent, ImputeConstant:
	default:
		return fmt.Errorf("%w: imputation %q", ErrUnsupportedMethod, method)
	}
	if neighbors <= 0 {
		neighbors = DefaultNeighbors
	}
	return t.apply(section, false, func(name string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
		cols := numericNames(df, "")
		if len(cols) == 0 || df.Nrow() == 0 {
			return df, nil
		}
		data := make([][]float64, len(cols))
		for j, c := range cols {
			data[j] = df.Col(c).Float()
		}
		rows := make([][]float64, df.Nrow())
		for i := range rows {
			rows[i] = make([]float64, len(cols))
			for j := range cols {
				rows[i][j] = data[j][i]
			}
		}
		var (
			res *impute.Result
			err error
		)
		if method == ImputeKNN {
			res, err = impute.KNN(rows, neighbors)
		} else {
			res, err = impute.Simple(rows, method, 0)
		}
		if err != nil {
			return df, err
		}
		for _, j := range res.Empty {
			t.log.Warn("column has no observed values; filled with 0", "section", name, "column", cols[j])
		}
		out := df
		for j, c := range cols {
			vals := make([]float64, len(rows))
			for i := range res.Rows {
				vals[i] = res.Rows[i][j]
			}
			out = replaceColumn(out, floatSeries(c, vals))
		}
		return out, nil
	})
}

// RemoveOutliers transforms every column flagged at construction:
//
//	limit_method        winsorize beyond the IQR limits, widened by one percentile point
//	log_transformation  natural log; non-positive values become missing
//	mean_value          replace values outside the IQR limits with the column mean
//
// Flagged columns that were dropped or are no longer numeric are skipped.
func (t *Table) RemoveOutliers(method string, useOriginal bool, section string) error {
	switch method {
	case "":
		return fmt.Errorf("%w: outlier method is required", ErrInvalidArgument)
	case OutlierLimit, OutlierLog, OutlierMean:
	default:
		return fmt.Errorf("%w: outlier removal %q", ErrUnsupportedMethod, method)
	}
	return t.apply(section, useOriginal, func(name string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
		out := df
		for _, l := range t.outlierCols {
			if t.hasSections && l.Section != name {
				continue
			}
			if !hasColumn(out, l.Name) {
				continue
			}
			s := out.Col(l.Name)
			if !isNumeric(s) {
				continue
			}
			vals := s.Float()
			var next []float64
			switch method {
			case OutlierLimit:
				next = winsorizeIQR(vals)
			case OutlierLog:
				next = make([]float64, len(vals))
				for i, v := range vals {
					next[i] = math.Log(v)
				}
			case OutlierMean:
				mean := stats.Mean(vals)
				mask := stats.OutlierMask(vals)
				next = append([]float64(nil), vals...)
				for i, m := range mask {
					if m {
						next[i] = mean
					}
				}
			}
			out = replaceColumn(out, floatSeries(l.Name, next))
		}
		return out, nil
	})
}

// winsorizeIQR clips the tails at the percentile ranks of the IQR limits. One extra
// percentile point is taken on each side so values sitting just inside the original
// limits do not become new outliers once the tail collapses.
func winsorizeIQR(vals []float64) []float64 {
	lo, hi, ok := stats.IQRLimits(vals)
	if !ok {
		return append([]float64(nil), vals...)
	}
	lower := (stats.PercentileOfScore(vals, lo) + 1) / 100
	upper := (100 - stats.PercentileOfScore(vals, hi) + 1) / 100
	return stats.Winsorize(vals, lower, upper)
}
