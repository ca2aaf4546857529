package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
	"github.com/KaramelBytes/biolearn-cli/internal/session"
)

var (
	clDrop         []string
	clDropSections []string
	clDates        []string
	clEncodeDates  []string
	clConvert      bool
	clDedupe       bool
	clDropCols     float64
	clDropRows     float64
	clImpute       string
	clNeighbors    int
	clOutliers     string
	clEncode       []string
	clParallel     bool
	clName         string
)

// parseDates reads name[=layout] pairs.
func parseDates(vals []string) []dataset.DateColumn {
	out := make([]dataset.DateColumn, 0, len(vals))
	for _, v := range vals {
		name, layout, _ := strings.Cut(v, "=")
		out = append(out, dataset.DateColumn{Name: name, Layout: layout})
	}
	return out
}

// cleanPlan merges flags over the configured cleaning defaults.
func cleanPlan(cmd *cobra.Command) session.CleanPlan {
	c := settings()
	f := cmd.Flags()
	p := session.CleanPlan{
		Section:      dsFlags.section,
		DropSections: clDropSections,
		Columns: dataset.CleanOptions{
			Drop:       clDrop,
			Dates:      parseDates(clDates),
			TryConvert: clConvert,
		},
		Dedupe:          clDedupe,
		DropColsPercent: c.DropColsPercent,
		DropRowsPercent: c.DropRowsPercent,
		Impute:          c.ImputeMethod,
		Neighbors:       c.ImputeNeighbors,
		Outliers:        c.OutlierMethod,
		Encode:          clEncode,
		Parallel:        clParallel,
		EncodeDates:     parseDates(clEncodeDates),
	}
	if f.Changed("drop-cols") {
		p.DropColsPercent = clDropCols
	}
	if f.Changed("drop-rows") {
		p.DropRowsPercent = clDropRows
	}
	if f.Changed("impute") {
		p.Impute = clImpute
	}
	if p.Impute == "none" {
		p.Impute = ""
	}
	if f.Changed("neighbors") {
		p.Neighbors = clNeighbors
	}
	if f.Changed("outliers") {
		p.Outliers = clOutliers
	}
	if p.Outliers == "none" {
		p.Outliers = ""
	}
	return p
}

var cleanCmd = &cobra.Command{
	Use:   "clean [file]",
	Short: "Run the cleaning pipeline and write the cleaned table(s) as CSV",
	Long: `Steps run in this order, each only when requested: drop sections, drop or convert
columns, remove duplicate rows, drop columns then rows above a missing percent, impute,
treat outliers, encode categorical columns, encode date columns. Imputation and outlier
treatment default to the configured methods; pass "none" to skip them.`,
	Args: datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		rep, err := s.Clean(cmd.Context(), cleanPlan(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(rep.DroppedColumns) > 0 {
			fmt.Fprintf(out, "Dropped columns: %s\n", strings.Join(rep.DroppedColumns, ", "))
		}
		if len(rep.DroppedRows) > 0 {
			fmt.Fprintf(out, "Dropped rows: %s\n", strings.Join(rep.DroppedRows, ", "))
		}
		paths, err := s.Export(outputDir(), clName)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "✓ Wrote %s\n", p)
		}
		return nil
	},
}

func init() {
	addDatasetFlags(cleanCmd)
	f := cleanCmd.Flags()
	f.StringSliceVar(&clDrop, "drop", nil, "columns to remove")
	f.StringSliceVar(&clDropSections, "drop-section", nil, "sections to remove")
	f.StringSliceVar(&clDates, "date", nil, "columns to parse as dates, as name or name=layout (Go time layout)")
	f.StringSliceVar(&clEncodeDates, "encode-date", nil, "date columns to replace with days since 1970-01-01, as name or name=layout")
	f.BoolVar(&clConvert, "convert", false, "convert text columns holding only numbers to floats")
	f.BoolVar(&clDedupe, "dedupe", false, "remove duplicate rows")
	f.Float64Var(&clDropCols, "drop-cols", 100, "drop columns with more than this percent missing")
	f.Float64Var(&clDropRows, "drop-rows", 100, "drop rows with more than this percent missing")
	f.StringVar(&clImpute, "impute", "", "imputation: knn|mean|median|most_frequent|constant|none (default from config)")
	f.IntVar(&clNeighbors, "neighbors", 0, "neighbors for knn imputation (default from config)")
	f.StringVar(&clOutliers, "outliers", "", "outlier treatment: limit_method|log_transformation|mean_value|none (default from config)")
	f.StringSliceVar(&clEncode, "encode", nil, "categorical columns to integer-encode")
	f.BoolVar(&clParallel, "parallel", false, "compute categorical encodings concurrently")
	f.StringVar(&clName, "name", "cleaned", "output file stem")
	rootCmd.AddCommand(cleanCmd)
}
