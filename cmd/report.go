package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
)

var (
	profMarkdown bool

	missAxis string
	missPlot string

	plotValues bool
	plotUpper  bool
	plotCols   []string
)

var profileCmd = &cobra.Command{
	Use:   "profile [file]",
	Short: "Write a profile report (HTML or Markdown) per table",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		t, _ := s.Table()
		dir := outputDir()
		ext := ".html"
		if profMarkdown {
			ext = ".md"
		}
		return s.ForEachSection(dsFlags.section, func(sec string) error {
			p, err := t.ProfileReport(sec, sectionPath(dir, "profile", sec, ext))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", p)
			return nil
		})
	},
}

func parseAxis(s string) (dataset.Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "columns", "column", "cols":
		return dataset.Columns, nil
	case "rows", "row", "index":
		return dataset.Rows, nil
	}
	return dataset.Columns, fmt.Errorf("unsupported --axis: %s (use columns|rows)", s)
}

var missingCmd = &cobra.Command{
	Use:   "missing [file]",
	Short: "Show missing values per column or row",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(missAxis)
		if err != nil {
			return err
		}
		if missPlot != "" && missPlot != dataset.MissingPercent && missPlot != dataset.MissingCountOf {
			return fmt.Errorf("unsupported --plot: %s (use percent|count)", missPlot)
		}
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		t, _ := s.Table()
		out := cmd.OutOrStdout()
		return s.ForEachSection(dsFlags.section, func(sec string) error {
			counts, err := t.MissingSummary(axis, sec)
			if err != nil {
				return err
			}
			if sec != "" {
				fmt.Fprintf(out, "## %s\n", sec)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\tmissing\tpercent\n", axis)
			for _, mc := range counts {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\n", mc.Label, mc.Count, mc.Percent)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if missPlot == "" {
				return nil
			}
			p, err := t.PlotMissingness(axis, missPlot, sec, sectionPath(outputDir(), "missing_"+axis.String(), sec, ".png"))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote figure to %s\n", p)
			return nil
		})
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Draw exploratory figures",
}

var plotHeatmapCmd = &cobra.Command{
	Use:   "heatmap [file]",
	Short: "Correlation heatmap of the numeric features",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		t, _ := s.Table()
		return s.ForEachFeatureSection(dsFlags.section, func(sec string) error {
			p, err := t.PlotCorrelationHeatmap(sec, plotValues, plotUpper, sectionPath(outputDir(), "correlation", sec, ".png"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote figure to %s\n", p)
			return nil
		})
	},
}

var plotPairCmd = &cobra.Command{
	Use:   "pairplot [file]",
	Short: "Scatter matrix of numeric features colored by class",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		t, _ := s.Table()
		return s.ForEachFeatureSection(dsFlags.section, func(sec string) error {
			p, err := t.PlotPairwise(plotCols, sec, sectionPath(outputDir(), "pairplot", sec, ".png"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote figure to %s\n", p)
			return nil
		})
	},
}

func init() {
	addDatasetFlags(profileCmd)
	profileCmd.Flags().BoolVar(&profMarkdown, "markdown", false, "write Markdown instead of HTML")
	rootCmd.AddCommand(profileCmd)

	addDatasetFlags(missingCmd)
	missingCmd.Flags().StringVar(&missAxis, "axis", "columns", "count missing values per columns or rows")
	missingCmd.Flags().StringVar(&missPlot, "plot", "", "also draw a bar chart of the missing percent or count")
	rootCmd.AddCommand(missingCmd)

	addDatasetFlags(plotHeatmapCmd)
	plotHeatmapCmd.Flags().BoolVar(&plotValues, "values", false, "print the coefficient in every cell")
	plotHeatmapCmd.Flags().BoolVar(&plotUpper, "hide-upper", false, "hide the repeated upper triangle")
	addDatasetFlags(plotPairCmd)
	plotPairCmd.Flags().StringSliceVar(&plotCols, "cols", nil, "columns to include (default: every numeric feature)")
	plotCmd.AddCommand(plotHeatmapCmd, plotPairCmd)
	rootCmd.AddCommand(plotCmd)
}
