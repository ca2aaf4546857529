package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/biolearn-cli/internal/learn"
	"github.com/KaramelBytes/biolearn-cli/internal/session"
	"github.com/KaramelBytes/biolearn-cli/internal/utils"
)

var (
	lrnModels      []string
	lrnValidations []string
	lrnMetrics     []string
	lrnFolds       int
	lrnTrainSize   int
	lrnTimes       int
	lrnNeighbors   int
	lrnNoPlot      bool
	lrnSaveRuns    bool
)

var learnCmd = &cobra.Command{
	Use:   "learn [file]",
	Short: "Compare classifiers over repeated validations",
	Long: `Trains every model on every fold of every validation, times times, then summarizes
the chosen metrics per model. Features must be numeric and complete: run "clean" first
and point learn at the cleaned CSV.`,
	Args: datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		f := cmd.Flags()
		vp := learn.ValidationParams{NumFolds: c.NumFolds, TrainSize: c.SplitTrainSize}
		if f.Changed("folds") {
			vp.NumFolds = lrnFolds
		}
		if f.Changed("train-size") {
			vp.TrainSize = lrnTrainSize
		}
		times := c.TimesRepeats
		if f.Changed("times") {
			times = lrnTimes
		}
		s, err := openSession(cmd, args, session.WithRunnerOptions(learn.WithParams(learn.Params{Neighbors: lrnNeighbors})))
		if err != nil {
			return err
		}
		if err := s.Runner().SetValidations(lrnValidations, vp); err != nil {
			return err
		}
		if err := s.ExecuteModels(cmd.Context(), lrnModels, times, dsFlags.section); err != nil {
			return err
		}
		ev, err := s.EvaluateModels(lrnMetrics, dsFlags.section)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "metric\tmodel\tcount\tmean\tstd\tmin\t25%\t50%\t75%\tmax\n")
		for _, m := range ev.Metrics {
			for _, d := range ev.Describe[m] {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
					m, d.Model, d.Count, d.Mean, d.Std, d.Min, d.Q25, d.Q50, d.Q75, d.Max)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		dir := outputDir()
		if !lrnNoPlot {
			paths, err := learn.PlotMetrics(dir, ev)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(out, "✓ Wrote figure to %s\n", p)
			}
		}
		if lrnSaveRuns {
			b, err := utils.PrettyJSON(s.Runner().Executions())
			if err != nil {
				return err
			}
			p := filepath.Join(dir, "executions.json")
			if err := utils.SafeWriteFile(p, b); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %s\n", p)
		}
		return nil
	},
}

func init() {
	addDatasetFlags(learnCmd)
	f := learnCmd.Flags()
	f.StringSliceVar(&lrnModels, "models", nil, "models: knn, nearest_centroid (default: all)")
	f.StringSliceVar(&lrnValidations, "validations", []string{learn.ValidationSplit}, "validations: split, kfold")
	f.StringSliceVar(&lrnMetrics, "metrics", nil, "metrics: accuracy, precision, recall, f1 (default: all)")
	f.IntVar(&lrnFolds, "folds", 0, "folds for kfold (default from config)")
	f.IntVar(&lrnTrainSize, "train-size", 0, "train percent for split (default from config)")
	f.IntVar(&lrnTimes, "times", 0, "repetitions (default from config)")
	f.IntVar(&lrnNeighbors, "neighbors", learn.DefaultKNNNeighbors, "neighbors for the knn model")
	f.BoolVar(&lrnNoPlot, "no-plot", false, "skip the metric figures")
	f.BoolVar(&lrnSaveRuns, "save-runs", false, "write every execution to executions.json")
	rootCmd.AddCommand(learnCmd)
}
