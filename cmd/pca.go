package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	pcaComponents int
	pcaNoPlot     bool
)

var pcaCmd = &cobra.Command{
	Use:   "pca [file]",
	Short: "Principal component analysis with Bartlett's sphericity test",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n := settings().PCAComponents
		if cmd.Flags().Changed("components") {
			n = pcaComponents
		}
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return s.ForEachFeatureSection(dsFlags.section, func(sec string) error {
			dir := ""
			if !pcaNoPlot {
				dir = sectionDir(outputDir(), sec)
			}
			res, err := s.PCA(sec, n, dir)
			if err != nil {
				return err
			}
			if sec != "" {
				fmt.Fprintf(out, "## %s\n", sec)
			}
			if b := res.Bartlett; b != nil {
				fmt.Fprintf(out, "Bartlett: chi2=%.4f df=%.0f p=%.4g\n", b.ChiSquare, b.DF, b.PValue)
			}
			r := res.Result
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprint(tw, "component\teigenvalue\texplained\n")
			for k, name := range r.Components() {
				fmt.Fprintf(tw, "%s\t%.4f\t%.2f%%\n", name, r.Eigenvalues[k], r.Explained[k]*100)
			}
			fmt.Fprint(tw, "\nloading")
			for _, name := range r.Components() {
				fmt.Fprintf(tw, "\t%s", name)
			}
			fmt.Fprintln(tw)
			for j, f := range r.Features {
				fmt.Fprint(tw, f)
				for _, v := range r.Loadings[j] {
					fmt.Fprintf(tw, "\t%.4f", v)
				}
				fmt.Fprintln(tw)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, p := range res.Files {
				fmt.Fprintf(out, "✓ Wrote figure to %s\n", p)
			}
			return nil
		})
	},
}

func init() {
	addDatasetFlags(pcaCmd)
	pcaCmd.Flags().IntVarP(&pcaComponents, "components", "n", 0, "components to keep (default from config)")
	pcaCmd.Flags().BoolVar(&pcaNoPlot, "no-plot", false, "skip the PCA figures")
	rootCmd.AddCommand(pcaCmd)
}
