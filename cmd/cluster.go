package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clusMethod    string
	clusMetric    string
	clusThreshold float64
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Hierarchical clustering figures",
}

// clusterSettings fills unset flags from config.
func clusterSettings(cmd *cobra.Command) (method, metric string) {
	c := settings()
	method, metric = c.ClusterMethod, c.ClusterMetric
	if cmd.Flags().Changed("method") {
		method = clusMethod
	}
	if cmd.Flags().Changed("metric") {
		metric = clusMetric
	}
	return method, metric
}

var clusterDendrogramCmd = &cobra.Command{
	Use:   "dendrogram [file]",
	Short: "Cluster the samples and draw the dendrogram",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, metric := clusterSettings(cmd)
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		return s.ForEachFeatureSection(dsFlags.section, func(sec string) error {
			p, err := s.Dendrogram(sec, method, metric, clusThreshold, sectionDir(outputDir(), sec))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote figure to %s\n", p)
			return nil
		})
	},
}

var clusterHeatmapCmd = &cobra.Command{
	Use:   "heatmap [file]",
	Short: "Heatmap of samples by features with features ordered by clustering",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, metric := clusterSettings(cmd)
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		return s.ForEachFeatureSection(dsFlags.section, func(sec string) error {
			p, err := s.ClusterHeatmap(sec, method, metric, sectionDir(outputDir(), sec))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote figure to %s\n", p)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{clusterDendrogramCmd, clusterHeatmapCmd} {
		addDatasetFlags(c)
		c.Flags().StringVar(&clusMethod, "method", "", "linkage: single|complete|average|weighted|ward|centroid|median (default from config)")
		c.Flags().StringVar(&clusMetric, "metric", "", "distance: euclidean|sqeuclidean|cityblock|chebyshev|cosine|correlation (default from config)")
		clusterCmd.AddCommand(c)
	}
	clusterDendrogramCmd.Flags().Float64Var(&clusThreshold, "threshold", 0, "color links merged below this height by cluster (0: 70% of the tallest merge)")
	rootCmd.AddCommand(clusterCmd)
}
