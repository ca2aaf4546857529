package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections [file]",
	Short: "Describe a dataset: layout, sections, target classes and outlier columns",
	Args:  datasetArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		t, _ := s.Table()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Layout: %s\n", t.State())
		fmt.Fprintf(out, "Target: %s\n", t.Target())
		if t.HasSections() {
			fmt.Fprintln(out, "Sections:")
			for _, sec := range t.Sections() {
				df, err := t.Frame(sec)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  - %s (%d columns)\n", sec, df.Ncol())
			}
		} else {
			df, err := t.Frame("")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Shape: %d rows x %d columns\n", df.Nrow(), df.Ncol())
		}
		fmt.Fprintln(out, "Classes:")
		for _, c := range t.ClassBalance() {
			fmt.Fprintf(out, "  - %s: %d (%.1f%%)\n", c.Class, c.Count, c.Percent)
		}
		if cols := t.OutlierColumns(); len(cols) > 0 {
			names := make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.String()
			}
			fmt.Fprintf(out, "Outlier columns: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	addDatasetFlags(sectionsCmd)
	rootCmd.AddCommand(sectionsCmd)
}
