package session

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
	"github.com/KaramelBytes/biolearn-cli/internal/utils"
)

// CleanPlan lists the cleaning steps to run, in the order Clean applies them.
// Zero values skip a step; percents of 100 drop nothing.
type CleanPlan struct {
	Section         string
	DropSections    []string
	Columns         dataset.CleanOptions
	Dedupe          bool
	DropColsPercent float64
	DropRowsPercent float64
	Impute          string
	Neighbors       int
	Outliers        string
	Encode          []string
	Parallel        bool
	EncodeDates     []dataset.DateColumn
}

// CleanReport is what Clean removed.
type CleanReport struct {
	DroppedColumns []string
	DroppedRows    []string
}

// Clean runs plan against the loaded dataset and stops at the first failing step.
// Steps already applied stay applied.
func (s *Session) Clean(ctx context.Context, plan CleanPlan) (*CleanReport, error) {
	t, err := s.Table()
	if err != nil {
		return nil, err
	}
	rep := &CleanReport{}
	if len(plan.DropSections) > 0 {
		if err := t.DropSections(plan.DropSections); err != nil {
			return rep, fmt.Errorf("drop sections: %w", err)
		}
	}
	c := plan.Columns
	if len(c.Drop) > 0 || len(c.Dates) > 0 || c.TryConvert || c.UseOriginal {
		if err := t.CleanColumns(c); err != nil {
			return rep, fmt.Errorf("clean columns: %w", err)
		}
	}
	if plan.Dedupe {
		if err := t.RemoveDuplicates(false, plan.Section); err != nil {
			return rep, fmt.Errorf("remove duplicates: %w", err)
		}
	}
	if plan.DropColsPercent < 100 {
		rep.DroppedColumns, err = t.DropColumnsAboveMissing(plan.DropColsPercent, s.verbose, plan.Section)
		if err != nil {
			return rep, fmt.Errorf("drop columns: %w", err)
		}
	}
	if plan.DropRowsPercent < 100 {
		rep.DroppedRows, err = t.DropRowsAboveMissing(plan.DropRowsPercent, s.verbose, plan.Section)
		if err != nil {
			return rep, fmt.Errorf("drop rows: %w", err)
		}
	}
	if plan.Impute != "" {
		if err := t.ImputeMissing(plan.Impute, plan.Neighbors, plan.Section); err != nil {
			return rep, fmt.Errorf("impute: %w", err)
		}
	}
	if plan.Outliers != "" {
		if err := t.RemoveOutliers(plan.Outliers, false, plan.Section); err != nil {
			return rep, fmt.Errorf("remove outliers: %w", err)
		}
	}
	if len(plan.Encode) > 0 {
		if err := s.EncodeCategorical(ctx, plan.Encode, plan.Parallel); err != nil {
			return rep, fmt.Errorf("encode: %w", err)
		}
	}
	if len(plan.EncodeDates) > 0 {
		if err := t.EncodeDatetime(plan.EncodeDates); err != nil {
			return rep, fmt.Errorf("encode dates: %w", err)
		}
	}
	return rep, nil
}

// Export writes the active tables as CSV into dir: one file for a flat dataset,
// one per section otherwise. It returns the written paths.
func (s *Session) Export(dir, name string) ([]string, error) {
	if name == "" {
		name = "cleaned"
	}
	var paths []string
	err := s.ForEachSection("", func(section string) error {
		t, _ := s.Table()
		df, err := t.Frame(section)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := df.WriteCSV(&buf); err != nil {
			return fmt.Errorf("encode csv: %w", err)
		}
		file := name + ".csv"
		if section != "" {
			file = name + "_" + section + ".csv"
		}
		p := filepath.Join(dir, file)
		if err := utils.SafeWriteFile(p, buf.Bytes()); err != nil {
			return err
		}
		paths = append(paths, p)
		return nil
	})
	return paths, err
}
