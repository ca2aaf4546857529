package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSection reports a selector naming a missing section, or an omitted
	// selector that cannot pick a single section.
	ErrInvalidSection = errors.New("invalid section")
	// ErrUnknownSection reports an attempt to drop a section that does not exist.
	ErrUnknownSection = errors.New("unknown section")
	// ErrUnsupportedMethod reports an unrecognized imputation or outlier strategy.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrInvalidArgument reports a missing or malformed argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ColumnError indicates a column name that could not be resolved in the active table.
type ColumnError struct {
	Column  string
	Section string
}

func (e *ColumnError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("column %q not found in section %q", e.Column, e.Section)
	}
	return fmt.Sprintf("column %q not found", e.Column)
}

// Unwrap lets callers match ColumnError with errors.Is(err, ErrInvalidArgument).
func (e *ColumnError) Unwrap() error { return ErrInvalidArgument }
