package dataset

import (
	"errors"
	"fmt"
)

// ErrLabelsAssigned is returned when cluster labels are assigned a second time.
var ErrLabelsAssigned = errors.New("cluster labels already assigned")

// DataSourceError reports a dataset that is missing, unreadable or empty.
// It is fatal at startup.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type DataSourceError struct {
	Source string
	Reason string
	cause  error
}

func (e *DataSourceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("data source %q: %s: %v", e.Source, e.Reason, e.cause)
	}
	return fmt.Sprintf("data source %q: %s", e.Source, e.Reason)
}

func (e *DataSourceError) Unwrap() error { return e.cause }

func sourceError(source, reason string, cause error) *DataSourceError {
	return &DataSourceError{Source: source, Reason: reason, cause: cause}
}

// DimensionMismatchError indicates a label slice whose length differs from
// the record count. It is always a programming error.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d labels, got %d", e.Expected, e.Actual)
}
