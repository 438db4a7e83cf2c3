package mailmerge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTemplate indicates the template's structure could not be read.
	ErrMalformedTemplate = errors.New("malformed template")
	// ErrMissingColumn indicates a row lacks a column the run depends on.
	ErrMissingColumn = errors.New("missing column")
	// ErrOutputNotWritable indicates the output location cannot be created or written.
	ErrOutputNotWritable = errors.New("output location not writable")
	// ErrUnsupportedFormat indicates a data source format that cannot be read.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnknownVariable indicates a mapping entry for a variable the template lacks.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrUnknownColumn indicates a mapping entry naming a column the data lacks.
	ErrUnknownColumn = errors.New("unknown column")
)

// RowError is a failure tied to one data row.
type RowError struct {
	Row    int    // 1-based row number
	Column string // offending column, if any
	Err    error
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d: column %q: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// BatchError collects the row failures of a run that continued past them.
type BatchError struct {
	Failed []*RowError
}

func (e *BatchError) Error() string {
	if len(e.Failed) == 1 {
		return "1 row failed: " + e.Failed[0].Error()
	}
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%d rows failed: %s", len(e.Failed), strings.Join(msgs, "; "))
}

// Unwrap exposes the row errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// MappingError reports an invalid entry of a column mapping.
type MappingError struct {
	Variable string
	Column   string
	Err      error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s -> %s: %v", e.Variable, e.Column, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
