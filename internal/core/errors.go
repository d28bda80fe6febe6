package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrImportInProgress is returned when another run holds the run slot or
// the database advisory lock.
var ErrImportInProgress = errors.New("import already in progress")

// ErrImportNotFound is returned when an import id is unknown.
var ErrImportNotFound = errors.New("import not found")

// ErrShuttingDown is returned for runs started, or still being awaited,
// after the service began shutting down.
var ErrShuttingDown = errors.New("service shutting down")

// ParseError reports a payload that is not a readable workbook or JSON document.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("invalid input: %v", e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InputShapeError reports required sections missing from the input.
type InputShapeError struct {
	Missing []string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("missing required section: %s", strings.Join(e.Missing, ", "))
}

// ClassificationMiss describes a sheet that matched no entity type.
// It is recorded in the run report and the sheet is skipped.
type ClassificationMiss struct {
	Sheet   string   `json:"sheet"`
	Headers []string `json:"headers"`
	Sample  [][]any  `json:"sample"`
}

func (m ClassificationMiss) Error() string {
	return fmt.Sprintf("sheet %q matches no entity type", m.Sheet)
}

// TransformSkip marks a row that produced no populated fields.
// Skips are counted, never reported per row.
type TransformSkip struct {
	Sheet string
	Row   int
}

func (s TransformSkip) Error() string {
	return fmt.Sprintf("sheet %q row %d: no mapped values", s.Sheet, s.Row)
}

// LoadError reports the batch that failed while loading an entity.
// Rows are 1-based positions in the entity's load order.
type LoadError struct {
	Entity   EntityType
	Batch    int
	FirstRow int
	LastRow  int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s batch %d (rows %d-%d): %v", e.Entity, e.Batch, e.FirstRow, e.LastRow, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// VerificationError records a failed post-load query. It never fails a run.
type VerificationError struct {
	Entity EntityType `json:"entity"`
	Table  string     `json:"table"`
	Query  string     `json:"query"`
	Err    string     `json:"error"`
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("verify %s (%s): %s", e.Table, e.Query, e.Err)
}
