package core

import (
	"fmt"
	"strings"
	"time"
)

// SheetReport records how one input sheet was classified.
type SheetReport struct {
	Name   string     `json:"name"`
	Entity EntityType `json:"entity,omitempty"`
	Rows   int        `json:"rows"`
}

// EntityReport counts records of one entity through the pipeline.
type EntityReport struct {
	Sheets      int             `json:"sheets"`
	Rows        int             `json:"rows"`
	Transformed int             `json:"transformed"`
	Dropped     int             `json:"dropped"`
	Invalid     int             `json:"invalid"`
	Duplicates  int             `json:"duplicates"`
	Loaded      int             `json:"loaded"`
	Batches     int             `json:"batches"`
	Errors      []InvalidRecord `json:"errors,omitempty"`
}

// TableVerification holds the post-load state of one table.
type TableVerification struct {
	Entity   EntityType       `json:"entity"`
	Table    string           `json:"table"`
	Count    int64            `json:"count"`
	Expected int              `json:"expected"`
	Sample   []map[string]any `json:"sample"`
}

// Matches reports whether the table holds exactly the loaded rows.
func (v TableVerification) Matches() bool {
	return v.Count == int64(v.Expected)
}

// VerificationSummary is produced by the verifying phase.
type VerificationSummary struct {
	Tables []TableVerification `json:"tables"`
	Errors []VerificationError `json:"errors,omitempty"`
}

// Table returns the verification of entity's table.
func (s *VerificationSummary) Table(entity EntityType) (TableVerification, bool) {
	if s == nil {
		return TableVerification{}, false
	}
	for _, t := range s.Tables {
		if t.Entity == entity {
			return t, true
		}
	}
	return TableVerification{}, false
}

// RunReport is the metadata attached to a finished run.
type RunReport struct {
	Format       Format                       `json:"format,omitempty"`
	Atomic       bool                         `json:"atomic"`
	DryRun       bool                         `json:"dry_run"`
	RolledBack   bool                         `json:"rolled_back,omitempty"`
	Sheets       []SheetReport                `json:"sheets"`
	EmptySheets  []string                     `json:"empty_sheets,omitempty"`
	Unclassified []ClassificationMiss         `json:"unclassified,omitempty"`
	Entities     map[EntityType]*EntityReport `json:"entities"`
	Phases       map[RunState]int64           `json:"phase_ms,omitempty"`
	Verification *VerificationSummary         `json:"verification,omitempty"`
	DurationMS   int64                        `json:"duration_ms"`
}

// NewRunReport returns an empty report with an entry per entity.
func NewRunReport() *RunReport {
	r := &RunReport{
		Entities: make(map[EntityType]*EntityReport, len(LoadOrder)),
		Phases:   make(map[RunState]int64),
	}
	for _, entity := range LoadOrder {
		r.Entities[entity] = &EntityReport{}
	}
	return r
}

// Entity returns the report entry for entity, creating it if needed.
func (r *RunReport) Entity(entity EntityType) *EntityReport {
	er, ok := r.Entities[entity]
	if !ok {
		er = &EntityReport{}
		r.Entities[entity] = er
	}
	return er
}

func (r *RunReport) recordPhase(state RunState, d time.Duration) {
	r.Phases[state] = d.Milliseconds()
}

// Summary renders loaded counts on one line, for CLI output and the final
// progress message.
func (r *RunReport) Summary() string {
	parts := make([]string, 0, len(LoadOrder))
	for _, entity := range LoadOrder {
		er := r.Entity(entity)
		n := er.Loaded
		if r.DryRun {
			n = er.Transformed
		}
		parts = append(parts, fmt.Sprintf("%s=%d", entity, n))
	}
	verb := "imported"
	if r.DryRun {
		verb = "validated"
	}
	return verb + " " + strings.Join(parts, " ")
}
