package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// EntityType identifies a target table of the import.
type EntityType string

const (
	EntityStore    EntityType = "store"
	EntityContact  EntityType = "contact"
	EntitySchedule EntityType = "schedule_entry"
)

// LoadOrder lists entity types parent-first. Clearing runs in reverse.
var LoadOrder = []EntityType{EntityStore, EntityContact, EntitySchedule}

// Sheet is one tabular unit of an input payload.
// Every row has exactly len(Headers) cells. Cells hold string, float64,
// bool or nil.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any

	// Entity is set when the input format already names the target
	// (JSON sections). Workbook sheets leave it empty for the classifier.
	Entity EntityType
}

// FieldRule maps a normalized header to a record field.
// A rule matches when every substring in Contains occurs in the header
// and every token in Words occurs as a whole word.
type FieldRule struct {
	Field    string
	Contains []string
	Words    []string
}

// EntityInfo contains the table-level description of an entity.
type EntityInfo struct {
	Type        EntityType
	Table       string // Target table: "stores"
	Label       string // Display name: "Stores"
	Section     string // JSON document section: "stores"
	ConflictKey string // Natural key column, empty for append-only tables
	OrderBy     string // Column used to order verification samples
}

// BuildFunc converts the mapped fields of one row into a record struct.
type BuildFunc func(f Fields) (any, error)

// RowFunc converts a record into values in the same order as Columns.
type RowFunc func(rec any) []any

// KeyFunc returns the natural key of a record.
type KeyFunc func(rec any) string

// EntityDefinition contains everything needed to transform and load an entity.
type EntityDefinition struct {
	Info    EntityInfo
	Rules   []FieldRule
	Build   BuildFunc
	Columns []string
	Row     RowFunc

	// Key is required when Info.ConflictKey is set. Records sharing a key
	// are collapsed before loading.
	Key KeyFunc
}

// Upserts reports whether records are loaded with ON CONFLICT DO UPDATE.
func (d EntityDefinition) Upserts() bool {
	return d.Info.ConflictKey != "" && d.Key != nil
}

// Record is a transformed row together with where it came from.
type Record struct {
	Sheet string
	Row   int
	Value any
}

// RunState is the orchestrator phase of an import run.
type RunState string

const (
	StateIdle             RunState = "idle"
	StateClearing         RunState = "clearing"
	StateLoadingStores    RunState = "loading_stores"
	StateLoadingContacts  RunState = "loading_contacts"
	StateLoadingSchedules RunState = "loading_schedules"
	StateVerifying        RunState = "verifying"
	StateCompleted        RunState = "completed"
	StateFailed           RunState = "failed"
)

// loadState maps an entity to the phase that loads it.
var loadState = map[EntityType]RunState{
	EntityStore:    StateLoadingStores,
	EntityContact:  StateLoadingContacts,
	EntitySchedule: StateLoadingSchedules,
}

// RunStatus is the externally visible outcome of a run.
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// ProgressUpdate is one snapshot of a run as seen by progress sinks.
type ProgressUpdate struct {
	ImportID   string     `json:"import_id"`
	Source     string     `json:"source,omitempty"`
	Status     RunStatus  `json:"status"`
	State      RunState   `json:"state"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message"`
	DryRun     bool       `json:"dry_run,omitempty"`
	Metadata   *RunReport `json:"metadata,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the run has finished.
func (u ProgressUpdate) Terminal() bool {
	return u.Status == StatusCompleted || u.Status == StatusFailed
}

// ProgressSink receives run progress. Sink errors are logged by the caller
// and never fail a run.
type ProgressSink interface {
	Report(ctx context.Context, update ProgressUpdate) error
}

// RunHistory looks up runs that are no longer held in memory.
type RunHistory interface {
	Get(ctx context.Context, importID string) (ProgressUpdate, error)
}

// Scope executes fn against the target store with the import lock held.
// Implementations decide whether fn runs inside one transaction.
type Scope interface {
	Run(ctx context.Context, fn func(ctx context.Context, db DBTX) error) error
	Atomic() bool
}
