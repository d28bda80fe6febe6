package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/rosterload/internal/core"
)

const upsertRunSQL = `INSERT INTO import_runs
    (import_id, source, status, state, progress, message, dry_run, metadata, started_at, finished_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (import_id) DO UPDATE SET
    status = EXCLUDED.status,
    state = EXCLUDED.state,
    progress = EXCLUDED.progress,
    message = EXCLUDED.message,
    metadata = COALESCE(EXCLUDED.metadata, import_runs.metadata),
    finished_at = EXCLUDED.finished_at,
    updated_at = NOW()`

const selectRunColumns = `import_id, source, status, state, progress, message, dry_run, metadata, started_at, finished_at`

// RunStore persists run progress to import_runs. It is a progress sink
// for live runs and the history behind finished ones.
type RunStore struct {
	db core.DBTX
}

// NewRunStore creates a RunStore over db.
func NewRunStore(db core.DBTX) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Name() string { return "postgres" }

// Report upserts the run row with the latest update.
func (s *RunStore) Report(ctx context.Context, u core.ProgressUpdate) error {
	var metadata []byte
	if u.Metadata != nil {
		b, err := json.Marshal(u.Metadata)
		if err != nil {
			return fmt.Errorf("encode run metadata: %w", err)
		}
		metadata = b
	}

	_, err := s.db.Exec(ctx, upsertRunSQL,
		u.ImportID,
		u.Source,
		string(u.Status),
		string(u.State),
		u.Progress,
		u.Message,
		u.DryRun,
		metadata,
		u.StartedAt,
		u.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", u.ImportID, err)
	}
	return nil
}

// Get returns the stored run, or core.ErrImportNotFound.
func (s *RunStore) Get(ctx context.Context, importID string) (core.ProgressUpdate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectRunColumns+` FROM import_runs WHERE import_id = $1`, importID)
	u, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ProgressUpdate{}, fmt.Errorf("%w: %s", core.ErrImportNotFound, importID)
	}
	return u, err
}

// Recent returns up to limit runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]core.ProgressUpdate, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `SELECT `+selectRunColumns+` FROM import_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.ProgressUpdate
	for rows.Next() {
		u, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (core.ProgressUpdate, error) {
	var (
		u          core.ProgressUpdate
		status     string
		state      string
		metadata   []byte
		finishedAt *time.Time
	)
	err := row.Scan(&u.ImportID, &u.Source, &status, &state, &u.Progress, &u.Message, &u.DryRun, &metadata, &u.StartedAt, &finishedAt)
	if err != nil {
		return core.ProgressUpdate{}, err
	}

	u.Status = core.RunStatus(status)
	u.State = core.RunState(state)
	u.FinishedAt = finishedAt
	if len(metadata) > 0 {
		u.Metadata = &core.RunReport{}
		if err := json.Unmarshal(metadata, u.Metadata); err != nil {
			return core.ProgressUpdate{}, fmt.Errorf("decode run metadata: %w", err)
		}
	}
	return u, nil
}
