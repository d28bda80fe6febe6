package database

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/core"
	"github.com/JonMunkholm/rosterload/internal/core/coretest"
)

// stubDB records Exec calls and answers queries with fixed rows.
type stubDB struct {
	sql  []string
	args [][]any
	rows *coretest.Rows
	err  error
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.sql = append(s.sql, sql)
	s.args = append(s.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), s.err
}

func (s *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.sql = append(s.sql, sql)
	s.args = append(s.args, args)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := s.Query(ctx, sql, args...)
	return coretest.NewRow(rows, err)
}

var runColumns = strings.Split(selectRunColumns, ", ")

func TestRunStore_Report(t *testing.T) {
	db := &stubDB{}
	store := NewRunStore(db)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	report := core.NewRunReport()
	report.Entity(core.EntityStore).Loaded = 4

	err := store.Report(context.Background(), core.ProgressUpdate{
		ImportID:  "abc",
		Source:    "roster.xlsx",
		Status:    core.StatusCompleted,
		State:     core.StateCompleted,
		Progress:  100,
		Message:   "done",
		Metadata:  report,
		StartedAt: started,
	})
	require.NoError(t, err)

	require.Len(t, db.args, 1)
	assert.Contains(t, db.sql[0], "ON CONFLICT (import_id) DO UPDATE")
	args := db.args[0]
	assert.Equal(t, "abc", args[0])
	assert.Equal(t, "completed", args[2])
	assert.Equal(t, "completed", args[3])
	assert.Equal(t, 100, args[4])
	assert.Equal(t, started, args[8])

	var decoded core.RunReport
	require.NoError(t, json.Unmarshal(args[7].([]byte), &decoded))
	assert.Equal(t, 4, decoded.Entity(core.EntityStore).Loaded)
}

func TestRunStore_ReportWithoutMetadata(t *testing.T) {
	db := &stubDB{}
	err := NewRunStore(db).Report(context.Background(), core.ProgressUpdate{ImportID: "abc", Status: core.StatusProcessing})
	require.NoError(t, err)
	assert.Nil(t, db.args[0][7])
}

func TestRunStore_ReportError(t *testing.T) {
	db := &stubDB{err: errors.New("connection refused")}
	err := NewRunStore(db).Report(context.Background(), core.ProgressUpdate{ImportID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save run abc")
}

func TestRunStore_Get(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	db := &stubDB{rows: coretest.NewRows(runColumns, []any{
		"abc", "roster.xlsx", "failed", "failed", 30, "boom", false,
		[]byte(`{"atomic":true,"rolled_back":true,"entities":{}}`), started, &finished,
	})}

	got, err := NewRunStore(db).Get(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, []any{"abc"}, db.args[0])
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, core.StateFailed, got.State)
	assert.Equal(t, "boom", got.Message)
	assert.Equal(t, &finished, got.FinishedAt)
	require.NotNil(t, got.Metadata)
	assert.True(t, got.Metadata.RolledBack)
}

func TestRunStore_GetUnknown(t *testing.T) {
	db := &stubDB{rows: coretest.NewRows(runColumns)}

	_, err := NewRunStore(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrImportNotFound)
}

func TestRunStore_Recent(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var noFinish *time.Time
	db := &stubDB{rows: coretest.NewRows(runColumns,
		[]any{"b", "", "processing", "clearing", 10, "clearing", false, nil, started, noFinish},
		[]any{"a", "", "completed", "completed", 100, "ok", true, nil, started, noFinish},
	)}

	runs, err := NewRunStore(db).Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ImportID)
	assert.Nil(t, runs[0].Metadata)
	assert.True(t, runs[1].DryRun)
	assert.Equal(t, []any{20}, db.args[0])
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, LockKey("rosterload:import"), LockKey("rosterload:import"))
	assert.NotEqual(t, LockKey("rosterload:import"), LockKey("rosterload:import2"))
}

func TestName(t *testing.T) {
	assert.Equal(t, "roster", Name("postgres://user:pw@localhost:5432/roster?sslmode=disable"))
	assert.Equal(t, "", Name("host=localhost dbname=roster"))
}

func TestMigrations(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, name := range files {
		b, err := fs.ReadFile(Migrations(), name)
		require.NoError(t, err)
		assert.Contains(t, string(b), "-- +goose Up", name)
		assert.Contains(t, string(b), "-- +goose Down", name)
	}
}

func TestMigrations_ScheduleColumns(t *testing.T) {
	b, err := fs.ReadFile(Migrations(), "00001_roster.sql")
	require.NoError(t, err)
	up, _, ok := strings.Cut(string(b), "-- +goose Down")
	require.True(t, ok)

	_, schedules, ok := strings.Cut(up, "CREATE TABLE store_schedules")
	require.True(t, ok)
	schedules, _, _ = strings.Cut(schedules, ");")

	assert.Regexp(t, `updated_at\s+TIMESTAMPTZ NOT NULL DEFAULT NOW\(\)`, schedules)
	assert.Regexp(t, `scheduled_hours\s+NUMERIC\(7, 2\)`, schedules)
}
