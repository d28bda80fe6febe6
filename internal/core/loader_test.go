package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/core"
	"github.com/JonMunkholm/rosterload/internal/core/coretest"
)

func storeRecords(n int) []core.Record {
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.Record{Sheet: "stores", Row: i + 2, Value: core.Store{StoreNumber: i + 1, Name: "s", IsActive: true}}
	}
	return out
}

func mustDef(t *testing.T, entity core.EntityType) core.EntityDefinition {
	t.Helper()
	def, ok := core.Get(entity)
	require.True(t, ok)
	return def
}

func TestLoader_Batches(t *testing.T) {
	db := coretest.NewRoster()
	loader := core.NewLoader(1000)

	var done []int
	stats, err := loader.Load(context.Background(), db, mustDef(t, core.EntityStore), storeRecords(2500), func(p core.BatchProgress) {
		done = append(done, p.Done)
		assert.Equal(t, 2500, p.Total)
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1000, 2000, 2500}, done)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 2500, stats.Loaded)
	assert.Equal(t, 2500, db.Count("stores"))
	assert.Equal(t, []string{"UPSERT stores", "UPSERT stores", "UPSERT stores"}, db.Log())
}

func TestLoader_UpsertIsIdempotent(t *testing.T) {
	db := coretest.NewRoster()
	loader := core.NewLoader(2)
	def := mustDef(t, core.EntityStore)
	ctx := context.Background()

	first := []core.Record{
		{Value: core.Store{StoreNumber: 1, Name: "old", IsActive: true}},
		{Value: core.Store{StoreNumber: 2, Name: "two", IsActive: true}},
	}
	second := []core.Record{
		{Value: core.Store{StoreNumber: 1, Name: "stale", IsActive: true}},
		{Value: core.Store{StoreNumber: 2, Name: "two", IsActive: true}},
		{Value: core.Store{StoreNumber: 1, Name: "new", IsActive: false}},
	}

	_, err := loader.Load(ctx, db, def, first, nil)
	require.NoError(t, err)
	stats, err := loader.Load(ctx, db, def, second, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 2, stats.Loaded)

	rows := db.Rows("stores")
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0]["name"])
	assert.Equal(t, false, rows[0]["is_active"])
}

func TestLoader_FailingBatch(t *testing.T) {
	db := coretest.NewRoster()
	loader := core.NewLoader(1000)
	def := mustDef(t, core.EntityStore)

	records := storeRecords(2500)
	records[1500].Value = core.Store{StoreNumber: 1, Name: "dup", IsActive: true}
	boom := errors.New("connection reset by peer")
	calls := 0

	stats, err := loader.Load(context.Background(), failAfter(db, 1, boom, &calls), def, records, nil)

	var lerr *core.LoadError
	require.True(t, errors.As(err, &lerr), "got %v", err)
	assert.Equal(t, core.EntityStore, lerr.Entity)
	assert.Equal(t, 2, lerr.Batch)
	assert.Equal(t, 1001, lerr.FirstRow)
	assert.Equal(t, 2000, lerr.LastRow)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "DB005", core.MapError(err).Code)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1000, stats.Loaded)
	assert.Equal(t, 1000, db.Count("stores"))
}

func TestLoader_ForeignKeyViolation(t *testing.T) {
	db := coretest.NewRoster()
	loader := core.NewLoader(0)

	records := []core.Record{{Value: core.ScheduleEntry{StoreNumber: 999, EmployeeName: "x"}}}
	_, err := loader.Load(context.Background(), db, mustDef(t, core.EntitySchedule), records, nil)

	require.Error(t, err)
	assert.Equal(t, "DB003", core.MapError(err).Code)
	assert.Equal(t, []string{"INSERT store_schedules"}, db.Log())
}

func TestLoader_Empty(t *testing.T) {
	db := coretest.NewRoster()
	stats, err := core.NewLoader(10).Load(context.Background(), db, mustDef(t, core.EntityContact), nil, nil)

	require.NoError(t, err)
	assert.Zero(t, stats.Batches)
	assert.Empty(t, db.Log())
}

// failingDB passes the first n Exec calls to DB and fails the rest.
type failingDB struct {
	*coretest.DB
	n     int
	err   error
	calls *int
}

func failAfter(db *coretest.DB, n int, err error, calls *int) core.DBTX {
	return &failingDB{DB: db, n: n, err: err, calls: calls}
}

func (f *failingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	*f.calls++
	if *f.calls > f.n {
		return pgconn.CommandTag{}, f.err
	}
	return f.DB.Exec(ctx, sql, args...)
}
