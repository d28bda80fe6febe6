package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/admin"
	"github.com/JonMunkholm/rosterload/internal/core"
	"github.com/JonMunkholm/rosterload/internal/core/coretest"
	_ "github.com/JonMunkholm/rosterload/internal/core/tables"
)

func seeded() *coretest.DB {
	db := coretest.NewRoster()
	db.Seed("stores", map[string]any{"store_number": 1, "name": "One"}, map[string]any{"store_number": 2, "name": "Two"})
	db.Seed("contacts", map[string]any{"name": "Jane", "phone": "+15125550100"})
	db.Seed("store_schedules", map[string]any{"store_number": 1, "date": "2023-01-01"})
	return db
}

func TestReset(t *testing.T) {
	db := seeded()

	result, err := admin.Reset(context.Background(), coretest.NewScope(db, true), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"store_schedules", "contacts", "stores"}, result.Tables)
	assert.Equal(t, int64(2), result.Rows["stores"])
	assert.Equal(t, []string{"DELETE store_schedules", "DELETE contacts", "DELETE stores"}, db.Log())
	assert.Zero(t, db.Count("stores"))
	assert.Zero(t, db.Count("contacts"))
}

func TestReset_FailureRollsBack(t *testing.T) {
	db := seeded()
	db.FailOn("DELETE FROM stores", errors.New("boom"))

	_, err := admin.Reset(context.Background(), coretest.NewScope(db, true), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset stores")
	assert.Equal(t, 2, db.Count("stores"))
	assert.Equal(t, 1, db.Count("contacts"))
}

func TestReset_LockHeld(t *testing.T) {
	db := seeded()
	scope := coretest.NewScope(db, true)
	release := scope.Hold()
	defer release()

	_, err := admin.Reset(context.Background(), scope, false)
	assert.ErrorIs(t, err, core.ErrImportInProgress)
	assert.Equal(t, 2, db.Count("stores"))
}
