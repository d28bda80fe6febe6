// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// historyTable holds the persisted import runs.
const historyTable = "import_runs"

// ResetResult counts deleted rows per table, in deletion order.
type ResetResult struct {
	Tables []string
	Rows   map[string]int64
}

// Reset empties every roster table, children first, under the same
// advisory lock imports take. With history set the import run log is
// cleared too. This is a destructive operation - use with caution.
func Reset(ctx context.Context, scope core.Scope, history bool) (ResetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tables := rosterTables()
	if history {
		tables = append(tables, historyTable)
	}

	result := ResetResult{Tables: tables, Rows: make(map[string]int64, len(tables))}
	err := scope.Run(ctx, func(ctx context.Context, db core.DBTX) error {
		for _, table := range tables {
			tag, err := db.Exec(ctx, "DELETE FROM "+table)
			if err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
			result.Rows[table] = tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	slog.Info("database reset", "tables", tables, "atomic", scope.Atomic())
	return result, nil
}

// rosterTables lists registered entity tables in clearing order.
func rosterTables() []string {
	order := slices.Clone(core.LoadOrder)
	slices.Reverse(order)

	tables := make([]string, 0, len(order))
	for _, entity := range order {
		if def, ok := core.Get(entity); ok {
			tables = append(tables, def.Info.Table)
		}
	}
	return tables
}
