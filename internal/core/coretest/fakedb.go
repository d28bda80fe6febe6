// Package coretest provides an in-memory core.DBTX for tests.
//
// DB interprets the statements the loader and importer issue (DELETE FROM,
// multi-row INSERT with optional ON CONFLICT DO UPDATE, SELECT COUNT(*) and
// column samples). It enforces the natural keys of stores and contacts and
// the store_schedules -> stores foreign key, and records every statement.
package coretest

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	deleteRe = regexp.MustCompile(`^DELETE FROM (\w+)$`)
	insertRe = regexp.MustCompile(`^INSERT INTO (\w+) \(([^)]+)\) VALUES .+?( ON CONFLICT \((\w+)\) DO UPDATE SET .+)?$`)
	countRe  = regexp.MustCompile(`^SELECT COUNT\(\*\) FROM (\w+)$`)
	selectRe = regexp.MustCompile(`^SELECT (.+) FROM (\w+)(?: ORDER BY (\w+))?(?: LIMIT (\d+))?$`)
)

// ForeignKey declares that Table.Column references Parent.ParentColumn.
type ForeignKey struct {
	Table        string
	Column       string
	Parent       string
	ParentColumn string
}

// Schema describes the tables the fake knows.
type Schema struct {
	Keys        map[string]string // table -> unique key column
	ForeignKeys []ForeignKey
}

// RosterSchema matches the rosterload migrations.
var RosterSchema = Schema{
	Keys: map[string]string{
		"stores":          "store_number",
		"contacts":        "phone",
		"store_schedules": "",
	},
	ForeignKeys: []ForeignKey{
		{Table: "store_schedules", Column: "store_number", Parent: "stores", ParentColumn: "store_number"},
	},
}

type row map[string]any

type failure struct {
	substr string
	err    error
}

// DB is an in-memory database. It is safe for concurrent use.
type DB struct {
	schema Schema

	mu       sync.Mutex
	tables   map[string][]row
	log      []string
	failures []failure
}

// New returns an empty DB with schema.
func New(schema Schema) *DB {
	db := &DB{schema: schema, tables: make(map[string][]row)}
	for table := range schema.Keys {
		db.tables[table] = nil
	}
	return db
}

// NewRoster returns an empty DB with the roster tables.
func NewRoster() *DB {
	return New(RosterSchema)
}

// FailOn makes every later statement containing substr fail with err.
func (db *DB) FailOn(substr string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures = append(db.failures, failure{substr: substr, err: err})
}

// Log returns the executed statements, abbreviated to "VERB table".
func (db *DB) Log() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.log...)
}

// Rows returns a copy of the rows of table in insertion order.
func (db *DB) Rows(table string) []map[string]any {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]map[string]any, 0, len(db.tables[table]))
	for _, r := range db.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

// Count returns the number of rows in table.
func (db *DB) Count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[table])
}

// Seed appends rows to table without checks.
func (db *DB) Seed(table string, rows ...map[string]any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, r := range rows {
		db.tables[table] = append(db.tables[table], copyRow(r))
	}
}

// snapshot copies all tables.
func (db *DB) snapshot() map[string][]row {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := make(map[string][]row, len(db.tables))
	for name, rows := range db.tables {
		cp := make([]row, len(rows))
		for i, r := range rows {
			cp[i] = copyRow(r)
		}
		snap[name] = cp
	}
	return snap
}

func (db *DB) restore(snap map[string][]row) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = snap
	db.log = append(db.log, "ROLLBACK")
}

// Exec runs a DELETE or INSERT.
func (db *DB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.injected(sql); err != nil {
		return pgconn.CommandTag{}, err
	}

	if m := deleteRe.FindStringSubmatch(sql); m != nil {
		db.log = append(db.log, "DELETE "+m[1])
		n, err := db.deleteAll(m[1])
		if err != nil {
			return pgconn.CommandTag{}, err
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}

	if m := insertRe.FindStringSubmatch(sql); m != nil {
		verb := "INSERT "
		if m[3] != "" {
			verb = "UPSERT "
		}
		db.log = append(db.log, verb+m[1])
		cols := splitColumns(m[2])
		n, err := db.insert(m[1], cols, args, m[4])
		if err != nil {
			return pgconn.CommandTag{}, err
		}
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", n)), nil
	}

	return pgconn.CommandTag{}, fmt.Errorf("coretest: unsupported statement %q", sql)
}

// Query runs a SELECT.
func (db *DB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.injected(sql); err != nil {
		return nil, err
	}

	if m := countRe.FindStringSubmatch(sql); m != nil {
		db.log = append(db.log, "COUNT "+m[1])
		rows, ok := db.tables[m[1]]
		if !ok {
			return nil, undefinedTable(m[1])
		}
		return &Rows{columns: []string{"count"}, data: [][]any{{int64(len(rows))}}}, nil
	}

	if m := selectRe.FindStringSubmatch(sql); m != nil {
		db.log = append(db.log, "SELECT "+m[2])
		rows, ok := db.tables[m[2]]
		if !ok {
			return nil, undefinedTable(m[2])
		}
		cols := splitColumns(m[1])
		sorted := append([]row(nil), rows...)
		if m[3] != "" {
			key := m[3]
			sort.SliceStable(sorted, func(i, j int) bool {
				return lessValue(sorted[i][key], sorted[j][key])
			})
		}
		if m[4] != "" {
			limit, _ := strconv.Atoi(m[4])
			if limit < len(sorted) {
				sorted = sorted[:limit]
			}
		}
		out := &Rows{columns: cols}
		for _, r := range sorted {
			values := make([]any, len(cols))
			for i, c := range cols {
				values[i] = r[c]
			}
			out.data = append(out.data, values)
		}
		return out, nil
	}

	return nil, fmt.Errorf("coretest: unsupported query %q", sql)
}

// QueryRow runs a SELECT and returns its first row.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := db.Query(ctx, sql, args...)
	return &Row{rows: rows, err: err}
}

func (db *DB) injected(sql string) error {
	for _, f := range db.failures {
		if strings.Contains(sql, f.substr) {
			return f.err
		}
	}
	return nil
}

func (db *DB) deleteAll(table string) (int, error) {
	rows, ok := db.tables[table]
	if !ok {
		return 0, undefinedTable(table)
	}
	for _, fk := range db.schema.ForeignKeys {
		if fk.Parent == table && len(rows) > 0 && len(db.tables[fk.Table]) > 0 {
			return 0, &pgconn.PgError{
				Severity: "ERROR",
				Code:     "23503",
				Message:  fmt.Sprintf("update or delete on table %q violates foreign key constraint \"%s_%s_fkey\" on table %q", table, fk.Table, fk.Column, fk.Table),
			}
		}
	}
	db.tables[table] = nil
	return len(rows), nil
}

func (db *DB) insert(table string, cols []string, args []any, conflict string) (int, error) {
	existing, ok := db.tables[table]
	if !ok {
		return 0, undefinedTable(table)
	}
	if len(cols) == 0 || len(args)%len(cols) != 0 {
		return 0, fmt.Errorf("coretest: %d args for %d columns", len(args), len(cols))
	}

	var incoming []row
	for i := 0; i < len(args); i += len(cols) {
		r := make(row, len(cols))
		for j, c := range cols {
			r[c] = args[i+j]
		}
		incoming = append(incoming, r)
	}

	for _, fk := range db.schema.ForeignKeys {
		if fk.Table != table {
			continue
		}
		parents := make(map[string]bool)
		for _, p := range db.tables[fk.Parent] {
			parents[keyOf(p[fk.ParentColumn])] = true
		}
		for _, r := range incoming {
			if v := r[fk.Column]; v != nil && !parents[keyOf(v)] {
				return 0, &pgconn.PgError{
					Severity: "ERROR",
					Code:     "23503",
					Message:  fmt.Sprintf("insert or update on table %q violates foreign key constraint \"%s_%s_fkey\"", table, table, fk.Column),
				}
			}
		}
	}

	key := db.schema.Keys[table]
	if key == "" {
		db.tables[table] = append(existing, incoming...)
		return len(incoming), nil
	}

	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[keyOf(r[key])] = i
	}

	seen := make(map[string]bool, len(incoming))
	next := append([]row(nil), existing...)
	for _, r := range incoming {
		k := keyOf(r[key])
		if seen[k] {
			if conflict != "" {
				return 0, &pgconn.PgError{
					Severity: "ERROR",
					Code:     "21000",
					Message:  "ON CONFLICT DO UPDATE command cannot affect row a second time",
				}
			}
			return 0, duplicateKey(table, key, k)
		}
		seen[k] = true

		i, found := index[k]
		switch {
		case !found:
			index[k] = len(next)
			next = append(next, r)
		case conflict == "":
			return 0, duplicateKey(table, key, k)
		default:
			updated := copyRow(next[i])
			for c, v := range r {
				updated[c] = v
			}
			next[i] = updated
		}
	}

	db.tables[table] = next
	return len(incoming), nil
}

func duplicateKey(table, key, value string) error {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     "23505",
		Message:  fmt.Sprintf("duplicate key value violates unique constraint \"%s_%s_key\"", table, key),
		Detail:   fmt.Sprintf("Key (%s)=(%s) already exists.", key, value),
	}
}

func undefinedTable(table string) error {
	return &pgconn.PgError{Severity: "ERROR", Code: "42P01", Message: fmt.Sprintf("relation %q does not exist", table)}
}

func splitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func keyOf(v any) string {
	return fmt.Sprint(v)
}

func lessValue(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func copyRow(r row) row {
	cp := make(row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}
