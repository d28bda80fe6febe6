package coretest

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Rows is an in-memory pgx.Rows.
type Rows struct {
	columns []string
	data    [][]any
	pos     int
	closed  bool
	err     error
}

var _ pgx.Rows = (*Rows)(nil)

// NewRows returns a result set with the given columns and rows.
func NewRows(columns []string, data ...[]any) *Rows {
	return &Rows{columns: columns, data: data}
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.err }

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.data)))
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed || r.err != nil || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *Rows) current() []any {
	if r.pos == 0 || r.pos > len(r.data) {
		return nil
	}
	return r.data[r.pos-1]
}

// Scan assigns the current row to dest. Values are converted when the
// destination type allows it.
func (r *Rows) Scan(dest ...any) error {
	values := r.current()
	if values == nil {
		return fmt.Errorf("coretest: Scan called without a current row")
	}
	if len(dest) != len(values) {
		return fmt.Errorf("coretest: %d destinations for %d columns", len(dest), len(values))
	}
	for i, d := range dest {
		if err := assign(d, values[i]); err != nil {
			r.err = err
			return err
		}
	}
	return nil
}

func (r *Rows) Values() ([]any, error) {
	values := r.current()
	if values == nil {
		return nil, fmt.Errorf("coretest: Values called without a current row")
	}
	return append([]any(nil), values...), nil
}

func (r *Rows) RawValues() [][]byte {
	values := r.current()
	raw := make([][]byte, len(values))
	for i, v := range values {
		if v != nil {
			raw[i] = []byte(fmt.Sprint(v))
		}
	}
	return raw
}

func (r *Rows) Conn() *pgx.Conn { return nil }

// Row is an in-memory pgx.Row.
type Row struct {
	rows pgx.Rows
	err  error
}

// NewRow returns a pgx.Row over the first row of rows, or one that fails
// with err.
func NewRow(rows pgx.Rows, err error) *Row {
	return &Row{rows: rows, err: err}
}

func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("coretest: destination %T is not a pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case v.Type().ConvertibleTo(target.Type()):
		target.Set(v.Convert(target.Type()))
	default:
		return fmt.Errorf("coretest: cannot scan %T into %T", value, dest)
	}
	return nil
}
