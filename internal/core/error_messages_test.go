package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"stores_pkey\""),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "same-statement conflict maps correctly",
			err:         errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time"),
			wantCode:    "DB002",
			wantMessage: "Two rows in one batch share the same key",
		},
		{
			name:        "foreign key inside load error",
			err:         &LoadError{Entity: EntitySchedule, Batch: 1, FirstRow: 1, LastRow: 2, Err: errors.New("insert or update on table \"store_schedules\" violates foreign key constraint")},
			wantCode:    "DB003",
			wantMessage: "A schedule references a store that does not exist",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:     "parse error maps to unreadable input",
			err:      &ParseError{Format: "workbook", Err: errors.New("zip: not a valid zip file")},
			wantCode: "IMP001",
		},
		{
			name:     "missing section",
			err:      &InputShapeError{Missing: []string{"schedules"}},
			wantCode: "IMP002",
		},
		{
			name:     "import in progress",
			err:      fmt.Errorf("start import: %w", ErrImportInProgress),
			wantCode: "IMP003",
		},
		{
			name:     "unsupported format wins over invalid input",
			err:      &ParseError{Err: errors.New("unsupported format")},
			wantCode: "IMP004",
		},
		{
			name:     "rejected date",
			err:      errors.New("ERROR: invalid input syntax for type date: \"next tuesday\" (SQLSTATE 22007)"),
			wantCode: "IMP005",
		},
		{
			name:     "import not found",
			err:      fmt.Errorf("%w: abc", ErrImportNotFound),
			wantCode: "UPL003",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(errors.New("deadlock detected"))
	want := "Database was busy with conflicting operations (Code: DB007). Please try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("duplicate key"), true},
		{ErrImportInProgress, true},
		{errors.New("random error"), false},
	}

	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
