package core_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/core"
	_ "github.com/JonMunkholm/rosterload/internal/core/tables"
)

// rosterDoc builds a JSON import document. Nil sections encode as empty
// arrays.
func rosterDoc(t *testing.T, stores, employees, schedules []map[string]any) []byte {
	t.Helper()
	doc := map[string]any{
		"stores":    section(stores),
		"employees": section(employees),
		"schedules": section(schedules),
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return b
}

func section(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

// minimalRoster is one store, one employee and one shift.
func minimalRoster(t *testing.T) []byte {
	return rosterDoc(t,
		[]map[string]any{
			{"store_number": 101, "name": "Downtown", "city": "Austin", "state": "Texas"},
		},
		[]map[string]any{
			{"name": "Jane Doe", "phone": "512-555-0100", "employee_id": "7", "role": "Manager"},
		},
		[]map[string]any{
			{"store_number": 101, "date": "2023-01-01", "employee_name": "Jane Doe", "shift_time": "9:00am - 5:00pm"},
		},
	)
}

// progressLog is a ProgressSink that keeps every update.
type progressLog struct {
	mu      sync.Mutex
	updates []core.ProgressUpdate
}

func (p *progressLog) Report(_ context.Context, u core.ProgressUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return nil
}

func (p *progressLog) all() []core.ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.ProgressUpdate(nil), p.updates...)
}

// states returns the distinct consecutive states reported.
func (p *progressLog) states() []core.RunState {
	var out []core.RunState
	for _, u := range p.all() {
		if len(out) == 0 || out[len(out)-1] != u.State {
			out = append(out, u.State)
		}
	}
	return out
}
