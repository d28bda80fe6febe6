package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInsert(t *testing.T) {
	upsert := buildInsert(petDefinition, 2)
	assert.Equal(t,
		"INSERT INTO pets (name, age) VALUES ($1, $2), ($3, $4) ON CONFLICT (name) DO UPDATE SET age = EXCLUDED.age, updated_at = NOW()",
		upsert)

	plain := petDefinition
	plain.Info.ConflictKey = ""
	assert.Equal(t, "INSERT INTO pets (name, age) VALUES ($1, $2)", buildInsert(plain, 1))
}

func TestDedupe(t *testing.T) {
	records := []Record{
		{Row: 2, Value: pet{Name: "Rex", Age: 1}},
		{Row: 3, Value: pet{Name: "Tom", Age: 2}},
		{Row: 4, Value: pet{Name: "Rex", Age: 5}},
		{Row: 5, Value: pet{Name: "Rex", Age: 7}},
	}

	out, dups := dedupe(records, petDefinition.Key)

	assert.Equal(t, 2, dups)
	assert.Equal(t, []Record{
		{Row: 5, Value: pet{Name: "Rex", Age: 7}},
		{Row: 3, Value: pet{Name: "Tom", Age: 2}},
	}, out)
}

func TestLoaderBatchSize(t *testing.T) {
	tests := []struct {
		configured int
		columns    int
		expected   int
	}{
		{1000, 11, 1000},
		{0, 8, DefaultBatchSize},
		{10000, 11, maxParams / 11},
		{70000, 1, maxParams},
	}

	for _, tt := range tests {
		l := &Loader{BatchSize: tt.configured}
		if got := l.batchSize(tt.columns); got != tt.expected {
			t.Errorf("batchSize(%d cols, configured %d) = %d, want %d", tt.columns, tt.configured, got, tt.expected)
		}
	}
}
