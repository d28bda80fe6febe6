package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/rosterload/internal/metrics"
)

// DefaultBatchSize is the number of records per INSERT statement.
const DefaultBatchSize = 1000

// maxParams is PostgreSQL's limit on bind parameters per statement.
const maxParams = 65535

// BatchProgress is reported after every committed batch.
type BatchProgress struct {
	Entity  EntityType
	Batch   int
	Done    int // Records loaded so far
	Total   int // Records to load after de-duplication
	Elapsed time.Duration
}

// LoadStats summarizes one Load call.
type LoadStats struct {
	Records    int           `json:"records"`
	Duplicates int           `json:"duplicates"`
	Loaded     int           `json:"loaded"`
	Batches    int           `json:"batches"`
	Duration   time.Duration `json:"duration_ns"`
}

// Loader persists records in bounded multi-row INSERT statements.
type Loader struct {
	BatchSize int
}

// NewLoader returns a Loader with batchSize, or DefaultBatchSize when
// batchSize is not positive.
func NewLoader(batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{BatchSize: batchSize}
}

// Load writes records to def's table in sequential batches.
//
// Entities with a natural key are de-duplicated first: the last
// occurrence's values are kept at the first occurrence's position, so a
// single statement never touches a key twice. Those entities are upserted;
// the rest are inserted. The first failing batch aborts with a *LoadError.
func (l *Loader) Load(ctx context.Context, db DBTX, def EntityDefinition, records []Record, onBatch func(BatchProgress)) (LoadStats, error) {
	start := time.Now()
	stats := LoadStats{Records: len(records)}

	if def.Upserts() {
		records, stats.Duplicates = dedupe(records, def.Key)
	}

	size := l.batchSize(len(def.Columns))
	entity := string(def.Info.Type)

	for offset := 0; offset < len(records); offset += size {
		end := offset + size
		if end > len(records) {
			end = len(records)
		}
		batch := records[offset:end]
		stats.Batches++

		batchStart := time.Now()
		query := buildInsert(def, len(batch))
		args := make([]any, 0, len(batch)*len(def.Columns))
		for _, rec := range batch {
			args = append(args, def.Row(rec.Value)...)
		}

		if _, err := db.Exec(ctx, query, args...); err != nil {
			metrics.BatchFailures.WithLabelValues(entity).Inc()
			stats.Duration = time.Since(start)
			return stats, &LoadError{
				Entity:   def.Info.Type,
				Batch:    stats.Batches,
				FirstRow: offset + 1,
				LastRow:  end,
				Err:      err,
			}
		}

		metrics.BatchDuration.WithLabelValues(entity).Observe(time.Since(batchStart).Seconds())
		metrics.RowsLoaded.WithLabelValues(entity).Add(float64(len(batch)))
		stats.Loaded = end

		if onBatch != nil {
			onBatch(BatchProgress{
				Entity:  def.Info.Type,
				Batch:   stats.Batches,
				Done:    end,
				Total:   len(records),
				Elapsed: time.Since(start),
			})
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// batchSize clamps the configured size so one statement stays under the
// bind parameter limit.
func (l *Loader) batchSize(columns int) int {
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if columns > 0 && size*columns > maxParams {
		size = maxParams / columns
	}
	return size
}

// dedupe collapses records sharing a key.
func dedupe(records []Record, key KeyFunc) ([]Record, int) {
	pos := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	dups := 0
	for _, rec := range records {
		k := key(rec.Value)
		if i, seen := pos[k]; seen {
			out[i] = rec
			dups++
			continue
		}
		pos[k] = len(out)
		out = append(out, rec)
	}
	return out, dups
}

// buildInsert renders a multi-row INSERT for rows records, with an
// ON CONFLICT DO UPDATE clause for keyed entities.
func buildInsert(def EntityDefinition, rows int) string {
	cols := def.Columns
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(def.Info.Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
	}

	if def.Upserts() {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(def.Info.ConflictKey)
		b.WriteString(") DO UPDATE SET ")
		first := true
		for _, col := range cols {
			if col == def.Info.ConflictKey {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = EXCLUDED.%s", col, col)
			first = false
		}
		if !first {
			b.WriteString(", ")
		}
		b.WriteString("updated_at = NOW()")
	}

	return b.String()
}
