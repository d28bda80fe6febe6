package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/rosterload/internal/logging"
	"github.com/JonMunkholm/rosterload/internal/metrics"
)

// verifySampleSize is the number of sample rows read per table.
const verifySampleSize = 3

// Importer sequences one import run:
//
//	preflight -> clearing -> loading_stores -> loading_contacts ->
//	loading_schedules -> verifying -> completed | failed
//
// Preflight (decode, classify, transform) finishes before any statement
// touches the target tables. Clearing and loading run inside the Scope;
// verification reads the committed result through db.
type Importer struct {
	db     DBTX
	scope  Scope
	loader *Loader
}

// NewImporter creates an Importer. db serves verification reads; scope
// provides the locked (and optionally transactional) handle for clearing
// and loading.
func NewImporter(db DBTX, scope Scope, loader *Loader) *Importer {
	if loader == nil {
		loader = NewLoader(DefaultBatchSize)
	}
	return &Importer{db: db, scope: scope, loader: loader}
}

// prepared is the outcome of preflight.
type prepared struct {
	records map[EntityType][]Record
}

// Run executes the import for payload and finalizes run. The returned
// report is populated as far as the run progressed.
func (im *Importer) Run(ctx context.Context, run *Run, payload []byte) (*RunReport, error) {
	start := time.Now()
	ctx, logger := logging.WithRun(ctx, run.ID, run.Source)
	run.logger = logger

	report := NewRunReport()
	report.DryRun = run.DryRun
	report.Atomic = im.scope.Atomic()

	// Finalization must reach the sinks even when ctx has expired.
	finalCtx := context.WithoutCancel(ctx)
	fail := func(err error) (*RunReport, error) {
		report.DurationMS = time.Since(start).Milliseconds()
		run.Fail(finalCtx, err, report)
		logger.Error("import failed", "state", run.State(), "error", err, "duration_ms", report.DurationMS)
		return report, err
	}

	logger.Info("import started", "dry_run", run.DryRun, "atomic", report.Atomic, "bytes", len(payload))
	run.Advance(ctx, progressPreflight, "validating input")

	phaseStart := time.Now()
	prep, err := im.preflight(ctx, payload, report)
	im.observePhase(ctx, report, StateIdle, phaseStart)
	if err != nil {
		return fail(err)
	}

	if run.DryRun {
		report.DurationMS = time.Since(start).Milliseconds()
		run.Complete(finalCtx, report, report.Summary())
		logger.Info("dry run completed", "summary", report.Summary(), "duration_ms", report.DurationMS)
		return report, nil
	}

	err = im.scope.Run(ctx, func(ctx context.Context, db DBTX) error {
		if err := im.clear(ctx, run, db, report); err != nil {
			return err
		}
		for _, entity := range LoadOrder {
			if err := im.load(ctx, run, db, entity, prep.records[entity], report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		report.RolledBack = report.Atomic && !errors.Is(err, ErrImportInProgress)
		return fail(err)
	}

	if err := run.Transition(ctx, StateVerifying, "verifying"); err != nil {
		return fail(err)
	}
	phaseStart = time.Now()
	report.Verification = im.verify(ctx, report)
	im.observePhase(ctx, report, StateVerifying, phaseStart)

	report.DurationMS = time.Since(start).Milliseconds()
	run.Complete(finalCtx, report, report.Summary())
	logger.Info("import completed", "summary", report.Summary(), "duration_ms", report.DurationMS)
	return report, nil
}

// Preflight decodes, classifies and transforms payload without touching
// the target store.
func (im *Importer) preflight(ctx context.Context, payload []byte, report *RunReport) (*prepared, error) {
	logger := logging.FromContext(ctx)

	input, err := DecodeInput(payload)
	if err != nil {
		return nil, err
	}
	report.Format = input.Format
	report.EmptySheets = input.Empty

	classes := ClassifySheets(input.Sheets)
	report.Unclassified = classes.Misses
	for _, miss := range classes.Misses {
		logger.Warn("sheet not classified", "sheet", miss.Sheet, "headers", miss.Headers)
	}
	if err := classes.RequireAll(); err != nil {
		return nil, err
	}

	prep := &prepared{records: make(map[EntityType][]Record, len(LoadOrder))}
	for _, sheet := range input.Sheets {
		report.Sheets = append(report.Sheets, SheetReport{Name: sheet.Name, Entity: sheetEntity(sheet, classes), Rows: len(sheet.Rows)})
	}

	for _, entity := range LoadOrder {
		def, ok := Get(entity)
		if !ok {
			return nil, fmt.Errorf("entity %s is not registered", entity)
		}
		er := report.Entity(entity)
		for _, sheet := range classes.Groups[entity] {
			res := Transform(sheet, def)
			er.Sheets++
			er.Rows += len(sheet.Rows)
			er.Transformed += len(res.Records)
			er.Dropped += len(res.Skipped)
			for _, skip := range res.Skipped {
				logger.Debug("row skipped", "entity", entity, "reason", skip.Error())
			}
			er.Invalid += len(res.Invalid)
			for _, inv := range res.Invalid {
				if len(er.Errors) < MaxInvalidSamples {
					er.Errors = append(er.Errors, inv)
				}
			}
			prep.records[entity] = append(prep.records[entity], res.Records...)
		}

		metrics.RowsSkipped.WithLabelValues(string(entity), metrics.ReasonEmpty).Add(float64(er.Dropped))
		metrics.RowsSkipped.WithLabelValues(string(entity), metrics.ReasonInvalid).Add(float64(er.Invalid))
		logger.Info("entity transformed",
			"entity", entity,
			"sheets", er.Sheets,
			"records", er.Transformed,
			"dropped", er.Dropped,
			"invalid", er.Invalid,
		)
	}

	return prep, nil
}

// sheetEntity returns the entity a sheet was grouped under, or "".
func sheetEntity(sheet Sheet, c Classification) EntityType {
	if sheet.Entity != "" {
		return sheet.Entity
	}
	for entity, sheets := range c.Groups {
		for _, s := range sheets {
			if s.Name == sheet.Name {
				return entity
			}
		}
	}
	return ""
}

// clear deletes all rows child-first.
func (im *Importer) clear(ctx context.Context, run *Run, db DBTX, report *RunReport) error {
	if err := run.Transition(ctx, StateClearing, "clearing existing data"); err != nil {
		return err
	}
	start := time.Now()
	defer im.observePhase(ctx, report, StateClearing, start)

	for i := len(LoadOrder) - 1; i >= 0; i-- {
		def, _ := Get(LoadOrder[i])
		tag, err := db.Exec(ctx, "DELETE FROM "+def.Info.Table)
		if err != nil {
			return fmt.Errorf("clear %s: %w", def.Info.Table, err)
		}
		logging.FromContext(ctx).Debug("table cleared", "table", def.Info.Table, "rows", tag.RowsAffected())
	}
	return nil
}

// load runs the loading phase of one entity.
func (im *Importer) load(ctx context.Context, run *Run, db DBTX, entity EntityType, records []Record, report *RunReport) error {
	def, _ := Get(entity)
	state := loadState[entity]
	if err := run.Transition(ctx, state, fmt.Sprintf("loading %s", def.Info.Table)); err != nil {
		return err
	}
	start := time.Now()
	defer im.observePhase(ctx, report, state, start)

	stats, err := im.loader.Load(ctx, db, def, records, func(p BatchProgress) {
		run.Advance(ctx, loadProgress(state, p.Done, p.Total),
			fmt.Sprintf("loading %s: %d/%d", def.Info.Table, p.Done, p.Total))
	})

	er := report.Entity(entity)
	er.Duplicates = stats.Duplicates
	er.Loaded = stats.Loaded
	er.Batches = stats.Batches
	metrics.RowsSkipped.WithLabelValues(string(entity), metrics.ReasonDuplicate).Add(float64(stats.Duplicates))
	return err
}

// verify counts and samples every table. Failures become
// VerificationErrors and never fail the run.
func (im *Importer) verify(ctx context.Context, report *RunReport) *VerificationSummary {
	summary := &VerificationSummary{}
	logger := logging.FromContext(ctx)

	for _, def := range All() {
		tv := TableVerification{
			Entity:   def.Info.Type,
			Table:    def.Info.Table,
			Expected: report.Entity(def.Info.Type).Loaded,
		}

		countQuery := "SELECT COUNT(*) FROM " + def.Info.Table
		if err := im.db.QueryRow(ctx, countQuery).Scan(&tv.Count); err != nil {
			summary.Errors = append(summary.Errors, VerificationError{
				Entity: def.Info.Type, Table: def.Info.Table, Query: "count", Err: err.Error(),
			})
		}

		sample, err := im.sample(ctx, def)
		if err != nil {
			summary.Errors = append(summary.Errors, VerificationError{
				Entity: def.Info.Type, Table: def.Info.Table, Query: "sample", Err: err.Error(),
			})
		}
		tv.Sample = sample

		if !tv.Matches() {
			logger.Warn("row count differs from loaded records", "table", tv.Table, "count", tv.Count, "loaded", tv.Expected)
		}
		summary.Tables = append(summary.Tables, tv)
	}

	for _, verr := range summary.Errors {
		logger.Warn("verification query failed", "table", verr.Table, "query", verr.Query, "error", verr.Err)
	}
	return summary
}

func (im *Importer) sample(ctx context.Context, def EntityDefinition) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d",
		strings.Join(def.Columns, ", "), def.Info.Table, def.Info.OrderBy, verifySampleSize)

	rows, err := im.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return out, err
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			if i < len(def.Columns) {
				row[def.Columns[i]] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (im *Importer) observePhase(ctx context.Context, report *RunReport, state RunState, start time.Time) {
	d := time.Since(start)
	phase := string(state)
	if state == StateIdle {
		phase = "preflight"
	}
	metrics.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	report.recordPhase(state, d)
	logging.FromContext(ctx).Info("phase finished", "phase", phase, "duration_ms", d.Milliseconds())
}
