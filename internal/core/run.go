package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/rosterload/internal/logging"
	"github.com/JonMunkholm/rosterload/internal/metrics"
)

// Progress percentages reported on entering each phase.
const (
	progressPreflight = 5
	progressClearing  = 10
	progressVerifying = 90
	progressDone      = 100
)

// phaseProgress is the percentage on entering each load phase. Batches
// advance toward the next phase's value.
var phaseProgress = map[RunState][2]int{
	StateLoadingStores:    {30, 50},
	StateLoadingContacts:  {50, 70},
	StateLoadingSchedules: {70, 90},
}

// nextStates lists the legal transitions. Failure is legal from any
// non-terminal state.
var nextStates = map[RunState]RunState{
	StateIdle:             StateClearing,
	StateClearing:         StateLoadingStores,
	StateLoadingStores:    StateLoadingContacts,
	StateLoadingContacts:  StateLoadingSchedules,
	StateLoadingSchedules: StateVerifying,
	StateVerifying:        StateCompleted,
}

// Run is the progress record of one import. It is created at start,
// mutated at every phase boundary and finalized once.
type Run struct {
	ID     string
	Source string
	DryRun bool

	sink   ProgressSink
	logger *slog.Logger

	mu         sync.Mutex
	state      RunState
	status     RunStatus
	progress   int
	message    string
	report     *RunReport
	startedAt  time.Time
	finishedAt *time.Time
}

// NewRun creates a run in state idle. sink may be nil.
func NewRun(ctx context.Context, id, source string, sink ProgressSink) *Run {
	return &Run{
		ID:        id,
		Source:    source,
		sink:      sink,
		logger:    logging.FromContext(ctx),
		state:     StateIdle,
		status:    StatusProcessing,
		message:   "queued",
		startedAt: time.Now().UTC(),
	}
}

// State returns the current phase.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current progress record.
func (r *Run) Snapshot() ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() ProgressUpdate {
	return ProgressUpdate{
		ImportID:   r.ID,
		Source:     r.Source,
		Status:     r.status,
		State:      r.state,
		Progress:   r.progress,
		Message:    r.message,
		DryRun:     r.DryRun,
		Metadata:   r.report,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

// Advance reports progress within the current phase.
func (r *Run) Advance(ctx context.Context, progress int, message string) {
	r.mu.Lock()
	if r.status != StatusProcessing {
		r.mu.Unlock()
		return
	}
	if progress > r.progress {
		r.progress = progress
	}
	r.message = message
	update := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(ctx, update)
}

// Transition moves the run to the next phase. Phases cannot be skipped or
// re-entered.
func (r *Run) Transition(ctx context.Context, next RunState, message string) error {
	r.mu.Lock()
	if want, ok := nextStates[r.state]; !ok || want != next || r.status != StatusProcessing {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("invalid run transition %s -> %s", state, next)
	}

	r.state = next
	r.message = message
	switch next {
	case StateClearing:
		r.progress = progressClearing
	case StateVerifying:
		r.progress = progressVerifying
	default:
		if p, ok := phaseProgress[next]; ok {
			r.progress = p[0]
		}
	}
	update := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("import phase", "state", next, "progress", update.Progress)
	r.publish(ctx, update)
	return nil
}

// Complete finalizes a successful run.
func (r *Run) Complete(ctx context.Context, report *RunReport, message string) {
	r.finish(ctx, StateCompleted, StatusCompleted, report, message)
}

// Fail finalizes a failed run with err's message.
func (r *Run) Fail(ctx context.Context, err error, report *RunReport) {
	r.finish(ctx, StateFailed, StatusFailed, report, err.Error())
}

func (r *Run) finish(ctx context.Context, state RunState, status RunStatus, report *RunReport, message string) {
	r.mu.Lock()
	if r.status != StatusProcessing {
		r.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	r.state = state
	r.status = status
	r.message = message
	r.report = report
	r.finishedAt = &now
	if status == StatusCompleted {
		r.progress = progressDone
	}
	update := r.snapshotLocked()
	r.mu.Unlock()

	metrics.ImportRuns.WithLabelValues(string(status)).Inc()
	r.publish(ctx, update)
}

// publish forwards an update to the sink. Failures are logged only.
func (r *Run) publish(ctx context.Context, update ProgressUpdate) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Report(ctx, update); err != nil {
		r.logger.Warn("progress sink failed", "state", update.State, "error", err)
	}
}

// loadProgress maps batch completion within a load phase to a percentage.
func loadProgress(state RunState, done, total int) int {
	p, ok := phaseProgress[state]
	if !ok || total <= 0 {
		return 0
	}
	return p[0] + (p[1]-p[0])*done/total
}
