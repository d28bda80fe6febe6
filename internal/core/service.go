package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rosterload/internal/logging"
	"github.com/JonMunkholm/rosterload/internal/metrics"
)

// DefaultRunTimeout bounds one import run.
const DefaultRunTimeout = 10 * time.Minute

// ServiceOptions configures a Service. Zero values select defaults.
type ServiceOptions struct {
	Timeout   time.Duration  // Bound on one run, detached from the caller
	MaxWait   time.Duration  // How long a new run waits for the run slot
	ResultTTL time.Duration  // How long finished runs stay in the tracker
	Sinks     []ProgressSink // External sinks, in addition to the tracker
	History   RunHistory     // Fallback for runs the tracker has forgotten
}

// Service is the entry point for imports, used by the HTTP handlers and
// the CLI alike.
type Service struct {
	importer *Importer
	limiter  *RunLimiter
	tracker  *Tracker
	sink     ProgressSink
	history  RunHistory
	timeout  time.Duration

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewService creates a Service around importer.
func NewService(importer *Importer, opts ServiceOptions) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRunTimeout
	}

	tracker := NewTracker(opts.ResultTTL)
	sinks := append(Sinks{tracker}, opts.Sinks...)

	return &Service{
		importer: importer,
		limiter:  NewRunLimiter(1, opts.MaxWait),
		tracker:  tracker,
		sink:     sinks,
		history:  opts.History,
		timeout:  opts.Timeout,
	}
}

// NewPoolService wires a Service to pool with the given scope and batch size.
func NewPoolService(pool *pgxpool.Pool, scope Scope, batchSize int, opts ServiceOptions) *Service {
	return NewService(NewImporter(pool, scope, NewLoader(batchSize)), opts)
}

// StartImport begins an asynchronous import and returns its id
// immediately. The run is detached from ctx: it keeps running after the
// request ends and is bounded only by the configured timeout.
func (s *Service) StartImport(ctx context.Context, source string, payload []byte, dryRun bool) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	if err := s.begin(); err != nil {
		s.limiter.Release()
		return "", err
	}

	run := s.newRun(ctx, source, dryRun)

	metrics.ActiveRuns.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.ActiveRuns.Dec()
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				run.Fail(context.WithoutCancel(ctx), fmt.Errorf("import panicked: %v", r), nil)
				logging.FromContext(ctx).Error("import panicked", "import_id", run.ID, "panic", r)
			}
		}()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		_, _ = s.importer.Run(runCtx, run, payload)
	}()

	return run.ID, nil
}

// RunImport executes an import synchronously and returns its terminal
// update. The error is the run's fatal error, if any.
func (s *Service) RunImport(ctx context.Context, source string, payload []byte, dryRun bool) (ProgressUpdate, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ProgressUpdate{}, err
	}
	if err := s.begin(); err != nil {
		s.limiter.Release()
		return ProgressUpdate{}, err
	}
	defer s.wg.Done()
	defer s.limiter.Release()

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	run := s.newRun(ctx, source, dryRun)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.importer.Run(runCtx, run, payload)
	return run.Snapshot(), err
}

// begin registers a run unless Shutdown has been called.
func (s *Service) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrShuttingDown
	}
	s.wg.Add(1)
	return nil
}

func (s *Service) newRun(ctx context.Context, source string, dryRun bool) *Run {
	run := NewRun(ctx, uuid.New().String(), source, s.sink)
	run.DryRun = dryRun
	if err := s.sink.Report(ctx, run.Snapshot()); err != nil {
		logging.FromContext(ctx).Warn("progress sink failed", "import_id", run.ID, "error", err)
	}
	return run
}

// Subscribe streams the progress of run id. See Tracker.Subscribe.
func (s *Service) Subscribe(id string) (<-chan ProgressUpdate, func(), error) {
	return s.tracker.Subscribe(id)
}

// Progress returns the latest progress of run id without blocking.
func (s *Service) Progress(ctx context.Context, id string) (ProgressUpdate, error) {
	update, err := s.tracker.Get(ctx, id)
	if errors.Is(err, ErrImportNotFound) && s.history != nil {
		return s.history.Get(ctx, id)
	}
	return update, err
}

// Result waits for run id to finish and returns its terminal update.
func (s *Service) Result(ctx context.Context, id string) (ProgressUpdate, error) {
	update, err := s.tracker.Wait(ctx, id)
	if errors.Is(err, ErrImportNotFound) && s.history != nil {
		return s.history.Get(ctx, id)
	}
	return update, err
}

// Limiter exposes the run limiter for health reporting.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Shutdown rejects new runs, waits for running imports to release the
// run slot, then closes the tracker so pending subscribers and waiters
// return. Runs still active when ctx expires are abandoned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	defer s.tracker.Close()
	if active := s.limiter.ActiveCount(); active > 0 {
		logging.FromContext(ctx).Info("waiting for imports to complete", "active", active)
	}
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("waiting for imports: %w", err)
	}
	s.wg.Wait()
	return nil
}
