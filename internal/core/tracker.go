package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/rosterload/internal/metrics"
)

// listenerBuffer is the channel capacity of each subscriber.
const listenerBuffer = 16

// DefaultResultTTL is how long finished runs stay tracked.
const DefaultResultTTL = 30 * time.Minute

// Tracker is the in-memory progress sink. It keeps the latest update of
// each run, fans updates out to subscribers and forgets finished runs
// after a TTL.
type Tracker struct {
	ttl time.Duration

	mu     sync.RWMutex
	runs   map[string]*trackedRun
	closed bool
}

type trackedRun struct {
	mu        sync.Mutex
	latest    ProgressUpdate
	listeners []chan ProgressUpdate
	done      chan struct{}
	finished  bool
	expiry    *time.Timer
}

// NewTracker creates a Tracker that keeps finished runs for ttl.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &Tracker{
		ttl:  ttl,
		runs: make(map[string]*trackedRun),
	}
}

// Name identifies the sink in metrics.
func (t *Tracker) Name() string { return "memory" }

// Report records update and notifies subscribers. A terminal update
// closes every subscriber channel.
func (t *Tracker) Report(_ context.Context, update ProgressUpdate) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrShuttingDown
	}
	run, ok := t.runs[update.ImportID]
	if !ok {
		run = &trackedRun{done: make(chan struct{})}
		t.runs[update.ImportID] = run
	}
	t.mu.Unlock()

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.finished {
		return nil
	}
	run.latest = update

	terminal := update.Terminal()
	for _, ch := range run.listeners {
		if terminal {
			deliverLast(ch, update)
			continue
		}
		select {
		case ch <- update:
		default:
			// Listener is slow, skip this update
		}
	}

	if terminal {
		run.finished = true
		for _, ch := range run.listeners {
			close(ch)
		}
		run.listeners = nil
		close(run.done)
		run.expiry = time.AfterFunc(t.ttl, func() { t.forget(update.ImportID) })
	}
	return nil
}

// deliverLast sends update, discarding the oldest buffered update if the
// channel is full so a subscriber always observes the final state.
func deliverLast(ch chan ProgressUpdate, update ProgressUpdate) {
	select {
	case ch <- update:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- update:
	default:
	}
}

// Subscribe returns a channel receiving updates of run id, starting with
// the latest one. The channel is closed after the terminal update or when
// unsubscribe is called.
func (t *Tracker) Subscribe(id string) (<-chan ProgressUpdate, func(), error) {
	t.mu.RLock()
	run, ok := t.runs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}

	ch := make(chan ProgressUpdate, listenerBuffer)

	run.mu.Lock()
	defer run.mu.Unlock()
	ch <- run.latest
	if run.finished {
		close(ch)
		return ch, func() {}, nil
	}
	run.listeners = append(run.listeners, ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			run.mu.Lock()
			defer run.mu.Unlock()
			for i, l := range run.listeners {
				if l == ch {
					run.listeners = append(run.listeners[:i], run.listeners[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, unsubscribe, nil
}

// Get returns the latest update of run id.
func (t *Tracker) Get(_ context.Context, id string) (ProgressUpdate, error) {
	t.mu.RLock()
	run, ok := t.runs[id]
	t.mu.RUnlock()
	if !ok {
		return ProgressUpdate{}, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.latest, nil
}

// Wait blocks until run id finishes and returns its terminal update.
// If the tracker closes first, Wait returns the latest update with
// ErrShuttingDown.
func (t *Tracker) Wait(ctx context.Context, id string) (ProgressUpdate, error) {
	t.mu.RLock()
	run, ok := t.runs[id]
	t.mu.RUnlock()
	if !ok {
		return ProgressUpdate{}, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return ProgressUpdate{}, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if !run.latest.Terminal() {
		return run.latest, ErrShuttingDown
	}
	return run.latest, nil
}

// Close stops expiry timers, closes all subscriber channels and releases
// every Wait on a run that has not finished.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true

	for id, run := range t.runs {
		run.mu.Lock()
		if run.expiry != nil {
			run.expiry.Stop()
		}
		for _, ch := range run.listeners {
			close(ch)
		}
		run.listeners = nil
		if !run.finished {
			run.finished = true
			close(run.done)
		}
		run.mu.Unlock()
		delete(t.runs, id)
	}
}

func (t *Tracker) forget(id string) {
	t.mu.Lock()
	delete(t.runs, id)
	t.mu.Unlock()
}

// Sinks fans an update out to several sinks. Every sink is called; their
// errors are joined.
type Sinks []ProgressSink

// Report forwards update to every sink.
func (s Sinks) Report(ctx context.Context, update ProgressUpdate) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Report(ctx, update); err != nil {
			name := sinkName(sink)
			metrics.SinkErrors.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s sink: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func sinkName(sink ProgressSink) string {
	if n, ok := sink.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", sink)
}
