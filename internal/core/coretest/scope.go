package coretest

import (
	"context"
	"sync"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// Scope is a core.Scope over a DB. The lock stands in for the advisory
// lock; atomic scopes restore the pre-run snapshot when fn fails.
type Scope struct {
	DB     *DB
	atomic bool
	lock   sync.Mutex
}

// NewScope returns a Scope over db.
func NewScope(db *DB, atomic bool) *Scope {
	return &Scope{DB: db, atomic: atomic}
}

func (s *Scope) Atomic() bool { return s.atomic }

func (s *Scope) Run(ctx context.Context, fn func(ctx context.Context, db core.DBTX) error) error {
	if !s.lock.TryLock() {
		return core.ErrImportInProgress
	}
	defer s.lock.Unlock()

	var snap map[string][]row
	if s.atomic {
		snap = s.DB.snapshot()
	}
	if err := fn(ctx, s.DB); err != nil {
		if s.atomic {
			s.DB.restore(snap)
		}
		return err
	}
	return nil
}

// Hold takes the lock as another process would and returns its release.
func (s *Scope) Hold() func() {
	s.lock.Lock()
	return s.lock.Unlock
}
