package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/readiness"
	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"
)

var (
	ErrRunActive   = errors.New("a run is already active")
	ErrNoActiveRun = errors.New("no active run")
)

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec tracking.RunRecord) (tracking.RunRecord, error)
}

type forgetter interface {
	Forget(runID string)
}

// Manager owns the single active run and the readiness gates waiting on each
// user's answer. A gate is only visible to the user it was raised for.
type Manager struct {
	mu     sync.Mutex
	active *Runner
	gates  map[string]*readiness.Gate

	cfg   config.Tracking
	pub   Publisher
	store RunStore
	log   *slog.Logger
}

func NewManager(cfg config.Tracking, pub Publisher, store RunStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, pub: pub, store: store, log: logger, gates: make(map[string]*readiness.Gate)}
}

// HoldForReadiness parks a readiness gate for userID until that user's next
// Start resolves it.
func (m *Manager) HoldForReadiness(userID string, g *readiness.Gate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return ErrRunActive
	}
	m.gates[userID] = g
	return nil
}

// PendingGate returns userID's unanswered readiness gate, if any.
func (m *Manager) PendingGate(userID string) *readiness.Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gates[userID]
	if g == nil || !g.Pending() {
		return nil
	}
	return g
}

// Start creates and starts a runner. Options.Tracking and Publisher default
// to the manager's.
func (m *Manager) Start(opts Options) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrRunActive
	}
	if opts.Tracking == (config.Tracking{}) {
		opts.Tracking = m.cfg
	}
	if opts.Publisher == nil {
		opts.Publisher = m.pub
	}
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	r := New(opts)
	if err := r.Start(); err != nil {
		return nil, err
	}
	m.active = r
	delete(m.gates, opts.UserID)
	return r, nil
}

func (m *Manager) Active() (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, ErrNoActiveRun
	}
	return m.active, nil
}

// Stop ends the active run and persists it. The run is released even if
// persistence fails so a new one can start; the error is returned with the
// result.
func (m *Manager) Stop(ctx context.Context) (Result, error) {
	m.mu.Lock()
	r := m.active
	m.active = nil
	m.mu.Unlock()

	if r == nil {
		return Result{}, ErrNoActiveRun
	}
	res := r.Stop()
	if f, ok := m.pub.(forgetter); ok {
		f.Forget(r.ID())
	}
	if m.store == nil {
		return res, nil
	}
	saved, err := m.store.SaveRun(ctx, res.Record)
	if err != nil {
		m.log.Error("persist run failed", "run_id", r.ID(), "error", err)
		return res, fmt.Errorf("persist run: %w", err)
	}
	res.Record = saved
	return res, nil
}
