// Package run drives one live run: every fix passes through the location
// filter, the track session, the lap engine and the segment engine in that
// order, under a single lock.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/lap"
	"github.com/Zchasse63/voice-fit-sub006/internal/location"
	"github.com/Zchasse63/voice-fit-sub006/internal/readiness"
	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"
	"github.com/Zchasse63/voice-fit-sub006/internal/workout"

	"github.com/google/uuid"
)

var (
	ErrNoWorkout  = errors.New("run has no workout")
	ErrNotRunning = errors.New("run is not in progress")
)

// Publisher receives snapshots for rendering. force marks snapshots that
// must not be throttled away (lap closes, segment changes, state changes).
type Publisher interface {
	Publish(runID string, v any, force bool) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any, bool) bool { return false }

type Options struct {
	ID       string
	UserID   string
	Workout  *workout.CustomWorkout
	Decision *readiness.Decision
	Tracking config.Tracking

	Publisher Publisher
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Snapshot is the read-only view handed to rendering clients.
type Snapshot struct {
	RunID      string               `json:"run_id"`
	UserID     string               `json:"user_id"`
	State      tracking.State       `json:"state"`
	StartedAt  time.Time            `json:"started_at"`
	Stats      tracking.Stats       `json:"stats"`
	Laps       lap.Summary          `json:"laps"`
	LastFix    *location.Fix        `json:"last_fix,omitempty"`
	Workout    *workout.ActiveState `json:"workout,omitempty"`
	Progress   *workout.Progress    `json:"progress,omitempty"`
	Filter     location.Diagnostics `json:"filter"`
	Decision   *readiness.Decision  `json:"decision,omitempty"`
	Event      string               `json:"event,omitempty"`
	Change     *workout.Change      `json:"segment_change,omitempty"`
	LapsClosed []lap.Lap            `json:"laps_closed,omitempty"`
}

// Result is what a stopped run hands to persistence.
type Result struct {
	Record  tracking.RunRecord   `json:"record"`
	Laps    lap.Summary          `json:"laps"`
	Workout *workout.ActiveState `json:"workout,omitempty"`
}

type Runner struct {
	mu sync.Mutex

	id       string
	userID   string
	cfg      config.Tracking
	decision *readiness.Decision
	now      func() time.Time
	pub      Publisher
	log      *slog.Logger

	filter   *location.Filter
	session  *tracking.Session
	laps     *lap.Engine
	plan     *workout.CustomWorkout
	segments *workout.Engine

	pendingChange *workout.Change
	pendingLaps   []lap.Lap
	endedAt       time.Time
}

func New(opts Options) *Runner {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Runner{
		id:       opts.ID,
		userID:   opts.UserID,
		cfg:      opts.Tracking,
		decision: opts.Decision,
		now:      opts.Clock,
		pub:      opts.Publisher,
		log:      opts.Logger.With("run_id", opts.ID),
		filter:   location.NewFilter(opts.Tracking.MaxAccuracyM),
		session:  tracking.NewSession(tracking.ConfigFrom(opts.Tracking), tracking.WithClock(opts.Clock)),
		laps:     lap.NewEngine(opts.Tracking.LapDistanceM),
	}
	if opts.Workout != nil {
		w := opts.Workout.Clone()
		r.plan = &w
	}
	return r
}

func (r *Runner) ID() string     { return r.id }
func (r *Runner) UserID() string { return r.userID }

// Start begins the session and, when a workout is attached, its first segment.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.session.Start(); err != nil {
		return err
	}
	if r.plan != nil {
		if err := workout.Validate(*r.plan); err != nil {
			r.session.Reset()
			return fmt.Errorf("start workout: %w", err)
		}
		r.segments = workout.NewEngine(*r.plan, r.session.Stats(), workout.WithListener(r.onSegmentChange))
	}
	r.log.Info("run started", "user_id", r.userID, "workout", r.plan != nil)
	r.publish("started", true)
	return nil
}

// OnFix processes one fix to completion. It reports whether the fix reached
// the session; paused, stopped and filtered fixes are dropped.
func (r *Runner) OnFix(fix location.Fix) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session.State() != tracking.StateRunning {
		return false
	}
	if !r.filter.Offer(fix) {
		return false
	}
	if !r.session.Ingest(fix) {
		return false
	}

	stats := r.session.Stats()
	force := false
	if closed := r.laps.OnDistanceUpdate(stats.DistanceMeters, stats.DurationSeconds, fix.Timestamp); len(closed) > 0 {
		r.pendingLaps = append(r.pendingLaps, closed...)
		force = true
	}
	if r.segments != nil && r.segments.Evaluate(stats) {
		force = true
	}
	r.publish("fix", force)
	return true
}

func (r *Runner) Pause() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.session.Pause() {
		return false
	}
	r.publish("paused", true)
	return true
}

func (r *Runner) Resume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.session.Resume() {
		return false
	}
	r.publish("resumed", true)
	return true
}

// ManualLap closes a lap from the latest totals.
func (r *Runner) ManualLap() (lap.Lap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active() {
		return lap.Lap{}, ErrNotRunning
	}
	l, ok := r.laps.ManualLap(r.lastFixTime())
	if !ok {
		return lap.Lap{}, nil
	}
	r.pendingLaps = append(r.pendingLaps, l)
	r.publish("lap", true)
	return l, nil
}

// CompleteSegment advances the workout by one segment regardless of
// progress. It is a no-op on a finished workout.
func (r *Runner) CompleteSegment() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segments == nil {
		return false, ErrNoWorkout
	}
	if !r.active() {
		return false, ErrNotRunning
	}
	if !r.segments.CompleteCurrentSegment(r.session.Stats()) {
		return false, nil
	}
	r.publish("segment_completed", true)
	return true, nil
}

// Stop freezes the run. Calling it again returns the same result.
func (r *Runner) Stop() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.active()
	stats := r.session.Stop()
	if first {
		r.endedAt = r.lastFixTime()
		r.log.Info("run stopped", "distance_m", stats.DistanceMeters, "duration_sec", stats.DurationSeconds, "laps", len(r.laps.Laps()))
		r.publish("stopped", true)
	}

	res := Result{
		Record: tracking.RunRecord{
			ID:        r.id,
			UserID:    r.userID,
			StartedAt: r.session.StartTime(),
			EndedAt:   r.endedAt,
			Stats:     stats,
			Path:      r.session.Path(),
			Laps:      r.laps.Laps(),
			Filter:    r.filter.Diagnostics(),
		},
		Laps: r.laps.Summary(),
	}
	if r.plan != nil {
		res.Record.WorkoutID = r.plan.ID
	}
	if r.segments != nil {
		st := r.segments.State()
		res.Workout = &st
	}
	return res
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Attach subscribes the runner to a location provider after checking
// permission. The returned func unsubscribes.
func (r *Runner) Attach(ctx context.Context, provider location.Provider) (func(), error) {
	if err := location.EnsurePermission(ctx, provider); err != nil {
		return nil, err
	}
	unsubscribe, err := provider.Subscribe(func(fix location.Fix) { r.OnFix(fix) }, location.SubscribeOptions{
		MinAccuracyMeters: r.cfg.MaxAccuracyM,
		MinDistanceMeters: r.cfg.MinDistanceM,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to location: %w", err)
	}
	return unsubscribe, nil
}

func (r *Runner) onSegmentChange(ch workout.Change) {
	r.pendingChange = &ch
	r.log.Info("segment changed", "from", ch.From, "to", ch.To, "manual", ch.Manual, "completed", ch.Completed)
	if !r.cfg.LapOnSegmentChange {
		return
	}
	if l, ok := r.laps.ManualLap(r.lastFixTime()); ok {
		r.pendingLaps = append(r.pendingLaps, l)
	}
}

func (r *Runner) active() bool {
	st := r.session.State()
	return st == tracking.StateRunning || st == tracking.StatePaused
}

func (r *Runner) lastFixTime() time.Time {
	if fix, ok := r.session.LastFix(); ok {
		return fix.Timestamp
	}
	return r.now()
}

// publish must run with mu held. It consumes the pending lap and segment
// change so each is delivered on exactly one snapshot.
func (r *Runner) publish(event string, force bool) {
	snap := r.snapshot()
	snap.Event = event
	snap.Change = r.pendingChange
	snap.LapsClosed = r.pendingLaps
	r.pendingChange = nil
	r.pendingLaps = nil
	r.pub.Publish(r.id, snap, force)
}

func (r *Runner) snapshot() Snapshot {
	stats := r.session.Stats()
	snap := Snapshot{
		RunID:     r.id,
		UserID:    r.userID,
		State:     r.session.State(),
		StartedAt: r.session.StartTime(),
		Stats:     stats,
		Laps:      r.laps.Summary(),
		Filter:    r.filter.Diagnostics(),
		Decision:  r.decision,
	}
	if fix, ok := r.session.LastFix(); ok {
		snap.LastFix = &fix
	}
	if r.segments != nil {
		st := r.segments.State()
		p := r.segments.Progress(stats)
		snap.Workout = &st
		snap.Progress = &p
	}
	return snap
}
