package workout

import (
	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"
)

// Change describes one segment transition.
type Change struct {
	From      int            `json:"from"`
	To        int            `json:"to"`
	Segment   *Segment       `json:"segment,omitempty"`
	Snapshot  tracking.Stats `json:"snapshot"`
	Manual    bool           `json:"manual"`
	Completed bool           `json:"completed"`
}

type EngineOption func(*Engine)

func WithListener(fn func(Change)) EngineOption {
	return func(e *Engine) { e.OnChange(fn) }
}

// Engine steps through a workout's segments. It is not safe for concurrent
// use; the run orchestrator serializes access.
type Engine struct {
	state     ActiveState
	listeners []func(Change)
}

// NewEngine starts at segment 0 with start as the segment snapshot. The
// workout is copied so later edits to it do not reach a running engine.
func NewEngine(w CustomWorkout, start tracking.Stats, opts ...EngineOption) *Engine {
	e := &Engine{state: ActiveState{Workout: w.Clone(), SegmentStart: copyStats(start)}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) OnChange(fn func(Change)) {
	if fn != nil {
		e.listeners = append(e.listeners, fn)
	}
}

// Evaluate advances past the active segment when its target is met.
func (e *Engine) Evaluate(stats tracking.Stats) bool {
	if e.Done() {
		return false
	}
	if !targetMet(e.current(), e.state.SegmentStart, stats) {
		return false
	}
	e.advance(stats, false)
	return true
}

// CompleteCurrentSegment advances by exactly one regardless of progress. It
// is a no-op once the workout is done.
func (e *Engine) CompleteCurrentSegment(stats tracking.Stats) bool {
	if e.Done() {
		return false
	}
	e.advance(stats, true)
	return true
}

func (e *Engine) Done() bool {
	return e.state.Terminal()
}

func (e *Engine) State() ActiveState {
	s := e.state
	s.Workout = s.Workout.Clone()
	s.SegmentStart = copyStats(s.SegmentStart)
	return s
}

// Current returns the active segment, false when done.
func (e *Engine) Current() (Segment, bool) {
	if e.Done() {
		return Segment{}, false
	}
	return e.current().clone(), true
}

func (e *Engine) Progress(stats tracking.Stats) Progress {
	p := Progress{
		SegmentIndex: e.state.CurrentSegmentIndex,
		SegmentCount: len(e.state.Workout.Segments),
	}
	if e.Done() {
		return p
	}
	seg := e.current()
	p.DistanceDone = stats.DistanceMeters - e.state.SegmentStart.DistanceMeters
	p.DurationDone = stats.DurationSeconds - e.state.SegmentStart.DurationSeconds
	p.DistanceTarget = copyFloat(seg.DistanceMeters)
	if d := SegmentDuration(seg); d > 0 || seg.DurationSeconds != nil {
		p.DurationTarget = ptr(d)
		remaining := d - p.DurationDone
		if remaining < 0 {
			remaining = 0
		}
		p.RemainingSeconds = ptr(remaining)
	}
	return p
}

func (e *Engine) current() Segment {
	return e.state.Workout.Segments[e.state.CurrentSegmentIndex]
}

func (e *Engine) advance(stats tracking.Stats, manual bool) {
	from := e.state.CurrentSegmentIndex
	e.state.CurrentSegmentIndex++
	e.state.SegmentStart = copyStats(stats)

	ch := Change{
		From:      from,
		To:        e.state.CurrentSegmentIndex,
		Snapshot:  copyStats(stats),
		Manual:    manual,
		Completed: e.Done(),
	}
	if next, ok := e.Current(); ok {
		ch.Segment = &next
	}
	for _, fn := range e.listeners {
		fn(ch)
	}
}

func targetMet(seg Segment, start, now tracking.Stats) bool {
	if !seg.HasGoal() {
		return false
	}
	distance := now.DistanceMeters - start.DistanceMeters
	elapsed := now.DurationSeconds - start.DurationSeconds

	if seg.DistanceMeters != nil && distance >= *seg.DistanceMeters {
		return true
	}
	if seg.DurationSeconds != nil && elapsed >= *seg.DurationSeconds {
		return true
	}
	if seg.DistanceMeters != nil && seg.TargetPaceMinPerMile != nil && *seg.TargetPaceMinPerMile > 0 {
		return elapsed >= SegmentDuration(Segment{DistanceMeters: seg.DistanceMeters, TargetPaceMinPerMile: seg.TargetPaceMinPerMile})
	}
	return false
}

func copyStats(s tracking.Stats) tracking.Stats {
	s.GradeAdjustedPaceMinPerMile = copyFloat(s.GradeAdjustedPaceMinPerMile)
	return s
}
