package tracking

import (
	"errors"
	"math"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/location"
	"github.com/Zchasse63/voice-fit-sub006/internal/shared/geo"
	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

var ErrSessionStarted = errors.New("session already started")

// Config tunes elevation and grade handling.
type Config struct {
	ElevationNoiseFloorM float64
	MinGradeDistanceM    float64
	GradeWindow          int
	MaxGrade             float64
	GradeCostFactor      float64
	CaloriesPerMile      float64
	Terrain              TerrainThresholds
}

func ConfigFrom(t config.Tracking) Config {
	return Config{
		ElevationNoiseFloorM: t.ElevationNoiseFloorM,
		MinGradeDistanceM:    t.MinGradeDistanceM,
		GradeWindow:          t.GradeWindow,
		MaxGrade:             t.MaxGrade,
		GradeCostFactor:      t.GradeCostFactor,
		CaloriesPerMile:      t.CaloriesPerMile,
		Terrain:              DefaultTerrainThresholds(),
	}
}

func DefaultConfig() Config {
	return ConfigFrom(config.DefaultTracking())
}

type Option func(*Session)

// WithClock replaces time.Now as the start time reported before any fix
// arrives.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session accumulates distance, duration, pace, elevation and terrain from
// accepted fixes. It is not safe for concurrent use; the run orchestrator
// serializes access.
type Session struct {
	cfg Config
	now func() time.Time

	state       State
	startTime   time.Time
	anchored    bool
	resumed     bool
	pausedTotal time.Duration

	prev    *location.Fix
	path    []location.Fix
	stats   Stats
	elevRef *float64

	gradeAnchorDist float64
	gradeAnchorAlt  *float64
	grades          []float64
	lastGrade       float64
	hasGrade        bool
}

func NewSession(cfg Config, opts ...Option) *Session {
	if cfg.GradeWindow < 1 {
		cfg.GradeWindow = 1
	}
	s := &Session{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *Session) Start() error {
	if s.state != StateIdle {
		return ErrSessionStarted
	}
	s.startTime = s.now()
	s.state = StateRunning
	return nil
}

// Pause stops duration accrual. Fixes ingested while paused are discarded.
func (s *Session) Pause() bool {
	if s.state != StateRunning {
		return false
	}
	s.state = StatePaused
	return true
}

// Resume restarts accrual. The next fix becomes a fresh anchor so ground
// covered while paused never counts.
func (s *Session) Resume() bool {
	if s.state != StatePaused {
		return false
	}
	s.resumed = len(s.path) > 0
	s.prev = nil
	s.elevRef = nil
	s.gradeAnchorAlt = nil
	s.gradeAnchorDist = s.stats.DistanceMeters
	s.state = StateRunning
	return true
}

// Ingest folds an accepted fix into the running totals. It reports false and
// changes nothing unless the session is running.
//
// Duration is measured on the fix clock only: the first accepted fix anchors
// the start, and the gap between the last fix before a pause and the first
// fix after the resume is excluded.
func (s *Session) Ingest(fix location.Fix) bool {
	if s.state != StateRunning {
		return false
	}

	if !s.anchored {
		s.startTime = fix.Timestamp
		s.anchored = true
	}
	if s.resumed {
		last := s.path[len(s.path)-1].Timestamp
		if gap := fix.Timestamp.Sub(last); gap > 0 {
			s.pausedTotal += gap
		}
		s.resumed = false
	}
	if s.prev != nil {
		s.stats.DistanceMeters += geo.HaversineM(s.prev.Latitude, s.prev.Longitude, fix.Latitude, fix.Longitude)
	}
	if fix.Altitude != nil {
		s.trackElevation(*fix.Altitude)
		s.trackGrade(*fix.Altitude)
	}

	duration := fix.Timestamp.Sub(s.startTime) - s.pausedTotal
	if duration < 0 {
		duration = 0
	}
	s.stats.DurationSeconds = duration.Seconds()
	s.refreshDerived()

	f := fix
	s.prev = &f
	s.path = append(s.path, fix)
	return true
}

// Stop freezes the stats as of the last accepted fix.
func (s *Session) Stop() Stats {
	if s.state != StateIdle {
		s.state = StateStopped
	}
	return s.Stats()
}

// Reset returns the session to its pre-Start condition.
func (s *Session) Reset() {
	s.state = StateIdle
	s.startTime = time.Time{}
	s.anchored = false
	s.resumed = false
	s.pausedTotal = 0
	s.prev = nil
	s.path = nil
	s.stats = emptyStats()
	s.elevRef = nil
	s.gradeAnchorDist = 0
	s.gradeAnchorAlt = nil
	s.grades = nil
	s.lastGrade = 0
	s.hasGrade = false
}

func (s *Session) State() State {
	return s.state
}

// StartTime is the first accepted fix's timestamp, or the clock reading taken
// at Start while no fix has arrived.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

func (s *Session) Stats() Stats {
	out := s.stats
	if s.stats.GradeAdjustedPaceMinPerMile != nil {
		gap := *s.stats.GradeAdjustedPaceMinPerMile
		out.GradeAdjustedPaceMinPerMile = &gap
	}
	return out
}

// Path returns the accepted fixes in arrival order.
func (s *Session) Path() []location.Fix {
	out := make([]location.Fix, len(s.path))
	copy(out, s.path)
	return out
}

// LastFix returns the most recently accepted fix, if any.
func (s *Session) LastFix() (location.Fix, bool) {
	if len(s.path) == 0 {
		return location.Fix{}, false
	}
	return s.path[len(s.path)-1], true
}

// trackElevation counts altitude change only once it clears the noise floor
// relative to the last counted reference, so slow climbs still register but
// jitter around a level does not.
func (s *Session) trackElevation(alt float64) {
	if s.elevRef == nil {
		ref := alt
		s.elevRef = &ref
		return
	}
	delta := alt - *s.elevRef
	if math.Abs(delta) < s.cfg.ElevationNoiseFloorM || delta == 0 {
		return
	}
	if delta > 0 {
		s.stats.ElevationGainMeters += delta
	} else {
		s.stats.ElevationLossMeters -= delta
	}
	*s.elevRef = alt
}

func (s *Session) trackGrade(alt float64) {
	if s.gradeAnchorAlt == nil {
		a := alt
		s.gradeAnchorAlt = &a
		s.gradeAnchorDist = s.stats.DistanceMeters
		return
	}
	run := s.stats.DistanceMeters - s.gradeAnchorDist
	if run < s.cfg.MinGradeDistanceM || run <= 0 {
		return
	}
	grade := (alt - *s.gradeAnchorAlt) / run
	if s.cfg.MaxGrade > 0 {
		grade = math.Max(-s.cfg.MaxGrade, math.Min(s.cfg.MaxGrade, grade))
	}
	s.lastGrade = grade
	s.hasGrade = true
	s.grades = append(s.grades, grade)
	if len(s.grades) > s.cfg.GradeWindow {
		s.grades = s.grades[len(s.grades)-s.cfg.GradeWindow:]
	}
	*s.gradeAnchorAlt = alt
	s.gradeAnchorDist = s.stats.DistanceMeters
}

func (s *Session) smoothedGrade() float64 {
	if len(s.grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range s.grades {
		sum += g
	}
	return sum / float64(len(s.grades))
}

func (s *Session) refreshDerived() {
	st := &s.stats
	st.PaceMinPerMile = units.PaceMinPerMile(st.DurationSeconds, st.DistanceMeters)
	st.AvgSpeedMph = units.SpeedMph(st.DurationSeconds, st.DistanceMeters)
	st.Calories = units.MilesOf(st.DistanceMeters) * s.cfg.CaloriesPerMile
	st.TerrainDifficulty = ClassifyTerrain(s.smoothedGrade(), s.cfg.Terrain)

	st.GradeAdjustedPaceMinPerMile = nil
	if s.hasGrade && st.PaceAvailable() {
		gap := GradeAdjustedPace(st.PaceMinPerMile, s.lastGrade, s.cfg.GradeCostFactor)
		st.GradeAdjustedPaceMinPerMile = &gap
	}
}
