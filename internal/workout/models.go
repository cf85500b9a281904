package workout

import (
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"
)

type SegmentType string

const (
	Warmup   SegmentType = "warmup"
	Interval SegmentType = "interval"
	Recovery SegmentType = "recovery"
	Steady   SegmentType = "steady"
	Cooldown SegmentType = "cooldown"
)

func (t SegmentType) Valid() bool {
	switch t {
	case Warmup, Interval, Recovery, Steady, Cooldown:
		return true
	}
	return false
}

// Segment is one phase of a workout. With neither DurationSeconds nor
// DistanceMeters set it only completes manually.
type Segment struct {
	ID                   string      `json:"id"`
	Type                 SegmentType `json:"type"`
	Name                 string      `json:"name"`
	DurationSeconds      *float64    `json:"duration_seconds,omitempty"`
	DistanceMeters       *float64    `json:"distance_meters,omitempty"`
	TargetPaceMinPerMile *float64    `json:"target_pace_min_per_mile,omitempty"`
}

func (s Segment) HasGoal() bool {
	return s.DurationSeconds != nil || s.DistanceMeters != nil
}

func (s Segment) clone() Segment {
	s.DurationSeconds = copyFloat(s.DurationSeconds)
	s.DistanceMeters = copyFloat(s.DistanceMeters)
	s.TargetPaceMinPerMile = copyFloat(s.TargetPaceMinPerMile)
	return s
}

type CustomWorkout struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Segments          []Segment `json:"segments"`
	TotalDistance     float64   `json:"total_distance"`
	EstimatedDuration float64   `json:"estimated_duration"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a copy sharing no memory with w.
func (w CustomWorkout) Clone() CustomWorkout {
	w.Segments = cloneSegments(w.Segments)
	return w
}

type Summary struct {
	TotalDistance float64 `json:"total_distance"`
	TotalDuration float64 `json:"total_duration"`
	RecoveryTime  float64 `json:"recovery_time"`
}

// ActiveState is the execution position within a running workout.
// CurrentSegmentIndex == len(Workout.Segments) is terminal.
type ActiveState struct {
	Workout             CustomWorkout  `json:"workout"`
	CurrentSegmentIndex int            `json:"current_segment_index"`
	SegmentStart        tracking.Stats `json:"segment_start"`
}

func (a ActiveState) Terminal() bool {
	return a.CurrentSegmentIndex >= len(a.Workout.Segments)
}

// Progress of the active segment relative to its start snapshot.
type Progress struct {
	SegmentIndex     int      `json:"segment_index"`
	SegmentCount     int      `json:"segment_count"`
	DistanceDone     float64  `json:"distance_done"`
	DurationDone     float64  `json:"duration_done"`
	DistanceTarget   *float64 `json:"distance_target,omitempty"`
	DurationTarget   *float64 `json:"duration_target,omitempty"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
}

func cloneSegments(in []Segment) []Segment {
	if in == nil {
		return nil
	}
	out := make([]Segment, len(in))
	for i, s := range in {
		out[i] = s.clone()
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func ptr(v float64) *float64 { return &v }
