package tracking

import (
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/lap"
	"github.com/Zchasse63/voice-fit-sub006/internal/location"
)

// RunRecord is a finished run as persisted to history.
type RunRecord struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	WorkoutID string               `json:"workout_id,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	EndedAt   time.Time            `json:"ended_at"`
	Stats     Stats                `json:"stats"`
	Path      []location.Fix       `json:"-"`
	Laps      []lap.Lap            `json:"laps"`
	Filter    location.Diagnostics `json:"filter"`
}

type TrackPoint struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	Seq                int       `json:"seq"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	ElevationM         *float64  `json:"elevation_m,omitempty"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	RecordedAt         time.Time `json:"recorded_at"`
}

type Summary struct {
	RunID           string    `json:"run_id"`
	UserID          string    `json:"user_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	PointCount      int       `json:"point_count"`
	LapCount        int       `json:"lap_count"`
	DistanceM       float64   `json:"distance_m"`
	DurationSec     float64   `json:"duration_sec"`
	PaceMinPerMile  float64   `json:"pace_min_per_mile"`
	AverageSpeedMph float64   `json:"average_speed_mph"`
	ElevationGainM  float64   `json:"elevation_gain_m"`
	ElevationLossM  float64   `json:"elevation_loss_m"`
	Calories        float64   `json:"calories"`
	RejectedFixes   int       `json:"rejected_fixes"`
}
