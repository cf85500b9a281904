package tracking

import (
	"math"

	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"
)

// Terrain is a bucketed classification of recent grade.
type Terrain string

const (
	TerrainFlat             Terrain = "flat"
	TerrainRolling          Terrain = "rolling"
	TerrainModerateUphill   Terrain = "moderate_uphill"
	TerrainSteepUphill      Terrain = "steep_uphill"
	TerrainVerySteepUphill  Terrain = "very_steep_uphill"
	TerrainModerateDownhill Terrain = "moderate_downhill"
	TerrainSteepDownhill    Terrain = "steep_downhill"
)

// Stats is the running view of a session. Only the session mutates it.
type Stats struct {
	DistanceMeters              float64  `json:"distance_meters"`
	DurationSeconds             float64  `json:"duration_seconds"`
	PaceMinPerMile              float64  `json:"pace_min_per_mile"`
	AvgSpeedMph                 float64  `json:"avg_speed_mph"`
	Calories                    float64  `json:"calories"`
	ElevationGainMeters         float64  `json:"elevation_gain_meters"`
	ElevationLossMeters         float64  `json:"elevation_loss_meters"`
	GradeAdjustedPaceMinPerMile *float64 `json:"grade_adjusted_pace_min_per_mile,omitempty"`
	TerrainDifficulty           Terrain  `json:"terrain_difficulty"`
}

func emptyStats() Stats {
	return Stats{PaceMinPerMile: units.PaceUnavailable, TerrainDifficulty: TerrainFlat}
}

// PaceAvailable reports whether PaceMinPerMile holds a real value.
func (s Stats) PaceAvailable() bool {
	return units.PaceAvailable(s.PaceMinPerMile)
}

// TerrainThresholds are grade percentages separating the terrain buckets.
type TerrainThresholds struct {
	Rolling      float64
	Moderate     float64
	Steep        float64
	VerySteep    float64
	DownModerate float64
	DownSteep    float64
}

func DefaultTerrainThresholds() TerrainThresholds {
	return TerrainThresholds{
		Rolling:      1,
		Moderate:     3,
		Steep:        6,
		VerySteep:    10,
		DownModerate: -3,
		DownSteep:    -6,
	}
}

// ClassifyTerrain buckets a grade given as a fraction (0.05 = 5%).
func ClassifyTerrain(grade float64, th TerrainThresholds) Terrain {
	pct := grade * 100
	switch {
	case math.IsNaN(pct):
		return TerrainFlat
	case pct >= th.VerySteep:
		return TerrainVerySteepUphill
	case pct >= th.Steep:
		return TerrainSteepUphill
	case pct >= th.Moderate:
		return TerrainModerateUphill
	case pct <= th.DownSteep:
		return TerrainSteepDownhill
	case pct <= th.DownModerate:
		return TerrainModerateDownhill
	case math.Abs(pct) >= th.Rolling:
		return TerrainRolling
	default:
		return TerrainFlat
	}
}

// GradeAdjustedPace normalizes pace for grade. Climbing costs more, so the
// flat-equivalent pace is faster; descending the opposite. The cost factor is
// clamped so a noisy near-vertical sample cannot produce absurd values.
func GradeAdjustedPace(pace, grade, costFactor float64) float64 {
	if !units.PaceAvailable(pace) {
		return units.PaceUnavailable
	}
	factor := 1 + grade*costFactor
	if factor < 0.5 {
		factor = 0.5
	}
	if factor > 3.0 {
		factor = 3.0
	}
	return pace / factor
}
