// Package lap derives lap splits from a session's running totals.
package lap

import (
	"math"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"
)

// DefaultDistanceM is one mile.
const DefaultDistanceM = units.MetersPerMile

// crossingEpsilonM absorbs float error when a fix lands exactly on a boundary.
const crossingEpsilonM = 1e-6

// Lap is immutable once appended.
type Lap struct {
	LapNumber       int       `json:"lap_number"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds float64   `json:"duration_seconds"`
	PaceMinPerMile  float64   `json:"pace_min_per_mile"`
	Timestamp       time.Time `json:"timestamp"`
	Manual          bool      `json:"manual"`
}

// Split is a lap plus the comparisons recomputed after every append.
type Split struct {
	Lap
	DeltaToAverage float64 `json:"delta_to_average"`
	Best           bool    `json:"best"`
}

type Summary struct {
	Laps        []Split `json:"laps"`
	BestLap     *Lap    `json:"best_lap,omitempty"`
	AveragePace float64 `json:"average_pace"`
}

// Engine closes laps automatically at each multiple of the lap distance and on
// demand. Both paths go through appendLap so numbering stays sequential.
type Engine struct {
	lapDistanceM float64

	laps []Lap

	// running totals from the most recent update
	distanceM   float64
	durationSec float64

	boundaryDistM  float64
	boundaryDurSec float64
	nextThresholdM float64
	averagePace    float64
	bestIdx        int
}

func NewEngine(lapDistanceM float64) *Engine {
	if lapDistanceM <= 0 {
		lapDistanceM = DefaultDistanceM
	}
	e := &Engine{lapDistanceM: lapDistanceM}
	e.Reset()
	return e
}

// OnDistanceUpdate records the session's cumulative totals and closes one lap
// for every threshold crossed since the previous update. When a single update
// jumps past several thresholds, the earlier laps end exactly on their
// threshold with duration interpolated between the two updates; the last one
// ends at the current totals.
func (e *Engine) OnDistanceUpdate(distanceM, durationSec float64, at time.Time) []Lap {
	prevDist, prevDur := e.distanceM, e.durationSec
	e.distanceM = distanceM
	e.durationSec = durationSec

	var closed []Lap
	for e.nextThresholdM <= distanceM+crossingEpsilonM {
		threshold := e.nextThresholdM
		e.nextThresholdM += e.lapDistanceM
		if e.nextThresholdM <= distanceM+crossingEpsilonM {
			dur := interpolate(prevDist, prevDur, distanceM, durationSec, threshold)
			closed = append(closed, e.appendLap(threshold, dur, at, false))
			continue
		}
		closed = append(closed, e.appendLap(distanceM, durationSec, at, false))
	}
	return closed
}

func interpolate(d0, t0, d1, t1, d float64) float64 {
	if d1 <= d0 {
		return t1
	}
	return t0 + (t1-t0)*(d-d0)/(d1-d0)
}

// ManualLap closes a lap now regardless of the threshold. Nothing is recorded
// if the runner has not moved or spent time since the last boundary.
func (e *Engine) ManualLap(at time.Time) (Lap, bool) {
	if e.distanceM <= e.boundaryDistM && e.durationSec <= e.boundaryDurSec {
		return Lap{}, false
	}
	return e.appendLap(e.distanceM, e.durationSec, at, true), true
}

func (e *Engine) appendLap(endDistM, endDurSec float64, at time.Time, manual bool) Lap {
	dist := endDistM - e.boundaryDistM
	dur := endDurSec - e.boundaryDurSec
	l := Lap{
		LapNumber:       len(e.laps) + 1,
		DistanceMeters:  dist,
		DurationSeconds: dur,
		PaceMinPerMile:  units.PaceMinPerMile(dur, dist),
		Timestamp:       at,
		Manual:          manual,
	}
	e.laps = append(e.laps, l)
	e.boundaryDistM = endDistM
	e.boundaryDurSec = endDurSec
	e.recompute()
	return l
}

// recompute refreshes the average and the best lap. A lap without a pace
// (time passed but no distance) can only be best when no lap has one, in
// which case the first lap is flagged so a non-empty list always has one.
func (e *Engine) recompute() {
	e.averagePace = units.PaceMinPerMile(e.durationSec, e.distanceM)
	e.bestIdx = -1
	if len(e.laps) == 0 {
		return
	}
	e.bestIdx = 0
	best := math.Inf(1)
	for i, l := range e.laps {
		if !units.PaceAvailable(l.PaceMinPerMile) {
			continue
		}
		// strict less keeps the lowest lap number on ties
		if l.PaceMinPerMile < best {
			best = l.PaceMinPerMile
			e.bestIdx = i
		}
	}
}

func (e *Engine) Laps() []Lap {
	out := make([]Lap, len(e.laps))
	copy(out, e.laps)
	return out
}

// BestLap is the lap with the lowest pace; ties go to the earlier lap.
func (e *Engine) BestLap() (Lap, bool) {
	if e.bestIdx < 0 {
		return Lap{}, false
	}
	return e.laps[e.bestIdx], true
}

func (e *Engine) Summary() Summary {
	s := Summary{AveragePace: e.averagePace, Laps: make([]Split, len(e.laps))}
	for i, l := range e.laps {
		split := Split{Lap: l, Best: i == e.bestIdx}
		if units.PaceAvailable(l.PaceMinPerMile) && units.PaceAvailable(e.averagePace) {
			split.DeltaToAverage = l.PaceMinPerMile - e.averagePace
		}
		s.Laps[i] = split
	}
	if best, ok := e.BestLap(); ok {
		s.BestLap = &best
	}
	return s
}

func (e *Engine) Reset() {
	e.laps = nil
	e.distanceM = 0
	e.durationSec = 0
	e.boundaryDistM = 0
	e.boundaryDurSec = 0
	e.nextThresholdM = e.lapDistanceM
	e.averagePace = units.PaceUnavailable
	e.bestIdx = -1
}
