// Package units converts between the metric values the tracker accumulates
// and the imperial pace/speed values runners read.
package units

import (
	"fmt"
	"math"
)

const (
	MetersPerMile = 1609.34

	// PaceUnavailable is reported instead of NaN or Inf when pace cannot be
	// computed: no distance yet, no elapsed time, or a non-finite ratio.
	PaceUnavailable = -1.0
)

func MilesOf(meters float64) float64 {
	return meters / MetersPerMile
}

// PaceMinPerMile returns minutes per mile for the given duration and distance.
// Covering ground in no time is not a pace; it is reported unavailable.
func PaceMinPerMile(durationSec, distanceM float64) float64 {
	if distanceM <= 0 || durationSec <= 0 {
		return PaceUnavailable
	}
	pace := (durationSec / 60) / MilesOf(distanceM)
	if math.IsNaN(pace) || math.IsInf(pace, 0) {
		return PaceUnavailable
	}
	return pace
}

// SpeedMph returns average speed, zero when no time has elapsed.
func SpeedMph(durationSec, distanceM float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	speed := MilesOf(distanceM) / (durationSec / 3600)
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0
	}
	return speed
}

// DurationForPace is the time in seconds needed to cover distanceM at paceMinPerMile.
func DurationForPace(distanceM, paceMinPerMile float64) float64 {
	return MilesOf(distanceM) * paceMinPerMile * 60
}

func PaceAvailable(pace float64) bool {
	return pace >= 0 && !math.IsNaN(pace) && !math.IsInf(pace, 0)
}

// FormatPace renders a pace as m:ss, or "--:--" when unavailable.
func FormatPace(pace float64) string {
	if !PaceAvailable(pace) {
		return "--:--"
	}
	total := int(math.Round(pace * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDelta renders a signed pace difference, e.g. "+0:12" or "-0:05".
func FormatDelta(delta float64) string {
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	total := int(math.Round(delta * 60))
	return fmt.Sprintf("%s%d:%02d", sign, total/60, total%60)
}
