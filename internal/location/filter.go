package location

import (
	"math"
	"time"
)

// Filter is the first stage every fix passes through. Only accepted fixes
// may reach the track session.
type Filter struct {
	maxAccuracyM float64
	last         time.Time
	hasLast      bool
	accepted     int
	rejected     map[RejectReason]int
}

func NewFilter(maxAccuracyM float64) *Filter {
	return &Filter{
		maxAccuracyM: maxAccuracyM,
		rejected:     map[RejectReason]int{},
	}
}

// Offer reports whether the fix is accepted. Rejection is not an error; it
// only bumps a diagnostic counter.
func (f *Filter) Offer(fix Fix) bool {
	if reason, ok := f.check(fix); !ok {
		f.rejected[reason]++
		return false
	}
	f.last = fix.Timestamp
	f.hasLast = true
	f.accepted++
	return true
}

func (f *Filter) check(fix Fix) (RejectReason, bool) {
	if !validCoords(fix) {
		return RejectInvalidCoords, false
	}
	if fix.HorizontalAccuracy > f.maxAccuracyM || fix.HorizontalAccuracy < 0 || math.IsNaN(fix.HorizontalAccuracy) {
		return RejectLowAccuracy, false
	}
	if f.hasLast && !fix.Timestamp.After(f.last) {
		return RejectNonMonotonic, false
	}
	return "", true
}

func (f *Filter) Diagnostics() Diagnostics {
	rejected := make(map[RejectReason]int, len(f.rejected))
	for k, v := range f.rejected {
		rejected[k] = v
	}
	return Diagnostics{Accepted: f.accepted, Rejected: rejected}
}

func (f *Filter) Reset() {
	f.last = time.Time{}
	f.hasLast = false
	f.accepted = 0
	f.rejected = map[RejectReason]int{}
}

func validCoords(fix Fix) bool {
	if math.IsNaN(fix.Latitude) || math.IsNaN(fix.Longitude) || math.IsInf(fix.Latitude, 0) || math.IsInf(fix.Longitude, 0) {
		return false
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return false
	}
	if fix.Altitude != nil && (math.IsNaN(*fix.Altitude) || math.IsInf(*fix.Altitude, 0)) {
		return false
	}
	return true
}
