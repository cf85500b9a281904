package location

import "time"

// Fix is a single location reading from the platform provider.
type Fix struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           *float64  `json:"altitude,omitempty"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	Timestamp          time.Time `json:"timestamp"`
}

// RejectReason says why the filter dropped a fix.
type RejectReason string

const (
	RejectLowAccuracy   RejectReason = "low_accuracy"
	RejectNonMonotonic  RejectReason = "non_monotonic_timestamp"
	RejectInvalidCoords RejectReason = "invalid_coordinates"
)

// Diagnostics counts what the filter has seen since the last reset.
type Diagnostics struct {
	Accepted int                  `json:"accepted"`
	Rejected map[RejectReason]int `json:"rejected"`
}

// TotalRejected sums all rejection reasons.
func (d Diagnostics) TotalRejected() int {
	total := 0
	for _, n := range d.Rejected {
		total += n
	}
	return total
}
