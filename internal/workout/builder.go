package workout

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"

	"github.com/google/uuid"
)

var (
	ErrEmptyName       = errors.New("workout name is required")
	ErrNoSegments      = errors.New("workout needs at least one segment")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrIndexOutOfRange = errors.New("segment index out of range")
)

// newID is swapped in tests that need stable ids.
var newID = uuid.NewString

// templates seed AddSegment. A zero field means the segment carries no such target.
var templates = map[SegmentType]struct {
	name     string
	duration float64
	distance float64
	pace     float64
}{
	Warmup:   {name: "Warm Up", duration: 600},
	Interval: {name: "Interval", distance: 400, pace: 7},
	Recovery: {name: "Recovery", duration: 120},
	Steady:   {name: "Steady Run", distance: units.MetersPerMile, pace: 9},
	Cooldown: {name: "Cool Down", duration: 600},
}

// NewSegment builds a segment of the given type from its default template.
func NewSegment(t SegmentType) (Segment, error) {
	tpl, ok := templates[t]
	if !ok {
		return Segment{}, fmt.Errorf("%w: unknown type %q", ErrInvalidSegment, t)
	}
	seg := Segment{ID: newID(), Type: t, Name: tpl.name}
	if tpl.duration > 0 {
		seg.DurationSeconds = ptr(tpl.duration)
	}
	if tpl.distance > 0 {
		seg.DistanceMeters = ptr(tpl.distance)
	}
	if tpl.pace > 0 {
		seg.TargetPaceMinPerMile = ptr(tpl.pace)
	}
	return seg, nil
}

// AddSegment returns a new list with a default segment of type t appended.
func AddSegment(segments []Segment, t SegmentType) ([]Segment, error) {
	seg, err := NewSegment(t)
	if err != nil {
		return nil, err
	}
	return append(cloneSegments(segments), seg), nil
}

func RemoveSegment(segments []Segment, id string) ([]Segment, error) {
	i := indexOf(segments, id)
	if i < 0 {
		return nil, ErrSegmentNotFound
	}
	out := make([]Segment, 0, len(segments)-1)
	out = append(out, cloneSegments(segments[:i])...)
	return append(out, cloneSegments(segments[i+1:])...), nil
}

// DuplicateSegment inserts a copy with a fresh id right after the original.
func DuplicateSegment(segments []Segment, id string) ([]Segment, error) {
	i := indexOf(segments, id)
	if i < 0 {
		return nil, ErrSegmentNotFound
	}
	dup := segments[i].clone()
	dup.ID = newID()

	out := make([]Segment, 0, len(segments)+1)
	out = append(out, cloneSegments(segments[:i+1])...)
	out = append(out, dup)
	return append(out, cloneSegments(segments[i+1:])...), nil
}

// Reorder moves the segment at from to position to, shifting the rest.
func Reorder(segments []Segment, from, to int) ([]Segment, error) {
	n := len(segments)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, ErrIndexOutOfRange
	}
	out := cloneSegments(segments)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Segment{moved}, out[to:]...)...)
	return out, nil
}

// SegmentDuration is the explicit duration if set, else the time implied by
// distance at target pace, else zero.
func SegmentDuration(seg Segment) float64 {
	if seg.DurationSeconds != nil {
		return *seg.DurationSeconds
	}
	if seg.DistanceMeters != nil && seg.TargetPaceMinPerMile != nil {
		return units.DurationForPace(*seg.DistanceMeters, *seg.TargetPaceMinPerMile)
	}
	return 0
}

func Summarize(segments []Segment) Summary {
	var s Summary
	for _, seg := range segments {
		if seg.DistanceMeters != nil {
			s.TotalDistance += *seg.DistanceMeters
		}
		d := SegmentDuration(seg)
		s.TotalDuration += d
		if seg.Type == Recovery {
			s.RecoveryTime += d
		}
	}
	return s
}

func Validate(w CustomWorkout) error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if len(w.Segments) == 0 {
		return ErrNoSegments
	}
	for i, seg := range w.Segments {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

func validateSegment(seg Segment) error {
	if !seg.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSegment, seg.Type)
	}
	for _, v := range []*float64{seg.DurationSeconds, seg.DistanceMeters, seg.TargetPaceMinPerMile} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%w: targets must be finite and non-negative", ErrInvalidSegment)
		}
	}
	return nil
}

// NewWorkout validates the input and returns a workout with ids and totals
// filled in. Segments are copied.
func NewWorkout(userID, name, description string, segments []Segment) (CustomWorkout, error) {
	w := CustomWorkout{
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: description,
		Segments:    cloneSegments(segments),
	}
	if err := Validate(w); err != nil {
		return CustomWorkout{}, err
	}
	w.ID = newID()
	for i := range w.Segments {
		if w.Segments[i].ID == "" {
			w.Segments[i].ID = newID()
		}
	}
	applyTotals(&w)
	return w, nil
}

func applyTotals(w *CustomWorkout) {
	sum := Summarize(w.Segments)
	w.TotalDistance = sum.TotalDistance
	w.EstimatedDuration = sum.TotalDuration
}

func indexOf(segments []Segment, id string) int {
	for i, s := range segments {
		if s.ID == id {
			return i
		}
	}
	return -1
}
