package workout

import (
	"testing"

	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"

	"github.com/stretchr/testify/require"
)

func at(distance, duration float64) tracking.Stats {
	return tracking.Stats{DistanceMeters: distance, DurationSeconds: duration, PaceMinPerMile: -1}
}

func intervalWorkout() CustomWorkout {
	return CustomWorkout{
		ID:   "w-1",
		Name: "Intervals",
		Segments: []Segment{
			{ID: "warm", Type: Warmup, DurationSeconds: ptr(300)},
			{ID: "rep", Type: Interval, DistanceMeters: ptr(400)},
			{ID: "jog", Type: Recovery},
			{ID: "tempo", Type: Steady, DistanceMeters: ptr(1609.34), TargetPaceMinPerMile: ptr(8)},
		},
	}
}

func TestAutoAdvanceOnDurationAndDistance(t *testing.T) {
	var changes []Change
	e := NewEngine(intervalWorkout(), at(0, 0), WithListener(func(c Change) { changes = append(changes, c) }))

	require.False(t, e.Evaluate(at(900, 299)))
	require.True(t, e.Evaluate(at(1000, 300)))
	require.Equal(t, 1, e.State().CurrentSegmentIndex)
	require.Equal(t, 1000.0, e.State().SegmentStart.DistanceMeters)

	require.False(t, e.Evaluate(at(1399, 400)))
	require.True(t, e.Evaluate(at(1400, 410)))

	require.Len(t, changes, 2)
	require.Equal(t, 0, changes[0].From)
	require.Equal(t, 1, changes[0].To)
	require.Equal(t, "rep", changes[0].Segment.ID)
	require.False(t, changes[0].Manual)
	require.Equal(t, "jog", changes[1].Segment.ID)
}

func TestNoGoalSegmentNeverAutoAdvances(t *testing.T) {
	w := CustomWorkout{Name: "Open", Segments: []Segment{{ID: "free", Type: Steady}, {ID: "cool", Type: Cooldown}}}
	e := NewEngine(w, at(0, 0))

	require.False(t, e.Evaluate(at(42195, 4*3600)))
	require.Equal(t, 0, e.State().CurrentSegmentIndex)

	require.True(t, e.CompleteCurrentSegment(at(42195, 4*3600)))
	require.Equal(t, 1, e.State().CurrentSegmentIndex)
}

func TestTargetPaceImpliesDuration(t *testing.T) {
	w := CustomWorkout{Name: "Tempo", Segments: []Segment{
		{ID: "tempo", Type: Steady, DistanceMeters: ptr(1609.34), TargetPaceMinPerMile: ptr(8)},
	}}
	e := NewEngine(w, at(100, 60))

	require.False(t, e.Evaluate(at(1200, 539)))
	require.True(t, e.Evaluate(at(1200, 540)))
	require.True(t, e.Done())
}

func TestManualAdvanceIsExactlyOneAndStopsAtEnd(t *testing.T) {
	var changes []Change
	e := NewEngine(intervalWorkout(), at(0, 0))
	e.OnChange(func(c Change) { changes = append(changes, c) })

	n := len(intervalWorkout().Segments)
	for i := 0; i < n; i++ {
		before := e.State().CurrentSegmentIndex
		require.True(t, e.CompleteCurrentSegment(at(float64(i), float64(i))))
		require.Equal(t, before+1, e.State().CurrentSegmentIndex)
	}
	require.True(t, e.Done())
	require.True(t, changes[n-1].Completed)
	require.Nil(t, changes[n-1].Segment)
	require.True(t, changes[0].Manual)

	require.False(t, e.CompleteCurrentSegment(at(10, 10)))
	require.False(t, e.Evaluate(at(1e6, 1e6)))
	require.Equal(t, n, e.State().CurrentSegmentIndex)
	require.Len(t, changes, n)
}

func TestEngineCopiesWorkout(t *testing.T) {
	w := intervalWorkout()
	e := NewEngine(w, at(0, 0))

	*w.Segments[0].DurationSeconds = 1
	w.Segments[1].ID = "edited"

	require.False(t, e.Evaluate(at(0, 10)))
	require.Equal(t, "rep", e.State().Workout.Segments[1].ID)

	st := e.State()
	st.Workout.Segments[0].Name = "changed"
	require.NotEqual(t, "changed", e.State().Workout.Segments[0].Name)
}

func TestProgress(t *testing.T) {
	e := NewEngine(intervalWorkout(), at(0, 0))
	p := e.Progress(at(500, 120))
	require.Equal(t, 0, p.SegmentIndex)
	require.Equal(t, 4, p.SegmentCount)
	require.Equal(t, 300.0, *p.DurationTarget)
	require.Equal(t, 180.0, *p.RemainingSeconds)
	require.Nil(t, p.DistanceTarget)

	e.CompleteCurrentSegment(at(500, 120))
	e.CompleteCurrentSegment(at(900, 200))
	p = e.Progress(at(950, 230))
	require.Equal(t, 2, p.SegmentIndex)
	require.Equal(t, 50.0, p.DistanceDone)
	require.Nil(t, p.DurationTarget)
	require.Nil(t, p.RemainingSeconds)
}
