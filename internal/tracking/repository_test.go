package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/lap"
	"github.com/Zchasse63/voice-fit-sub006/internal/location"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errTrack = errors.New("track error")

func sampleRecord() RunRecord {
	alt := 1650.0
	return RunRecord{
		ID:        "run-1",
		UserID:    "user-1",
		StartedAt: t0,
		EndedAt:   t0.Add(16 * time.Minute),
		Stats:     Stats{DistanceMeters: 3218.68, DurationSeconds: 960, PaceMinPerMile: 8},
		Path: []location.Fix{
			{Latitude: 40, Longitude: -105, Altitude: &alt, HorizontalAccuracy: 4, Timestamp: t0},
			{Latitude: 40.01, Longitude: -105, HorizontalAccuracy: 6, Timestamp: t0.Add(8 * time.Minute)},
		},
		Laps: []lap.Lap{{LapNumber: 1, DistanceMeters: 1609.34, DurationSeconds: 480, PaceMinPerMile: 8, Timestamp: t0.Add(8 * time.Minute)}},
		Filter: location.Diagnostics{
			Accepted: 2,
			Rejected: map[location.RejectReason]int{location.RejectLowAccuracy: 3},
		},
	}
}

func TestSaveRunWritesRunPointsAndLaps(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO track_sessions`).
		WithArgs("run-1", "user-1", pgxmock.AnyArg(), t0, t0.Add(16*time.Minute), 3218.68, 960.0, 8.0, 0.0, 0.0, 0.0, 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO track_points`).
		WithArgs("run-1", 0, -105.0, 40.0, pgxmock.AnyArg(), 4.0, t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO track_points`).
		WithArgs("run-1", 1, -105.0, 40.01, pgxmock.AnyArg(), 6.0, t0.Add(8*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO track_laps`).
		WithArgs("run-1", 1, 1609.34, 480.0, 8.0, false, t0.Add(8*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock)
	saved, err := repo.SaveRun(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if saved.ID != "run-1" {
		t.Fatalf("expected id preserved")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRunRollsBackOnPointError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO track_sessions`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO track_points`).WillReturnError(errTrack)
	mock.ExpectRollback()

	rec := sampleRecord()
	rec.ID = ""
	_, err = NewRepository(mock).SaveRun(context.Background(), rec)
	if !errors.Is(err, errTrack) {
		t.Fatalf("expected wrapped track error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRunBeginError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errTrack)
	if _, err := NewRepository(mock).SaveRun(context.Background(), sampleRecord()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummary(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, started_at, ended_at, COALESCE\(total_distance_m,0\)`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "started_at", "ended_at", "dist", "dur", "pace", "gain", "loss", "kcal", "rejected"}).
			AddRow("run-1", "user-1", t0, t0.Add(time.Hour), 9656.04, 3600.0, 10.0, 40.0, 38.0, 600.0, 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM track_points`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(120))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM track_laps`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(6))

	summary, err := NewRepository(mock).Summary(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.PointCount != 120 || summary.LapCount != 6 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.AverageSpeedMph < 5.99 || summary.AverageSpeedMph > 6.01 {
		t.Fatalf("expected 6 mph, got %v", summary.AverageSpeedMph)
	}
}

func TestSummaryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, started_at`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = NewRepository(mock).Summary(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSummaryCountError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, started_at`).
		WithArgs("run-5").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "started_at", "ended_at", "dist", "dur", "pace", "gain", "loss", "kcal", "rejected"}).
			AddRow("run-5", "user-1", t0, t0, 0.0, 0.0, -1.0, 0.0, 0.0, 0.0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM track_points`).WithArgs("run-5").WillReturnError(errTrack)

	if _, err := NewRepository(mock).Summary(context.Background(), "run-5"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLapsAndListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT lap_number, distance_m, duration_sec, pace_min_per_mile, manual, recorded_at`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"lap_number", "distance_m", "duration_sec", "pace", "manual", "recorded_at"}).
			AddRow(1, 1609.34, 480.0, 8.0, false, t0).
			AddRow(2, 1609.34, 470.0, 7.83, false, t0.Add(16*time.Minute)))
	mock.ExpectQuery(`FROM track_sessions WHERE user_id=\$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "started_at", "ended_at", "dist", "dur", "pace", "gain", "loss", "kcal"}).
			AddRow("run-1", "user-1", t0, t0.Add(time.Hour), 9656.04, 3600.0, 10.0, 40.0, 38.0, 600.0))

	repo := NewRepository(mock)
	laps, err := repo.Laps(context.Background(), "run-1")
	if err != nil || len(laps) != 2 || laps[1].LapNumber != 2 {
		t.Fatalf("laps: %v %+v", err, laps)
	}
	runs, err := repo.ListRuns(context.Background(), "user-1")
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPointsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, session_id, seq`).WithArgs("run-4").WillReturnError(errTrack)
	if _, err := NewRepository(mock).Points(context.Background(), "run-4"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOwner(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id FROM track_sessions WHERE id=\$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery(`SELECT user_id FROM track_sessions WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewRepository(mock)
	owner, err := repo.Owner(context.Background(), "run-1")
	if err != nil || owner != "user-1" {
		t.Fatalf("expected user-1, got %q (%v)", owner, err)
	}
	if _, err := repo.Owner(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
