package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zchasse63/voice-fit-sub006/internal/db"
	"github.com/Zchasse63/voice-fit-sub006/internal/lap"
	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrRunNotFound = errors.New("run not found")

// Repository persists finished runs. Live aggregation never touches it.
type Repository struct {
	db db.Querier
}

func NewRepository(db db.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveRun(ctx context.Context, rec RunRecord) (RunRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO track_sessions (id, user_id, workout_id, started_at, ended_at, total_distance_m, duration_sec,
		                            pace_min_per_mile, total_elevation_gain_m, total_elevation_loss_m, calories, rejected_fixes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'completed')
	`, rec.ID, rec.UserID, nullable(rec.WorkoutID), rec.StartedAt, rec.EndedAt, rec.Stats.DistanceMeters, rec.Stats.DurationSeconds,
		rec.Stats.PaceMinPerMile, rec.Stats.ElevationGainMeters, rec.Stats.ElevationLossMeters, rec.Stats.Calories, rec.Filter.TotalRejected())
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	for i, p := range rec.Path {
		_, err = tx.Exec(ctx, `
			INSERT INTO track_points (session_id, seq, location, elevation_m, horizontal_accuracy, recorded_at)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3,$4), 4326)::geography, $5, $6, $7)
		`, rec.ID, i, p.Longitude, p.Latitude, p.Altitude, p.HorizontalAccuracy, p.Timestamp)
		if err != nil {
			return RunRecord{}, fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	for _, l := range rec.Laps {
		_, err = tx.Exec(ctx, `
			INSERT INTO track_laps (session_id, lap_number, distance_m, duration_sec, pace_min_per_mile, manual, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, rec.ID, l.LapNumber, l.DistanceMeters, l.DurationSeconds, l.PaceMinPerMile, l.Manual, l.Timestamp)
		if err != nil {
			return RunRecord{}, fmt.Errorf("insert lap %d: %w", l.LapNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return RunRecord{}, fmt.Errorf("commit run: %w", err)
	}
	return rec, nil
}

// Owner returns the user a stored run belongs to.
func (r *Repository) Owner(ctx context.Context, runID string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, `SELECT user_id FROM track_sessions WHERE id=$1`, runID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return userID, err
}

func (r *Repository) Summary(ctx context.Context, runID string) (Summary, error) {
	var s Summary
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, started_at, ended_at, COALESCE(total_distance_m,0), COALESCE(duration_sec,0),
		       COALESCE(pace_min_per_mile,-1), COALESCE(total_elevation_gain_m,0), COALESCE(total_elevation_loss_m,0),
		       COALESCE(calories,0), COALESCE(rejected_fixes,0)
		FROM track_sessions WHERE id=$1
	`, runID)
	if err := row.Scan(&s.RunID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.DistanceM, &s.DurationSec,
		&s.PaceMinPerMile, &s.ElevationGainM, &s.ElevationLossM, &s.Calories, &s.RejectedFixes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrRunNotFound
		}
		return Summary{}, err
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM track_points WHERE session_id=$1`, runID).Scan(&s.PointCount); err != nil {
		return Summary{}, err
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM track_laps WHERE session_id=$1`, runID).Scan(&s.LapCount); err != nil {
		return Summary{}, err
	}

	s.AverageSpeedMph = units.SpeedMph(s.DurationSec, s.DistanceM)
	return s, nil
}

func (r *Repository) Points(ctx context.Context, runID string) ([]TrackPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, seq, ST_Y(location::geometry), ST_X(location::geometry), elevation_m, horizontal_accuracy, recorded_at
		FROM track_points WHERE session_id=$1
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		var elevation pgtype.Float8
		if err := rows.Scan(&p.ID, &p.RunID, &p.Seq, &p.Lat, &p.Lng, &elevation, &p.HorizontalAccuracy, &p.RecordedAt); err != nil {
			return nil, err
		}
		if elevation.Valid {
			alt := elevation.Float64
			p.ElevationM = &alt
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *Repository) Laps(ctx context.Context, runID string) ([]lap.Lap, error) {
	rows, err := r.db.Query(ctx, `
		SELECT lap_number, distance_m, duration_sec, pace_min_per_mile, manual, recorded_at
		FROM track_laps WHERE session_id=$1
		ORDER BY lap_number
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var laps []lap.Lap
	for rows.Next() {
		var l lap.Lap
		if err := rows.Scan(&l.LapNumber, &l.DistanceMeters, &l.DurationSeconds, &l.PaceMinPerMile, &l.Manual, &l.Timestamp); err != nil {
			return nil, err
		}
		laps = append(laps, l)
	}
	return laps, rows.Err()
}

func (r *Repository) ListRuns(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, started_at, ended_at, COALESCE(total_distance_m,0), COALESCE(duration_sec,0),
		       COALESCE(pace_min_per_mile,-1), COALESCE(total_elevation_gain_m,0), COALESCE(total_elevation_loss_m,0), COALESCE(calories,0)
		FROM track_sessions WHERE user_id=$1
		ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.RunID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.DistanceM, &s.DurationSec,
			&s.PaceMinPerMile, &s.ElevationGainM, &s.ElevationLossM, &s.Calories); err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
