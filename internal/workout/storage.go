package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("workout not found")

// Storage is id-addressable workout persistence.
type Storage interface {
	Save(ctx context.Context, w CustomWorkout) (CustomWorkout, error)
	Find(ctx context.Context, id string) (CustomWorkout, error)
	List(ctx context.Context, userID string) ([]CustomWorkout, error)
}

// PostgresStorage keeps segments as a JSONB column. A workout with version 0
// is inserted; saving any other bumps its version.
type PostgresStorage struct {
	db db.Querier
}

func NewPostgresStorage(db db.Querier) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Save(ctx context.Context, w CustomWorkout) (CustomWorkout, error) {
	if err := Validate(w); err != nil {
		return CustomWorkout{}, err
	}
	w = w.Clone()
	for i := range w.Segments {
		if w.Segments[i].ID == "" {
			w.Segments[i].ID = newID()
		}
	}
	applyTotals(&w)

	segments, err := json.Marshal(w.Segments)
	if err != nil {
		return CustomWorkout{}, fmt.Errorf("encode segments: %w", err)
	}

	if w.Version == 0 {
		if w.ID == "" {
			w.ID = newID()
		}
		row := s.db.QueryRow(ctx, `
			INSERT INTO custom_workouts (id, user_id, name, description, segments, total_distance, estimated_duration, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,1)
			RETURNING version, created_at, updated_at
		`, w.ID, w.UserID, w.Name, w.Description, segments, w.TotalDistance, w.EstimatedDuration)
		if err := row.Scan(&w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return CustomWorkout{}, fmt.Errorf("insert workout: %w", err)
		}
		return w, nil
	}

	row := s.db.QueryRow(ctx, `
		UPDATE custom_workouts
		SET name=$2, description=$3, segments=$4, total_distance=$5, estimated_duration=$6,
		    version=version+1, updated_at=now()
		WHERE id=$1
		RETURNING user_id, version, created_at, updated_at
	`, w.ID, w.Name, w.Description, segments, w.TotalDistance, w.EstimatedDuration)
	if err := row.Scan(&w.UserID, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomWorkout{}, ErrNotFound
		}
		return CustomWorkout{}, fmt.Errorf("update workout: %w", err)
	}
	return w, nil
}

func (s *PostgresStorage) Find(ctx context.Context, id string) (CustomWorkout, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, description, segments, total_distance, estimated_duration, version, created_at, updated_at
		FROM custom_workouts WHERE id=$1
	`, id)
	w, err := scanWorkout(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomWorkout{}, ErrNotFound
	}
	return w, err
}

func (s *PostgresStorage) List(ctx context.Context, userID string) ([]CustomWorkout, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, description, segments, total_distance, estimated_duration, version, created_at, updated_at
		FROM custom_workouts WHERE user_id=$1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomWorkout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWorkout(row pgx.Row) (CustomWorkout, error) {
	var w CustomWorkout
	var segments []byte
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &segments, &w.TotalDistance,
		&w.EstimatedDuration, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return CustomWorkout{}, err
	}
	if err := json.Unmarshal(segments, &w.Segments); err != nil {
		return CustomWorkout{}, fmt.Errorf("decode segments for %s: %w", w.ID, err)
	}
	return w, nil
}

// CachedStorage puts a redis read-through cache in front of another Storage.
// Cache failures are logged and fall through to the backing store.
type CachedStorage struct {
	next  Storage
	redis *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedStorage(next Storage, client *redis.Client, ttl time.Duration, logger *slog.Logger) Storage {
	if client == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStorage{next: next, redis: client, ttl: ttl, log: logger}
}

func (c *CachedStorage) Save(ctx context.Context, w CustomWorkout) (CustomWorkout, error) {
	saved, err := c.next.Save(ctx, w)
	if err != nil {
		return CustomWorkout{}, err
	}
	if err := c.redis.Del(ctx, cacheKey(saved.ID)).Err(); err != nil {
		c.log.Warn("workout cache invalidate failed", "workout_id", saved.ID, "error", err)
	}
	return saved, nil
}

func (c *CachedStorage) Find(ctx context.Context, id string) (CustomWorkout, error) {
	raw, err := c.redis.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var w CustomWorkout
		if jerr := json.Unmarshal(raw, &w); jerr == nil {
			return w, nil
		}
		c.log.Warn("workout cache entry unreadable", "workout_id", id)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("workout cache read failed", "workout_id", id, "error", err)
	}

	w, err := c.next.Find(ctx, id)
	if err != nil {
		return CustomWorkout{}, err
	}
	if payload, err := json.Marshal(w); err == nil {
		if err := c.redis.Set(ctx, cacheKey(id), payload, c.ttl).Err(); err != nil {
			c.log.Warn("workout cache write failed", "workout_id", id, "error", err)
		}
	}
	return w, nil
}

func (c *CachedStorage) List(ctx context.Context, userID string) ([]CustomWorkout, error) {
	return c.next.List(ctx, userID)
}

func cacheKey(id string) string {
	return "workout:" + id
}
