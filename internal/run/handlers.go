package run

import (
	"context"
	"errors"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/location"
	"github.com/Zchasse63/voice-fit-sub006/internal/readiness"
	"github.com/Zchasse63/voice-fit-sub006/internal/workout"

	"github.com/gofiber/fiber/v2"
)

type API struct {
	Runs             *Manager
	Readiness        *readiness.Evaluator
	Workouts         workout.Storage
	ReadinessTimeout time.Duration
}

type startRequest struct {
	WorkoutID string `json:"workout_id"`
	// Response answers a pending readiness check: "approve" or "reject".
	Response string `json:"response"`
}

type fixesRequest struct {
	Fixes []location.Fix `json:"fixes"`
}

// RegisterRoutes exposes live run control. Register before the history
// routes that share the group.
func RegisterRoutes(r fiber.Router, api API, authMiddleware fiber.Handler) {
	r.Post("/check", authMiddleware, func(c *fiber.Ctx) error {
		uid := userID(c)
		ctx := context.Context(c.Context())
		if api.ReadinessTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, api.ReadinessTimeout)
			defer cancel()
		}
		trigger := api.Readiness.CheckBeforeStart(ctx, uid)
		if trigger != nil {
			if err := api.Runs.HoldForReadiness(uid, readiness.NewGate(trigger)); err != nil {
				return toHTTPError(err)
			}
		}
		return c.JSON(fiber.Map{"pending": trigger != nil, "trigger": trigger})
	})

	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}

		opts := Options{UserID: userID(c)}
		gate := api.Runs.PendingGate(opts.UserID)
		if gate != nil && req.Response != "approve" && req.Response != "reject" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "readiness response required",
				"trigger": gate.Trigger(),
			})
		}

		if req.WorkoutID != "" {
			if api.Workouts == nil {
				return fiber.NewError(fiber.StatusServiceUnavailable, "workout storage unavailable")
			}
			w, err := api.Workouts.Find(c.Context(), req.WorkoutID)
			if err != nil {
				return toHTTPError(err)
			}
			if w.UserID != opts.UserID {
				return fiber.NewError(fiber.StatusForbidden, "workout belongs to another user")
			}
			opts.Workout = &w
		}

		if gate != nil {
			var d readiness.Decision
			if req.Response == "approve" {
				d = gate.Approve()
			} else {
				d = gate.Reject()
			}
			opts.Decision = &d
		}

		runner, err := api.Runs.Start(opts)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(runner.Snapshot())
	})

	r.Post("/fixes", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		var req fixesRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		accepted := 0
		for _, fix := range req.Fixes {
			if runner.OnFix(fix) {
				accepted++
			}
		}
		return c.JSON(fiber.Map{
			"accepted": accepted,
			"dropped":  len(req.Fixes) - accepted,
			"snapshot": runner.Snapshot(),
		})
	})

	r.Post("/pause", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		if !runner.Pause() {
			return fiber.NewError(fiber.StatusConflict, "run is not running")
		}
		return c.JSON(runner.Snapshot())
	})

	r.Post("/resume", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		if !runner.Resume() {
			return fiber.NewError(fiber.StatusConflict, "run is not paused")
		}
		return c.JSON(runner.Snapshot())
	})

	r.Post("/laps", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		l, err := runner.ManualLap()
		if err != nil {
			return toHTTPError(err)
		}
		if l.LapNumber == 0 {
			return c.JSON(fiber.Map{"lap": nil})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"lap": l})
	})

	r.Post("/segments/complete", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		advanced, err := runner.CompleteSegment()
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"advanced": advanced, "snapshot": runner.Snapshot()})
	})

	r.Get("/current", authMiddleware, func(c *fiber.Ctx) error {
		runner, err := activeFor(c, api.Runs)
		if err != nil {
			return err
		}
		return c.JSON(runner.Snapshot())
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		if _, err := activeFor(c, api.Runs); err != nil {
			return err
		}
		res, err := api.Runs.Stop(c.Context())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(res)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func activeFor(c *fiber.Ctx, m *Manager) (*Runner, error) {
	runner, err := m.Active()
	if err != nil {
		return nil, toHTTPError(err)
	}
	if uid := userID(c); uid != "" && runner.UserID() != uid {
		return nil, fiber.NewError(fiber.StatusForbidden, "active run belongs to another user")
	}
	return runner, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrRunActive), errors.Is(err, ErrNotRunning):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoActiveRun), errors.Is(err, workout.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoWorkout), errors.Is(err, workout.ErrEmptyName), errors.Is(err, workout.ErrNoSegments),
		errors.Is(err, workout.ErrInvalidSegment):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, location.ErrPermissionDenied), errors.Is(err, location.ErrPermissionUndetermined):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
