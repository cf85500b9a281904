package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes run history. Live run control lives in the run package.
// A run is only readable by the user who recorded it.
func RegisterRoutes(r fiber.Router, repo *Repository, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := callerID(c)
		if err != nil {
			return err
		}
		runs, err := repo.ListRuns(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(runs)
	})

	r.Get("/:id/summary", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := callerID(c)
		if err != nil {
			return err
		}
		summary, err := repo.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		if summary.UserID != userID {
			return fiber.NewError(fiber.StatusForbidden, "run belongs to another user")
		}
		return c.JSON(summary)
	})

	r.Get("/:id/points", authMiddleware, func(c *fiber.Ctx) error {
		if err := ownRun(c, repo); err != nil {
			return err
		}
		points, err := repo.Points(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(points)
	})

	r.Get("/:id/laps", authMiddleware, func(c *fiber.Ctx) error {
		if err := ownRun(c, repo); err != nil {
			return err
		}
		laps, err := repo.Laps(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(laps)
	})
}

func callerID(c *fiber.Ctx) (string, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "user_id missing")
	}
	return userID, nil
}

func ownRun(c *fiber.Ctx, repo *Repository) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	owner, err := repo.Owner(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if owner != userID {
		return fiber.NewError(fiber.StatusForbidden, "run belongs to another user")
	}
	return nil
}

func toHTTPError(err error) error {
	if errors.Is(err, ErrRunNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
