package workout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type workoutRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Segments    []Segment `json:"segments"`
}

type editRequest struct {
	Segments []Segment   `json:"segments"`
	Type     SegmentType `json:"type"`
	ID       string      `json:"id"`
	From     int         `json:"from"`
	To       int         `json:"to"`
}

func RegisterRoutes(r fiber.Router, store Storage, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req workoutRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		w, err := NewWorkout(userID(c), req.Name, req.Description, req.Segments)
		if err != nil {
			return toHTTPError(err)
		}
		saved, err := store.Save(c.Context(), w)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(saved)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		list, err := store.List(c.Context(), userID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if list == nil {
			list = []CustomWorkout{}
		}
		return c.JSON(list)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		w, err := store.Find(c.Context(), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(w)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req workoutRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		current, err := store.Find(c.Context(), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		if uid := userID(c); uid != "" && current.UserID != uid {
			return fiber.NewError(fiber.StatusForbidden, "workout belongs to another user")
		}
		current.Name = req.Name
		current.Description = req.Description
		current.Segments = req.Segments
		saved, err := store.Save(c.Context(), current)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(saved)
	})

	r.Post("/summary", func(c *fiber.Ctx) error {
		var req editRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(Summarize(req.Segments))
	})

	r.Post("/reorder", func(c *fiber.Ctx) error {
		var req editRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		out, err := Reorder(req.Segments, req.From, req.To)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(out)
	})

	r.Post("/segments/:op", func(c *fiber.Ctx) error {
		var req editRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var (
			out []Segment
			err error
		)
		switch c.Params("op") {
		case "add":
			out, err = AddSegment(req.Segments, req.Type)
		case "remove":
			out, err = RemoveSegment(req.Segments, req.ID)
		case "duplicate":
			out, err = DuplicateSegment(req.Segments, req.ID)
		default:
			return fiber.NewError(fiber.StatusNotFound, "unknown segment operation")
		}
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(out)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyName), errors.Is(err, ErrNoSegments), errors.Is(err, ErrInvalidSegment),
		errors.Is(err, ErrIndexOutOfRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSegmentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
