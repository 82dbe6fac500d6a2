package registry

import (
	"errors"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/walk"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, reg *Registry, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req dog.Profile
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		profile, err := reg.RegisterDog(req)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(profile)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(reg.Dogs())
	})

	r.Get("/:name/snapshot", func(c *fiber.Ctx) error {
		snap, err := reg.Snapshot(c.Params("name"))
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(snap)
	})

	r.Post("/:name/fix", authMiddleware, func(c *fiber.Ctx) error {
		var req walk.Fix
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.RecordedAt.IsZero() {
			req.RecordedAt = time.Now()
		}
		outcome, err := reg.SubmitFix(c.Params("name"), req)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(fiber.Map{"outcome": outcome.String()})
	})

	r.Post("/:name/commands", authMiddleware, func(c *fiber.Ctx) error {
		var req Command
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "command required")
		}
		if err := reg.SubmitCommand(c.Params("name"), req); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "applied"})
	})

	r.Get("/:name/events", func(c *fiber.Ctx) error {
		from, to, err := rangeParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		events, err := reg.QueryEvents(c.Params("name"), from, to)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(events)
	})

	r.Post("/:name/reset", authMiddleware, func(c *fiber.Ctx) error {
		if err := reg.DailyReset(c.Params("name")); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "reset"})
	})

	r.Patch("/:name", authMiddleware, func(c *fiber.Ctx) error {
		var patch ProfilePatch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		profile, err := reg.UpdateProfile(c.Params("name"), patch)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(profile)
	})

	r.Delete("/:name", authMiddleware, func(c *fiber.Ctx) error {
		if err := reg.Deactivate(c.Params("name")); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownDog):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateDog):
		return fiber.StatusConflict
	case errors.Is(err, walk.ErrInvalidFix),
		errors.Is(err, activity.ErrOutOfOrderEvent),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, dog.ErrInvalidProfile):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func rangeParams(c *fiber.Ctx) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().Add(time.Hour)
	if q := c.Query("from"); q != "" {
		parsed, err := time.Parse(time.RFC3339, q)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if q := c.Query("to"); q != "" {
		parsed, err := time.Parse(time.RFC3339, q)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}
