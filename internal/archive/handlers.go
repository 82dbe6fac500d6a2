package archive

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/:name/walks", func(c *fiber.Ctx) error {
		from, to, err := rangeParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sessions, err := svc.Sessions(c.Context(), c.Params("name"), from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sessions)
	})

	r.Get("/:name/events", func(c *fiber.Ctx) error {
		from, to, err := rangeParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		events, err := svc.Events(c.Context(), c.Params("name"), from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(events)
	})
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
