package handlers

import (
	"log/slog"

	"battle-arena/services"

	"github.com/gofiber/fiber/v2"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindState, services.KindCapacity:
		return fiber.StatusConflict
	case services.KindAuthorization:
		return fiber.StatusForbidden
	case services.KindIntegrity:
		return fiber.StatusUnprocessableEntity
	case services.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error","code"} for domain errors and hides the
// detail of anything else.
func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	if domainErr, ok := services.AsError(err); ok {
		return c.Status(statusFor(domainErr.Kind)).JSON(fiber.Map{
			"error": err.Error(),
			"code":  domainErr.Code,
		})
	}
	logger.Error("request failed",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Any("error", err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
		"code":  "internal",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  "bad_request",
	})
}
