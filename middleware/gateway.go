package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceTokenMiddleware guards internal endpoints such as /metrics with a
// static bearer token. An empty token disables the check.
func ServiceTokenMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Next()
		}
		authHeader := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
				"code":  "unauthenticated",
			})
		}
		return c.Next()
	}
}
