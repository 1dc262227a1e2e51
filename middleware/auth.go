package middleware

import (
	"log/slog"
	"strings"

	"battle-arena/models"
	"battle-arena/services"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID = "user_id"
	LocalUser   = "user"
)

// UserContextMiddleware verifies the bearer token, makes sure the caller has a
// local profile and attaches it to the request.
func UserContextMiddleware(verifier *TokenVerifier, users *services.UserService, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authorization header required",
				"code":  "unauthenticated",
			})
		}

		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("token rejected", slog.String("path", c.Path()), slog.Any("error", err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
				"code":  "unauthenticated",
			})
		}

		user, err := users.EnsureProfile(c.UserContext(), services.Identity{
			Subject: claims.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
			Phone:   claims.Phone,
			Admin:   claims.Admin,
		})
		if err != nil {
			logger.Error("failed to load profile", slog.String("user_id", claims.Subject), slog.Any("error", err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"code":  "internal",
			})
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUser, user)
		return c.Next()
	}
}

// RequireAdmin lets only operators through. It must run after UserContextMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": services.ErrForbidden.Message,
				"code":  services.ErrForbidden.Code,
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the profile attached by UserContextMiddleware.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(LocalUser).(*models.User)
	return user, ok && user != nil
}
