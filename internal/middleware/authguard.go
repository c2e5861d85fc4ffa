package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/artifox/artifox/internal/auth"
	"github.com/artifox/artifox/internal/config"
	"github.com/artifox/artifox/internal/identity"
	"github.com/artifox/artifox/internal/profile"
)

// AuthGuard validates the bearer token, checks the token version, loads the
// caller's profile, and stores the validated pair in request locals. Every
// protected handler downstream reads "user_id" and "profile" instead of
// repeating the lookup.
func AuthGuard(cfg config.Config, users identity.Repository, profiles *profile.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if expFloat, ok := claims["exp"].(float64); !ok || time.Now().Unix() >= int64(expFloat) {
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		}
		sub, _ := claims["sub"].(string)
		verFloat, _ := claims["ver"].(float64)
		ver := int(verFloat)

		user, err := users.FindByID(c.UserContext(), sub)
		if err != nil || user.TokenVersion != ver {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("user_id", sub)

		if profiles != nil {
			prof, err := profiles.Get(c.UserContext(), sub)
			if err != nil {
				if errors.Is(err, profile.ErrNotFound) {
					return fiber.NewError(http.StatusNotFound, "profile not found")
				}
				return fiber.NewError(http.StatusInternalServerError, err.Error())
			}
			c.Locals("profile", prof)
			c.Locals("user_status", prof.UserStatus)
		}

		return c.Next()
	}
}
