package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/pkg/util"
)

// RequireUser ensures an end-user session.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok || session.Role != domain.RoleUser {
			return util.NewPermissionDenied("end-user required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures a support-staff session.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok || session.Role != domain.RoleAdmin {
			return util.NewPermissionDenied("staff required")
		}
		return c.Next()
	}
}

// RequireSession ensures the caller is authenticated as either side.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := SessionFromContext(c); !ok {
			return util.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
