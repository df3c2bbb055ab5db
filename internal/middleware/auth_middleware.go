package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/pkg/utils/jwt"
)

const vendorContextKey = "vendor"

// AuthMiddleware validates the bearer session token and stores the typed
// vendor context for handlers. Nothing downstream reads raw headers.
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization header",
			})
		}

		claims, err := jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
			})
		}

		c.Locals(vendorContextKey, claims)
		return c.Next()
	}
}

// VendorFromContext returns the authenticated vendor's claims. Only valid
// behind AuthMiddleware.
func VendorFromContext(c *fiber.Ctx) *jwt.Claims {
	return c.Locals(vendorContextKey).(*jwt.Claims)
}
