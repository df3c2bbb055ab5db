package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminMiddleware guards back-office routes with a shared static secret.
// The comparison is constant time so the secret can't be probed byte by
// byte through response timing.
func AdminMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		presented := strings.TrimPrefix(header, "Bearer ")

		if secret == "" || !strings.HasPrefix(header, "Bearer ") ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin credentials",
			})
		}

		return c.Next()
	}
}
