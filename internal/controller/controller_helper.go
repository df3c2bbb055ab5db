package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/pkg/billing"
)

// billingErrorResponse maps billing sentinels onto HTTP status codes with
// a user-safe message. Anything unmapped is a 500.
func billingErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrTierNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription tier not found"})
	case errors.Is(err, billing.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription not found"})
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	case errors.Is(err, billing.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Payment is in a conflicting state"})
	case errors.Is(err, billing.ErrGateway):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment service is unavailable, please try again"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
