package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/pkg/billing"
	"bryllupstorget_backend/pkg/gateway"
)

// HandlePaymentCallback is the payment network's webhook entry point.
// The signature is verified against c.Body() exactly as received; the raw
// bytes must never be re-serialized from a parsed object before hashing.
func HandlePaymentCallback(c *fiber.Ctx) error {
	rawBody := c.Body()
	signature := c.Get(gateway.SignatureHeader)

	err := subscriptionService.ProcessCallback(c.Context(), rawBody, signature)
	if err == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		// A forged payload gets no acknowledgment. The message does not
		// say which part of validation failed.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	case errors.Is(err, billing.ErrBadPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed payload",
		})
	case errors.Is(err, billing.ErrPaymentNotFound):
		// Redelivering an order we don't recognize won't help.
		log.Printf("callback for unknown payment order: %v", err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Payment not found",
		})
	default:
		// Authenticated payloads whose business effect failed are still
		// acknowledged; otherwise the network redelivers forever.
		log.Printf("callback processing error: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}
}
