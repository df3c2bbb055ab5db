package middleware

import (
	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/pkg/billing"
	"bryllupstorget_backend/pkg/subscription"
)

var billingService *billing.Service

// InitSubscriptionMiddleware wires the billing service the guards below
// consult. Must run before routes are registered.
func InitSubscriptionMiddleware(svc *billing.Service) {
	billingService = svc
}

// RequireFeature blocks the request unless the vendor's tier grants the
// feature. Vendors without a subscription are gated by the default tier.
func RequireFeature(feature subscription.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := VendorFromContext(c)

		allowed, err := billingService.HasFeature(claims.VendorID, string(feature))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check subscription features",
			})
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "This feature requires a higher subscription tier",
			})
		}

		return c.Next()
	}
}

// RequireQuota blocks the request when the vendor has no headroom left on
// a limit. The meter itself never clamps; enforcement happens here.
func RequireQuota(limit subscription.Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := VendorFromContext(c)

		quota, err := billingService.CheckQuota(claims.VendorID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check subscription limits",
			})
		}
		if quota.Remaining == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":     "You have reached your subscription limit. Please upgrade your tier.",
				"limit":     quota.Limit,
				"used":      quota.Used,
				"remaining": quota.Remaining,
			})
		}

		return c.Next()
	}
}
