package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/internal/middleware"
	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/billing"
	"bryllupstorget_backend/pkg/database"
	"bryllupstorget_backend/pkg/subscription"
)

var subscriptionService *billing.Service

type CheckoutInput struct {
	TierID uint `json:"tier_id" validate:"required"`
}

type CheckFeatureInput struct {
	Feature string `json:"feature" validate:"required"`
}

type TrackUsageInput struct {
	Metric string `json:"metric" validate:"required"`
	Amount int64  `json:"amount"`
}

func InitSubscriptionController(svc *billing.Service) {
	subscriptionService = svc
}

// ListTiers returns the active tier catalog in display order.
func ListTiers(c *fiber.Ctx) error {
	var tiers []model.SubscriptionTier
	err := database.GetDB().
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Find(&tiers).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscription tiers",
		})
	}

	return c.JSON(tiers)
}

// GetCurrentSubscription returns the vendor's subscription, its effective
// tier and this month's usage in one response.
func GetCurrentSubscription(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	tier, sub, err := subscriptionService.CurrentTier(claims.VendorID)
	if err != nil {
		return billingErrorResponse(c, err)
	}
	usage, err := subscriptionService.CurrentUsage(claims.VendorID)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"subscription": sub,
		"tier":         tier,
		"usage":        usage,
	})
}

// CheckFeature answers a boolean feature check. Unknown keys come back as
// allowed=false rather than an error.
func CheckFeature(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	input := new(CheckFeatureInput)
	if err := c.BodyParser(input); err != nil || input.Feature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "feature is required",
		})
	}

	allowed, err := subscriptionService.HasFeature(claims.VendorID, input.Feature)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"feature": input.Feature,
		"allowed": allowed,
	})
}

// GetUsageLimits reports limit, used and remaining for every quota.
func GetUsageLimits(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	limits, err := subscriptionService.UsageLimits(claims.VendorID)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"limits": limits})
}

// TrackUsage applies a signed delta to one usage counter.
func TrackUsage(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	input := new(TrackUsageInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	metric, err := subscription.ParseMetric(input.Metric)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	amount := input.Amount
	if amount == 0 {
		amount = 1
	}

	usage, err := subscriptionService.TrackUsage(claims.VendorID, metric, amount)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"usage": usage})
}

// Checkout starts a payment for a tier change and returns the redirect
// URL for the payment network.
func Checkout(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	input := new(CheckoutInput)
	if err := c.BodyParser(input); err != nil || input.TierID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tier_id is required",
		})
	}

	payment, paymentURL, err := subscriptionService.Checkout(c.Context(), claims.VendorID, input.TierID)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"payment_id":  payment.ID,
		"order_id":    payment.OrderID,
		"payment_url": paymentURL,
	})
}

// GetPaymentStatus polls one payment. While the record is pending the
// network is re-queried, feeding the same transition path as the webhook.
func GetPaymentStatus(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)
	orderID := c.Params("orderId")

	payment, err := subscriptionService.PollPaymentStatus(c.Context(), claims.VendorID, orderID)
	if err != nil {
		if errors.Is(err, billing.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Payment not found",
			})
		}
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"order_id":       payment.OrderID,
		"status":         payment.Status,
		"amount_minor":   payment.AmountMinor,
		"currency":       payment.Currency,
		"period_start":   payment.PeriodStart,
		"period_end":     payment.PeriodEnd,
		"failure_reason": payment.FailureReason,
		"paid_at":        payment.PaidAt,
	})
}
