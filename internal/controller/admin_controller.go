package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/database"
)

type TierInput struct {
	DisplayName string `json:"display_name" validate:"required"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`

	MaxPhotos        int `json:"max_photos"`
	MaxProducts      int `json:"max_products"`
	MaxMonthlyOffers int `json:"max_monthly_offers"`
	MaxStorageMB     int `json:"max_storage_mb"`

	AdvancedAnalytics   bool `json:"advanced_analytics"`
	PrioritizedSearch   bool `json:"prioritized_search"`
	ProfileHighlighting bool `json:"profile_highlighting"`
	VideoGallery        bool `json:"video_gallery"`
	ReviewBadge         bool `json:"review_badge"`
	MultiCategory       bool `json:"multi_category"`
}

func InitAdminController() {}

// ListAllTiers returns the full catalog, inactive tiers included.
func ListAllTiers(c *fiber.Ctx) error {
	var tiers []model.SubscriptionTier
	if err := database.GetDB().Order("sort_order ASC").Find(&tiers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch tiers",
		})
	}
	return c.JSON(tiers)
}

func CreateTier(c *fiber.Ctx) error {
	input := new(TierInput)
	if err := c.BodyParser(input); err != nil || input.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "display_name is required",
		})
	}

	currency := input.Currency
	if currency == "" {
		currency = "NOK"
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	tier := model.SubscriptionTier{
		Name:        slug.Make(input.DisplayName),
		DisplayName: input.DisplayName,
		Description: input.Description,
		PriceMinor:  input.PriceMinor,
		Currency:    currency,
		SortOrder:   input.SortOrder,
		IsActive:    isActive,

		MaxPhotos:        input.MaxPhotos,
		MaxProducts:      input.MaxProducts,
		MaxMonthlyOffers: input.MaxMonthlyOffers,
		MaxStorageMB:     input.MaxStorageMB,

		AdvancedAnalytics:   input.AdvancedAnalytics,
		PrioritizedSearch:   input.PrioritizedSearch,
		ProfileHighlighting: input.ProfileHighlighting,
		VideoGallery:        input.VideoGallery,
		ReviewBadge:         input.ReviewBadge,
		MultiCategory:       input.MultiCategory,
	}

	if err := database.GetDB().Create(&tier).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create tier",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(tier)
}

// UpdateTier edits a catalog entry. Edits never rewrite stored usage or
// periods; they apply the next time a feature check reads the tier.
func UpdateTier(c *fiber.Ctx) error {
	var tier model.SubscriptionTier
	if err := database.GetDB().First(&tier, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tier not found",
		})
	}

	input := new(TierInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.DisplayName != "" {
		tier.DisplayName = input.DisplayName
	}
	tier.Description = input.Description
	tier.PriceMinor = input.PriceMinor
	if input.Currency != "" {
		tier.Currency = input.Currency
	}
	tier.SortOrder = input.SortOrder
	if input.IsActive != nil {
		tier.IsActive = *input.IsActive
	}
	tier.MaxPhotos = input.MaxPhotos
	tier.MaxProducts = input.MaxProducts
	tier.MaxMonthlyOffers = input.MaxMonthlyOffers
	tier.MaxStorageMB = input.MaxStorageMB
	tier.AdvancedAnalytics = input.AdvancedAnalytics
	tier.PrioritizedSearch = input.PrioritizedSearch
	tier.ProfileHighlighting = input.ProfileHighlighting
	tier.VideoGallery = input.VideoGallery
	tier.ReviewBadge = input.ReviewBadge
	tier.MultiCategory = input.MultiCategory

	if err := database.GetDB().Save(&tier).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update tier",
		})
	}

	return c.JSON(tier)
}

// DeactivateTier soft-disables a tier. Tiers referenced by live
// subscriptions are never deleted.
func DeactivateTier(c *fiber.Ctx) error {
	var tier model.SubscriptionTier
	if err := database.GetDB().First(&tier, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tier not found",
		})
	}

	if err := database.GetDB().Model(&tier).Update("is_active", false).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not deactivate tier",
		})
	}

	return c.JSON(fiber.Map{"message": "Tier deactivated"})
}

// ListVendorSubscriptions lists subscriptions, optionally by status.
func ListVendorSubscriptions(c *fiber.Ctx) error {
	query := database.GetDB().Preload("Tier").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var subs []model.VendorSubscription
	if err := query.Limit(200).Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscriptions",
		})
	}
	return c.JSON(subs)
}

// ListUsageMetrics lists usage rows, optionally filtered by vendor.
func ListUsageMetrics(c *fiber.Ctx) error {
	query := database.GetDB().Order("year DESC, month DESC")
	if v := c.Query("vendor_id"); v != "" {
		if vendorID, err := strconv.Atoi(v); err == nil {
			query = query.Where("vendor_id = ?", vendorID)
		}
	}

	var metrics []model.VendorUsageMetric
	if err := query.Limit(200).Find(&metrics).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch usage metrics",
		})
	}
	return c.JSON(metrics)
}

// ListPayments lists the payment ledger, newest first.
func ListPayments(c *fiber.Ctx) error {
	query := database.GetDB().Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var payments []model.VendorPayment
	if err := query.Limit(200).Find(&payments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch payments",
		})
	}
	return c.JSON(payments)
}

// CapturePayment confirms a reserved payment with the network.
func CapturePayment(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	if err := subscriptionService.Capture(c.Context(), orderID); err != nil {
		return billingErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment captured"})
}

// RefundPayment returns funds for a succeeded payment.
func RefundPayment(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	if err := subscriptionService.Refund(c.Context(), orderID); err != nil {
		return billingErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment refunded"})
}
