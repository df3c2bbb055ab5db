package subscription

import (
	"fmt"
	"strings"

	"bryllupstorget_backend/internal/model"
)

type Feature string
type Metric string
type Limit string

const (
	AdvancedAnalytics   Feature = "advanced_analytics"
	PrioritizedSearch   Feature = "prioritized_search"
	ProfileHighlighting Feature = "profile_highlighting"
	VideoGallery        Feature = "video_gallery"
	ReviewBadge         Feature = "review_badge"
	MultiCategory       Feature = "multi_category"
)

const (
	MetricPhotosUploaded Metric = "photos_uploaded"
	MetricProductsListed Metric = "products_listed"
	MetricVideoMinutes   Metric = "video_minutes"
	MetricStorageMB      Metric = "storage_mb"
	MetricProfileViews   Metric = "profile_views"
	MetricMessagesSent   Metric = "messages_sent"
)

const (
	LimitPhotos        Limit = "photos"
	LimitProducts      Limit = "products"
	LimitMonthlyOffers Limit = "monthly_offers"
	LimitStorageMB     Limit = "storage_mb"
)

// AllLimits drives the usage-limits endpoint.
var AllLimits = []Limit{LimitPhotos, LimitProducts, LimitMonthlyOffers, LimitStorageMB}

// UnlimitedCap replaces the catalog's unlimited sentinel before any quota
// arithmetic, so "unlimited" never shows up as a negative remaining value.
const UnlimitedCap = 1<<31 - 1

// ParseMetric maps a wire-level metric key onto the closed enum. Unknown
// keys are a validation error at the boundary, not a silent counter.
func ParseMetric(key string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(key)))
	switch m {
	case MetricPhotosUploaded, MetricProductsListed, MetricVideoMinutes,
		MetricStorageMB, MetricProfileViews, MetricMessagesSent:
		return m, nil
	default:
		return "", fmt.Errorf("unknown usage metric %q", key)
	}
}

// TierAllows reports whether a tier grants a boolean feature. Unknown
// feature keys fail closed.
func TierAllows(tier *model.SubscriptionTier, feature Feature) bool {
	if tier == nil {
		return false
	}
	switch feature {
	case AdvancedAnalytics:
		return tier.AdvancedAnalytics
	case PrioritizedSearch:
		return tier.PrioritizedSearch
	case ProfileHighlighting:
		return tier.ProfileHighlighting
	case VideoGallery:
		return tier.VideoGallery
	case ReviewBadge:
		return tier.ReviewBadge
	case MultiCategory:
		return tier.MultiCategory
	default:
		return false
	}
}

type Quota struct {
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// TierLimit resolves a limit key against the tier's catalog columns.
// Unknown keys resolve to zero, which blocks the action.
func TierLimit(tier *model.SubscriptionTier, limit Limit) int64 {
	if tier == nil {
		return 0
	}
	var v int
	switch limit {
	case LimitPhotos:
		v = tier.MaxPhotos
	case LimitProducts:
		v = tier.MaxProducts
	case LimitMonthlyOffers:
		v = tier.MaxMonthlyOffers
	case LimitStorageMB:
		v = tier.MaxStorageMB
	default:
		return 0
	}
	if v == model.TierUnlimited {
		return UnlimitedCap
	}
	return int64(v)
}

// UsedFor picks the meter counter a limit is enforced against. Offers and
// deliveries go out through vendor messages, so the monthly-offer cap
// counts messages_sent.
func UsedFor(usage *model.VendorUsageMetric, limit Limit) int64 {
	if usage == nil {
		return 0
	}
	switch limit {
	case LimitPhotos:
		return usage.PhotosUploaded
	case LimitProducts:
		return usage.ProductsListed
	case LimitMonthlyOffers:
		return usage.MessagesSent
	case LimitStorageMB:
		return usage.StorageMB
	default:
		return 0
	}
}

// CheckQuota computes remaining headroom for one limit. Remaining is
// floored at zero even when usage overshot the cap (a tier downgrade can
// legitimately leave used > limit).
func CheckQuota(tier *model.SubscriptionTier, used int64, limit Limit) Quota {
	max := TierLimit(tier, limit)
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Limit: max, Used: used, Remaining: remaining}
}
