package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bryllupstorget_backend/internal/model"
)

func starterTier() *model.SubscriptionTier {
	return &model.SubscriptionTier{
		Name:             "starter",
		MaxPhotos:        20,
		MaxProducts:      5,
		MaxMonthlyOffers: 20,
		MaxStorageMB:     500,
		ReviewBadge:      true,
	}
}

func premiumTier() *model.SubscriptionTier {
	return &model.SubscriptionTier{
		Name:                "premium",
		MaxPhotos:           model.TierUnlimited,
		MaxProducts:         model.TierUnlimited,
		MaxMonthlyOffers:    model.TierUnlimited,
		MaxStorageMB:        model.TierUnlimited,
		AdvancedAnalytics:   true,
		PrioritizedSearch:   true,
		ProfileHighlighting: true,
		VideoGallery:        true,
		ReviewBadge:         true,
		MultiCategory:       true,
	}
}

func TestTierAllows(t *testing.T) {
	tests := []struct {
		name    string
		tier    *model.SubscriptionTier
		feature Feature
		want    bool
	}{
		{"granted flag", starterTier(), ReviewBadge, true},
		{"denied flag", starterTier(), AdvancedAnalytics, false},
		{"unknown feature fails closed", premiumTier(), Feature("teleportation"), false},
		{"empty feature fails closed", premiumTier(), Feature(""), false},
		{"nil tier fails closed", nil, ReviewBadge, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TierAllows(tc.tier, tc.feature))
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("  Photos_Uploaded ")
	require.NoError(t, err)
	assert.Equal(t, MetricPhotosUploaded, m)

	m, err = ParseMetric("products_listed")
	require.NoError(t, err)
	assert.Equal(t, MetricProductsListed, m)

	_, err = ParseMetric("bandwidth_gb")
	assert.Error(t, err)

	_, err = ParseMetric("")
	assert.Error(t, err)
}

func TestTierLimit(t *testing.T) {
	tier := starterTier()
	assert.Equal(t, int64(5), TierLimit(tier, LimitProducts))
	assert.Equal(t, int64(20), TierLimit(tier, LimitPhotos))

	// Unlimited maps to the cap, never a negative number.
	assert.Equal(t, int64(UnlimitedCap), TierLimit(premiumTier(), LimitPhotos))

	// Unknown limit keys and nil tiers block the action.
	assert.Equal(t, int64(0), TierLimit(tier, Limit("bandwidth")))
	assert.Equal(t, int64(0), TierLimit(nil, LimitPhotos))
}

func TestCheckQuota(t *testing.T) {
	tier := starterTier()

	tests := []struct {
		name          string
		used          int64
		limit         Limit
		wantLimit     int64
		wantRemaining int64
	}{
		{"headroom left", 3, LimitProducts, 5, 2},
		{"exactly at cap", 5, LimitProducts, 5, 0},
		{"overshoot floors at zero", 9, LimitProducts, 5, 0},
		{"untouched counter", 0, LimitPhotos, 20, 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := CheckQuota(tier, tc.used, tc.limit)
			assert.Equal(t, tc.wantLimit, q.Limit)
			assert.Equal(t, tc.used, q.Used)
			assert.Equal(t, tc.wantRemaining, q.Remaining)
		})
	}
}

func TestCheckQuota_Unlimited(t *testing.T) {
	q := CheckQuota(premiumTier(), 1_000_000, LimitPhotos)
	assert.Equal(t, int64(UnlimitedCap), q.Limit)
	assert.Greater(t, q.Remaining, int64(0))
}

func TestUsedFor(t *testing.T) {
	usage := &model.VendorUsageMetric{
		PhotosUploaded: 7,
		ProductsListed: 3,
		StorageMB:      120,
		MessagesSent:   11,
	}
	assert.Equal(t, int64(7), UsedFor(usage, LimitPhotos))
	assert.Equal(t, int64(3), UsedFor(usage, LimitProducts))
	assert.Equal(t, int64(120), UsedFor(usage, LimitStorageMB))
	// Monthly offers are delivered as vendor messages.
	assert.Equal(t, int64(11), UsedFor(usage, LimitMonthlyOffers))
	assert.Equal(t, int64(0), UsedFor(nil, LimitPhotos))
}
