package seed

import (
	"log"

	"gorm.io/gorm"

	"bryllupstorget_backend/internal/model"
)

func SeedSubscriptionTiers(db *gorm.DB) {
	tiers := []model.SubscriptionTier{
		{
			Name:        "basis",
			DisplayName: "Basis",
			Description: "Free listing for new vendors",
			PriceMinor:  0,
			SortOrder:   0,
			IsActive:    true,

			MaxPhotos:        5,
			MaxProducts:      3,
			MaxMonthlyOffers: 5,
			MaxStorageMB:     100,
		},
		{
			Name:        "starter",
			DisplayName: "Starter",
			Description: "For vendors getting started",
			PriceMinor:  19900,
			SortOrder:   1,
			IsActive:    true,

			MaxPhotos:        20,
			MaxProducts:      5,
			MaxMonthlyOffers: 20,
			MaxStorageMB:     500,

			ReviewBadge: true,
		},
		{
			Name:        "professional",
			DisplayName: "Professional",
			Description: "For established vendors",
			PriceMinor:  49900,
			SortOrder:   2,
			IsActive:    true,

			MaxPhotos:        100,
			MaxProducts:      25,
			MaxMonthlyOffers: 100,
			MaxStorageMB:     2048,

			AdvancedAnalytics: true,
			PrioritizedSearch: true,
			VideoGallery:      true,
			ReviewBadge:       true,
		},
		{
			Name:        "premium",
			DisplayName: "Premium",
			Description: "Everything, without limits",
			PriceMinor:  99900,
			SortOrder:   3,
			IsActive:    true,

			MaxPhotos:        model.TierUnlimited,
			MaxProducts:      model.TierUnlimited,
			MaxMonthlyOffers: model.TierUnlimited,
			MaxStorageMB:     model.TierUnlimited,

			AdvancedAnalytics:   true,
			PrioritizedSearch:   true,
			ProfileHighlighting: true,
			VideoGallery:        true,
			ReviewBadge:         true,
			MultiCategory:       true,
		},
	}

	for _, tier := range tiers {
		var existing model.SubscriptionTier
		if err := db.Where("name = ?", tier.Name).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&tier).Error; err != nil {
			log.Printf("Could not seed tier %s: %v", tier.Name, err)
		} else {
			log.Printf("Seeded subscription tier: %s", tier.Name)
		}
	}
}
