package model

import "gorm.io/gorm"

// TierUnlimited is the sentinel stored in a limit column when the tier
// places no cap on that resource.
const TierUnlimited = -1

type SubscriptionTier struct {
	gorm.Model
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name" gorm:"not null"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor" gorm:"not null"`
	Currency    string `json:"currency" gorm:"size:3;not null;default:'NOK'"`
	SortOrder   int    `json:"sort_order" gorm:"not null;default:0"`
	IsActive    bool   `json:"is_active" gorm:"not null;default:true"`

	// Limits, -1 means unlimited
	MaxPhotos        int `json:"max_photos" gorm:"not null"`
	MaxProducts      int `json:"max_products" gorm:"not null"`
	MaxMonthlyOffers int `json:"max_monthly_offers" gorm:"not null"`
	MaxStorageMB     int `json:"max_storage_mb" gorm:"not null"`

	// Feature flags
	AdvancedAnalytics   bool `json:"advanced_analytics" gorm:"not null;default:false"`
	PrioritizedSearch   bool `json:"prioritized_search" gorm:"not null;default:false"`
	ProfileHighlighting bool `json:"profile_highlighting" gorm:"not null;default:false"`
	VideoGallery        bool `json:"video_gallery" gorm:"not null;default:false"`
	ReviewBadge         bool `json:"review_badge" gorm:"not null;default:false"`
	MultiCategory       bool `json:"multi_category" gorm:"not null;default:false"`

	// Relations
	Subscriptions []VendorSubscription `json:"-" gorm:"foreignKey:TierID"`
}
