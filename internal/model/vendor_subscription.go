package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCancelled = "cancelled"
)

// VendorSubscription is the vendor's current subscription intent. At most
// one row per vendor may be in "active" status at any time.
type VendorSubscription struct {
	gorm.Model
	VendorID           uint       `json:"vendor_id" gorm:"index;not null"`
	TierID             uint       `json:"tier_id" gorm:"not null"`
	Status             string     `json:"status" gorm:"index;not null;default:'pending'"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	AutoRenew          bool       `json:"auto_renew" gorm:"not null;default:true"`

	// Relations
	Vendor Vendor           `json:"-" gorm:"foreignKey:VendorID"`
	Tier   SubscriptionTier `json:"tier" gorm:"foreignKey:TierID"`
}
