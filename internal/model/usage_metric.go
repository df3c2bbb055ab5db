package model

import "gorm.io/gorm"

// VendorUsageMetric holds one calendar month of consumption counters for a
// vendor. Counters only grow within a period; a new month gets a new row,
// so historical usage stays immutable after rollover.
type VendorUsageMetric struct {
	gorm.Model
	VendorID uint `json:"vendor_id" gorm:"uniqueIndex:idx_vendor_usage_period;not null"`
	Year     int  `json:"year" gorm:"uniqueIndex:idx_vendor_usage_period;not null"`
	Month    int  `json:"month" gorm:"uniqueIndex:idx_vendor_usage_period;not null"`

	PhotosUploaded int64 `json:"photos_uploaded" gorm:"not null;default:0"`
	ProductsListed int64 `json:"products_listed" gorm:"not null;default:0"`
	VideoMinutes   int64 `json:"video_minutes" gorm:"not null;default:0"`
	StorageMB      int64 `json:"storage_mb" gorm:"not null;default:0"`
	ProfileViews   int64 `json:"profile_views" gorm:"not null;default:0"`
	MessagesSent   int64 `json:"messages_sent" gorm:"not null;default:0"`

	// Relations
	Vendor Vendor `json:"-" gorm:"foreignKey:VendorID"`
}
