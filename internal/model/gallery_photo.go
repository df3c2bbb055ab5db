package model

import "gorm.io/gorm"

// GalleryPhoto is one stored image in a vendor's public gallery.
type GalleryPhoto struct {
	gorm.Model
	VendorID    uint   `json:"vendor_id" gorm:"index;not null"`
	URL         string `json:"url" gorm:"not null"`
	StorageKey  string `json:"-" gorm:"not null"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`

	// Relations
	Vendor Vendor `json:"-" gorm:"foreignKey:VendorID"`
}
