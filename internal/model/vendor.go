package model

import (
	"strings"

	"gorm.io/gorm"
)

type Vendor struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `json:"-" gorm:"not null"`
	Username    string `gorm:"uniqueIndex;not null"`
	CompanyName string `json:"company_name" gorm:"not null"`

	// Optional profile details
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	City        string `json:"city"`
	Category    string `json:"category"`

	IsVerified bool `json:"is_verified" gorm:"default:false"`

	// Relations
	Subscriptions []VendorSubscription `json:"-" gorm:"foreignKey:VendorID"`
	Payments      []VendorPayment      `json:"-" gorm:"foreignKey:VendorID"`
	GalleryPhotos []GalleryPhoto       `json:"-" gorm:"foreignKey:VendorID"`
}

func (v *Vendor) GetFullName() string {
	return strings.TrimSpace(v.FirstName + " " + v.LastName)
}

func (v *Vendor) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":           v.ID,
		"username":     v.Username,
		"company_name": v.CompanyName,
		"full_name":    v.GetFullName(),
		"phone_number": v.PhoneNumber,
		"city":         v.City,
		"category":     v.Category,
		"is_verified":  v.IsVerified,
	}
}
