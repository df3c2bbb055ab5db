package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// VendorPayment is one checkout attempt against the payment network.
// OrderID is the network's order identifier and the idempotency key for
// all webhook processing; it is globally unique. Amounts are integer
// minor-currency units (øre), never floating point.
type VendorPayment struct {
	gorm.Model
	VendorID       uint   `json:"vendor_id" gorm:"index;not null"`
	SubscriptionID *uint  `json:"subscription_id" gorm:"index"`
	AmountMinor    int64  `json:"amount_minor" gorm:"not null"`
	Currency       string `json:"currency" gorm:"size:3;not null;default:'NOK'"`
	Status         string `json:"status" gorm:"index;not null;default:'pending'"`
	OrderID        string `json:"order_id" gorm:"uniqueIndex;size:64;not null"`

	// Billing period this payment pays for. Activation uses these bounds,
	// not a freshly computed window, so a late webhook stays correct.
	PeriodStart time.Time `json:"period_start" gorm:"not null"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null"`

	FailureReason   string         `json:"failure_reason"`
	PaidAt          *time.Time     `json:"paid_at"`
	RefundedAt      *time.Time     `json:"refunded_at"`
	CallbackPayload datatypes.JSON `json:"-"`

	// Relations
	Vendor       Vendor              `json:"-" gorm:"foreignKey:VendorID"`
	Subscription *VendorSubscription `json:"-" gorm:"foreignKey:SubscriptionID"`
}
