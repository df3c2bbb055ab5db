package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/database"
	"bryllupstorget_backend/pkg/email"
)

func InitSubscriptionExpiryCron() {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		expireEndedSubscriptions()
		failStalePendingPayments()
		sendExpiryWarnings()
	})

	if err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
		return
	}

	c.Start()
}

// expireEndedSubscriptions moves active subscriptions whose paid period
// has ended into past_due. Renewal payments go through the same
// activation path as first-time checkouts and lift them back to active.
func expireEndedSubscriptions() {
	result := database.GetDB().Model(&model.VendorSubscription{}).
		Where("status = ? AND current_period_end < ?", model.SubscriptionStatusActive, time.Now()).
		Update("status", model.SubscriptionStatusPastDue)
	if result.Error != nil {
		log.Printf("Error expiring subscriptions: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Marked %d subscriptions past_due", result.RowsAffected)
	}
}

// failStalePendingPayments closes checkout attempts the network never
// settled. A late callback for one of these is simply a duplicate-style
// transition and still lands safely.
func failStalePendingPayments() {
	cutoff := time.Now().Add(-24 * time.Hour)
	result := database.GetDB().Model(&model.VendorPayment{}).
		Where("status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusFailed,
			"failure_reason": "checkout expired",
		})
	if result.Error != nil {
		log.Printf("Error failing stale payments: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Failed %d stale pending payments", result.RowsAffected)
	}
}

func sendExpiryWarnings() {
	if email.GlobalEmailService == nil {
		return
	}

	warningDays := []int{7, 3}

	for _, days := range warningDays {
		dayStart := time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)

		var subs []model.VendorSubscription
		err := database.GetDB().
			Where("status = ? AND current_period_end >= ? AND current_period_end < ?",
				model.SubscriptionStatusActive, dayStart, dayEnd).
			Preload("Vendor").
			Preload("Tier").
			Find(&subs).Error
		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		for _, sub := range subs {
			if sub.CurrentPeriodEnd == nil {
				continue
			}
			err := email.GlobalEmailService.SendSubscriptionExpiryWarning(
				sub.Vendor.Email,
				sub.Vendor.CompanyName,
				sub.Tier.DisplayName,
				*sub.CurrentPeriodEnd,
				days,
			)
			if err != nil {
				log.Printf("Error sending expiry warning to %s: %v", sub.Vendor.Email, err)
			}
		}
	}
}
