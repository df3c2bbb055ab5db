package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/gateway"
	"bryllupstorget_backend/pkg/subscription"
)

// PaymentGateway is the slice of the payment network client the billing
// service depends on.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, orderID string, amountMinor int64, description string) (string, error)
	GetPaymentStatus(ctx context.Context, orderID string) (gateway.Status, error)
	CapturePayment(ctx context.Context, orderID string, amountMinor int64) error
	RefundPayment(ctx context.Context, orderID string, amountMinor int64) error
}

// Notifier receives post-commit billing events. Delivery failures are
// logged, never propagated.
type Notifier interface {
	SubscriptionActivated(vendor *model.Vendor, tier *model.SubscriptionTier, periodEnd time.Time) error
}

// Service owns every mutation of the payment ledger and the subscription
// ledger. Controllers and the expiry cron go through it.
type Service struct {
	repo          Repository
	gw            PaymentGateway
	webhookSecret string
	notifier      Notifier
}

func NewService(repo Repository, gw PaymentGateway, webhookSecret string) *Service {
	return &Service{repo: repo, gw: gw, webhookSecret: webhookSecret}
}

// SetNotifier attaches an optional notification sink.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CallbackPayload is the payment network's webhook body.
type CallbackPayload struct {
	OrderID         string `json:"orderId"`
	TransactionInfo struct {
		Status        string `json:"status"`
		Amount        int64  `json:"amount"`
		TransactionID string `json:"transactionId"`
		TimeStamp     string `json:"timeStamp"`
	} `json:"transactionInfo"`
	ErrorInfo *struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"errorInfo"`
}

// Checkout creates a pending subscription and payment for a tier change
// and starts a checkout with the payment network. An existing active
// subscription is left untouched until the payment is confirmed, so a
// failed upgrade never strips a vendor of service.
func (s *Service) Checkout(ctx context.Context, vendorID, tierID uint) (*model.VendorPayment, string, error) {
	tier, err := s.repo.GetTier(tierID)
	if err != nil {
		return nil, "", err
	}
	if !tier.IsActive {
		return nil, "", ErrTierNotFound
	}

	periodStart := time.Now()
	if active, err := s.repo.GetActiveSubscription(vendorID); err == nil {
		// Renewing the current tier starts the new period where the paid
		// one ends instead of overlapping it.
		if active.TierID == tierID && active.CurrentPeriodEnd != nil && active.CurrentPeriodEnd.After(periodStart) {
			periodStart = *active.CurrentPeriodEnd
		}
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, "", err
	}
	periodEnd := periodStart.AddDate(0, 1, 0)

	sub := &model.VendorSubscription{
		VendorID: vendorID,
		TierID:   tierID,
		Status:   model.SubscriptionStatusPending,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return nil, "", err
	}

	payment := &model.VendorPayment{
		VendorID:       vendorID,
		SubscriptionID: &sub.ID,
		AmountMinor:    tier.PriceMinor,
		Currency:       tier.Currency,
		Status:         model.PaymentStatusPending,
		OrderID:        uuid.New().String(),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, "", err
	}

	description := fmt.Sprintf("%s abonnement", tier.DisplayName)
	paymentURL, err := s.gw.InitiatePayment(ctx, payment.OrderID, payment.AmountMinor, description)
	if err != nil {
		// The payment stays pending for later reconciliation; we never
		// guess at the network's state.
		log.Printf("checkout initiation failed for order %s: %v", payment.OrderID, err)
		return nil, "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return payment, paymentURL, nil
}

// ProcessCallback applies one webhook delivery. The signature is checked
// against the raw received bytes before anything touches the database;
// duplicate deliveries are no-ops.
func (s *Service) ProcessCallback(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if !gateway.VerifyWebhookSignature(rawBody, signatureHeader, s.webhookSecret) {
		return ErrInvalidSignature
	}

	var payload CallbackPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.OrderID == "" {
		return fmt.Errorf("%w: missing orderId", ErrBadPayload)
	}

	status := gateway.ParseStatus(payload.TransactionInfo.Status)
	reason := ""
	if payload.ErrorInfo != nil {
		reason = payload.ErrorInfo.ErrorCode
		if payload.ErrorInfo.ErrorMessage != "" {
			reason = payload.ErrorInfo.ErrorCode + ": " + payload.ErrorInfo.ErrorMessage
		}
	}
	return s.applyTransition(payload.OrderID, status, reason, rawBody)
}

// applyTransition is the single state machine for payment outcomes. The
// synchronous status poll and the asynchronous webhook both land here, so
// whichever wins the race applies the transition and the loser no-ops.
func (s *Service) applyTransition(orderID string, status gateway.Status, reason string, payload []byte) error {
	var activatedVendorID uint
	var activatedTierID uint
	var activatedPeriodEnd time.Time

	err := s.repo.Transact(func(tx Repository) error {
		payment, err := tx.GetPaymentByOrderIDForUpdate(orderID)
		if err != nil {
			return err
		}

		switch status {
		case gateway.StatusCaptured, gateway.StatusReserved:
			if payment.Status == model.PaymentStatusFailed {
				// The checkout was already closed as failed. Money moved
				// remotely, so this is a back-office refund task, never a
				// late activation.
				log.Printf("captured callback for failed order %s; needs manual refund", orderID)
				return nil
			}
			if payment.Status != model.PaymentStatusPending {
				// Duplicate delivery.
				return nil
			}
			now := time.Now()
			payment.Status = model.PaymentStatusSucceeded
			payment.PaidAt = &now
			if len(payload) > 0 {
				payment.CallbackPayload = payload
			}
			if err := tx.SavePayment(payment); err != nil {
				return err
			}
			if payment.SubscriptionID == nil {
				return nil
			}
			activated, err := s.activateSubscription(tx, payment)
			if err != nil {
				return err
			}
			if activated {
				activatedVendorID = payment.VendorID
				activatedPeriodEnd = payment.PeriodEnd
				if sub, err := tx.GetSubscription(*payment.SubscriptionID); err == nil {
					activatedTierID = sub.TierID
				}
			}
			return nil

		case gateway.StatusFailed, gateway.StatusAborted:
			if payment.Status != model.PaymentStatusPending {
				return nil
			}
			payment.Status = model.PaymentStatusFailed
			payment.FailureReason = reason
			if len(payload) > 0 {
				payment.CallbackPayload = payload
			}
			// The pending subscription attempt is left for the vendor to
			// retry; the ledger is not touched.
			return tx.SavePayment(payment)

		default:
			// UNKNOWN resolves later, via redelivery or the status poll.
			return nil
		}
	})
	if err != nil {
		return err
	}

	if activatedVendorID != 0 {
		s.notifyActivated(activatedVendorID, activatedTierID, activatedPeriodEnd)
	}
	return nil
}

// activateSubscription moves pending to active (or extends active) with
// the billing period carried on the payment. Calling it again with the
// same period is a no-op, which is what makes webhook redelivery safe.
func (s *Service) activateSubscription(tx Repository, payment *model.VendorPayment) (bool, error) {
	sub, err := tx.GetSubscription(*payment.SubscriptionID)
	if err != nil {
		return false, err
	}

	if sub.Status == model.SubscriptionStatusActive &&
		sub.CurrentPeriodStart != nil && sub.CurrentPeriodStart.Equal(payment.PeriodStart) &&
		sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Equal(payment.PeriodEnd) {
		return false, nil
	}

	start := payment.PeriodStart
	end := payment.PeriodEnd
	sub.Status = model.SubscriptionStatusActive
	sub.CurrentPeriodStart = &start
	sub.CurrentPeriodEnd = &end
	if err := tx.SaveSubscription(sub); err != nil {
		return false, err
	}
	// An upgrade replaces the previous tier once, and only once, payment
	// is confirmed.
	if err := tx.DeactivateOtherActive(sub.VendorID, sub.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) notifyActivated(vendorID, tierID uint, periodEnd time.Time) {
	if s.notifier == nil {
		return
	}
	vendor, err := s.repo.GetVendor(vendorID)
	if err != nil {
		log.Printf("could not load vendor %d for activation notice: %v", vendorID, err)
		return
	}
	tier, err := s.repo.GetTier(tierID)
	if err != nil {
		log.Printf("could not load tier %d for activation notice: %v", tierID, err)
		return
	}
	if err := s.notifier.SubscriptionActivated(vendor, tier, periodEnd); err != nil {
		log.Printf("could not send activation notice to %s: %v", vendor.Email, err)
	}
}

// PollPaymentStatus returns the stored payment, refreshing it from the
// network first while it is still pending. The refresh feeds the same
// transition path as the webhook, so the two can race safely.
func (s *Service) PollPaymentStatus(ctx context.Context, vendorID uint, orderID string) (*model.VendorPayment, error) {
	payment, err := s.repo.GetPaymentByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if payment.VendorID != vendorID {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != model.PaymentStatusPending {
		return payment, nil
	}

	status, err := s.gw.GetPaymentStatus(ctx, orderID)
	if err != nil {
		// Stale is acceptable for a poll; the webhook will settle it.
		log.Printf("status poll for order %s failed: %v", orderID, err)
		return payment, nil
	}
	if err := s.applyTransition(orderID, status, "", nil); err != nil {
		return nil, err
	}
	return s.repo.GetPaymentByOrderID(orderID)
}

// Capture confirms a reserved payment with the network. A timed-out call
// is an unknown outcome: the status is re-queried before giving up so the
// payment is never captured twice.
func (s *Service) Capture(ctx context.Context, orderID string) error {
	payment, err := s.repo.GetPaymentByOrderID(orderID)
	if err != nil {
		return err
	}
	if payment.Status == model.PaymentStatusRefunded || payment.Status == model.PaymentStatusFailed {
		return ErrConflict
	}

	if err := s.gw.CapturePayment(ctx, orderID, payment.AmountMinor); err != nil {
		if !isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrGateway, err)
		}
		status, stErr := s.gw.GetPaymentStatus(ctx, orderID)
		if stErr != nil || status != gateway.StatusCaptured {
			return fmt.Errorf("%w: capture outcome unknown for order %s", ErrGateway, orderID)
		}
	}
	return s.applyTransition(orderID, gateway.StatusCaptured, "", nil)
}

// Refund returns funds for a succeeded payment and marks it refunded.
// Refunding an already-refunded payment is treated as done.
func (s *Service) Refund(ctx context.Context, orderID string) error {
	payment, err := s.repo.GetPaymentByOrderID(orderID)
	if err != nil {
		return err
	}
	if payment.Status == model.PaymentStatusRefunded {
		return nil
	}
	if payment.Status != model.PaymentStatusSucceeded {
		return ErrConflict
	}

	if err := s.gw.RefundPayment(ctx, orderID, payment.AmountMinor); err != nil {
		if !isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrGateway, err)
		}
		// A timed-out refund is an unknown outcome. Confirm the network is
		// reachable, then retry once: the remote reports already_refunded
		// on replays, so a refund that did land comes back as success. The
		// ledger is only marked refunded on a confirmed outcome.
		if _, stErr := s.gw.GetPaymentStatus(ctx, orderID); stErr != nil {
			return fmt.Errorf("%w: refund outcome unknown for order %s", ErrGateway, orderID)
		}
		if rErr := s.gw.RefundPayment(ctx, orderID, payment.AmountMinor); rErr != nil {
			return fmt.Errorf("%w: refund outcome unknown for order %s", ErrGateway, orderID)
		}
	}

	return s.repo.Transact(func(tx Repository) error {
		stored, err := tx.GetPaymentByOrderIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if stored.Status == model.PaymentStatusRefunded {
			return nil
		}
		now := time.Now()
		stored.Status = model.PaymentStatusRefunded
		stored.RefundedAt = &now
		return tx.SavePayment(stored)
	})
}

// CurrentTier resolves the tier a vendor's feature checks run against: the
// active subscription's tier, or the default tier when there is none. The
// tier row is re-read on every check so catalog edits apply on the next
// check, never retroactively.
func (s *Service) CurrentTier(vendorID uint) (*model.SubscriptionTier, *model.VendorSubscription, error) {
	sub, err := s.repo.GetActiveSubscription(vendorID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			tier, derr := s.repo.GetDefaultTier()
			return tier, nil, derr
		}
		return nil, nil, err
	}
	tier, err := s.repo.GetTier(sub.TierID)
	if err != nil {
		return nil, nil, err
	}
	return tier, sub, nil
}

// HasFeature answers a boolean feature check. Unknown feature keys are
// false, never an error: the gate fails closed.
func (s *Service) HasFeature(vendorID uint, featureKey string) (bool, error) {
	tier, _, err := s.CurrentTier(vendorID)
	if err != nil {
		return false, err
	}
	return subscription.TierAllows(tier, subscription.Feature(featureKey)), nil
}

// CheckQuota reports limit, usage and headroom for one limit key.
func (s *Service) CheckQuota(vendorID uint, limit subscription.Limit) (subscription.Quota, error) {
	tier, _, err := s.CurrentTier(vendorID)
	if err != nil {
		return subscription.Quota{}, err
	}
	usage, err := s.currentUsage(vendorID)
	if err != nil {
		return subscription.Quota{}, err
	}
	return subscription.CheckQuota(tier, subscription.UsedFor(usage, limit), limit), nil
}

// UsageLimits reports every quota for the vendor's current tier.
func (s *Service) UsageLimits(vendorID uint) (map[subscription.Limit]subscription.Quota, error) {
	tier, _, err := s.CurrentTier(vendorID)
	if err != nil {
		return nil, err
	}
	usage, err := s.currentUsage(vendorID)
	if err != nil {
		return nil, err
	}
	out := make(map[subscription.Limit]subscription.Quota, len(subscription.AllLimits))
	for _, limit := range subscription.AllLimits {
		out[limit] = subscription.CheckQuota(tier, subscription.UsedFor(usage, limit), limit)
	}
	return out, nil
}

// TrackUsage applies a signed delta to one counter for the current period.
// The meter never enforces limits itself; that is the gate's job.
func (s *Service) TrackUsage(vendorID uint, metric subscription.Metric, amount int64) (*model.VendorUsageMetric, error) {
	year, month := currentPeriod()
	return s.repo.IncrementUsage(vendorID, year, month, metric, amount)
}

// CurrentUsage returns this month's counters, creating the row lazily.
func (s *Service) CurrentUsage(vendorID uint) (*model.VendorUsageMetric, error) {
	return s.currentUsage(vendorID)
}

func (s *Service) currentUsage(vendorID uint) (*model.VendorUsageMetric, error) {
	year, month := currentPeriod()
	return s.repo.GetOrCreateUsage(vendorID, year, month)
}

func currentPeriod() (int, int) {
	now := time.Now()
	return now.Year(), int(now.Month())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
