package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/gateway"
	"bryllupstorget_backend/pkg/subscription"
)

const testWebhookSecret = "test-webhook-secret"

// fakeRepository is an in-memory Repository that counts mutating calls so
// tests can assert that rejected callbacks never write.
type fakeRepository struct {
	tiers    map[uint]*model.SubscriptionTier
	vendors  map[uint]*model.Vendor
	subs     map[uint]*model.VendorSubscription
	usage    map[string]*model.VendorUsageMetric
	payments map[string]*model.VendorPayment

	nextSubID     uint
	nextPaymentID uint
	writes        int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tiers:    make(map[uint]*model.SubscriptionTier),
		vendors:  make(map[uint]*model.Vendor),
		subs:     make(map[uint]*model.VendorSubscription),
		usage:    make(map[string]*model.VendorUsageMetric),
		payments: make(map[string]*model.VendorPayment),
	}
}

func (f *fakeRepository) Transact(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) GetTier(id uint) (*model.SubscriptionTier, error) {
	tier, ok := f.tiers[id]
	if !ok {
		return nil, ErrTierNotFound
	}
	copied := *tier
	return &copied, nil
}

func (f *fakeRepository) GetDefaultTier() (*model.SubscriptionTier, error) {
	ids := make([]uint, 0, len(f.tiers))
	for id := range f.tiers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return f.tiers[ids[i]].SortOrder < f.tiers[ids[j]].SortOrder
	})
	for _, id := range ids {
		if f.tiers[id].IsActive {
			copied := *f.tiers[id]
			return &copied, nil
		}
	}
	return nil, ErrTierNotFound
}

func (f *fakeRepository) GetVendor(id uint) (*model.Vendor, error) {
	vendor, ok := f.vendors[id]
	if !ok {
		return nil, fmt.Errorf("vendor %d not found", id)
	}
	copied := *vendor
	return &copied, nil
}

func (f *fakeRepository) GetActiveSubscription(vendorID uint) (*model.VendorSubscription, error) {
	for _, sub := range f.subs {
		if sub.VendorID == vendorID && sub.Status == model.SubscriptionStatusActive {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeRepository) GetSubscription(id uint) (*model.VendorSubscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeRepository) CreateSubscription(sub *model.VendorSubscription) error {
	f.writes++
	f.nextSubID++
	sub.ID = f.nextSubID
	copied := *sub
	f.subs[sub.ID] = &copied
	return nil
}

func (f *fakeRepository) SaveSubscription(sub *model.VendorSubscription) error {
	f.writes++
	copied := *sub
	f.subs[sub.ID] = &copied
	return nil
}

func (f *fakeRepository) DeactivateOtherActive(vendorID, keepID uint) error {
	f.writes++
	for id, sub := range f.subs {
		if sub.VendorID == vendorID && sub.Status == model.SubscriptionStatusActive && id != keepID {
			sub.Status = model.SubscriptionStatusCancelled
		}
	}
	return nil
}

func usageKey(vendorID uint, year, month int) string {
	return fmt.Sprintf("%d-%d-%d", vendorID, year, month)
}

func (f *fakeRepository) GetOrCreateUsage(vendorID uint, year, month int) (*model.VendorUsageMetric, error) {
	key := usageKey(vendorID, year, month)
	if row, ok := f.usage[key]; ok {
		copied := *row
		return &copied, nil
	}
	f.writes++
	row := &model.VendorUsageMetric{VendorID: vendorID, Year: year, Month: month}
	f.usage[key] = row
	copied := *row
	return &copied, nil
}

func (f *fakeRepository) IncrementUsage(vendorID uint, year, month int, metric subscription.Metric, delta int64) (*model.VendorUsageMetric, error) {
	if _, err := f.GetOrCreateUsage(vendorID, year, month); err != nil {
		return nil, err
	}
	f.writes++
	row := f.usage[usageKey(vendorID, year, month)]
	var field *int64
	switch metric {
	case subscription.MetricPhotosUploaded:
		field = &row.PhotosUploaded
	case subscription.MetricProductsListed:
		field = &row.ProductsListed
	case subscription.MetricVideoMinutes:
		field = &row.VideoMinutes
	case subscription.MetricStorageMB:
		field = &row.StorageMB
	case subscription.MetricProfileViews:
		field = &row.ProfileViews
	case subscription.MetricMessagesSent:
		field = &row.MessagesSent
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	*field += delta
	if *field < 0 {
		*field = 0
	}
	copied := *row
	return &copied, nil
}

func (f *fakeRepository) CreatePayment(p *model.VendorPayment) error {
	f.writes++
	f.nextPaymentID++
	p.ID = f.nextPaymentID
	copied := *p
	f.payments[p.OrderID] = &copied
	return nil
}

func (f *fakeRepository) SavePayment(p *model.VendorPayment) error {
	f.writes++
	copied := *p
	f.payments[p.OrderID] = &copied
	return nil
}

func (f *fakeRepository) GetPaymentByOrderID(orderID string) (*model.VendorPayment, error) {
	p, ok := f.payments[orderID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepository) GetPaymentByOrderIDForUpdate(orderID string) (*model.VendorPayment, error) {
	return f.GetPaymentByOrderID(orderID)
}

// fakeGateway records outbound calls and serves canned responses.
// refundErrs is consumed one entry per call so tests can script a
// timeout followed by a retry outcome.
type fakeGateway struct {
	paymentURL   string
	status       gateway.Status
	initiateErr  error
	captureErr   error
	refundErr    error
	refundErrs   []error
	statusErr    error
	captureCalls int
	refundCalls  int
}

func (g *fakeGateway) InitiatePayment(ctx context.Context, orderID string, amountMinor int64, description string) (string, error) {
	if g.initiateErr != nil {
		return "", g.initiateErr
	}
	if g.paymentURL == "" {
		return "https://pay.example.test/" + orderID, nil
	}
	return g.paymentURL, nil
}

func (g *fakeGateway) GetPaymentStatus(ctx context.Context, orderID string) (gateway.Status, error) {
	if g.statusErr != nil {
		return gateway.StatusUnknown, g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) CapturePayment(ctx context.Context, orderID string, amountMinor int64) error {
	g.captureCalls++
	return g.captureErr
}

func (g *fakeGateway) RefundPayment(ctx context.Context, orderID string, amountMinor int64) error {
	g.refundCalls++
	if len(g.refundErrs) > 0 {
		err := g.refundErrs[0]
		g.refundErrs = g.refundErrs[1:]
		return err
	}
	return g.refundErr
}

func seedStarterAndProfessional(repo *fakeRepository) (starterID, professionalID uint) {
	repo.tiers[1] = &model.SubscriptionTier{
		Model:       gorm.Model{ID: 1},
		Name:        "starter",
		DisplayName: "Starter",
		PriceMinor:  19900,
		Currency:    "NOK",
		SortOrder:   1,
		IsActive:    true,
		MaxPhotos:   20,
		MaxProducts: 5,
	}
	repo.tiers[2] = &model.SubscriptionTier{
		Model:       gorm.Model{ID: 2},
		Name:        "professional",
		DisplayName: "Professional",
		PriceMinor:  49900,
		Currency:    "NOK",
		SortOrder:   2,
		IsActive:    true,
		MaxPhotos:   100,
		MaxProducts: 25,
	}
	repo.vendors[1] = &model.Vendor{
		Model:       gorm.Model{ID: 1},
		Email:       "vendor@example.test",
		CompanyName: "Blomster AS",
	}
	return 1, 2
}

func signedCallback(t *testing.T, orderID, status string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"orderId": orderID,
		"transactionInfo": map[string]interface{}{
			"status":        status,
			"transactionId": "tx-" + orderID,
		},
	})
	require.NoError(t, err)
	return body, gateway.SignWebhookBody(body, testWebhookSecret)
}

func TestCheckout_CreatesPendingWithoutTouchingActive(t *testing.T) {
	repo := newFakeRepository()
	starterID, professionalID := seedStarterAndProfessional(repo)

	now := time.Now()
	end := now.AddDate(0, 1, 0)
	repo.subs[10] = &model.VendorSubscription{
		Model:              gorm.Model{ID: 10},
		VendorID:           1,
		TierID:             starterID,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
	}
	repo.nextSubID = 10

	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, paymentURL, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)
	assert.NotEmpty(t, paymentURL)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, int64(49900), payment.AmountMinor)
	require.NotNil(t, payment.SubscriptionID)

	pendingSub := repo.subs[*payment.SubscriptionID]
	assert.Equal(t, model.SubscriptionStatusPending, pendingSub.Status)
	assert.Equal(t, professionalID, pendingSub.TierID)

	// The Starter subscription must survive an unconfirmed upgrade.
	assert.Equal(t, model.SubscriptionStatusActive, repo.subs[10].Status)
}

func TestProcessCallback_CapturedActivatesWithStoredPeriod(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)

	body, sig := signedCallback(t, payment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	stored := repo.payments[payment.OrderID]
	assert.Equal(t, model.PaymentStatusSucceeded, stored.Status)
	require.NotNil(t, stored.PaidAt)

	sub := repo.subs[*payment.SubscriptionID]
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	// Activation must use the period carried on the payment.
	assert.True(t, sub.CurrentPeriodStart.Equal(payment.PeriodStart))
	assert.True(t, sub.CurrentPeriodEnd.Equal(payment.PeriodEnd))
}

func TestProcessCallback_DuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)

	body, sig := signedCallback(t, payment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	writesAfterFirst := repo.writes
	subAfterFirst := *repo.subs[*payment.SubscriptionID]
	paymentAfterFirst := *repo.payments[payment.OrderID]

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))
	}

	assert.Equal(t, writesAfterFirst, repo.writes, "redelivery must not write")
	assert.Equal(t, subAfterFirst, *repo.subs[*payment.SubscriptionID])
	assert.Equal(t, paymentAfterFirst.Status, repo.payments[payment.OrderID].Status)
	assert.True(t, paymentAfterFirst.PaidAt.Equal(*repo.payments[payment.OrderID].PaidAt))
}

func TestProcessCallback_TamperedBodyRejectedBeforeAnyWrite(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)
	writesBefore := repo.writes

	body, sig := signedCallback(t, payment.OrderID, "CAPTURED")
	tampered := []byte(string(body[:len(body)-2]) + `}`)

	err = svc.ProcessCallback(context.Background(), tampered, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, writesBefore, repo.writes, "a forged payload must not reach the store")
	assert.Equal(t, model.PaymentStatusPending, repo.payments[payment.OrderID].Status)
}

func TestProcessCallback_FailedLeavesLedgerUntouched(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"orderId": payment.OrderID,
		"transactionInfo": map[string]interface{}{
			"status": "REJECTED",
		},
		"errorInfo": map[string]interface{}{
			"errorCode":    "81",
			"errorMessage": "insufficient funds",
		},
	})
	require.NoError(t, err)
	sig := gateway.SignWebhookBody(body, testWebhookSecret)

	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	stored := repo.payments[payment.OrderID]
	assert.Equal(t, model.PaymentStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "insufficient funds")

	sub := repo.subs[*payment.SubscriptionID]
	assert.Equal(t, model.SubscriptionStatusPending, sub.Status, "a failed payment never mutates the ledger")
}

func TestProcessCallback_UnknownOrder(t *testing.T) {
	repo := newFakeRepository()
	seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	body, sig := signedCallback(t, "no-such-order", "CAPTURED")
	err := svc.ProcessCallback(context.Background(), body, sig)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRefund_StateRules(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	gw := &fakeGateway{}
	svc := NewService(repo, gw, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)

	// Refunding a pending payment is a conflict.
	assert.ErrorIs(t, svc.Refund(context.Background(), payment.OrderID), ErrConflict)

	body, sig := signedCallback(t, payment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	require.NoError(t, svc.Refund(context.Background(), payment.OrderID))
	assert.Equal(t, model.PaymentStatusRefunded, repo.payments[payment.OrderID].Status)

	// Refunding again is already-done, not an error.
	require.NoError(t, svc.Refund(context.Background(), payment.OrderID))
	assert.Equal(t, 1, gw.refundCalls)
}

func succeededPayment(t *testing.T, repo *fakeRepository, svc *Service, tierID uint) *model.VendorPayment {
	t.Helper()
	payment, _, err := svc.Checkout(context.Background(), 1, tierID)
	require.NoError(t, err)
	body, sig := signedCallback(t, payment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))
	require.Equal(t, model.PaymentStatusSucceeded, repo.payments[payment.OrderID].Status)
	return payment
}

func TestRefund_TimedOutOutcomeStaysUnknown(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	gw := &fakeGateway{}
	svc := NewService(repo, gw, testWebhookSecret)
	payment := succeededPayment(t, repo, svc, professionalID)

	// Both the call and the retry time out: the outcome is unknown and
	// the ledger must not claim the money went back.
	gw.refundErrs = []error{context.DeadlineExceeded, context.DeadlineExceeded}
	err := svc.Refund(context.Background(), payment.OrderID)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, model.PaymentStatusSucceeded, repo.payments[payment.OrderID].Status)
	assert.Equal(t, 2, gw.refundCalls)
}

func TestRefund_TimedOutAndNetworkUnreachable(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	gw := &fakeGateway{}
	svc := NewService(repo, gw, testWebhookSecret)
	payment := succeededPayment(t, repo, svc, professionalID)

	gw.refundErr = context.DeadlineExceeded
	gw.statusErr = context.DeadlineExceeded
	err := svc.Refund(context.Background(), payment.OrderID)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, model.PaymentStatusSucceeded, repo.payments[payment.OrderID].Status)
	assert.Equal(t, 1, gw.refundCalls, "no blind retry while the network is unreachable")
}

func TestRefund_TimedOutThenRetryConfirms(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	gw := &fakeGateway{}
	svc := NewService(repo, gw, testWebhookSecret)
	payment := succeededPayment(t, repo, svc, professionalID)

	// First call times out, the retry lands (or reports already_refunded,
	// which the gateway client folds into success).
	gw.refundErrs = []error{context.DeadlineExceeded}
	require.NoError(t, svc.Refund(context.Background(), payment.OrderID))
	assert.Equal(t, model.PaymentStatusRefunded, repo.payments[payment.OrderID].Status)
	assert.Equal(t, 2, gw.refundCalls)
}

func TestProcessCallback_CapturedAfterFailedStaysFailed(t *testing.T) {
	repo := newFakeRepository()
	_, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	payment, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)

	body, sig := signedCallback(t, payment.OrderID, "REJECTED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))
	require.Equal(t, model.PaymentStatusFailed, repo.payments[payment.OrderID].Status)
	writesAfterFail := repo.writes

	// Failed is terminal for callbacks. A late capture is acknowledged
	// but resolved out of band, never as an activation.
	body, sig = signedCallback(t, payment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	assert.Equal(t, model.PaymentStatusFailed, repo.payments[payment.OrderID].Status)
	assert.Equal(t, model.SubscriptionStatusPending, repo.subs[*payment.SubscriptionID].Status)
	assert.Equal(t, writesAfterFail, repo.writes)
}

func TestStarterToProfessionalScenario(t *testing.T) {
	repo := newFakeRepository()
	starterID, professionalID := seedStarterAndProfessional(repo)
	svc := NewService(repo, &fakeGateway{}, testWebhookSecret)

	// Activate Starter through a paid checkout.
	starterPayment, _, err := svc.Checkout(context.Background(), 1, starterID)
	require.NoError(t, err)
	body, sig := signedCallback(t, starterPayment.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	// Five products exhaust the Starter quota.
	for i := 0; i < 5; i++ {
		_, err := svc.TrackUsage(1, subscription.MetricProductsListed, 1)
		require.NoError(t, err)
	}
	quota, err := svc.CheckQuota(1, subscription.LimitProducts)
	require.NoError(t, err)
	assert.Equal(t, int64(5), quota.Limit)
	assert.Equal(t, int64(5), quota.Used)
	assert.Equal(t, int64(0), quota.Remaining)

	// Upgrade checkout leaves Starter active.
	upgrade, _, err := svc.Checkout(context.Background(), 1, professionalID)
	require.NoError(t, err)
	active, err := repo.GetActiveSubscription(1)
	require.NoError(t, err)
	assert.Equal(t, starterID, active.TierID)

	// The CAPTURED webhook activates Professional with the stored period.
	body, sig = signedCallback(t, upgrade.OrderID, "CAPTURED")
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))

	active, err = repo.GetActiveSubscription(1)
	require.NoError(t, err)
	assert.Equal(t, professionalID, active.TierID)
	assert.True(t, active.CurrentPeriodStart.Equal(upgrade.PeriodStart))
	assert.True(t, active.CurrentPeriodEnd.Equal(upgrade.PeriodEnd))

	// Exactly one active subscription remains.
	activeCount := 0
	for _, sub := range repo.subs {
		if sub.Status == model.SubscriptionStatusActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	// Replaying the same webhook body changes nothing further.
	writes := repo.writes
	require.NoError(t, svc.ProcessCallback(context.Background(), body, sig))
	assert.Equal(t, writes, repo.writes)
}
