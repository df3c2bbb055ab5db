package billing

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/subscription"
)

// Repository provides the DB operations used by the billing service.
// Transact runs a function against a repository bound to one transaction;
// the row-level locks taken inside it are what serialize racing webhook
// deliveries across process replicas.
type Repository interface {
	Transact(fn func(Repository) error) error

	GetTier(id uint) (*model.SubscriptionTier, error)
	GetDefaultTier() (*model.SubscriptionTier, error)

	GetVendor(id uint) (*model.Vendor, error)

	GetActiveSubscription(vendorID uint) (*model.VendorSubscription, error)
	GetSubscription(id uint) (*model.VendorSubscription, error)
	CreateSubscription(sub *model.VendorSubscription) error
	SaveSubscription(sub *model.VendorSubscription) error
	DeactivateOtherActive(vendorID, keepID uint) error

	GetOrCreateUsage(vendorID uint, year, month int) (*model.VendorUsageMetric, error)
	IncrementUsage(vendorID uint, year, month int, metric subscription.Metric, delta int64) (*model.VendorUsageMetric, error)

	CreatePayment(p *model.VendorPayment) error
	SavePayment(p *model.VendorPayment) error
	GetPaymentByOrderID(orderID string) (*model.VendorPayment, error)
	GetPaymentByOrderIDForUpdate(orderID string) (*model.VendorPayment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetTier(id uint) (*model.SubscriptionTier, error) {
	var tier model.SubscriptionTier
	if err := r.db.First(&tier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, err
	}
	return &tier, nil
}

// GetDefaultTier returns the cheapest active tier. Vendors without a
// subscription are gated by this one.
func (r *gormRepository) GetDefaultTier() (*model.SubscriptionTier, error) {
	var tier model.SubscriptionTier
	err := r.db.Where("is_active = ?", true).
		Order("sort_order ASC").
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, err
	}
	return &tier, nil
}

func (r *gormRepository) GetVendor(id uint) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := r.db.First(&vendor, id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *gormRepository) GetActiveSubscription(vendorID uint) (*model.VendorSubscription, error) {
	var sub model.VendorSubscription
	err := r.db.Where("vendor_id = ? AND status = ?", vendorID, model.SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscription(id uint) (*model.VendorSubscription, error) {
	var sub model.VendorSubscription
	if err := r.db.First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *model.VendorSubscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *model.VendorSubscription) error {
	return r.db.Save(sub).Error
}

// DeactivateOtherActive cancels every other active row for the vendor so
// the one-active-subscription invariant holds after an upgrade.
func (r *gormRepository) DeactivateOtherActive(vendorID, keepID uint) error {
	return r.db.Model(&model.VendorSubscription{}).
		Where("vendor_id = ? AND status = ? AND id <> ?", vendorID, model.SubscriptionStatusActive, keepID).
		Update("status", model.SubscriptionStatusCancelled).Error
}

// GetOrCreateUsage inserts a zeroed period row with an on-conflict no-op
// and reads it back. Concurrent first touches across replicas converge on
// the same row instead of racing a read-then-insert.
func (r *gormRepository) GetOrCreateUsage(vendorID uint, year, month int) (*model.VendorUsageMetric, error) {
	row := &model.VendorUsageMetric{VendorID: vendorID, Year: year, Month: month}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "vendor_id"},
			{Name: "year"},
			{Name: "month"},
		},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return nil, err
	}

	var stored model.VendorUsageMetric
	if err := r.db.Where("vendor_id = ? AND year = ? AND month = ?", vendorID, year, month).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) IncrementUsage(vendorID uint, year, month int, metric subscription.Metric, delta int64) (*model.VendorUsageMetric, error) {
	if _, err := r.GetOrCreateUsage(vendorID, year, month); err != nil {
		return nil, err
	}

	// The metric enum doubles as the column name; ParseMetric has already
	// rejected anything outside the closed set.
	column := string(metric)
	expr := fmt.Sprintf("GREATEST(%s + ?, 0)", column)
	err := r.db.Model(&model.VendorUsageMetric{}).
		Where("vendor_id = ? AND year = ? AND month = ?", vendorID, year, month).
		UpdateColumn(column, gorm.Expr(expr, delta)).Error
	if err != nil {
		return nil, err
	}

	var stored model.VendorUsageMetric
	if err := r.db.Where("vendor_id = ? AND year = ? AND month = ?", vendorID, year, month).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) CreatePayment(p *model.VendorPayment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SavePayment(p *model.VendorPayment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetPaymentByOrderID(orderID string) (*model.VendorPayment, error) {
	var p model.VendorPayment
	if err := r.db.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetPaymentByOrderIDForUpdate takes a row lock so two deliveries racing
// on the same order id serialize inside their transactions.
func (r *gormRepository) GetPaymentByOrderIDForUpdate(orderID string) (*model.VendorPayment, error) {
	var p model.VendorPayment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}
