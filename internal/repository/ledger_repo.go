package repository

import (
	"context"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository reads and appends referral payout entries. There is no
// update or delete: entries are immutable once written.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

func (r *LedgerRepository) ExistsForOrder(ctx context.Context, orderID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralPayout{}).Where("order_id = ?", orderID).Count(&n).Error
	return n > 0, err
}

// Append inserts a ledger entry. A second entry for the same order fails on
// the unique index.
func (r *LedgerRepository) Append(ctx context.Context, p *models.ReferralPayout) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *LedgerRepository) GetByOrderID(ctx context.Context, orderID uint) (*models.ReferralPayout, error) {
	var p models.ReferralPayout
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *LedgerRepository) ListByReferrer(ctx context.Context, referrerID uint, limit, offset int) ([]models.ReferralPayout, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ReferralPayout{}).Where("referrer_id = ?", referrerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.ReferralPayout
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// Totals returns the number of entries and the credited sum across the ledger.
func (r *LedgerRepository) Totals(ctx context.Context) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&models.ReferralPayout{}).
		Select("COUNT(*) AS count, SUM(amount) AS total").
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !row.Total.Valid {
		return row.Count, decimal.Zero, nil
	}
	return row.Count, row.Total.Decimal, nil
}
