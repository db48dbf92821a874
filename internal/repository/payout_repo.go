package repository

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) WithTx(tx *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: tx}
}

func (r *PayoutRepository) Create(ctx context.Context, p *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uint) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDForUpdate loads the request with a row lock; use inside a transaction.
func (r *PayoutRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveByUser returns the user's PENDING or PROCESSING request, if any.
func (r *PayoutRepository) GetActiveByUser(ctx context.Context, userID uint) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, domain.ActivePayoutStatuses).
		Order("requested_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayoutRepository) HasActive(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("user_id = ? AND status IN ?", userID, domain.ActivePayoutStatuses).
		Count(&n).Error
	return n > 0, err
}

// ListByUser returns all of a user's requests, newest first.
func (r *PayoutRepository) ListByUser(ctx context.Context, userID uint) ([]models.PayoutRequest, error) {
	var list []models.PayoutRequest
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("requested_at DESC").Order("id DESC").
		Find(&list).Error
	return list, err
}

func (r *PayoutRepository) List(ctx context.Context, status string, page, limit int) ([]models.PayoutRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.PayoutRequest
	err := q.Order("requested_at DESC").Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *PayoutRepository) Update(ctx context.Context, p *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// SumByStatus totals request amounts in the given status.
func (r *PayoutRepository) SumByStatus(ctx context.Context, status string) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Select("COUNT(*) AS count, SUM(amount) AS total").
		Where("status = ?", status).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !row.Total.Valid {
		return row.Count, decimal.Zero, nil
	}
	return row.Count, row.Total.Decimal, nil
}
