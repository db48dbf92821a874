package repository

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers            int64           `json:"total_users"`
	ReferredUsers         int64           `json:"referred_users"`
	TotalOrders           int64           `json:"total_orders"`
	DeliveredOrders       int64           `json:"delivered_orders"`
	LedgerEntries         int64           `json:"ledger_entries"`
	TotalReferralCredited decimal.Decimal `json:"total_referral_credited"`
	OutstandingBalance    decimal.Decimal `json:"outstanding_balance"`
	PendingPayoutRequests int64           `json:"pending_payout_requests"`
	PendingPayoutAmount   decimal.Decimal `json:"pending_payout_amount"`
	CompletedPayoutCount  int64           `json:"completed_payout_count"`
	CompletedPayoutAmount decimal.Decimal `json:"completed_payout_amount"`
}

type AdminRepository struct {
	db      *gorm.DB
	ledger  *LedgerRepository
	payouts *PayoutRepository
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{
		db:      db,
		ledger:  NewLedgerRepository(db),
		payouts: NewPayoutRepository(db),
	}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, err
	}
	db.Model(&models.User{}).Where("referrer_id IS NOT NULL").Count(&s.ReferredUsers)
	db.Model(&models.Order{}).Count(&s.TotalOrders)
	db.Model(&models.Order{}).Where("status = ?", domain.OrderStatusDelivered).Count(&s.DeliveredOrders)

	var err error
	if s.LedgerEntries, s.TotalReferralCredited, err = r.ledger.Totals(ctx); err != nil {
		return nil, err
	}

	var bal struct{ Total decimal.NullDecimal }
	if err := db.Model(&models.User{}).Select("SUM(available_balance) AS total").Scan(&bal).Error; err != nil {
		return nil, err
	}
	s.OutstandingBalance = decimal.Zero
	if bal.Total.Valid {
		s.OutstandingBalance = bal.Total.Decimal
	}

	pendingCount, pendingSum, err := r.payouts.SumByStatus(ctx, domain.PayoutStatusPending)
	if err != nil {
		return nil, err
	}
	processingCount, processingSum, err := r.payouts.SumByStatus(ctx, domain.PayoutStatusProcessing)
	if err != nil {
		return nil, err
	}
	s.PendingPayoutRequests = pendingCount + processingCount
	s.PendingPayoutAmount = pendingSum.Add(processingSum)

	if s.CompletedPayoutCount, s.CompletedPayoutAmount, err = r.payouts.SumByStatus(ctx, domain.PayoutStatusCompleted); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUsers returns users with search, role filter, and pagination.
func (r *AdminRepository) ListUsers(ctx context.Context, search, role string, page, limit int) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("username LIKE ? OR first_name LIKE ? OR email LIKE ? OR referral_code = ?", like, like, like, search)
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}
