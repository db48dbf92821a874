package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CalculateEarning returns total * percentage / 100 rounded to cents.
func CalculateEarning(total, percentage decimal.Decimal) decimal.Decimal {
	return total.Mul(percentage).Div(hundred).Round(2)
}

// ReferralService credits referrers for delivered orders and answers
// questions about a user's referral standing.
type ReferralService struct {
	db       *gorm.DB
	users    *repository.UserRepository
	orders   *repository.OrderRepository
	ledger   *repository.LedgerRepository
	payouts  *repository.PayoutRepository
	settings *SettingsService
	notifier *NotificationService
}

func NewReferralService(
	db *gorm.DB,
	users *repository.UserRepository,
	orders *repository.OrderRepository,
	ledger *repository.LedgerRepository,
	payouts *repository.PayoutRepository,
	settings *SettingsService,
	notifier *NotificationService,
) *ReferralService {
	return &ReferralService{
		db:       db,
		users:    users,
		orders:   orders,
		ledger:   ledger,
		payouts:  payouts,
		settings: settings,
		notifier: notifier,
	}
}

// Summary is what a user sees on their referral page.
type Summary struct {
	ReferralCode          string                `json:"referral_code"`
	ReferralPercentage    decimal.Decimal       `json:"referral_percentage"`
	TotalReferralEarnings decimal.Decimal       `json:"total_referral_earnings"`
	AvailableBalance      decimal.Decimal       `json:"available_balance"`
	MinPayoutAmount       decimal.Decimal       `json:"min_payout_amount"`
	InvitedCount          int64                 `json:"invited_count"`
	CanRequestPayout      bool                  `json:"can_request_payout"`
	ActivePayoutRequest   *models.PayoutRequest `json:"active_payout_request"`
}

func (s *ReferralService) Summary(ctx context.Context, userID uint) (*Summary, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, invited, err := s.users.ListReferred(ctx, userID, 1, 0)
	if err != nil {
		return nil, err
	}
	active, err := s.payouts.GetActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		active = nil
	}
	minPayout := s.settings.MinPayoutAmount(ctx)
	return &Summary{
		ReferralCode:          u.ReferralCode,
		ReferralPercentage:    u.ReferralPercentage,
		TotalReferralEarnings: u.TotalReferralEarnings,
		AvailableBalance:      u.AvailableBalance,
		MinPayoutAmount:       minPayout,
		InvitedCount:          invited,
		CanRequestPayout:      active == nil && PayoutEligible(u.AvailableBalance, minPayout),
		ActivePayoutRequest:   active,
	}, nil
}

// AccrueReferralEarning credits the referrer of the order's owner once the
// order is delivered. It never returns an error: accrual is a side effect of
// the order lifecycle and must not block it. Calling it again for the same
// order is a no-op.
func (s *ReferralService) AccrueReferralEarning(ctx context.Context, orderID uint) {
	entry, err := s.Accrue(ctx, orderID)
	switch {
	case err != nil:
		metrics.ReferralAccruals.WithLabelValues(metrics.AccrualFailed).Inc()
		log.WithError(err).WithField("order_id", orderID).Error("[referral] accrual failed")
	case entry == nil:
		metrics.ReferralAccruals.WithLabelValues(metrics.AccrualSkipped).Inc()
	default:
		metrics.ReferralAccruals.WithLabelValues(metrics.AccrualCredited).Inc()
		metrics.ReferralCredited.Add(entry.Amount.InexactFloat64())
		log.WithFields(log.Fields{
			"order_id":    orderID,
			"referrer_id": entry.ReferrerID,
			"amount":      entry.Amount.StringFixed(2),
		}).Info("[referral] commission credited")
		if s.notifier != nil {
			s.notifier.NotifyReferralEarning(ctx, entry)
		}
	}
}

// Accrue performs the accrual and reports what happened: the new ledger entry,
// nil with no error when there was nothing to credit, or the error that
// rolled the whole accrual back.
func (s *ReferralService) Accrue(ctx context.Context, orderID uint) (*models.ReferralPayout, error) {
	var entry *models.ReferralPayout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		order, err := s.orders.WithTx(tx).GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order.Status != domain.OrderStatusDelivered {
			return nil
		}

		buyer, err := users.GetByID(ctx, order.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load buyer: %w", err)
		}
		if buyer.ReferrerID == nil || *buyer.ReferrerID == buyer.ID {
			return nil
		}

		exists, err := ledger.ExistsForOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if exists {
			return nil
		}

		referrer, err := users.GetByIDForUpdate(ctx, *buyer.ReferrerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock referrer: %w", err)
		}

		e := &models.ReferralPayout{
			ReferrerID:     referrer.ID,
			ReferredUserID: buyer.ID,
			OrderID:        order.ID,
			OrderAmount:    order.TotalAmount,
			Percentage:     referrer.ReferralPercentage,
			Amount:         CalculateEarning(order.TotalAmount, referrer.ReferralPercentage),
		}
		// A concurrent accrual for the same order fails here on the unique
		// order_id index and rolls back without crediting.
		if err := ledger.Append(ctx, e); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		if err := users.CreditReferralEarning(ctx, referrer.ID, e.Amount); err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedger returns the user's commission entries, newest first.
func (s *ReferralService) ListLedger(ctx context.Context, userID uint, limit, offset int) ([]models.ReferralPayout, int64, error) {
	return s.ledger.ListByReferrer(ctx, userID, limit, offset)
}

// ListReferred returns the users invited by userID.
func (s *ReferralService) ListReferred(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	return s.users.ListReferred(ctx, userID, limit, offset)
}

// SetReferralPercentage changes the commission rate applied to the user's
// future accruals, including orders already placed but not yet delivered.
func (s *ReferralService) SetReferralPercentage(ctx context.Context, userID uint, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return newError(CodeInvalidPercentage, "referral percentage must be between 0 and 100")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.users.SetReferralPercentage(ctx, userID, pct.Round(2))
}
