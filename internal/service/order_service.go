package service

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type OrderService struct {
	orders   *repository.OrderRepository
	users    *repository.UserRepository
	referral *ReferralService
	now      func() time.Time
}

func NewOrderService(orders *repository.OrderRepository, users *repository.UserRepository, referral *ReferralService) *OrderService {
	return &OrderService{orders: orders, users: users, referral: referral, now: time.Now}
}

// CreateOrder records a PENDING purchase for the user.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, total decimal.Decimal) (*models.Order, error) {
	if !total.IsPositive() {
		return nil, newError(CodeInvalidAmount, "order total must be positive")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	o := &models.Order{UserID: userID, TotalAmount: total.Round(2), Status: domain.OrderStatusPending}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus persists the new status. Moving to DELIVERED stamps the
// delivery time and triggers referral accrual, whose outcome never affects
// the returned error.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	if !domain.IsOrderStatus(status) {
		return nil, newError(CodeInvalidStatus, "unknown order status %q", status)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var deliveredAt *time.Time
	if status == domain.OrderStatusDelivered && o.DeliveredAt == nil {
		now := s.now()
		deliveredAt = &now
	}
	if err := s.orders.UpdateStatus(ctx, id, status, deliveredAt); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"order_id": id, "from": o.Status, "to": status}).Info("[order] status updated")

	o.Status = status
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	if status == domain.OrderStatusDelivered && s.referral != nil {
		s.referral.AccrueReferralEarning(ctx, id)
	}
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) List(ctx context.Context, status string, page, limit int) ([]models.Order, int64, error) {
	if status != "" && !domain.IsOrderStatus(status) {
		return nil, 0, newError(CodeInvalidStatus, "unknown order status %q", status)
	}
	return s.orders.List(ctx, status, page, limit)
}
