package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/pkg/cloudinary"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PayoutService runs the withdrawal workflow:
// PENDING -> PROCESSING -> COMPLETED, with PENDING or PROCESSING -> REJECTED.
type PayoutService struct {
	db            *gorm.DB
	users         *repository.UserRepository
	payouts       *repository.PayoutRepository
	settings      *SettingsService
	notifier      *NotificationService
	cloud         cloudinary.Client
	receiptFolder string
	now           func() time.Time
}

func NewPayoutService(
	db *gorm.DB,
	users *repository.UserRepository,
	payouts *repository.PayoutRepository,
	settings *SettingsService,
	notifier *NotificationService,
	cloud cloudinary.Client,
	receiptFolder string,
) *PayoutService {
	return &PayoutService{
		db:            db,
		users:         users,
		payouts:       payouts,
		settings:      settings,
		notifier:      notifier,
		cloud:         cloud,
		receiptFolder: receiptFolder,
		now:           time.Now,
	}
}

// CreatePayoutRequest asks for the user's whole available balance to be sent
// to the given card. Validation runs in a fixed order: missing fields, then
// the minimum, then an already active request.
func (s *PayoutService) CreatePayoutRequest(ctx context.Context, userID uint, cardNumber, holder, bank string) (*models.PayoutRequest, error) {
	cardNumber = strings.Join(strings.Fields(cardNumber), "")
	holder = strings.TrimSpace(holder)
	bank = strings.TrimSpace(bank)
	if cardNumber == "" || holder == "" || bank == "" {
		return nil, newError(CodeFieldsRequired, "all fields required")
	}

	minPayout := s.settings.MinPayoutAmount(ctx)

	var (
		req       *models.PayoutRequest
		requester *models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payouts := s.payouts.WithTx(tx)

		// Holding the user row serializes concurrent requests for the same user.
		u, err := s.users.WithTx(tx).GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !PayoutEligible(u.AvailableBalance, minPayout) {
			return newError(CodeBelowMinimum, "minimum payout amount is %s", FormatAmount(minPayout))
		}
		active, err := payouts.HasActive(ctx, userID)
		if err != nil {
			return err
		}
		if active {
			return newError(CodeActiveRequestExists, "active request already exists")
		}

		r := &models.PayoutRequest{
			Reference:      "po-" + uuid.NewString(),
			UserID:         userID,
			Amount:         u.AvailableBalance,
			CardNumber:     cardNumber,
			CardHolderName: holder,
			BankName:       bank,
			Status:         domain.PayoutStatusPending,
			RequestedAt:    s.now(),
		}
		if err := payouts.Create(ctx, r); err != nil {
			return fmt.Errorf("create payout request: %w", err)
		}
		req, requester = r, u
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(domain.PayoutStatusPending).Inc()
	log.WithFields(log.Fields{
		"payout_id": req.ID,
		"user_id":   userID,
		"amount":    req.Amount.StringFixed(2),
		"card":      req.MaskedCard(),
	}).Info("[payout] request created")
	if s.notifier != nil {
		s.notifier.NotifyPayoutRequested(ctx, req, requester)
	}
	return req, nil
}

// PayoutEligible reports whether a balance may be requested for payout.
func PayoutEligible(balance, minPayout decimal.Decimal) bool {
	return balance.IsPositive() && balance.GreaterThanOrEqual(minPayout)
}

// StartProcessing marks a PENDING request as being worked on by an admin.
func (s *PayoutService) StartProcessing(ctx context.Context, id, adminID uint) (*models.PayoutRequest, error) {
	req, err := s.transition(ctx, id, func(tx *gorm.DB, r *models.PayoutRequest) error {
		if r.Status != domain.PayoutStatusPending {
			return newError(CodeInvalidRequest, "only pending requests can be taken into processing")
		}
		r.Status = domain.PayoutStatusProcessing
		r.ProcessedByID = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.PayoutTransitions.WithLabelValues(domain.PayoutStatusProcessing).Inc()
	log.WithFields(log.Fields{"payout_id": id, "admin_id": adminID}).Info("[payout] processing")
	return req, nil
}

// CompletePayoutRequest records that the admin sent the money. The status
// change and the balance debit commit together; if the balance no longer
// covers the amount nothing is written.
func (s *PayoutService) CompletePayoutRequest(ctx context.Context, id, adminID uint, comment string) (*models.PayoutRequest, error) {
	req, err := s.transition(ctx, id, func(tx *gorm.DB, r *models.PayoutRequest) error {
		if !r.IsActive() {
			return newError(CodeInvalidRequest, "payout request cannot be completed")
		}
		err := s.users.WithTx(tx).DebitAvailableBalance(ctx, r.UserID, r.Amount)
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return newError(CodeInsufficientBalance, "available balance no longer covers %s", FormatAmount(r.Amount))
		}
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		now := s.now()
		r.Status = domain.PayoutStatusCompleted
		r.ProcessedAt = &now
		r.ProcessedByID = &adminID
		if c := strings.TrimSpace(comment); c != "" {
			r.AdminComment = &c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(domain.PayoutStatusCompleted).Inc()
	metrics.PayoutPaidOut.Add(req.Amount.InexactFloat64())
	log.WithFields(log.Fields{
		"payout_id": id,
		"admin_id":  adminID,
		"user_id":   req.UserID,
		"amount":    req.Amount.StringFixed(2),
	}).Info("[payout] completed")
	if s.notifier != nil {
		s.notifier.NotifyPayoutCompleted(ctx, req)
	}
	return req, nil
}

// RejectPayoutRequest closes an active request without touching the balance.
func (s *PayoutService) RejectPayoutRequest(ctx context.Context, id, adminID uint, comment string) (*models.PayoutRequest, error) {
	req, err := s.transition(ctx, id, func(tx *gorm.DB, r *models.PayoutRequest) error {
		if !r.IsActive() {
			return newError(CodeInvalidRequest, "payout request cannot be rejected")
		}
		now := s.now()
		r.Status = domain.PayoutStatusRejected
		r.ProcessedAt = &now
		r.ProcessedByID = &adminID
		if c := strings.TrimSpace(comment); c != "" {
			r.AdminComment = &c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(domain.PayoutStatusRejected).Inc()
	log.WithFields(log.Fields{"payout_id": id, "admin_id": adminID}).Info("[payout] rejected")
	if s.notifier != nil {
		s.notifier.NotifyPayoutRejected(ctx, req)
	}
	return req, nil
}

// transition locks the request, lets apply mutate it and saves it, all in one
// transaction. An error from apply rolls everything back.
func (s *PayoutService) transition(ctx context.Context, id uint, apply func(tx *gorm.DB, r *models.PayoutRequest) error) (*models.PayoutRequest, error) {
	var out *models.PayoutRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payouts := s.payouts.WithTx(tx)
		r, err := payouts.GetByIDForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(CodeInvalidRequest, "invalid payout request")
		}
		if err != nil {
			return err
		}
		if err := apply(tx, r); err != nil {
			return err
		}
		if err := payouts.Update(ctx, r); err != nil {
			return fmt.Errorf("save payout request: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AttachReceipt uploads a transfer receipt for a completed request.
func (s *PayoutService) AttachReceipt(ctx context.Context, id uint, file io.Reader) (*models.PayoutRequest, error) {
	if s.cloud == nil {
		return nil, ErrUploadsDisabled
	}
	req, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.PayoutStatusCompleted {
		return nil, newError(CodeInvalidRequest, "receipts can only be attached to completed requests")
	}
	url, err := s.cloud.UploadImage(ctx, file, s.receiptFolder, req.Reference)
	if err != nil {
		return nil, fmt.Errorf("upload receipt: %w", err)
	}
	req.ReceiptURL = url
	if err := s.payouts.Update(ctx, req); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"payout_id": id, "url": url}).Info("[payout] receipt attached")
	return req, nil
}

// ListPayoutRequests returns the user's requests, newest first.
func (s *PayoutService) ListPayoutRequests(ctx context.Context, userID uint) ([]models.PayoutRequest, error) {
	return s.payouts.ListByUser(ctx, userID)
}

// ListAll is the admin view, optionally filtered by status.
func (s *PayoutService) ListAll(ctx context.Context, status string, page, limit int) ([]models.PayoutRequest, int64, error) {
	switch status {
	case "", domain.PayoutStatusPending, domain.PayoutStatusProcessing, domain.PayoutStatusCompleted, domain.PayoutStatusRejected:
	default:
		return nil, 0, newError(CodeInvalidStatus, "unknown payout status %q", status)
	}
	return s.payouts.List(ctx, status, page, limit)
}

func (s *PayoutService) Get(ctx context.Context, id uint) (*models.PayoutRequest, error) {
	return s.payouts.GetByID(ctx, id)
}
