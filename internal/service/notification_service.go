package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/pkg/telegram"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

type NotificationService struct {
	repo         *repository.NotificationRepository
	userRepo     *repository.UserRepository
	messenger    telegram.Messenger
	adminChatIDs []int64
}

func NewNotificationService(
	repo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	messenger telegram.Messenger,
	adminChatIDs []int64,
) *NotificationService {
	if messenger == nil {
		messenger = telegram.NopMessenger{}
	}
	return &NotificationService{repo: repo, userRepo: userRepo, messenger: messenger, adminChatIDs: adminChatIDs}
}

// Notify stores an inbox entry and pushes the same text to the user's Telegram chat.
func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(ctx, userID, title, body)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, title, body string) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u.ChatID() == 0 {
		return
	}
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(body))
	s.send(ctx, u.ChatID(), text)
}

func (s *NotificationService) send(ctx context.Context, chatID int64, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.messenger.SendMessage(sendCtx, chatID, text); err != nil {
		metrics.NotificationFailures.WithLabelValues("telegram").Inc()
		log.WithError(err).WithField("chat_id", chatID).Warn("[notify] telegram send failed")
	}
}

// NotifyAdmins messages every ADMIN account with a Telegram chat plus the
// configured admin chats, each chat at most once.
func (s *NotificationService) NotifyAdmins(ctx context.Context, text string) {
	seen := make(map[int64]bool)
	chats := make([]int64, 0, len(s.adminChatIDs))
	admins, err := s.userRepo.ListAdmins(ctx)
	if err != nil {
		log.WithError(err).Warn("[notify] could not list admins")
	}
	for _, a := range admins {
		if id := a.ChatID(); id != 0 && !seen[id] {
			seen[id] = true
			chats = append(chats, id)
		}
	}
	for _, id := range s.adminChatIDs {
		if id != 0 && !seen[id] {
			seen[id] = true
			chats = append(chats, id)
		}
	}
	if len(chats) == 0 {
		log.Warn("[notify] no admin chat configured, admin message dropped")
		return
	}
	for _, id := range chats {
		s.send(ctx, id, text)
	}
}

// NotifyPayoutRequested tells administrators about a new withdrawal. The full
// card number is included because the admin performs the transfer by hand.
func (s *NotificationService) NotifyPayoutRequested(ctx context.Context, req *models.PayoutRequest, requester *models.User) {
	text := fmt.Sprintf(
		"<b>New payout request #%d</b>\nRef: <code>%s</code>\nUser: %s (id %d)\nAmount: <b>%s</b>\nCard: <code>%s</code>\nHolder: %s\nBank: %s",
		req.ID,
		html.EscapeString(req.Reference),
		html.EscapeString(requester.DisplayName()),
		requester.ID,
		req.Amount.StringFixed(2),
		html.EscapeString(req.CardNumber),
		html.EscapeString(req.CardHolderName),
		html.EscapeString(req.BankName),
	)
	s.NotifyAdmins(ctx, text)
}

func (s *NotificationService) NotifyPayoutCompleted(ctx context.Context, req *models.PayoutRequest) {
	body := fmt.Sprintf("Your payout of %s to card %s has been sent.", req.Amount.StringFixed(2), req.MaskedCard())
	s.notifyLogged(ctx, req.UserID, domain.NotifPayoutCompleted, "Payout completed", body,
		map[string]interface{}{"payout_request_id": req.ID, "reference": req.Reference})
}

func (s *NotificationService) NotifyPayoutRejected(ctx context.Context, req *models.PayoutRequest) {
	body := fmt.Sprintf("Your payout request for %s was rejected.", req.Amount.StringFixed(2))
	if req.AdminComment != nil && *req.AdminComment != "" {
		body += " Reason: " + *req.AdminComment
	}
	s.notifyLogged(ctx, req.UserID, domain.NotifPayoutRejected, "Payout rejected", body,
		map[string]interface{}{"payout_request_id": req.ID, "reference": req.Reference})
}

func (s *NotificationService) NotifyReferralEarning(ctx context.Context, entry *models.ReferralPayout) {
	body := fmt.Sprintf("You earned %s from a referred order.", entry.Amount.StringFixed(2))
	s.notifyLogged(ctx, entry.ReferrerID, domain.NotifReferralEarning, "Referral reward", body,
		map[string]interface{}{"order_id": entry.OrderID, "amount": entry.Amount.StringFixed(2)})
}

// FormatAmount renders money the way notifications show it.
func FormatAmount(d decimal.Decimal) string { return d.StringFixed(2) }

func (s *NotificationService) notifyLogged(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if err := s.Notify(ctx, userID, notifType, title, body, data); err != nil {
		metrics.NotificationFailures.WithLabelValues("inbox").Inc()
		log.WithError(err).WithField("user_id", userID).Warnf("[notify] %s not stored", notifType)
	}
}
