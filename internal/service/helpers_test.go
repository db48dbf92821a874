package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq int64

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessenger) chats() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.ChatID)
	}
	return out
}

type fakeUploader struct {
	url    string
	folder string
	id     string
}

func (f *fakeUploader) UploadImage(_ context.Context, file io.Reader, folder, publicID string) (string, error) {
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	f.folder, f.id = folder, publicID
	return f.url, nil
}

type testEnv struct {
	ctx       context.Context
	cfg       *config.Config
	db        *gorm.DB
	users     *repository.UserRepository
	orders    *repository.OrderRepository
	ledger    *repository.LedgerRepository
	payouts   *repository.PayoutRepository
	notifs    *repository.NotificationRepository
	messenger *fakeMessenger
	uploader  *fakeUploader

	settings *SettingsService
	notifier *NotificationService
	referral *ReferralService
	payout   *PayoutService
	order    *OrderService
	auth     *AuthService
}

const adminChat int64 = 900

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{
		DSN:             fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1)+time.Now().UnixNano()),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
	}
	cfg.Telegram.BotToken = "123:test-token"
	cfg.Telegram.AdminChatIDs = []int64{adminChat}
	cfg.JWT.Issuer = "storefront-test"

	db, err := database.NewDB(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	e := &testEnv{
		ctx:       context.Background(),
		cfg:       cfg,
		db:        db,
		users:     repository.NewUserRepository(db),
		orders:    repository.NewOrderRepository(db),
		ledger:    repository.NewLedgerRepository(db),
		payouts:   repository.NewPayoutRepository(db),
		notifs:    repository.NewNotificationRepository(db),
		messenger: &fakeMessenger{},
		uploader:  &fakeUploader{url: "https://res.cloudinary.com/demo/image/upload/receipt.jpg"},
	}
	e.settings = NewSettingsService(repository.NewSettingRepository(db), cfg.Referral)
	require.NoError(t, e.settings.SeedDefaults(e.ctx))
	e.notifier = NewNotificationService(e.notifs, e.users, e.messenger, cfg.Telegram.AdminChatIDs)
	e.referral = NewReferralService(db, e.users, e.orders, e.ledger, e.payouts, e.settings, e.notifier)
	e.payout = NewPayoutService(db, e.users, e.payouts, e.settings, e.notifier, e.uploader, cfg.Cloudinary.Folder)
	e.order = NewOrderService(e.orders, e.users, e.referral)
	e.auth = NewAuthService(cfg, e.users, e.settings)
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// createUser inserts a customer with the given balance and percentage.
func (e *testEnv) createUser(t *testing.T, telegramID int64, balance, pct string, referrer *models.User) *models.User {
	t.Helper()
	u := &models.User{
		Username:              fmt.Sprintf("user%d", telegramID),
		Role:                  domain.RoleCustomer,
		ReferralPercentage:    dec(pct),
		TotalReferralEarnings: dec(balance),
		AvailableBalance:      dec(balance),
	}
	if telegramID != 0 {
		id := telegramID
		u.TelegramID = &id
	}
	if referrer != nil {
		u.ReferrerID = &referrer.ID
	}
	require.NoError(t, e.users.Create(e.ctx, u))
	return u
}

func (e *testEnv) createOrder(t *testing.T, userID uint, total, status string) *models.Order {
	t.Helper()
	o := &models.Order{UserID: userID, TotalAmount: dec(total), Status: status}
	require.NoError(t, e.orders.Create(e.ctx, o))
	return o
}

func (e *testEnv) reload(t *testing.T, id uint) *models.User {
	t.Helper()
	u, err := e.users.GetByID(e.ctx, id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) ledgerCount(t *testing.T) int64 {
	t.Helper()
	n, _, err := e.ledger.Totals(e.ctx)
	require.NoError(t, err)
	return n
}
