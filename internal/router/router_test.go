package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/database"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMessenger struct{}

func (nopMessenger) SendMessage(context.Context, int64, string) error { return nil }

type stubCloud struct{}

func (stubCloud) UploadImage(_ context.Context, file io.Reader, _, publicID string) (string, error) {
	_, err := io.Copy(io.Discard, file)
	return "https://res.cloudinary.com/demo/image/upload/" + publicID, err
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	cfg    *config.Config
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{
		DSN:          fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}
	cfg.Telegram.BotToken = "123:router-test"
	cfg.Admin = config.AdminConfig{Email: "admin@shop.test", Password: "admin-pw"}

	db, err := database.NewDB(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	ctx := context.Background()
	require.NoError(t, database.SeedAdmin(ctx, db, &cfg.Admin))
	require.NoError(t, service.NewSettingsService(repository.NewSettingRepository(db), cfg.Referral).SeedDefaults(ctx))

	engine := Setup(cfg, db, Deps{Messenger: nopMessenger{}, Cloud: stubCloud{}})
	return &apiClient{t: t, engine: engine, cfg: cfg}
}

func (a *apiClient) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (a *apiClient) telegramLogin(tgID int64, startParam string) (string, map[string]interface{}) {
	a.t.Helper()
	user, _ := json.Marshal(auth.TelegramUser{ID: tgID, Username: "u" + strconv.FormatInt(tgID, 10)})
	v := url.Values{}
	v.Set("user", string(user))
	v.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	v.Set("hash", auth.SignInitData(v, a.cfg.Telegram.BotToken))

	code, body := a.do(http.MethodPost, "/api/v1/auth/telegram", "", gin.H{"init_data": v.Encode(), "start_param": startParam})
	require.Contains(a.t, []int{http.StatusOK, http.StatusCreated}, code, body)
	return body["access_token"].(string), body["user"].(map[string]interface{})
}

func money(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %v", v)
	return decimal.RequireFromString(s)
}

func TestReferralAndPayoutFlow(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(http.MethodPost, "/api/v1/admin/login", "", gin.H{"email": "admin@shop.test", "password": "admin-pw"})
	require.Equal(t, http.StatusOK, code, body)
	adminToken := body["access_token"].(string)

	rToken, rUser := api.telegramLogin(1001, "")
	_, uUser := api.telegramLogin(1002, "ref_"+rUser["referral_code"].(string))
	assert.Equal(t, rUser["id"], uUser["referrer_id"])

	code, _ = api.do(http.MethodGet, "/api/v1/admin/dashboard", rToken, nil)
	assert.Equal(t, http.StatusForbidden, code, "customers cannot reach admin routes")

	code, body = api.do(http.MethodPost, "/api/v1/admin/orders", adminToken, gin.H{"user_id": uUser["id"], "total_amount": "10000"})
	require.Equal(t, http.StatusCreated, code, body)
	orderPath := fmt.Sprintf("/api/v1/admin/orders/%v/status", body["id"])

	code, body = api.do(http.MethodPatch, orderPath, adminToken, gin.H{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.CodeInvalidStatus, body["code"])

	code, body = api.do(http.MethodPatch, orderPath, adminToken, gin.H{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, code, body)
	assert.NotNil(t, body["delivered_at"])

	code, body = api.do(http.MethodGet, "/api/v1/me/referral", rToken, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.True(t, money(t, body["available_balance"]).Equal(decimal.NewFromInt(300)))
	assert.True(t, money(t, body["total_referral_earnings"]).Equal(decimal.NewFromInt(300)))
	assert.Equal(t, float64(1), body["invited_count"])

	code, body = api.do(http.MethodGet, "/api/v1/me/referral/payouts", rToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	card := gin.H{"card_number": "4111 1111 1111 1111", "card_holder_name": "R User", "bank_name": "Test Bank"}
	code, body = api.do(http.MethodPost, "/api/v1/me/payout-requests", rToken, card)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.CodeBelowMinimum, body["code"])

	code, body = api.do(http.MethodPost, "/api/v1/me/payout-requests", rToken, gin.H{"card_number": "4111"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.CodeFieldsRequired, body["code"])

	code, _ = api.do(http.MethodPut, "/api/v1/admin/settings", adminToken, gin.H{"settings": gin.H{"min_payout_amount": "100"}})
	require.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodPost, "/api/v1/me/payout-requests", rToken, card)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "************1111", body["card_number"])
	assert.True(t, money(t, body["amount"]).Equal(decimal.NewFromInt(300)))
	payoutPath := fmt.Sprintf("/api/v1/admin/payout-requests/%v", body["id"])

	code, body = api.do(http.MethodPost, "/api/v1/me/payout-requests", rToken, card)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.CodeActiveRequestExists, body["code"])

	code, body = api.do(http.MethodGet, "/api/v1/admin/payout-requests?status=PENDING", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	code, body = api.do(http.MethodPost, payoutPath+"/complete", adminToken, gin.H{"comment": "paid"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "COMPLETED", body["status"])
	assert.NotNil(t, body["processed_at"])

	code, body = api.do(http.MethodPost, payoutPath+"/complete", adminToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, service.CodeInvalidRequest, body["code"])

	code, body = api.do(http.MethodPost, "/api/v1/admin/payout-requests/999/complete", adminToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, service.CodeInvalidRequest, body["code"])
	assert.Equal(t, "invalid payout request", body["error"])

	code, body = api.do(http.MethodGet, "/api/v1/me/referral", rToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, money(t, body["available_balance"]).IsZero())

	code, body = api.do(http.MethodGet, "/api/v1/me/notifications", rToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["unread"], "referral reward and payout completed")

	code, body = api.do(http.MethodGet, "/api/v1/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["completed_payout_count"])

	code, body = uploadReceipt(t, api, payoutPath+"/receipt", adminToken)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body["receipt_url"], "po-")
}

func uploadReceipt(t *testing.T, api *apiClient, path, token string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="receipt.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestInfrastructureRoutes(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_http_requests_total")

	code, _ = api.do(http.MethodGet, "/api/v1/me/referral", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodPost, "/api/v1/auth/telegram", "", gin.H{"init_data": "user=%7B%7D&hash=00"})
	assert.Equal(t, http.StatusUnauthorized, code)
}
