package service

import (
	"encoding/json"
	"net/url"
	"strconv"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func signedInitData(t *testing.T, token string, tgID int64, username, startParam string) string {
	t.Helper()
	user, err := json.Marshal(auth.TelegramUser{ID: tgID, Username: username, FirstName: "Test"})
	require.NoError(t, err)
	v := url.Values{}
	v.Set("user", string(user))
	v.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	v.Set("query_id", "AAH")
	if startParam != "" {
		v.Set("start_param", startParam)
	}
	v.Set("hash", auth.SignInitData(v, token))
	return v.Encode()
}

func TestLoginWithTelegramRegistersWithReferrer(t *testing.T) {
	e := newTestEnv(t)
	referrer := e.createUser(t, 100, "0", "3", nil)
	token := e.cfg.Telegram.BotToken

	u, tokens, created, err := e.auth.LoginWithTelegram(e.ctx, signedInitData(t, token, 200, "newbie", "ref_"+referrer.ReferralCode), "")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, u.ReferrerID)
	assert.Equal(t, referrer.ID, *u.ReferrerID)
	assert.Equal(t, domain.RoleCustomer, u.Role)
	assert.True(t, u.ReferralPercentage.Equal(dec("3")))
	assert.Len(t, u.ReferralCode, 8)

	claims, err := auth.ParseAccessToken(&e.cfg.JWT, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	other := e.createUser(t, 300, "0", "3", nil)
	again, _, created, err := e.auth.LoginWithTelegram(e.ctx, signedInitData(t, token, 200, "renamed", ""), other.ReferralCode)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "renamed", again.Username)
	require.NotNil(t, again.ReferrerID)
	assert.Equal(t, referrer.ID, *again.ReferrerID, "referrer is fixed at registration")
}

func TestLoginWithTelegramUnknownCodeAndBadSignature(t *testing.T) {
	e := newTestEnv(t)
	token := e.cfg.Telegram.BotToken

	u, _, _, err := e.auth.LoginWithTelegram(e.ctx, signedInitData(t, token, 201, "x", ""), "nosuchcode")
	require.NoError(t, err)
	assert.Nil(t, u.ReferrerID)

	_, _, _, err = e.auth.LoginWithTelegram(e.ctx, signedInitData(t, "other-token", 202, "x", ""), "")
	assert.ErrorIs(t, err, auth.ErrInitDataInvalid)
}

func TestLoginWithTelegramUsesDefaultPercentageSetting(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.settings.Update(e.ctx, map[string]string{domain.SettingDefaultReferralPercentage: "4.5"}))

	u, _, _, err := e.auth.LoginWithTelegram(e.ctx, signedInitData(t, e.cfg.Telegram.BotToken, 203, "x", ""), "")
	require.NoError(t, err)
	assert.True(t, u.ReferralPercentage.Equal(dec("4.5")))
}

func TestLoginWithTelegramDisabled(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.Telegram.BotToken = ""
	_, _, _, err := e.auth.LoginWithTelegram(e.ctx, "anything", "")
	assert.ErrorIs(t, err, ErrTelegramDisabled)
}

func TestAdminLoginAndRefresh(t *testing.T) {
	e := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	adminEmail, custEmail := "admin@shop.test", "cust@shop.test"
	admin := &models.User{Email: &adminEmail, PasswordHash: string(hash), Role: domain.RoleAdmin}
	require.NoError(t, e.users.Create(e.ctx, admin))
	cust := &models.User{Email: &custEmail, PasswordHash: string(hash), Role: domain.RoleCustomer}
	require.NoError(t, e.users.Create(e.ctx, cust))

	_, _, err = e.auth.AdminLogin(e.ctx, adminEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = e.auth.AdminLogin(e.ctx, "ghost@shop.test", "pw")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = e.auth.AdminLogin(e.ctx, custEmail, "pw")
	assert.ErrorIs(t, err, ErrNotAdmin)

	u, tokens, err := e.auth.AdminLogin(e.ctx, adminEmail, "pw")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)

	refreshed, err := e.auth.Refresh(e.ctx, tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := auth.ParseAccessToken(&e.cfg.JWT, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, err = e.auth.Refresh(e.ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
