package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWT() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "a",
		RefreshSecret: "r",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "storefront-test",
	}
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testJWT()
	router := gin.New()
	router.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c)})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := auth.GenerateAccessToken(cfg, 9, domain.RoleCustomer)
	require.NoError(t, err)
	w = serve(router, http.MethodGet, "/me", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9}`, w.Body.String())
}

func TestAdminRequiredChecksDatabaseRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.NewDB(&config.DatabaseConfig{
		DSN:          fmt.Sprintf("file:mw_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	admin := &models.User{Role: domain.RoleAdmin}
	require.NoError(t, users.Create(ctx, admin))
	customer := &models.User{Role: domain.RoleCustomer}
	require.NoError(t, users.Create(ctx, customer))

	cfg := testJWT()
	router := gin.New()
	router.GET("/admin", AuthRequired(cfg), AdminRequired(users), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// A customer holding a token that claims ADMIN is still refused.
	forged, err := auth.GenerateAccessToken(cfg, customer.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admin", forged).Code)

	tok, err := auth.GenerateAccessToken(cfg, admin.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/admin", tok).Code)

	require.NoError(t, users.SetRole(ctx, admin.ID, domain.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admin", tok).Code)

	ghost, err := auth.GenerateAccessToken(cfg, 999, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admin", ghost).Code)
}

func TestInMemoryRateLimiter(t *testing.T) {
	l := NewInMemoryRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "window slides")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(NewInMemoryRateLimiter(1, time.Minute)))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/ping", "").Code)

	open := gin.New()
	open.Use(RateLimit(brokenLimiter{}))
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/ping", "").Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"https://shop.example"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
