package router

import (
	"net/http"

	"storefront/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/pkg/cloudinary"
	"storefront/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the external collaborators chosen at startup. Cloud may be nil
// when receipt uploads are not configured.
type Deps struct {
	Messenger telegram.Messenger
	Cloud     cloudinary.Client
	Limiter   middleware.RateLimiter
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if deps.Limiter != nil {
		r.Use(middleware.RateLimit(deps.Limiter))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Services
	if deps.Cloud == nil {
		log.Info("[cloudinary] receipt uploads disabled: set CLOUDINARY_* to enable")
	}
	settingsSvc := service.NewSettingsService(settingRepo, cfg.Referral)
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, deps.Messenger, cfg.Telegram.AdminChatIDs)
	referralSvc := service.NewReferralService(db, userRepo, orderRepo, ledgerRepo, payoutRepo, settingsSvc, notifSvc)
	payoutSvc := service.NewPayoutService(db, userRepo, payoutRepo, settingsSvc, notifSvc, deps.Cloud, cfg.Cloudinary.Folder)
	orderSvc := service.NewOrderService(orderRepo, userRepo, referralSvc)
	authSvc := service.NewAuthService(cfg, userRepo, settingsSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	meHandler := handler.NewMeHandler(userRepo)
	referralHandler := handler.NewReferralHandler(referralSvc)
	payoutHandler := handler.NewPayoutHandler(payoutSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	adminHandler := handler.NewAdminHandler(adminRepo, settingsSvc, authSvc, referralSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	adminMw := middleware.AdminRequired(userRepo)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/telegram", authHandler.TelegramLogin)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", meHandler.Get)
			me.GET("/referral", referralHandler.Summary)
			me.GET("/referral/payouts", referralHandler.Earnings)
			me.GET("/referrals", referralHandler.Referrals)
			me.GET("/payout-requests", payoutHandler.ListMine)
			me.POST("/payout-requests", payoutHandler.Create)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		api.POST("/admin/login", adminHandler.AdminLogin)
		admin := api.Group("/admin")
		admin.Use(authMw, adminMw)
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PATCH("/users/:id/referral-percentage", adminHandler.SetReferralPercentage)
			admin.GET("/orders", orderHandler.List)
			admin.POST("/orders", orderHandler.Create)
			admin.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
			admin.GET("/payout-requests", payoutHandler.AdminList)
			admin.GET("/payout-requests/:id", payoutHandler.AdminGet)
			admin.POST("/payout-requests/:id/process", payoutHandler.Process)
			admin.POST("/payout-requests/:id/complete", payoutHandler.Complete)
			admin.POST("/payout-requests/:id/reject", payoutHandler.Reject)
			admin.POST("/payout-requests/:id/receipt", payoutHandler.UploadReceipt)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings", adminHandler.UpdateSettings)
		}
	}

	return r
}
