package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/campus-trade/internal/config"
	"github.com/ignatzorin/campus-trade/internal/http/handlers"
	"github.com/ignatzorin/campus-trade/internal/http/middleware"
	"github.com/ignatzorin/campus-trade/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	tokens middleware.AccessTokenParser,
	gatherer prometheus.Gatherer,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
	orderHandler *handlers.OrderHandler,
	negotiationHandler *handlers.NegotiationHandler,
	walletHandler *handlers.WalletHandler,
	creditHandler *handlers.CreditHandler,
	reviewHandler *handlers.ReviewHandler,
	exchangeHandler *handlers.ExchangeHandler,
	notificationHandler *handlers.NotificationHandler,
	adminHandler *handlers.AdminHandler,
	seedHandler *handlers.SeedHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws"})))

	r.GET("/health", healthHandler.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	if seedHandler != nil && cfg.Env == "development" {
		api.POST("/seed", seedHandler.Seed)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/users/:id/reviews", middleware.IDValidator("id"), reviewHandler.ListUserReviews)
	api.GET("/users/:id/credit", middleware.IDValidator("id"), creditHandler.UserScore)

	// Запросы, меняющие деньги и статусы, ограничены по частоте
	writeLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/orders", writeLimit, orderHandler.CreateOrder)
		protected.GET("/orders/my", orderHandler.ListMyOrders)
		protected.GET("/orders/:id", middleware.IDValidator("id"), orderHandler.GetOrder)
		protected.PATCH("/orders/:id/status", middleware.IDValidator("id"), writeLimit, orderHandler.UpdateStatus)
		protected.GET("/orders/:id/history", middleware.IDValidator("id"), orderHandler.History)

		protected.POST("/orders/:id/negotiations", middleware.IDValidator("id"), writeLimit, negotiationHandler.Start)
		protected.GET("/orders/:id/negotiations", middleware.IDValidator("id"), negotiationHandler.Thread)
		protected.POST("/negotiations/:id/respond", middleware.IDValidator("id"), writeLimit, negotiationHandler.Respond)

		protected.POST("/orders/:id/reviews", middleware.IDValidator("id"), writeLimit, reviewHandler.CreateReview)
		protected.POST("/reviews/:id/reply", middleware.IDValidator("id"), writeLimit, reviewHandler.ReplyToReview)
		protected.DELETE("/reviews/:id", middleware.IDValidator("id"), writeLimit, reviewHandler.DeleteReview)

		protected.POST("/exchanges", writeLimit, exchangeHandler.CreateExchange)
		protected.GET("/exchanges/my", exchangeHandler.ListMyExchanges)
		protected.POST("/exchanges/:id/respond", middleware.IDValidator("id"), writeLimit, exchangeHandler.Respond)

		protected.GET("/wallet/balance", walletHandler.GetBalance)
		protected.GET("/wallet/entries", walletHandler.ListEntries)
		protected.POST("/wallet/recharges", writeLimit, walletHandler.CreateRecharge)
		protected.POST("/wallet/recharges/:id/complete", middleware.IDValidator("id"), writeLimit, walletHandler.CompleteRecharge)

		protected.GET("/credit", creditHandler.MyScore)
		protected.GET("/credit/history", creditHandler.History)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokens), middleware.RequireRole(service.RoleAdmin))
	{
		admin.POST("/users/:id/penalties", middleware.IDValidator("id"), adminHandler.PenalizeUser)
		admin.GET("/audit/:id", middleware.IDValidator("id"), adminHandler.ListAudit)
		admin.GET("/orders/expiring", orderHandler.ListExpiring)
		admin.GET("/orders/stalled", orderHandler.ListStalledNegotiations)
		admin.POST("/orders/sweep", adminHandler.RunSweep)
	}

	return r
}
