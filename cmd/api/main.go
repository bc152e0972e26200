package main

import (
	"context"
	"net/http"
	"time"

	"tapcoin/internal/chain"
	"tapcoin/internal/config"
	"tapcoin/internal/database"
	"tapcoin/internal/economy"
	"tapcoin/internal/handler"
	"tapcoin/internal/middleware"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	logger, err := newLogger(cfg.Server.Production)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize settlement adapter and economy service
	settler := chain.NewClient(cfg.Chain, logger.Named("chain"))
	svc := economy.NewService(db, cfg.Economy, settler, logger.Named("economy"))

	// Background sweep for withdrawals stuck in processing
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go svc.RunSweep(sweepCtx, cfg.Admin.SweepInterval, cfg.Admin.StaleProcessingAge)

	h := handler.NewHandler(svc, cfg)
	rateLimiter := middleware.NewIPRateLimiter(cfg.RateLimit)
	router := setupRouter(h, rateLimiter, logger)

	// Configure server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func setupRouter(h *handler.Handler, rateLimiter *middleware.IPRateLimiter, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(middleware.Cors())
	router.Use(rateLimiter.RateLimit())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/economy/config", h.GetEconomyConfig)

		players := v1.Group("/players")
		{
			players.GET("/:address", h.GetProfile)
			players.POST("/:address/clicks", h.RecordClick)
			players.POST("/:address/exchange", h.ExchangePoints)
			players.POST("/:address/upgrade", h.Upgrade)
			players.POST("/:address/withdrawals", h.RequestWithdraw)
		}

		admin := v1.Group("/admin", h.AdminAuth())
		{
			admin.GET("/withdrawals", h.ListWithdrawals)
			admin.GET("/withdrawals/stale", h.ListStaleWithdrawals)
			admin.POST("/withdrawals/:id/review", h.ReviewWithdrawal)
			admin.PUT("/players/:address/status", h.SetPlayerStatus)
		}
	}

	return router
}
