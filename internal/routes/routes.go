package routes

import (
	"net/http"
	"slices"

	_ "receivables/api/swagger" // swagger docs
	"receivables/internal/auth"
	"receivables/internal/config"
	"receivables/internal/handler"
	"receivables/internal/middleware"
	"receivables/internal/repository"
	"receivables/internal/service"
	"receivables/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// NewRouter wires repositories, services and handlers into a gin engine.
// Invoice lifecycle events are published to hub.
func NewRouter(cfg *config.Config, db *gorm.DB, hub *websocket.Hub) *gin.Engine {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, tokens)
	invoiceService := service.NewInvoiceService(invoiceRepo, sequenceRepo, auditRepo, txManager, service.InvoiceServiceConfig{
		PaymentBaseURL: cfg.PaymentBaseURL,
		Publisher:      hub,
	})
	statisticsService := service.NewStatisticsService(invoiceRepo)
	auditService := service.NewAuditService(auditRepo)

	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst)

	handlers := []interface{ RegisterRoutes(*gin.RouterGroup) }{
		handler.NewAuthHandler(authService, tokens, loginLimiter),
		handler.NewInvoiceHandler(invoiceService, tokens),
		handler.NewPaymentHandler(invoiceService, tokens),
		handler.NewStatisticsHandler(statisticsService, tokens),
		handler.NewAuditHandler(auditService, tokens),
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || slices.Contains(cfg.CORSOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(hub, c, tokens)
	})

	api := router.Group("")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return router
}
