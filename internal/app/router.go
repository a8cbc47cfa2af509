package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"ecocash/internal/handler"
	"ecocash/internal/middleware"
	internalRedis "ecocash/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	CallbackPath   string
	NewRelicApp    *newrelic.Application

	// IdempotencyStore is optional; without it Idempotency-Key is ignored.
	IdempotencyStore internalRedis.IdempotencyStoreInterface
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// EcoCash payment routes.
		ecocash := v1.Group("/payments/ecocash")
		{
			ecocash.GET("", deps.PaymentHandler.Gateway)
			ecocash.POST("", middleware.IdempotencyMiddleware(deps.IdempotencyStore), deps.PaymentHandler.Initiate)
			ecocash.GET("/orders/:order_id", deps.PaymentHandler.OrderStatus)
			ecocash.GET("/orders/:order_id/lookup", deps.PaymentHandler.Lookup)
		}
	}

	callbackPath := deps.CallbackPath
	if callbackPath == "" {
		callbackPath = "/v1/payments/ecocash/callback"
	}
	router.POST(callbackPath, deps.PaymentHandler.Callback)

	return router
}
