package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"taximeter/internal/handler"
	"taximeter/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	MeterHandler     *handler.MeterHandler
	LiveHandler      *handler.LiveHandler
	SettingsHandler  *handler.SettingsHandler
	TripHandler      *handler.TripHandler
	IdempotencyStore middleware.IdempotencyStore
	NewRelicApp      *newrelic.Application
	Logger           logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	// The display is a web app that may be served from another origin.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Idempotency-Key")
	router.Use(cors.New(corsConfig))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.IdempotencyStore != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Live ride routes.
		m := v1.Group("/meter")
		{
			m.POST("/start", deps.MeterHandler.Start)
			m.POST("/fixes", deps.MeterHandler.RecordFix)
			m.POST("/provider-error", deps.MeterHandler.ProviderError)
			m.POST("/pause", deps.MeterHandler.Pause)
			m.POST("/resume", deps.MeterHandler.Resume)
			m.POST("/end", deps.MeterHandler.End)
			m.GET("/snapshot", deps.MeterHandler.Snapshot)
			m.GET("/status", deps.MeterHandler.Status)
			if deps.LiveHandler != nil {
				m.GET("/live", deps.LiveHandler.Serve)
			}
		}

		// Settings routes.
		settings := v1.Group("/settings")
		{
			settings.GET("", deps.SettingsHandler.Get)
			settings.PUT("", deps.SettingsHandler.Update)
		}

		// Trip history routes.
		trips := v1.Group("/trips")
		{
			trips.GET("", deps.TripHandler.GetAll)
			trips.DELETE("", deps.TripHandler.Clear)
			trips.POST("/retry", deps.TripHandler.RetryPending)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.GET("/:id/receipt", deps.TripHandler.GetReceipt)
			trips.POST("/:id/paid", deps.TripHandler.SetPaid)
		}
	}

	return router
}
