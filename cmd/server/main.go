package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"taximeter/internal/app"
	"taximeter/internal/config"
	"taximeter/internal/handler"
	"taximeter/internal/meter"
	"taximeter/internal/middleware"
	internalRedis "taximeter/internal/redis"
	"taximeter/internal/repository/postgres"
	"taximeter/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled (with DB instrumentation)")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Wire dependencies.
	meterService, server := wireServer(db, redisClient, nrApp, cfg, log)

	// Pick up a ride that was running when the process stopped.
	if recovered, err := meterService.Recover(ctx); err != nil {
		log.WithError(err).Error("failed to recover active ride")
	} else if recovered {
		log.Info("active ride restored")
	}

	// Start server in goroutine.
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	if pending := meterService.Pending(); len(pending) > 0 {
		log.WithField("pending_rides", len(pending)).Warn("exiting with unsaved rides")
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the meter service and HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) (*service.MeterService, *http.Server) {
	// Initialize Redis stores.
	cacheStore := internalRedis.NewCacheStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	positionStore := internalRedis.NewPositionStore(redisClient)

	// Initialize repositories.
	tripRepo := postgres.NewTripRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Initialize services.
	settingsService := service.NewSettingsService(cfg.Meter.ID, settingsRepo, cacheStore, log)
	historyService := service.NewHistoryService(tripRepo, log)
	receiptService := service.NewReceiptService(tripRepo, cfg.Meter.Location())
	meterService := service.NewMeterService(
		service.MeterConfig{
			MeterID:               cfg.Meter.ID,
			Location:              cfg.Meter.Location(),
			Filter:                filterPolicy(cfg.Meter),
			MotionThresholdMeters: cfg.Meter.MotionThresholdMeters,
			MotionTimeout:         cfg.Meter.MotionTimeout,
			MinFixInterval:        cfg.Meter.MinFixInterval,
			LockTTL:               cfg.Meter.LockTTL,
		},
		settingsService,
		tripRepo,
		service.MeterStores{
			Checkpoints: cacheStore,
			Locks:       lockStore,
			Positions:   positionStore,
		},
		log,
	)

	// Initialize handlers.
	meterHandler := handler.NewMeterHandler(meterService)
	liveHandler := handler.NewLiveHandler(meterService, cfg.Meter.LiveInterval, log)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	tripHandler := handler.NewTripHandler(historyService, receiptService, meterService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		MeterHandler:     meterHandler,
		LiveHandler:      liveHandler,
		SettingsHandler:  settingsHandler,
		TripHandler:      tripHandler,
		IdempotencyStore: middleware.NewRedisIdempotencyStore(redisClient, cfg.Meter.ID),
		NewRelicApp:      nrApp,
		Logger:           log,
	})

	// Create HTTP server.
	return meterService, &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// filterPolicy maps the meter configuration onto the GeoFilter policy.
func filterPolicy(m config.MeterConfig) meter.FilterPolicy {
	p := meter.DefaultFilterPolicy()
	if m.FilterMode == string(meter.FilterSimple) {
		p.Mode = meter.FilterSimple
	}
	p.MaxAccuracyMeters = m.MaxAccuracyMeters
	p.StationarySpeedKmh = m.StationarySpeedKmh
	p.MovingBaseMeters = m.MovingBaseMeters
	p.StationaryBaseMeters = m.StationaryBaseMeters
	p.TimeBonusPerSecond = m.TimeBonusPerSecond
	p.TimeBonusCapSeconds = m.TimeBonusCapSeconds
	p.FloorMeters = m.FloorMeters
	return p
}
