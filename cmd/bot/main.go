// Package main is the entry point for the weastcoast Discord bot.
// It starts the gateway session, the reminder poll loop and the HTTP server
// for health checks and the Fitbit OAuth callback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/auth"
	"github.com/weastcoast/weastcoastbot/internal/bot"
	"github.com/weastcoast/weastcoastbot/internal/cache"
	"github.com/weastcoast/weastcoastbot/internal/coingecko"
	"github.com/weastcoast/weastcoastbot/internal/config"
	"github.com/weastcoast/weastcoastbot/internal/database"
	"github.com/weastcoast/weastcoastbot/internal/fitbot"
	httpserver "github.com/weastcoast/weastcoastbot/internal/http"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/nba"
	"github.com/weastcoast/weastcoastbot/internal/omdb"
	"github.com/weastcoast/weastcoastbot/internal/ratelimit"
	"github.com/weastcoast/weastcoastbot/internal/reminder"
	"github.com/weastcoast/weastcoastbot/internal/stonk"
	"github.com/weastcoast/weastcoastbot/internal/wiki"
	"github.com/weastcoast/weastcoastbot/internal/winspool"
	"github.com/weastcoast/weastcoastbot/pkg/logger"
)

// marketZone is the zone stock quote times are shown in
const marketZone = "America/New_York"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting weastcoast bot",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
		zap.Bool("fitbit_enabled", cfg.Fitbit.Enabled()),
	)

	// Initialize database connection
	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if err := runMigrations(db, cfg.Database.MigrationsPath, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Purge expired API cache rows and OAuth states
	db.StartCleanupJob(ctx, 30*time.Minute)

	// Shared outbound HTTP stack
	rateLimiter := ratelimit.NewRateLimiter(log)
	hc := httpclient.New(cfg.APIs.HTTPTimeout, rateLimiter, log)
	cacheManager := cache.NewManager(db, log)

	seasonStart, err := cfg.NBA.SeasonStartDate()
	if err != nil {
		log.Fatal("invalid NBA season start", zap.Error(err))
	}
	nbaRepo := nba.NewRepository(
		nba.NewClient(hc, "", cfg.NBA.BallDontLieAPIKey),
		nba.NewLiveClient(hc, ""),
		cacheManager,
		log,
	)

	location, err := time.LoadLocation(marketZone)
	if err != nil {
		log.Warn("failed to load market time zone, using UTC", zap.Error(err))
		location = time.UTC
	}

	services := bot.Services{
		WinsPool: winspool.NewService(db, nbaRepo, seasonStart, log),
		Crypto:   coingecko.NewClient(hc, cacheManager, ""),
		Stocks:   stonk.NewClient(hc, ""),
		Films:    omdb.NewClient(hc, cacheManager, "", cfg.APIs.OMDbAPIKey),
		Wiki:     wiki.NewClient(hc, ""),
		Location: location,
		SheetURL: cfg.NBA.WinsPoolSheetURL,
	}

	var callback httpserver.FitbitCallback
	if cfg.Fitbit.Enabled() {
		fitbitService, err := newFitbitService(cfg, db, hc, log)
		if err != nil {
			log.Fatal("failed to initialize fitbit", zap.Error(err))
		}
		services.Fitbit = fitbitService
		callback = fitbitService
	}

	// Discord session, reminder delivery and commands
	session, err := bot.NewSession(cfg.Discord.BotToken)
	if err != nil {
		log.Fatal("failed to create discord session", zap.Error(err))
	}

	scheduler := reminder.NewScheduler(db, bot.NewReminderDeliverer(session, log), log,
		reminder.WithPollInterval(cfg.Reminder.PollInterval),
		reminder.WithDeliveryTimeout(cfg.Reminder.DeliveryTimeout),
	)
	services.Reminders = scheduler

	discordBot := bot.New(session, cfg.Discord.GuildIDs, services, log)
	if err := discordBot.Start(ctx); err != nil {
		log.Fatal("failed to start discord bot", zap.Error(err))
	}
	scheduler.Start(ctx)

	// Initialize HTTP server
	httpHandlers := httpserver.NewHandlers(db, callback, log)
	httpServer := httpserver.NewServer(httpHandlers, cfg.Server.HTTPPort, log)

	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-httpErrChan:
		log.Error("HTTP server error", zap.Error(err))
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	// An in-flight poll finishes before Stop returns
	scheduler.Stop()

	if err := discordBot.Stop(); err != nil {
		log.Error("failed to stop discord bot", zap.Error(err))
	}

	cancel()
	log.Info("shut down successfully")
}

func newFitbitService(cfg *config.Config, db *database.DB, hc *httpclient.Client, log *zap.Logger) (*fitbot.Service, error) {
	cipher, err := auth.NewTokenCipher(cfg.Security.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}
	states := auth.NewStateManager(db, cfg.Fitbit.StateExpiryMinutes)

	return fitbot.NewService(&cfg.Fitbit, fitbot.DefaultEndpoints, db, states, cipher, hc, log), nil
}

// runMigrations runs database migrations using golang-migrate library
func runMigrations(db *database.DB, path string, log *zap.Logger) error {
	log.Info("running database migrations", zap.String("path", path))

	if err := db.RunMigrations(path); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}
