// Command server runs the ticket bridge HTTP API.
//
// @title       Ticket Bridge API
// @version     1.0
// @description Bridges website orders and customer chat into Discord ticket channels.
// @BasePath    /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-ticket-bridge/internal/config"
	"github.com/tbourn/go-ticket-bridge/internal/discord"
	httpapi "github.com/tbourn/go-ticket-bridge/internal/http"
	"github.com/tbourn/go-ticket-bridge/internal/observability"
	"github.com/tbourn/go-ticket-bridge/internal/repo"
	"github.com/tbourn/go-ticket-bridge/internal/session"
	"github.com/tbourn/go-ticket-bridge/internal/sysutil"
)

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	version := sysutil.Version()
	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName, version)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.GuildAttr(cfg.Discord.GuildID))
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open ticket ledger")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate ticket ledger")
	}
	if n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC()); err != nil {
		logger.Warn().Err(err).Msg("purge expired idempotency keys")
	} else if n > 0 {
		logger.Info().Int64("purged", n).Msg("expired idempotency keys removed")
	}
	if n, err := repo.CountTickets(ctx, db, time.Now().UTC().Add(-24*time.Hour)); err == nil {
		logger.Info().Str("path", cfg.DBPath).Int64("tickets_24h", n).Msg("ticket ledger ready")
	}

	api := discord.NewClient(cfg.Discord.APIBaseURL, cfg.Discord.BotToken, cfg.Discord.HTTPTimeout)
	sessions := session.NewRegistry()

	// Streams are hijacked and outlive Shutdown; they stop on this instead.
	streamsCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, api, sessions, cfg, streamsCtx.Done())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	srv.RegisterOnShutdown(stopStreams)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("base_path", cfg.APIBasePath).
			Str("gin_mode", cfg.GinMode).
			Msg("ticket bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Int("sessions", sessions.Len()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("server stopped")
}
