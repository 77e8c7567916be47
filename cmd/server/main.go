// Command server runs the Maachbazar WhatsApp bot: the Meta webhook listener,
// the shopkeeper admin API, and the scheduled morning stock broadcast.
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

	"github.com/maachbazar/maachbazar-bot/internal/broadcast"
	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/config"
	httpapi "github.com/maachbazar/maachbazar-bot/internal/http"
	"github.com/maachbazar/maachbazar-bot/internal/llm"
	"github.com/maachbazar/maachbazar-bot/internal/observability"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
	"github.com/maachbazar/maachbazar-bot/internal/session"
	"github.com/maachbazar/maachbazar-bot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	wa := whatsapp.NewClient(cfg.WhatsApp)
	gen := llm.NewOpenAI(cfg.Generation.APIKey, cfg.Generation.BaseURL, cfg.Generation.Model)
	sessions := session.NewTracker(cfg.SessionWindow)

	if cfg.BroadcastEnabled {
		sched, err := broadcast.New(db, wa, cfg.BroadcastSpec, cfg.BroadcastTZ)
		if err != nil {
			log.Fatal().Err(err).Msg("broadcast setup failed")
		}
		stopCron, err := sched.Start()
		if err != nil {
			log.Fatal().Err(err).Msg("broadcast start failed")
		}
		defer stopCron()
		log.Info().Str("spec", cfg.BroadcastSpec).Str("tz", cfg.BroadcastTZ).Msg("morning broadcast scheduled")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, wa, gen, sessions, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
