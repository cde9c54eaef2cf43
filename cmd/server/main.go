package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	gfirestore "cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/atelier-studio/admin-service/internal/application"
	"github.com/atelier-studio/admin-service/internal/config"
	"github.com/atelier-studio/admin-service/internal/infrastructure/firestore"
	"github.com/atelier-studio/admin-service/internal/infrastructure/postgres"
	"github.com/atelier-studio/admin-service/internal/kafka"
	transporthttp "github.com/atelier-studio/admin-service/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting studio-admin")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Document store ───────────────────────────────────────────────────────
	var fsOpts []option.ClientOption
	if cfg.Firestore.CredentialsFile != "" {
		fsOpts = append(fsOpts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}
	fsClient, err := gfirestore.NewClient(ctx, cfg.Firestore.ProjectID, fsOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to firestore")
	}
	defer fsClient.Close()
	store := firestore.New(fsClient, cfg.Firestore.ProjectID)
	log.Info().Str("project", cfg.Firestore.ProjectID).Msg("firestore connected")

	// ── Run history (Postgres) ───────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping failed")
	}

	history := postgres.New(pool)
	if err := history.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure run history schema")
	}
	log.Info().Msg("postgres connected")

	// ── Audit events (Kafka) ─────────────────────────────────────────────────
	var audit application.AuditPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer producer.Close(context.Background())
		audit = producer
		log.Info().Str("topic", cfg.Kafka.AuditTopic).Msg("kafka audit producer ready")
	}

	// ── Application Service ───────────────────────────────────────────────────
	svc := application.NewService(store, history, audit)

	// ── HTTP Server ───────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(svc)
	router := transporthttp.NewRouter(handler, cfg.Auth.BaseURL, cfg.Auth.Realm)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("studio-admin stopped")
}
