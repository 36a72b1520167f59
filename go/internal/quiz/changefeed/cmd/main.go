package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizcoletivo/go/internal/dbconfig"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/changefeed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv("quiz-relay")
	dsn := cfg.DSN()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	jsCfg := changefeed.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	nc, err := changefeed.Connect(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to NATS")
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream context")
	}
	publisher, err := changefeed.NewJetStreamPublisher(ctx, js, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}

	relayCfg := changefeed.DefaultRelayConfig()
	relayCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			relayCfg.FallbackInterval = d
		}
	}

	changes := changefeed.NewChangeLog(pool)
	relay, err := changefeed.NewRelay(changes, publisher, relayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create change relay")
	}

	healthAddr := os.Getenv("RELAY_HEALTH_ADDR")
	if healthAddr == "" {
		healthAddr = ":8082"
	}
	mux := http.NewServeMux()
	mux.Handle("/health", changefeed.NewHealthChecker(relay, changes, nc, time.Minute))
	healthServer := &http.Server{Addr: healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting change relay")
		errCh <- relay.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("relay stopped with error")
		}
	case err := <-errCh:
		log.Error().Err(err).Msg("relay exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}
