package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizcoletivo/go/clients/openrouter"
	"github.com/mcdev12/quizcoletivo/go/clients/questionbank"
	"github.com/mcdev12/quizcoletivo/go/internal/auth"
	"github.com/mcdev12/quizcoletivo/go/internal/dbconfig"
	"github.com/mcdev12/quizcoletivo/go/internal/identity"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/changefeed"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/game"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/gateway"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/session"
	"github.com/mcdev12/quizcoletivo/go/internal/schema"
)

type Services struct {
	Pool     *pgxpool.Pool
	NATS     *nats.Conn
	Redis    redis.UniversalClient
	Game     *game.Service
	Gateway  *gateway.Service
	Sessions *session.Manager
	Relay    *changefeed.Relay
	Changes  *changefeed.ChangeLog
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	dbConfig := dbconfig.NewConfigFromEnv("quiz-api")
	dsn := dbConfig.DSN()
	if err := schema.Migrate(dsn); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s.Pool = pool
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("host", dbConfig.Host).Int("port", dbConfig.Port).Str("database", dbConfig.Database).Msg("connected to database")

	// Change feed
	jsConfig := changefeed.DefaultJetStreamConfig()
	jsConfig.URL = config.NATS.URL
	nc, err := changefeed.Connect(jsConfig)
	if err != nil {
		return nil, err
	}
	s.NATS = nc
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := changefeed.EnsureStream(ctx, js, jsConfig); err != nil {
		return nil, err
	}
	source := changefeed.NewJetStreamSource(nc, js, jsConfig)

	s.Changes = changefeed.NewChangeLog(pool)
	if config.Relay.Embedded {
		publisher, err := changefeed.NewJetStreamPublisher(ctx, js, jsConfig)
		if err != nil {
			return nil, err
		}
		relayConfig := changefeed.DefaultRelayConfig()
		relayConfig.DatabaseURL = dsn
		relayConfig.FallbackInterval = config.Relay.FallbackInterval
		if s.Relay, err = changefeed.NewRelay(s.Changes, publisher, relayConfig); err != nil {
			return nil, err
		}
	}

	// Identity
	var identities identity.Store
	if config.Identity.RedisAddr != "" {
		s.Redis = redis.NewClient(&redis.Options{Addr: config.Identity.RedisAddr})
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		identities = identity.NewRedisStore(s.Redis, config.Identity.TTL)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, player identities are kept in memory")
		identities = identity.NewMemoryStore(config.Identity.TTL)
	}

	// Question generator
	generator, err := setupGenerator(config)
	if err != nil {
		return nil, err
	}

	// Admin
	authenticator, err := auth.NewAuthenticator(auth.Config{
		Username:     config.Auth.Username,
		Password:     config.Auth.Password,
		PasswordHash: config.Auth.PasswordHash,
		Secret:       config.Auth.Secret,
		TokenTTL:     config.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure admin auth: %w", err)
	}

	// Quiz
	repo := repository.NewRepository(pool)
	controllerConfig := progression.DefaultControllerConfig()
	controllerConfig.TickInterval = config.Quiz.TickInterval
	s.Sessions = session.NewManager(repo, func() session.Feed { return source.Feed() }, controllerConfig)

	app := game.NewApp(repo, generator, identities, s.Sessions, game.Config{
		RoomCodeLength: config.Quiz.RoomCodeLength,
		AvatarURL:      config.Quiz.AvatarURL,
		PublicOrigin:   config.Quiz.PublicOrigin,
		JoinPath:       config.Quiz.JoinPath,
	})
	s.Game = game.NewService(app, authenticator)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.Stream = jsConfig
	gatewayConfig.JetStreamConfig.ConsumerName = config.NATS.ConsumerName
	if s.Gateway, err = gateway.NewService(ctx, gatewayConfig, js, app); err != nil {
		return nil, err
	}

	ok = true
	return s, nil
}

// setupGenerator prefers OpenRouter and falls back to the question bank when
// one is configured. A nil generator makes StartGame fail with a configuration error.
func setupGenerator(config *Config) (game.QuestionGenerator, error) {
	client, err := openrouter.NewClient(openrouter.Config{
		APIKey:  config.OpenRouter.APIKey,
		Model:   config.OpenRouter.Model,
		Referer: config.OpenRouter.Referer,
		Title:   config.OpenRouter.Title,
		Timeout: config.OpenRouter.Timeout,
	})
	switch {
	case err == nil:
		return client, nil
	case !errors.Is(err, openrouter.ErrMissingAPIKey):
		return nil, fmt.Errorf("failed to create question generator: %w", err)
	}

	var bank *questionbank.Bank
	switch config.Quiz.QuestionBank {
	case "":
		log.Warn().Msg("OPENROUTER_API_KEY not set and no question bank configured, games cannot be started")
		return nil, nil
	case "builtin":
		bank, err = questionbank.Default()
	default:
		bank, err = questionbank.Load(config.Quiz.QuestionBank)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", config.Quiz.QuestionBank).Strs("categories", bank.Categories()).Msg("using question bank")
	return bank, nil
}

// Start runs the background workers and resumes games that were in play.
func (s *Services) Start(ctx context.Context) error {
	if s.Relay != nil {
		go func() {
			if err := s.Relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("change relay stopped")
			}
		}()
	}
	go func() {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway stopped")
		}
	}()
	return s.Sessions.ResumeActive(ctx)
}

func (s *Services) Close() {
	if s.Sessions != nil {
		s.Sessions.Shutdown()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis")
		}
	}
	if s.NATS != nil {
		s.NATS.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
