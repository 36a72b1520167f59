// Package gateway pushes room state to browsers over WebSocket: a snapshot on
// connect, then every row change relayed through JetStream.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Rooms is what the gateway needs from the quiz application.
type Rooms interface {
	SnapshotProvider
	Presence
}

// Service is the realtime gateway: connections, the change consumer and routes.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(ctx context.Context, config Config, js jetstream.JetStream, rooms Rooms) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig, rooms)
	wsHandler := NewWebSocketHandler(connectionManager, rooms)

	eventConsumer, err := NewEventConsumer(ctx, connectionManager, js, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		eventConsumer:     eventConsumer,
	}, nil
}

// Start runs until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting quiz gateway service")

	go s.connectionManager.Start(ctx)
	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("quiz gateway service stopped")
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
