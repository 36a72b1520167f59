package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/quizcoletivo/go/internal/quiz/changefeed"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConsumerConfig struct {
	Stream        changefeed.JetStreamConfig
	ConsumerName  string // unique per gateway process; every process needs every change
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	// InactiveThreshold removes the consumer after the process is gone.
	InactiveThreshold time.Duration
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		Stream:            changefeed.DefaultJetStreamConfig(),
		ConsumerName:      "quiz-gateway",
		MaxDeliver:        5,
		AckWait:           30 * time.Second,
		MaxAckPending:     1000,
		InactiveThreshold: 5 * time.Minute,
	}
}

// EventConsumer consumes row changes from JetStream and broadcasts them to
// the WebSocket clients of each game.
type EventConsumer struct {
	connectionManager *ConnectionManager
	js                jetstream.JetStream
	consumer          jetstream.Consumer
	config            JetStreamConsumerConfig
}

func NewEventConsumer(ctx context.Context, cm *ConnectionManager, js jetstream.JetStream, config JetStreamConsumerConfig) (*EventConsumer, error) {
	ec := &EventConsumer{
		connectionManager: cm,
		js:                js,
		config:            config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	if err := changefeed.EnsureStream(ctx, ec.js, ec.config.Stream); err != nil {
		return err
	}
	stream, err := ec.js.Stream(ctx, ec.config.Stream.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              ec.config.ConsumerName,
		Description:       "Quiz gateway WebSocket consumer",
		FilterSubject:     changefeed.AllSubjects(ec.config.Stream.SubjectPrefix),
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        ec.config.MaxDeliver,
		AckWait:           ec.config.AckWait,
		MaxAckPending:     ec.config.MaxAckPending,
		InactiveThreshold: ec.config.InactiveThreshold,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.Stream.StreamName).
		Msg("JetStream consumer ready")

	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled. Messages are handled one at a time
// so each game's changes reach clients in stream order.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg.Data()); err != nil {
				// A message that cannot be decoded never will be; drop it.
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to terminate message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(data []byte) error {
	var change realtime.Change
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("unmarshal change: %w", err)
	}
	if !change.Collection.Valid() {
		return fmt.Errorf("%w: collection %q", realtime.ErrUnknownChange, change.Collection)
	}

	ec.connectionManager.BroadcastToGame(change.GameID, &Event{
		Type:      EventTypeChange,
		Timestamp: time.Now(),
		Data:      data,
	})

	log.Debug().
		Int64("change_id", change.ID).
		Str("game_id", change.GameID.String()).
		Str("collection", string(change.Collection)).
		Str("op", string(change.Op)).
		Msg("change broadcasted to WebSocket clients")
	return nil
}

func (ec *EventConsumer) GetConsumerInfo(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return ec.consumer.Info(ctx)
}
