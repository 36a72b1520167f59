package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 64

// JetStreamSource shares one NATS connection between many feeds and tells
// each of them when that connection came back after a loss.
type JetStreamSource struct {
	js  jetstream.JetStream
	cfg JetStreamConfig

	mu    sync.Mutex
	feeds map[*JetStreamFeed]struct{}
}

// NewJetStreamSource takes over nc's reconnect handler.
func NewJetStreamSource(nc *nats.Conn, js jetstream.JetStream, cfg JetStreamConfig) *JetStreamSource {
	s := &JetStreamSource{
		js:    js,
		cfg:   cfg,
		feeds: make(map[*JetStreamFeed]struct{}),
	}
	if nc != nil {
		nc.SetReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected, resyncing feeds")
			s.reconnected()
		})
	}
	return s
}

// Feed returns a ChangeFeed with its own reconnect signal. Close it when the
// adapter using it is closed.
func (s *JetStreamSource) Feed() *JetStreamFeed {
	f := &JetStreamFeed{source: s, reconnects: make(chan struct{}, 1)}
	s.mu.Lock()
	s.feeds[f] = struct{}{}
	s.mu.Unlock()
	return f
}

func (s *JetStreamSource) reconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.feeds {
		f.signal()
	}
}

func (s *JetStreamSource) release(f *JetStreamFeed) {
	s.mu.Lock()
	delete(s.feeds, f)
	s.mu.Unlock()
}

// JetStreamFeed implements realtime.ChangeFeed with one ordered consumer per
// game and collection.
type JetStreamFeed struct {
	source     *JetStreamSource
	reconnects chan struct{}
}

var _ realtime.ChangeFeed = (*JetStreamFeed)(nil)

func (f *JetStreamFeed) Reconnects() <-chan struct{} {
	return f.reconnects
}

// signal never blocks; pending signals coalesce into one.
func (f *JetStreamFeed) signal() {
	select {
	case f.reconnects <- struct{}{}:
	default:
	}
}

func (f *JetStreamFeed) Close() {
	f.source.release(f)
}

// Subscribe starts at the next message published on the game's collection subject.
func (f *JetStreamFeed) Subscribe(ctx context.Context, gameID uuid.UUID, c realtime.Collection) (realtime.Subscription, error) {
	cfg := f.source.cfg
	subject := Subject(cfg.SubjectPrefix, gameID, c)

	stream, err := f.source.js.Stream(ctx, cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer for %s: %w", subject, err)
	}

	sub := newSubscription(subject)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		sub.deliver(msg.Data())
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", subject, err)
	}
	sub.stop = cc.Stop

	log.Debug().Str("subject", subject).Msg("subscribed to changes")
	return sub, nil
}

type subscription struct {
	subject string
	ch      chan realtime.Change
	done    chan struct{}
	once    sync.Once
	stop    func()
}

func newSubscription(subject string) *subscription {
	return &subscription{
		subject: subject,
		ch:      make(chan realtime.Change, subscriptionBuffer),
		done:    make(chan struct{}),
	}
}

func (s *subscription) Changes() <-chan realtime.Change {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}

// deliver decodes one message and hands it to the reader, waiting while the
// buffer is full so the consumer never skips ahead.
func (s *subscription) deliver(data []byte) {
	var change realtime.Change
	if err := json.Unmarshal(data, &change); err != nil {
		log.Error().Err(err).Str("subject", s.subject).Msg("failed to decode change message")
		return
	}
	select {
	case s.ch <- change:
	case <-s.done:
	}
}
