package changefeed

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel the change trigger notifies on
	FallbackInterval time.Duration // How often to sweep for changes that missed a notification
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int
	PruneInterval    time.Duration
	RetainFor        time.Duration // How long published changes stay in the log
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    "quiz_changes",
		FallbackInterval: 10 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        500,
		PruneInterval:    time.Hour,
		RetainFor:        24 * time.Hour,
	}
}

// Store is the change log the relay drains.
type Store interface {
	FetchChangeByID(ctx context.Context, id int64) (realtime.Change, error)
	FetchUnpublished(ctx context.Context, limit int) ([]realtime.Change, error)
	MarkPublished(ctx context.Context, id int64) error
	PrunePublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Publisher pushes one change onto the message bus.
type Publisher interface {
	Publish(ctx context.Context, change realtime.Change) error
}

// notifier is the part of *pq.Listener the relay loop uses.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Relay moves committed row changes from Postgres to JetStream. Notifications
// give low latency; the fallback sweep covers anything a dropped connection lost.
type Relay struct {
	store     Store
	listener  notifier
	publisher Publisher
	cfg       RelayConfig

	// backlog is set while an older change is still unpublished; owned by the Start loop.
	backlog bool

	mu            sync.Mutex
	running       bool
	published     uint64
	lastPublished time.Time
}

func NewRelay(store Store, publisher Publisher, cfg RelayConfig) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("change listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for change notifications")

	return newRelay(store, l, publisher, cfg), nil
}

func newRelay(store Store, l notifier, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{
		store:     store,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Start runs until ctx is done. Changes left over from a previous run are
// swept before the first notification is handled.
func (r *Relay) Start(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("change relay started")

	if err := r.processUnpublished(ctx); err != nil {
		log.Error().Err(err).Msg("initial sweep failed")
	}

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	pruneTicker := time.NewTicker(r.cfg.PruneInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()
	defer pruneTicker.Stop()

	notes := r.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change relay shutting down")
			return r.Stop()
		case note := <-notes:
			if note == nil {
				// Connection was re-established; notifications in the gap are gone.
				if err := r.processUnpublished(ctx); err != nil {
					log.Error().Err(err).Msg("failed to sweep after reconnect")
				}
				continue
			}
			if err := r.onNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle change notification")
			}
		case <-fallbackTicker.C:
			if err := r.processUnpublished(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unpublished changes")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		case <-pruneTicker.C:
			n, err := r.store.PrunePublished(ctx, r.cfg.RetainFor)
			if err != nil {
				log.Error().Err(err).Msg("failed to prune change log")
				continue
			}
			log.Debug().Int64("deleted", n).Msg("pruned change log")
		}
	}
}

func (r *Relay) Stop() error {
	return r.listener.Close()
}

// Stats reports how many changes were published and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.lastPublished
}

func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

// onNotification publishes the notified change, or sweeps the log in id order
// while an earlier change is still waiting, so no change overtakes it.
func (r *Relay) onNotification(ctx context.Context, extra string) error {
	if r.backlog {
		return r.processUnpublished(ctx)
	}
	return r.handleNotification(ctx, extra)
}

// handleNotification publishes the change whose id is the notification payload.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := strconv.ParseInt(extra, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid change id in notification %q: %w", extra, err)
	}

	change, err := r.store.FetchChangeByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch change: %w", err)
	}

	if err := r.relay(ctx, change); err != nil {
		r.backlog = true
		return err
	}
	return nil
}

func (r *Relay) processUnpublished(ctx context.Context) error {
	pending, err := r.store.FetchUnpublished(ctx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unpublished changes: %w", err)
	}

	for _, change := range pending {
		if err := r.relay(ctx, change); err != nil {
			// Stop here so later changes of the same row are not published ahead of this one.
			r.backlog = true
			return err
		}
	}
	r.backlog = len(pending) >= r.cfg.BatchSize
	if len(pending) > 0 {
		log.Debug().Int("count", len(pending)).Msg("swept unpublished changes")
	}
	return nil
}

func (r *Relay) relay(ctx context.Context, change realtime.Change) error {
	if err := r.publishWithRetry(ctx, change); err != nil {
		return fmt.Errorf("failed to publish change %d: %w", change.ID, err)
	}

	if err := r.store.MarkPublished(ctx, change.ID); err != nil {
		log.Error().Err(err).Int64("change_id", change.ID).Msg("failed to mark change published")
		return err
	}

	r.mu.Lock()
	r.published++
	r.lastPublished = time.Now()
	r.mu.Unlock()

	log.Debug().
		Int64("change_id", change.ID).
		Str("game_id", change.GameID.String()).
		Str("collection", string(change.Collection)).
		Str("op", string(change.Op)).
		Msg("relayed change")
	return nil
}

// publishWithRetry publishes with a linearly growing delay between attempts.
func (r *Relay) publishWithRetry(ctx context.Context, change realtime.Change) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, change); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int64("change_id", change.ID).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Int64("change_id", change.ID).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
