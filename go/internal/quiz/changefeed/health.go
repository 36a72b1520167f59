package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

// maxPending is the backlog above which the relay reports a warning.
const maxPending = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	ChangesPublished  uint64    `json:"changes_published"`
	LastPublishedAt   time.Time `json:"last_published_at"`
	PendingChanges    int       `json:"pending_changes"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

type healthStore interface {
	Ping(ctx context.Context) error
	CountUnpublished(ctx context.Context) (int, error)
}

// HealthChecker reports on the relay, its database and its NATS connection.
type HealthChecker struct {
	relay     *Relay
	store     healthStore
	natsConn  *nats.Conn
	threshold time.Duration // How long a backlog may sit without progress
}

func NewHealthChecker(relay *Relay, store healthStore, natsConn *nats.Conn, threshold time.Duration) *HealthChecker {
	return &HealthChecker{relay: relay, store: store, natsConn: natsConn, threshold: threshold}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}
	status.ChangesPublished, status.LastPublishedAt = h.relay.Stats()

	if err := h.store.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.natsConn != nil {
		status.NATSConnected = h.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.ListenerActive = h.relay.Running()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if status.DatabaseConnected {
		pending, err := h.store.CountUnpublished(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending changes: %v", err))
		} else {
			status.PendingChanges = pending
			if pending > maxPending {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending change count: %d", pending))
			}
		}
	}

	if status.PendingChanges > 0 && !status.LastPublishedAt.IsZero() {
		if since := time.Since(status.LastPublishedAt); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no changes published for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
