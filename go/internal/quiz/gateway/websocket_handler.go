package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/game"
	"github.com/rs/zerolog/log"
)

// SnapshotProvider loads the full state of a room.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, roomCode string) (*models.Snapshot, error)
}

// WebSocketHandler handles WebSocket upgrade requests for rooms.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	snapshots         SnapshotProvider
}

func NewWebSocketHandler(cm *ConnectionManager, snapshots SnapshotProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		snapshots:         snapshots,
	}
}

// HandleGameConnection serves GET /ws/games/{code}. The optional player_id
// query parameter ties the connection to a player for presence.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	snap, err := h.snapshots.Snapshot(r.Context(), code)
	if errors.Is(err, game.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to load room for WebSocket")
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}

	var playerID *uuid.UUID
	if raw := r.URL.Query().Get("player_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid player_id format", http.StatusBadRequest)
			return
		}
		if !hasPlayer(snap, id) {
			http.Error(w, "player not in room", http.StatusNotFound)
			return
		}
		playerID = &id
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, snap.Game.ID, snap.Game.RoomCode, playerID)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		log.Error().Err(err).Str("room_code", code).Msg("failed to upgrade WebSocket connection")
		return
	}

	// Read again now that broadcasts are being collected for this connection,
	// so nothing committed in between is lost.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if snap, err = h.snapshots.Snapshot(ctx, snap.Game.RoomCode); err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to load room snapshot")
		h.connectionManager.unregisterConnection(conn)
		return
	}
	data, err := snapshotEvent(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode snapshot")
		h.connectionManager.unregisterConnection(conn)
		return
	}
	if !conn.Ready(data) {
		log.Warn().Str("connection_id", conn.ID).Msg("connection fell behind before snapshot")
		h.connectionManager.unregisterConnection(conn)
	}
}

func hasPlayer(snap *models.Snapshot, id uuid.UUID) bool {
	for _, p := range snap.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

func snapshotEvent(snap *models.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		Type:      EventTypeSnapshot,
		RoomCode:  snap.Game.RoomCode,
		Timestamp: time.Now(),
		Data:      payload,
	})
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/games/{code}", h.HandleGameConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
