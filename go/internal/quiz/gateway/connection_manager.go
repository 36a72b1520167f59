package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Presence records whether a player has a live connection.
type Presence interface {
	SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) error
}

// ConnectionManager manages WebSocket connections per game.
type ConnectionManager struct {
	gameConnections map[uuid.UUID]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	presence Presence

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID       string
	GameID   uuid.UUID
	RoomCode string
	// PlayerID is nil for screens that only watch, like the admin's.
	PlayerID *uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	limiter *rate.Limiter

	// Events broadcast before the snapshot went out wait here.
	mu      sync.Mutex
	ready   bool
	backlog [][]byte
	closed  bool

	ConnectedAt time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	// Inbound client messages per second, with burst.
	MessageRate  rate.Limit
	MessageBurst int
	// BroadcastBuffer is how many events may wait for the broadcast loop.
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

type BroadcastMessage struct {
	GameID uuid.UUID
	Event  *Event
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      256,
		MessageRate:     1,
		MessageBurst:    5,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. presence may be nil.
func NewConnectionManager(config ConnectionConfig, presence Presence) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		presence:    presence,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// Start processes broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and registers it.
// The returned connection holds back broadcasts until Ready is called.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, gameID uuid.UUID, roomCode string, playerID *uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		GameID:      gameID,
		RoomCode:    roomCode,
		PlayerID:    playerID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		limiter:     rate.NewLimiter(cm.config.MessageRate, cm.config.MessageBurst),
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)
	cm.setPresence(connection, true)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("room_code", roomCode).
		Bool("player", playerID != nil).
		Msg("WebSocket connection established")
	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[conn.GameID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Int("total_connections", len(cm.gameConnections[conn.GameID])).
		Msg("connection registered")
}

// unregisterConnection removes conn and marks its player offline when it was
// the player's last connection.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.gameConnections[conn.GameID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	lastForPlayer := conn.PlayerID != nil
	for other := range connections {
		if other.PlayerID != nil && conn.PlayerID != nil && *other.PlayerID == *conn.PlayerID {
			lastForPlayer = false
			break
		}
	}
	if len(connections) == 0 {
		delete(cm.gameConnections, conn.GameID)
	}
	cm.mu.Unlock()

	conn.close()
	if lastForPlayer {
		cm.setPresence(conn, false)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", conn.RoomCode).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) setPresence(conn *Connection, online bool) {
	if cm.presence == nil || conn.PlayerID == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.WriteTimeout)
	defer cancel()
	if err := cm.presence.SetPlayerOnline(ctx, conn.GameID, *conn.PlayerID, online); err != nil {
		log.Warn().Err(err).
			Str("player_id", conn.PlayerID.String()).
			Bool("online", online).
			Msg("failed to update presence")
	}
}

// BroadcastToGame sends an event to every connection watching a game. When the
// broadcast queue is full the event cannot be delivered, so the game's
// connections are closed and their clients reconnect for a fresh snapshot.
func (cm *ConnectionManager) BroadcastToGame(gameID uuid.UUID, event *Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{GameID: gameID, Event: event}:
	default:
		cm.mu.RLock()
		conns := make([]*Connection, 0, len(cm.gameConnections[gameID]))
		for conn := range cm.gameConnections[gameID] {
			conns = append(conns, conn)
		}
		cm.mu.RUnlock()

		log.Warn().
			Str("game_id", gameID.String()).
			Int("connections", len(conns)).
			Msg("broadcast channel full, closing connections for resync")
		for _, conn := range conns {
			cm.evict(conn, "resync")
		}
	}
}

// evict closes conn with a try-again-later close frame, which clients take as
// a cue to reconnect and reload the snapshot.
func (cm *ConnectionManager) evict(conn *Connection, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason)
	_ = conn.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cm.config.WriteTimeout))
	cm.unregisterConnection(conn)
	conn.Conn.Close()
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	cm.mu.RLock()
	var slow []*Connection
	count := 0
	for conn := range cm.gameConnections[message.GameID] {
		count++
		if !conn.enqueue(eventData) {
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.evict(conn, "slow consumer")
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("game_id", message.GameID.String()).
		Int("connections", count).
		Msg("event broadcasted")
}

// ConnectionStats summarises open connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveGames      int            `json:"active_games"`
	GameConnections  map[string]int `json:"game_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveGames:     len(cm.gameConnections),
		GameConnections: make(map[string]int, len(cm.gameConnections)),
	}
	for gameID, connections := range cm.gameConnections {
		stats.TotalConnections += len(connections)
		stats.GameConnections[gameID.String()] = len(connections)
	}
	return stats
}

// Ready sends first, then everything broadcast since the connection opened.
func (c *Connection) Ready(first []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.ready = true
	for _, data := range append([][]byte{first}, c.backlog...) {
		select {
		case c.Send <- data:
		default:
			return false
		}
	}
	c.backlog = nil
	return true
}

// enqueue reports false when the client cannot keep up.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if !c.ready {
		if len(c.backlog) >= cap(c.Send) {
			return false
		}
		c.backlog = append(c.backlog, data)
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	if !c.limiter.Allow() {
		log.Warn().Str("connection_id", c.ID).Msg("client message rate exceeded, dropping")
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignored malformed client message")
		return
	}
	switch msg.Type {
	case ClientHeartbeat:
		c.Manager.setPresence(c, true)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("ignored unknown client message")
	}
}
