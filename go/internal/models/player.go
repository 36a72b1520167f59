package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a participant in a game.
type Player struct {
	ID        uuid.UUID `json:"id"`
	GameID    uuid.UUID `json:"game_id"`
	Name      string    `json:"name"`
	AvatarRef string    `json:"avatar_ref"`
	Score     int       `json:"score"`
	IsOnline  bool      `json:"is_online"`
	JoinedAt  time.Time `json:"joined_at"`
}

// PlayerIdentity is what a device remembers about the player it joined a room as.
type PlayerIdentity struct {
	PlayerID  uuid.UUID `json:"player_id"`
	GameID    uuid.UUID `json:"game_id"`
	Name      string    `json:"name"`
	AvatarRef string    `json:"avatar_ref"`
}
