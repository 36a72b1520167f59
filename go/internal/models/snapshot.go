package models

// Snapshot is the bulk-fetched state of one room.
type Snapshot struct {
	Game      Game           `json:"game"`
	Players   []Player       `json:"players"`
	Questions []Question     `json:"questions"`
	Answers   []PlayerAnswer `json:"answers"`
}
