package scoring

import (
	"slices"
	"strings"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

// RankedPlayer is a player with its 1-based position.
type RankedPlayer struct {
	Position int           `json:"position"`
	Player   models.Player `json:"player"`
}

// Rank orders players by descending score. Equal scores go to whoever joined first,
// then by id, so the order never depends on how the list arrived.
func Rank(players []models.Player) []RankedPlayer {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b models.Player) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	ranked := make([]RankedPlayer, len(sorted))
	for i, p := range sorted {
		ranked[i] = RankedPlayer{Position: i + 1, Player: p}
	}
	return ranked
}

// Winner returns the top ranked player, if any.
func Winner(players []models.Player) (models.Player, bool) {
	ranked := Rank(players)
	if len(ranked) == 0 {
		return models.Player{}, false
	}
	return ranked[0].Player, true
}
