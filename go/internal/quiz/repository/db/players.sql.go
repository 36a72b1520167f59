package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

const playerColumns = `id, game_id, name, avatar_ref, score, is_online, joined_at`

func scanPlayer(row pgx.Row) (models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.GameID, &p.Name, &p.AvatarRef, &p.Score, &p.IsOnline, &p.JoinedAt)
	return p, err
}

const insertPlayer = `INSERT INTO players (id, game_id, name, avatar_ref, is_online)
VALUES ($1, $2, $3, $4, TRUE)
RETURNING ` + playerColumns

func (q *Queries) InsertPlayer(ctx context.Context, p models.Player) (models.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, insertPlayer, p.ID, p.GameID, p.Name, p.AvatarRef))
}

const getPlayer = `SELECT ` + playerColumns + ` FROM players WHERE game_id = $1 AND id = $2`

func (q *Queries) GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (models.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, getPlayer, gameID, playerID))
}

const listPlayers = `SELECT ` + playerColumns + ` FROM players WHERE game_id = $1 ORDER BY joined_at, id`

func (q *Queries) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	rows, err := q.db.Query(ctx, listPlayers, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []models.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

const deletePlayer = `DELETE FROM players WHERE game_id = $1 AND id = $2`

func (q *Queries) DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deletePlayer, gameID, playerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Only a real change is written, so heartbeats do not flood the change log.
const setPlayerOnline = `UPDATE players SET is_online = $3
WHERE game_id = $1 AND id = $2 AND is_online IS DISTINCT FROM $3`

func (q *Queries) SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) (int64, error) {
	tag, err := q.db.Exec(ctx, setPlayerOnline, gameID, playerID, online)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const addPlayerScore = `UPDATE players SET score = score + $3 WHERE game_id = $1 AND id = $2`

func (q *Queries) AddPlayerScore(ctx context.Context, gameID, playerID uuid.UUID, points int) (int64, error) {
	tag, err := q.db.Exec(ctx, addPlayerScore, gameID, playerID, points)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const resetScores = `UPDATE players SET score = 0 WHERE game_id = $1 AND score <> 0`

func (q *Queries) ResetScores(ctx context.Context, gameID uuid.UUID) error {
	_, err := q.db.Exec(ctx, resetScores, gameID)
	return err
}
