package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

const gameColumns = `id, room_code, status, previous_status, current_question_index, countdown,
	current_correct_answer, config_number_of_questions, config_category, config_tie_breaker,
	admin_id, version, created_at, updated_at`

func scanGame(row pgx.Row) (models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID,
		&g.RoomCode,
		&g.Status,
		&g.PreviousStatus,
		&g.CurrentQuestionIndex,
		&g.Countdown,
		&g.CurrentCorrectAnswer,
		&g.ConfigNumberOfQuestions,
		&g.ConfigCategory,
		&g.ConfigTieBreaker,
		&g.AdminID,
		&g.Version,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

type CreateGameParams struct {
	ID       uuid.UUID
	RoomCode string
	Config   models.QuizConfig
	AdminID  *uuid.UUID
}

const createGame = `INSERT INTO games (id, room_code, status, config_number_of_questions, config_category, config_tie_breaker, admin_id)
VALUES ($1, $2, 'CONFIG', $3, $4, $5, $6)
RETURNING ` + gameColumns

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (models.Game, error) {
	row := q.db.QueryRow(ctx, createGame,
		arg.ID,
		arg.RoomCode,
		arg.Config.NumberOfQuestions,
		arg.Config.Category,
		string(arg.Config.TieBreaker),
		arg.AdminID,
	)
	return scanGame(row)
}

const getGame = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

func (q *Queries) GetGame(ctx context.Context, id uuid.UUID) (models.Game, error) {
	return scanGame(q.db.QueryRow(ctx, getGame, id))
}

const getGameByRoomCode = `SELECT ` + gameColumns + ` FROM games WHERE room_code = $1`

func (q *Queries) GetGameByRoomCode(ctx context.Context, roomCode string) (models.Game, error) {
	return scanGame(q.db.QueryRow(ctx, getGameByRoomCode, roomCode))
}

const listActiveGames = `SELECT ` + gameColumns + ` FROM games
WHERE status IN ('WAITING', 'COUNTDOWN', 'QUESTION', 'ROUND_END', 'PAUSED')
ORDER BY created_at`

func (q *Queries) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	rows, err := q.db.Query(ctx, listActiveGames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

type UpdateGameProgressParams struct {
	ID     uuid.UUID
	Update models.GameUpdate
}

// The WHERE clause is the compare-and-set guard: no row comes back when the
// game moved on since the update was computed.
const updateGameProgress = `UPDATE games SET
	status = $2,
	previous_status = $3,
	countdown = $4,
	current_question_index = $5,
	current_correct_answer = $6,
	version = version + 1,
	updated_at = now()
WHERE id = $1 AND status = $7 AND countdown = $8 AND current_question_index = $9
RETURNING ` + gameColumns

func (q *Queries) UpdateGameProgress(ctx context.Context, arg UpdateGameProgressParams) (models.Game, error) {
	u := arg.Update
	var previous *string
	if u.PreviousStatus != nil {
		s := string(*u.PreviousStatus)
		previous = &s
	}
	row := q.db.QueryRow(ctx, updateGameProgress,
		arg.ID,
		string(u.Status),
		previous,
		u.Countdown,
		u.CurrentQuestionIndex,
		u.CurrentCorrectAnswer,
		string(u.From.Status),
		u.From.Countdown,
		u.From.CurrentQuestionIndex,
	)
	return scanGame(row)
}

type UpdateGameConfigParams struct {
	ID     uuid.UUID
	Config models.QuizConfig
}

const updateGameConfig = `UPDATE games SET
	config_number_of_questions = $2,
	config_category = $3,
	config_tie_breaker = $4,
	version = version + 1,
	updated_at = now()
WHERE id = $1 AND status IN ('CONFIG', 'WAITING')
RETURNING ` + gameColumns

func (q *Queries) UpdateGameConfig(ctx context.Context, arg UpdateGameConfigParams) (models.Game, error) {
	row := q.db.QueryRow(ctx, updateGameConfig,
		arg.ID,
		arg.Config.NumberOfQuestions,
		arg.Config.Category,
		string(arg.Config.TieBreaker),
	)
	return scanGame(row)
}
