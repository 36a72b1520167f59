package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

const answerColumns = `id, game_id, player_id, question_id, answer_chosen, time_taken_seconds,
	is_correct, score_awarded, created_at`

func scanAnswer(row pgx.Row) (models.PlayerAnswer, error) {
	var a models.PlayerAnswer
	err := row.Scan(
		&a.ID,
		&a.GameID,
		&a.PlayerID,
		&a.QuestionID,
		&a.AnswerChosen,
		&a.TimeTakenSeconds,
		&a.IsCorrect,
		&a.ScoreAwarded,
		&a.CreatedAt,
	)
	return a, err
}

// The insert only happens while the game is showing this very question to one
// of its own players, and a second answer from the same player is silently
// skipped. Either way no row comes back.
const insertAnswer = `INSERT INTO player_answers
	(id, game_id, player_id, question_id, answer_chosen, time_taken_seconds, is_correct, score_awarded)
SELECT $1, $2, $3, $4, $5, $6, $7, $8
WHERE EXISTS (
	SELECT 1 FROM games g
	JOIN questions q ON q.game_id = g.id AND q.order_index = g.current_question_index
	WHERE g.id = $2 AND g.status = 'QUESTION' AND q.id = $4
)
AND EXISTS (SELECT 1 FROM players p WHERE p.id = $3 AND p.game_id = $2)
ON CONFLICT (player_id, question_id) DO NOTHING
RETURNING ` + answerColumns

func (q *Queries) InsertAnswer(ctx context.Context, a models.PlayerAnswer) (models.PlayerAnswer, error) {
	row := q.db.QueryRow(ctx, insertAnswer,
		a.ID,
		a.GameID,
		a.PlayerID,
		a.QuestionID,
		a.AnswerChosen,
		a.TimeTakenSeconds,
		a.IsCorrect,
		a.ScoreAwarded,
	)
	return scanAnswer(row)
}

const getAnswer = `SELECT ` + answerColumns + ` FROM player_answers WHERE player_id = $1 AND question_id = $2`

func (q *Queries) GetAnswer(ctx context.Context, playerID, questionID uuid.UUID) (models.PlayerAnswer, error) {
	return scanAnswer(q.db.QueryRow(ctx, getAnswer, playerID, questionID))
}

const listAnswers = `SELECT ` + answerColumns + ` FROM player_answers WHERE game_id = $1 ORDER BY created_at, id`

func (q *Queries) ListAnswers(ctx context.Context, gameID uuid.UUID) ([]models.PlayerAnswer, error) {
	rows, err := q.db.Query(ctx, listAnswers, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []models.PlayerAnswer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

const deleteAnswers = `DELETE FROM player_answers WHERE game_id = $1`

func (q *Queries) DeleteAnswers(ctx context.Context, gameID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteAnswers, gameID)
	return err
}
