package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

const questionColumns = `id, game_id, text, options, correct_answer, order_index`

func scanQuestion(row pgx.Row) (models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.GameID, &q.Text, &q.Options, &q.CorrectAnswer, &q.OrderIndex)
	return q, err
}

const insertQuestion = `INSERT INTO questions (id, game_id, text, options, correct_answer, order_index)
VALUES ($1, $2, $3, $4, $5, $6)`

// InsertQuestions queues every insert in one batch round trip.
func (q *Queries) InsertQuestions(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, qu := range questions {
		batch.Queue(insertQuestion, qu.ID, qu.GameID, qu.Text, qu.Options, qu.CorrectAnswer, qu.OrderIndex)
	}
	return q.sendBatch(ctx, batch)
}

func (q *Queries) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	sender, ok := q.db.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		for _, item := range batch.QueuedQueries {
			if _, err := q.db.Exec(ctx, item.SQL, item.Arguments...); err != nil {
				return err
			}
		}
		return nil
	}
	return sender.SendBatch(ctx, batch).Close()
}

const getQuestion = `SELECT ` + questionColumns + ` FROM questions WHERE game_id = $1 AND id = $2`

func (q *Queries) GetQuestion(ctx context.Context, gameID, questionID uuid.UUID) (models.Question, error) {
	return scanQuestion(q.db.QueryRow(ctx, getQuestion, gameID, questionID))
}

const listQuestions = `SELECT ` + questionColumns + ` FROM questions WHERE game_id = $1 ORDER BY order_index`

func (q *Queries) ListQuestions(ctx context.Context, gameID uuid.UUID) ([]models.Question, error) {
	rows, err := q.db.Query(ctx, listQuestions, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, qu)
	}
	return questions, rows.Err()
}

const deleteQuestions = `DELETE FROM questions WHERE game_id = $1`

func (q *Queries) DeleteQuestions(ctx context.Context, gameID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteQuestions, gameID)
	return err
}
