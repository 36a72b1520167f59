// Package repository persists quiz games in Postgres. Every write that moves a
// game forward is one compare-and-set row update plus its side effects, inside
// a single transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository/db"
	"github.com/mcdev12/quizcoletivo/go/internal/sqlutil"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrQuestionClosed is returned when an answer arrives for a question that is not open.
	ErrQuestionClosed = errors.New("question is not accepting answers")
	ErrStaleState     = models.ErrStaleState
)

type Repository struct {
	pool    *pgxpool.Pool
	queries *db.Queries
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:    pool,
		queries: db.New(pool),
	}
}

func (r *Repository) inTx(ctx context.Context, fn func(q *db.Queries) error) error {
	return sqlutil.Run(ctx, r.pool, pgx.TxOptions{}, r.queries.WithTx, fn)
}

type CreateGameParams struct {
	RoomCode string
	Config   models.QuizConfig
	AdminID  *uuid.UUID
}

// CreateGame inserts a game in CONFIG. A clash on the room code returns ErrRoomCodeTaken.
func (r *Repository) CreateGame(ctx context.Context, arg CreateGameParams) (*models.Game, error) {
	g, err := r.queries.CreateGame(ctx, db.CreateGameParams{
		ID:       uuid.New(),
		RoomCode: arg.RoomCode,
		Config:   arg.Config,
		AdminID:  arg.AdminID,
	})
	if sqlutil.HasCode(err, sqlutil.UniqueViolation) {
		return nil, fmt.Errorf("%w: %s", ErrRoomCodeTaken, arg.RoomCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return &g, nil
}

func (r *Repository) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	g, err := r.queries.GetGame(ctx, id)
	if err != nil {
		return nil, notFound(err, "game %s", id)
	}
	return &g, nil
}

func (r *Repository) GetGameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	g, err := r.queries.GetGameByRoomCode(ctx, roomCode)
	if err != nil {
		return nil, notFound(err, "room %s", roomCode)
	}
	return &g, nil
}

func (r *Repository) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	games, err := r.queries.ListActiveGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active games: %w", err)
	}
	return games, nil
}

// FetchSnapshot reads a room's game, players, questions and answers from one
// consistent view.
func (r *Repository) FetchSnapshot(ctx context.Context, roomCode string) (*models.Snapshot, error) {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return sqlutil.RunValue(ctx, r.pool, opts, r.queries.WithTx, func(q *db.Queries) (*models.Snapshot, error) {
		g, err := q.GetGameByRoomCode(ctx, roomCode)
		if err != nil {
			return nil, notFound(err, "room %s", roomCode)
		}
		snap := &models.Snapshot{Game: g}
		if snap.Players, err = q.ListPlayers(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("failed to list players: %w", err)
		}
		if snap.Questions, err = q.ListQuestions(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		if snap.Answers, err = q.ListAnswers(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("failed to list answers: %w", err)
		}
		return snap, nil
	})
}

// ApplyGameUpdate writes update if the game still is where update.From says.
// Otherwise it returns ErrStaleState and nothing is written.
func (r *Repository) ApplyGameUpdate(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	return sqlutil.RunValue(ctx, r.pool, pgx.TxOptions{}, r.queries.WithTx, func(q *db.Queries) (*models.Game, error) {
		return applyUpdate(ctx, q, gameID, update)
	})
}

// BeginGame replaces the game's questions and applies update in one
// transaction. Questions are written first so they reach observers before the
// status change does.
func (r *Repository) BeginGame(ctx context.Context, gameID uuid.UUID, questions []models.Question, update models.GameUpdate) (*models.Game, error) {
	return sqlutil.RunValue(ctx, r.pool, pgx.TxOptions{}, r.queries.WithTx, func(q *db.Queries) (*models.Game, error) {
		if err := q.DeleteQuestions(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to clear questions: %w", err)
		}
		rows := make([]models.Question, len(questions))
		for i, qu := range questions {
			qu.GameID = gameID
			if qu.ID == uuid.Nil {
				qu.ID = uuid.New()
			}
			rows[i] = qu
		}
		if err := q.InsertQuestions(ctx, rows); err != nil {
			return nil, fmt.Errorf("failed to insert questions: %w", err)
		}
		update.ClearQuestions = false
		return applyUpdate(ctx, q, gameID, update)
	})
}

func applyUpdate(ctx context.Context, q *db.Queries, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	g, err := q.UpdateGameProgress(ctx, db.UpdateGameProgressParams{ID: gameID, Update: update})
	if sqlutil.IsNoRows(err) {
		if _, getErr := q.GetGame(ctx, gameID); getErr != nil {
			return nil, notFound(getErr, "game %s", gameID)
		}
		return nil, fmt.Errorf("%w: game %s expected %s/%d/%d", ErrStaleState, gameID,
			update.From.Status, update.From.Countdown, update.From.CurrentQuestionIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	if update.ClearAnswers {
		if err := q.DeleteAnswers(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to clear answers: %w", err)
		}
	}
	if update.ClearQuestions {
		if err := q.DeleteQuestions(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to clear questions: %w", err)
		}
	}
	if update.ResetScores {
		if err := q.ResetScores(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to reset scores: %w", err)
		}
	}
	return &g, nil
}

// UpdateGameConfig changes the quiz settings while the game has not started.
func (r *Repository) UpdateGameConfig(ctx context.Context, gameID uuid.UUID, cfg models.QuizConfig) (*models.Game, error) {
	g, err := r.queries.UpdateGameConfig(ctx, db.UpdateGameConfigParams{ID: gameID, Config: cfg})
	if sqlutil.IsNoRows(err) {
		if _, getErr := r.queries.GetGame(ctx, gameID); getErr != nil {
			return nil, notFound(getErr, "game %s", gameID)
		}
		return nil, fmt.Errorf("%w: game %s already started", ErrStaleState, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update game config: %w", err)
	}
	return &g, nil
}

func (r *Repository) InsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	inserted, err := r.queries.InsertPlayer(ctx, p)
	if sqlutil.HasCode(err, sqlutil.ForeignKeyViolation) {
		return nil, fmt.Errorf("%w: game %s", ErrNotFound, p.GameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}
	return &inserted, nil
}

func (r *Repository) GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	p, err := r.queries.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return nil, notFound(err, "player %s", playerID)
	}
	return &p, nil
}

func (r *Repository) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	players, err := r.queries.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

func (r *Repository) DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) error {
	n, err := r.queries.DeletePlayer(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	return nil
}

func (r *Repository) SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) error {
	if _, err := r.queries.SetPlayerOnline(ctx, gameID, playerID, online); err != nil {
		return fmt.Errorf("failed to set player presence: %w", err)
	}
	return nil
}

func (r *Repository) GetQuestion(ctx context.Context, gameID, questionID uuid.UUID) (*models.Question, error) {
	q, err := r.queries.GetQuestion(ctx, gameID, questionID)
	if err != nil {
		return nil, notFound(err, "question %s", questionID)
	}
	return &q, nil
}

// InsertAnswer records a player's answer and credits its score. When the player
// already answered, the stored answer comes back with inserted false and
// nothing changes. A player from another game gets ErrNotFound.
func (r *Repository) InsertAnswer(ctx context.Context, a models.PlayerAnswer) (answer *models.PlayerAnswer, inserted bool, err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err = r.inTx(ctx, func(q *db.Queries) error {
		row, err := q.InsertAnswer(ctx, a)
		if sqlutil.IsNoRows(err) {
			if _, getErr := q.GetPlayer(ctx, a.GameID, a.PlayerID); getErr != nil {
				return notFound(getErr, "player %s in game %s", a.PlayerID, a.GameID)
			}
			existing, getErr := q.GetAnswer(ctx, a.PlayerID, a.QuestionID)
			if sqlutil.IsNoRows(getErr) {
				return fmt.Errorf("%w: question %s", ErrQuestionClosed, a.QuestionID)
			}
			if getErr != nil {
				return fmt.Errorf("failed to read existing answer: %w", getErr)
			}
			answer = &existing
			return nil
		}
		if sqlutil.HasCode(err, sqlutil.ForeignKeyViolation) {
			return fmt.Errorf("%w: player %s", ErrNotFound, a.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert answer: %w", err)
		}

		if row.ScoreAwarded > 0 {
			n, err := q.AddPlayerScore(ctx, row.GameID, row.PlayerID, row.ScoreAwarded)
			if err != nil {
				return fmt.Errorf("failed to credit score: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: player %s in game %s", ErrNotFound, row.PlayerID, row.GameID)
			}
		}
		answer, inserted = &row, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return answer, inserted, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if sqlutil.IsNoRows(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
