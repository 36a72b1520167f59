// Package game holds the quiz application layer: the operations an admin and
// the players perform against a room, on top of the repository and the pure
// progression and scoring rules.
package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/identity"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/roomcode"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/scoring"
	"github.com/rs/zerolog/log"
)

// Repository defines what the app layer needs from the quiz repository.
type Repository interface {
	CreateGame(ctx context.Context, arg repository.CreateGameParams) (*models.Game, error)
	GetGameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error)
	FetchSnapshot(ctx context.Context, roomCode string) (*models.Snapshot, error)
	ApplyGameUpdate(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error)
	BeginGame(ctx context.Context, gameID uuid.UUID, questions []models.Question, update models.GameUpdate) (*models.Game, error)
	UpdateGameConfig(ctx context.Context, gameID uuid.UUID, cfg models.QuizConfig) (*models.Game, error)
	InsertPlayer(ctx context.Context, p models.Player) (*models.Player, error)
	GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error)
	DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) error
	SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) error
	GetQuestion(ctx context.Context, gameID, questionID uuid.UUID) (*models.Question, error)
	InsertAnswer(ctx context.Context, a models.PlayerAnswer) (*models.PlayerAnswer, bool, error)
}

// QuestionGenerator produces the questions for a game as it starts.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, category string, n int) ([]models.GeneratedQuestion, error)
}

// Lifecycle is told when a game begins or stops needing a progression clock.
type Lifecycle interface {
	GameStarted(ctx context.Context, g *models.Game)
	GameStopped(g *models.Game)
}

type Config struct {
	RoomCodeLength   int
	RoomCodeAttempts int
	// AvatarURL is a format string taking a short seed.
	AvatarURL string
	// PublicOrigin and JoinPath build the join link shown as a QR code.
	PublicOrigin string
	JoinPath     string
}

func DefaultConfig() Config {
	return Config{
		RoomCodeLength:   roomcode.DefaultLength,
		RoomCodeAttempts: 5,
		AvatarURL:        "https://picsum.photos/seed/%s/100",
		PublicOrigin:     "http://localhost:5173",
		JoinPath:         "/",
	}
}

// App handles quiz business logic.
type App struct {
	repo       Repository
	generator  QuestionGenerator
	identities identity.Store
	lifecycle  Lifecycle
	validate   *validator.Validate
	cfg        Config
}

// NewApp creates a quiz App. generator may be nil, in which case starting a
// game fails with ErrConfiguration. identities and lifecycle may be nil.
func NewApp(repo Repository, generator QuestionGenerator, identities identity.Store, lifecycle Lifecycle, cfg Config) *App {
	d := DefaultConfig()
	if cfg.RoomCodeLength <= 0 {
		cfg.RoomCodeLength = d.RoomCodeLength
	}
	if cfg.RoomCodeAttempts <= 0 {
		cfg.RoomCodeAttempts = d.RoomCodeAttempts
	}
	if cfg.AvatarURL == "" {
		cfg.AvatarURL = d.AvatarURL
	}
	if cfg.PublicOrigin == "" {
		cfg.PublicOrigin = d.PublicOrigin
	}
	return &App{
		repo:       repo,
		generator:  generator,
		identities: identities,
		lifecycle:  lifecycle,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg:        cfg,
	}
}

func (a *App) check(req any) error {
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// requireAdmin lets adminID act on g. A game without an owner accepts any admin.
func requireAdmin(g *models.Game, adminID uuid.UUID) error {
	if g.AdminID != nil && *g.AdminID != adminID {
		return fmt.Errorf("%w: room %s", ErrNotAdmin, g.RoomCode)
	}
	return nil
}

func (a *App) lookup(ctx context.Context, roomCode string) (*models.Game, error) {
	code, err := roomcode.Parse(roomCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return a.repo.GetGameByRoomCode(ctx, code)
}

// CreateGame opens a new room in CONFIG owned by adminID.
func (a *App) CreateGame(ctx context.Context, adminID uuid.UUID, req CreateGameRequest) (*models.Game, error) {
	if err := a.check(req); err != nil {
		return nil, err
	}
	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var owner *uuid.UUID
	if adminID != uuid.Nil {
		owner = &adminID
	}
	for attempt := 1; ; attempt++ {
		code, err := roomcode.Generate(a.cfg.RoomCodeLength)
		if err != nil {
			return nil, err
		}
		g, err := a.repo.CreateGame(ctx, repository.CreateGameParams{RoomCode: code, Config: cfg, AdminID: owner})
		if errors.Is(err, ErrRoomCodeTaken) && attempt < a.cfg.RoomCodeAttempts {
			log.Debug().Str("room_code", code).Int("attempt", attempt).Msg("room code taken, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create game: %w", err)
		}

		log.Info().
			Str("game_id", g.ID.String()).
			Str("room_code", g.RoomCode).
			Int("questions", cfg.NumberOfQuestions).
			Str("category", cfg.Category).
			Msg("created game")
		return g, nil
	}
}

// GetGame returns the game for a room code, case-insensitively.
func (a *App) GetGame(ctx context.Context, roomCode string) (*models.Game, error) {
	return a.lookup(ctx, roomCode)
}

// ConfigureGame changes the settings of a game that has not started.
func (a *App) ConfigureGame(ctx context.Context, adminID uuid.UUID, roomCode string, req CreateGameRequest) (*models.Game, error) {
	if err := a.check(req); err != nil {
		return nil, err
	}
	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(g, adminID); err != nil {
		return nil, err
	}
	return a.repo.UpdateGameConfig(ctx, g.ID, cfg)
}

// JoinInfo returns the room code and the link players open to join it.
func (a *App) JoinInfo(ctx context.Context, roomCode string) (*JoinInfo, error) {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	return &JoinInfo{
		RoomCode: g.RoomCode,
		URL:      roomcode.JoinURL(a.cfg.PublicOrigin, a.cfg.JoinPath, g.RoomCode),
	}, nil
}

// JoinQRCode renders the join link of a room as a PNG.
func (a *App) JoinQRCode(ctx context.Context, roomCode string) ([]byte, error) {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	return roomcode.QRCodePNG(a.cfg.PublicOrigin, a.cfg.JoinPath, g.RoomCode)
}

// JoinGame adds a player to a room. A device that already joined this room
// gets its existing player back.
func (a *App) JoinGame(ctx context.Context, roomCode string, req JoinRequest) (*models.Player, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := a.check(req); err != nil {
		return nil, err
	}
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	if p := a.resume(ctx, g, req.SessionID); p != nil {
		return p, nil
	}
	if g.Status == models.GameStatusGameEnd {
		return nil, fmt.Errorf("%w: room %s", ErrGameEnded, g.RoomCode)
	}

	id := uuid.New()
	p, err := a.repo.InsertPlayer(ctx, models.Player{
		ID:        id,
		GameID:    g.ID,
		Name:      req.Name,
		AvatarRef: fmt.Sprintf(a.cfg.AvatarURL, id.String()[:8]),
		IsOnline:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}

	if a.identities != nil && req.SessionID != "" {
		err := a.identities.Set(ctx, req.SessionID, g.RoomCode, models.PlayerIdentity{
			PlayerID:  p.ID,
			GameID:    g.ID,
			Name:      p.Name,
			AvatarRef: p.AvatarRef,
		})
		if err != nil {
			log.Warn().Err(err).Str("room_code", g.RoomCode).Msg("failed to remember player identity")
		}
	}

	log.Info().
		Str("room_code", g.RoomCode).
		Str("player_id", p.ID.String()).
		Str("name", p.Name).
		Msg("player joined")
	return p, nil
}

// resume returns the player the session joined g as, if it still exists.
func (a *App) resume(ctx context.Context, g *models.Game, sessionID string) *models.Player {
	if a.identities == nil || sessionID == "" {
		return nil
	}
	id, err := a.identities.Get(ctx, sessionID, g.RoomCode)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Warn().Err(err).Str("room_code", g.RoomCode).Msg("failed to read player identity")
		}
		return nil
	}
	if id.GameID != g.ID {
		return nil
	}
	p, err := a.repo.GetPlayer(ctx, g.ID, id.PlayerID)
	if err != nil {
		return nil
	}
	log.Debug().Str("room_code", g.RoomCode).Str("player_id", p.ID.String()).Msg("player resumed")
	return p
}

// SubmitAnswer records a player's answer to the open question. A second
// submission for the same question returns the first one unchanged.
func (a *App) SubmitAnswer(ctx context.Context, roomCode string, req AnswerRequest) (*models.PlayerAnswer, error) {
	if err := a.check(req); err != nil {
		return nil, err
	}
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GameStatusQuestion {
		return nil, fmt.Errorf("%w: game is %s", ErrQuestionClosed, g.Status)
	}

	q, err := a.repo.GetQuestion(ctx, g.ID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if q.OrderIndex != g.CurrentQuestionIndex {
		return nil, fmt.Errorf("%w: question %d is not current", ErrQuestionClosed, q.OrderIndex)
	}
	if req.Answer != nil && !q.HasOption(*req.Answer) {
		return nil, fmt.Errorf("%w: %q is not an option", ErrValidation, *req.Answer)
	}

	t := clampTime(req.TimeTakenSeconds)
	correct := req.Answer != nil && *req.Answer == q.CorrectAnswer
	answer, inserted, err := a.repo.InsertAnswer(ctx, models.PlayerAnswer{
		GameID:           g.ID,
		PlayerID:         req.PlayerID,
		QuestionID:       q.ID,
		AnswerChosen:     req.Answer,
		TimeTakenSeconds: t,
		IsCorrect:        correct,
		ScoreAwarded:     scoring.Score(correct, t),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.Debug().
			Str("player_id", req.PlayerID.String()).
			Str("question_id", q.ID.String()).
			Msg("ignored duplicate answer")
		return answer, nil
	}

	log.Debug().
		Str("room_code", g.RoomCode).
		Str("player_id", req.PlayerID.String()).
		Bool("correct", correct).
		Int("score", answer.ScoreAwarded).
		Msg("answer recorded")
	return answer, nil
}

func clampTime(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	return math.Min(t, models.QuestionSeconds)
}

// StartGame generates the game's questions and opens the first countdown. The
// room shows WAITING while questions are produced. Any failure puts the status
// back to what it was.
func (a *App) StartGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(g, adminID); err != nil {
		return nil, err
	}
	if a.generator == nil {
		return nil, ErrConfiguration
	}

	prep, err := progression.Prepare(*g)
	if err != nil {
		return nil, err
	}
	waiting, err := a.repo.ApplyGameUpdate(ctx, g.ID, prep)
	if err != nil {
		return nil, fmt.Errorf("failed to mark game waiting: %w", err)
	}

	started, err := a.begin(ctx, waiting)
	if err != nil {
		a.rollback(ctx, waiting, g.Status)
		return nil, err
	}

	log.Info().
		Str("game_id", started.ID.String()).
		Str("room_code", started.RoomCode).
		Int("questions", started.ConfigNumberOfQuestions).
		Msg("game started")
	if a.lifecycle != nil {
		a.lifecycle.GameStarted(ctx, started)
	}
	return started, nil
}

func (a *App) begin(ctx context.Context, g *models.Game) (*models.Game, error) {
	n := g.ConfigNumberOfQuestions
	generated, err := a.generator.GenerateQuestions(ctx, g.ConfigCategory, n)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(generated) != n {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ErrGeneration, n, len(generated))
	}

	questions := make([]models.Question, n)
	for i, gq := range generated {
		if err := gq.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrGeneration, i, err)
		}
		questions[i] = models.Question{
			ID:            uuid.New(),
			GameID:        g.ID,
			Text:          gq.Text,
			Options:       gq.Options,
			CorrectAnswer: gq.CorrectAnswer,
			OrderIndex:    i,
		}
	}

	upd, err := progression.Start(*g, n)
	if err != nil {
		return nil, err
	}
	started, err := a.repo.BeginGame(ctx, g.ID, questions, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to begin game: %w", err)
	}
	return started, nil
}

// rollback undoes the WAITING write. It runs even if ctx was cancelled.
func (a *App) rollback(ctx context.Context, waiting *models.Game, status models.GameStatus) {
	ctx = context.WithoutCancel(ctx)
	if _, err := a.repo.ApplyGameUpdate(ctx, waiting.ID, progression.Restore(*waiting, status)); err != nil {
		log.Error().Err(err).
			Str("game_id", waiting.ID.String()).
			Str("status", string(status)).
			Msg("failed to roll back game start")
		return
	}
	log.Info().Str("game_id", waiting.ID.String()).Str("status", string(status)).Msg("rolled back game start")
}

func (a *App) transition(ctx context.Context, adminID uuid.UUID, roomCode string, next func(models.Game) (models.GameUpdate, error)) (*models.Game, error) {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(g, adminID); err != nil {
		return nil, err
	}
	upd, err := next(*g)
	if err != nil {
		return nil, err
	}
	written, err := a.repo.ApplyGameUpdate(ctx, g.ID, upd)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("room_code", g.RoomCode).
		Str("from", string(g.Status)).
		Str("to", string(written.Status)).
		Msg("game transitioned")
	return written, nil
}

func (a *App) PauseGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	return a.transition(ctx, adminID, roomCode, progression.Pause)
}

func (a *App) ResumeGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	g, err := a.transition(ctx, adminID, roomCode, progression.Resume)
	if err == nil && a.lifecycle != nil && progression.Timed(g.Status) {
		a.lifecycle.GameStarted(ctx, g)
	}
	return g, err
}

// EndGame finishes the game from any status.
func (a *App) EndGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	g, err := a.transition(ctx, adminID, roomCode, func(g models.Game) (models.GameUpdate, error) {
		return progression.End(g), nil
	})
	if err == nil && a.lifecycle != nil {
		a.lifecycle.GameStopped(g)
	}
	return g, err
}

// ResetGame returns the room to CONFIG from any status. Players stay, with zero scores.
func (a *App) ResetGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	g, err := a.transition(ctx, adminID, roomCode, func(g models.Game) (models.GameUpdate, error) {
		return progression.Reset(g), nil
	})
	if err == nil && a.lifecycle != nil {
		a.lifecycle.GameStopped(g)
	}
	return g, err
}

// RemovePlayer takes a player out of the room.
func (a *App) RemovePlayer(ctx context.Context, adminID uuid.UUID, roomCode string, playerID uuid.UUID) error {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return err
	}
	if err := requireAdmin(g, adminID); err != nil {
		return err
	}
	if err := a.repo.DeletePlayer(ctx, g.ID, playerID); err != nil {
		return err
	}
	log.Info().Str("room_code", g.RoomCode).Str("player_id", playerID.String()).Msg("player removed")
	return nil
}

// SetPlayerOnline records a player's presence.
func (a *App) SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) error {
	return a.repo.SetPlayerOnline(ctx, gameID, playerID, online)
}

// Snapshot returns everything a screen needs to render the room.
func (a *App) Snapshot(ctx context.Context, roomCode string) (*models.Snapshot, error) {
	code, err := roomcode.Parse(roomCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return a.repo.FetchSnapshot(ctx, code)
}

// Ranking orders the room's players for the scoreboard.
func (a *App) Ranking(ctx context.Context, roomCode string) ([]scoring.RankedPlayer, error) {
	g, err := a.lookup(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	players, err := a.repo.ListPlayers(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return scoring.Rank(players), nil
}
