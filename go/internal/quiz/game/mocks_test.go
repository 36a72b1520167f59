package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateGame(ctx context.Context, arg repository.CreateGameParams) (*models.Game, error) {
	args := m.Called(ctx, arg)
	g, _ := args.Get(0).(*models.Game)
	return g, args.Error(1)
}

func (m *MockRepository) GetGameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	args := m.Called(ctx, roomCode)
	g, _ := args.Get(0).(*models.Game)
	return g, args.Error(1)
}

func (m *MockRepository) FetchSnapshot(ctx context.Context, roomCode string) (*models.Snapshot, error) {
	args := m.Called(ctx, roomCode)
	s, _ := args.Get(0).(*models.Snapshot)
	return s, args.Error(1)
}

func (m *MockRepository) ApplyGameUpdate(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	args := m.Called(ctx, gameID, update)
	g, _ := args.Get(0).(*models.Game)
	return g, args.Error(1)
}

func (m *MockRepository) BeginGame(ctx context.Context, gameID uuid.UUID, questions []models.Question, update models.GameUpdate) (*models.Game, error) {
	args := m.Called(ctx, gameID, questions, update)
	g, _ := args.Get(0).(*models.Game)
	return g, args.Error(1)
}

func (m *MockRepository) UpdateGameConfig(ctx context.Context, gameID uuid.UUID, cfg models.QuizConfig) (*models.Game, error) {
	args := m.Called(ctx, gameID, cfg)
	g, _ := args.Get(0).(*models.Game)
	return g, args.Error(1)
}

func (m *MockRepository) InsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(*models.Player)
	return out, args.Error(1)
}

func (m *MockRepository) GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	args := m.Called(ctx, gameID, playerID)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}

func (m *MockRepository) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	args := m.Called(ctx, gameID)
	ps, _ := args.Get(0).([]models.Player)
	return ps, args.Error(1)
}

func (m *MockRepository) DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) error {
	return m.Called(ctx, gameID, playerID).Error(0)
}

func (m *MockRepository) SetPlayerOnline(ctx context.Context, gameID, playerID uuid.UUID, online bool) error {
	return m.Called(ctx, gameID, playerID, online).Error(0)
}

func (m *MockRepository) GetQuestion(ctx context.Context, gameID, questionID uuid.UUID) (*models.Question, error) {
	args := m.Called(ctx, gameID, questionID)
	q, _ := args.Get(0).(*models.Question)
	return q, args.Error(1)
}

func (m *MockRepository) InsertAnswer(ctx context.Context, a models.PlayerAnswer) (*models.PlayerAnswer, bool, error) {
	args := m.Called(ctx, a)
	out, _ := args.Get(0).(*models.PlayerAnswer)
	return out, args.Bool(1), args.Error(2)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateQuestions(ctx context.Context, category string, n int) ([]models.GeneratedQuestion, error) {
	args := m.Called(ctx, category, n)
	qs, _ := args.Get(0).([]models.GeneratedQuestion)
	return qs, args.Error(1)
}

type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) GameStarted(ctx context.Context, g *models.Game) {
	m.Called(ctx, g)
}

func (m *MockLifecycle) GameStopped(g *models.Game) {
	m.Called(g)
}
