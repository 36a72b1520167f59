package game

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/identity"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var admin = uuid.MustParse("8a1c2f4e-0000-5000-8000-000000000001")

func testGame(status models.GameStatus) *models.Game {
	owner := admin
	return &models.Game{
		ID:                      uuid.New(),
		RoomCode:                "AB12CD",
		Status:                  status,
		ConfigNumberOfQuestions: 5,
		ConfigCategory:          "Geografia",
		ConfigTieBreaker:        models.TieBreakerTime,
		AdminID:                 &owner,
		Version:                 1,
	}
}

func generated(n int) []models.GeneratedQuestion {
	out := make([]models.GeneratedQuestion, n)
	for i := range out {
		out[i] = models.GeneratedQuestion{
			Text:          "Qual é a capital da França?",
			Options:       []string{"Paris", "Roma", "Lima", "Oslo"},
			CorrectAnswer: "Paris",
		}
	}
	return out
}

func newTestApp(repo *MockRepository, gen QuestionGenerator, ids identity.Store, lc Lifecycle) *App {
	return NewApp(repo, gen, ids, lc, DefaultConfig())
}

func TestCreateGameRetriesTakenCodes(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	created := testGame(models.GameStatusConfig)

	repo.On("CreateGame", ctx, mock.Anything).Return(nil, repository.ErrRoomCodeTaken).Twice()
	repo.On("CreateGame", ctx, mock.MatchedBy(func(p repository.CreateGameParams) bool {
		return len(p.RoomCode) == 6 && p.Config.NumberOfQuestions == 10 && *p.AdminID == admin
	})).Return(created, nil).Once()

	g, err := newTestApp(repo, nil, nil, nil).CreateGame(ctx, admin, CreateGameRequest{})
	require.NoError(t, err)
	assert.Equal(t, created, g)
	repo.AssertNumberOfCalls(t, "CreateGame", 3)
}

func TestCreateGameGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("CreateGame", ctx, mock.Anything).Return(nil, repository.ErrRoomCodeTaken)

	_, err := newTestApp(repo, nil, nil, nil).CreateGame(ctx, admin, CreateGameRequest{})
	assert.ErrorIs(t, err, ErrRoomCodeTaken)
	repo.AssertNumberOfCalls(t, "CreateGame", 5)
}

func TestCreateGameRejectsBadConfig(t *testing.T) {
	app := newTestApp(new(MockRepository), nil, nil, nil)
	for name, req := range map[string]CreateGameRequest{
		"too few":     {NumberOfQuestions: 4},
		"too many":    {NumberOfQuestions: 21},
		"category":    {Category: "Culinária"},
		"tie breaker": {TieBreaker: "coin"},
	} {
		_, err := app.CreateGame(context.Background(), admin, req)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestJoinGame(t *testing.T) {
	ctx := context.Background()
	g := testGame(models.GameStatusConfig)

	t.Run("trims name and remembers identity", func(t *testing.T) {
		repo := new(MockRepository)
		ids := identity.NewMemoryStore(0)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("InsertPlayer", ctx, mock.MatchedBy(func(p models.Player) bool {
			return p.Name == "alice" && p.GameID == g.ID &&
				p.AvatarRef == "https://picsum.photos/seed/"+p.ID.String()[:8]+"/100"
		})).Return(&models.Player{ID: uuid.New(), GameID: g.ID, Name: "alice", IsOnline: true}, nil)

		p, err := newTestApp(repo, nil, ids, nil).JoinGame(ctx, " ab12cd ", JoinRequest{Name: "  alice ", SessionID: "dev-1"})
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Name)
		repo.AssertExpectations(t)

		remembered, err := ids.Get(ctx, "dev-1", "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, p.ID, remembered.PlayerID)
	})

	t.Run("empty name", func(t *testing.T) {
		repo := new(MockRepository)
		_, err := newTestApp(repo, nil, nil, nil).JoinGame(ctx, "AB12CD", JoinRequest{Name: "   "})
		assert.ErrorIs(t, err, ErrValidation)
		repo.AssertNotCalled(t, "InsertPlayer", mock.Anything, mock.Anything)
	})

	t.Run("resumes identity", func(t *testing.T) {
		repo := new(MockRepository)
		ids := identity.NewMemoryStore(0)
		existing := &models.Player{ID: uuid.New(), GameID: g.ID, Name: "alice", Score: 240}
		require.NoError(t, ids.Set(ctx, "dev-1", "AB12CD", models.PlayerIdentity{PlayerID: existing.ID, GameID: g.ID}))
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetPlayer", ctx, g.ID, existing.ID).Return(existing, nil)

		p, err := newTestApp(repo, nil, ids, nil).JoinGame(ctx, "AB12CD", JoinRequest{Name: "alice", SessionID: "dev-1"})
		require.NoError(t, err)
		assert.Equal(t, existing, p)
		repo.AssertNotCalled(t, "InsertPlayer", mock.Anything, mock.Anything)
	})

	t.Run("ended game", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusGameEnd), nil)
		_, err := newTestApp(repo, nil, nil, nil).JoinGame(ctx, "AB12CD", JoinRequest{Name: "bob"})
		assert.ErrorIs(t, err, ErrGameEnded)
	})

	t.Run("unknown room", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "ZZZZZZ").Return(nil, repository.ErrNotFound)
		_, err := newTestApp(repo, nil, nil, nil).JoinGame(ctx, "zzzzzz", JoinRequest{Name: "bob"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmitAnswer(t *testing.T) {
	ctx := context.Background()
	g := testGame(models.GameStatusQuestion)
	g.CurrentQuestionIndex = 1
	q := &models.Question{
		ID: uuid.New(), GameID: g.ID, Text: "?", OrderIndex: 1,
		Options: []string{"Paris", "Roma", "Lima", "Oslo"}, CorrectAnswer: "Paris",
	}
	player := uuid.New()
	paris, roma := "Paris", "Roma"

	t.Run("scores correct answer", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetQuestion", ctx, g.ID, q.ID).Return(q, nil)
		repo.On("InsertAnswer", ctx, mock.MatchedBy(func(a models.PlayerAnswer) bool {
			return a.IsCorrect && a.ScoreAwarded == 117 && a.TimeTakenSeconds == 3.4
		})).Return(&models.PlayerAnswer{ID: uuid.New(), ScoreAwarded: 117, IsCorrect: true}, true, nil)

		a, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &paris, TimeTakenSeconds: 3.4,
		})
		require.NoError(t, err)
		assert.Equal(t, 117, a.ScoreAwarded)
	})

	t.Run("timeout and wrong answers score zero", func(t *testing.T) {
		for _, answer := range []*string{nil, &roma} {
			repo := new(MockRepository)
			repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
			repo.On("GetQuestion", ctx, g.ID, q.ID).Return(q, nil)
			repo.On("InsertAnswer", ctx, mock.MatchedBy(func(a models.PlayerAnswer) bool {
				return !a.IsCorrect && a.ScoreAwarded == 0 && a.TimeTakenSeconds == models.QuestionSeconds
			})).Return(&models.PlayerAnswer{}, true, nil)

			_, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
				PlayerID: player, QuestionID: q.ID, Answer: answer, TimeTakenSeconds: 31,
			})
			require.NoError(t, err)
			repo.AssertExpectations(t)
		}
	})

	t.Run("duplicate returns first answer", func(t *testing.T) {
		first := &models.PlayerAnswer{ID: uuid.New(), AnswerChosen: &paris, ScoreAwarded: 120}
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetQuestion", ctx, g.ID, q.ID).Return(q, nil)
		repo.On("InsertAnswer", ctx, mock.Anything).Return(first, false, nil)

		a, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &roma,
		})
		require.NoError(t, err)
		assert.Equal(t, first, a)
	})

	t.Run("player from another room", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetQuestion", ctx, g.ID, q.ID).Return(q, nil)
		repo.On("InsertAnswer", ctx, mock.MatchedBy(func(a models.PlayerAnswer) bool {
			return a.GameID == g.ID && a.PlayerID == player
		})).Return(nil, false, fmt.Errorf("%w: player %s", repository.ErrNotFound, player))

		_, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &paris,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("answer not an option", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetQuestion", ctx, g.ID, q.ID).Return(q, nil)
		other := "Berlim"
		_, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &other,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("not current question", func(t *testing.T) {
		old := *q
		old.OrderIndex = 0
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("GetQuestion", ctx, g.ID, q.ID).Return(&old, nil)
		_, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &paris,
		})
		assert.ErrorIs(t, err, ErrQuestionClosed)
	})

	t.Run("not in question phase", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusRoundEnd), nil)
		_, err := newTestApp(repo, nil, nil, nil).SubmitAnswer(ctx, "AB12CD", AnswerRequest{
			PlayerID: player, QuestionID: q.ID, Answer: &paris,
		})
		assert.ErrorIs(t, err, ErrQuestionClosed)
	})
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("generates questions and opens countdown", func(t *testing.T) {
		g := testGame(models.GameStatusConfig)
		waiting := *g
		waiting.Status = models.GameStatusWaiting
		started := waiting
		started.Status = models.GameStatusCountdown
		started.Countdown = models.CountdownSeconds

		repo, gen, lc := new(MockRepository), new(MockGenerator), new(MockLifecycle)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("ApplyGameUpdate", ctx, g.ID, mock.MatchedBy(func(u models.GameUpdate) bool {
			return u.Status == models.GameStatusWaiting && u.From.Status == models.GameStatusConfig
		})).Return(&waiting, nil).Once()
		gen.On("GenerateQuestions", ctx, "Geografia", 5).Return(generated(5), nil)
		repo.On("BeginGame", ctx, g.ID, mock.MatchedBy(func(qs []models.Question) bool {
			for i, q := range qs {
				if q.OrderIndex != i || q.GameID != g.ID {
					return false
				}
			}
			return len(qs) == 5
		}), mock.MatchedBy(func(u models.GameUpdate) bool {
			return u.Status == models.GameStatusCountdown && u.From.Status == models.GameStatusWaiting && u.ResetScores
		})).Return(&started, nil)
		lc.On("GameStarted", ctx, &started).Once()

		out, err := newTestApp(repo, gen, nil, lc).StartGame(ctx, admin, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCountdown, out.Status)
		repo.AssertExpectations(t)
		lc.AssertExpectations(t)
	})

	t.Run("missing generator", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusConfig), nil)
		_, err := newTestApp(repo, nil, nil, nil).StartGame(ctx, admin, "AB12CD")
		assert.ErrorIs(t, err, ErrConfiguration)
		repo.AssertNotCalled(t, "ApplyGameUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	rollbackCases := map[string][]models.GeneratedQuestion{
		"short set": generated(4),
		"bad question": func() []models.GeneratedQuestion {
			qs := generated(5)
			qs[2].CorrectAnswer = "Berlim"
			return qs
		}(),
	}
	for name, qs := range rollbackCases {
		t.Run("rolls back on "+name, func(t *testing.T) {
			g := testGame(models.GameStatusConfig)
			waiting := *g
			waiting.Status = models.GameStatusWaiting

			repo, gen := new(MockRepository), new(MockGenerator)
			repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
			repo.On("ApplyGameUpdate", ctx, g.ID, mock.MatchedBy(func(u models.GameUpdate) bool {
				return u.Status == models.GameStatusWaiting
			})).Return(&waiting, nil).Once()
			gen.On("GenerateQuestions", ctx, "Geografia", 5).Return(qs, nil)
			repo.On("ApplyGameUpdate", mock.Anything, g.ID, progression.Restore(waiting, models.GameStatusConfig)).
				Return(g, nil).Once()

			_, err := newTestApp(repo, gen, nil, nil).StartGame(ctx, admin, "AB12CD")
			assert.ErrorIs(t, err, ErrGeneration)
			repo.AssertExpectations(t)
			repo.AssertNotCalled(t, "BeginGame", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("rolls back on generator error even if cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		g := testGame(models.GameStatusConfig)
		waiting := *g
		waiting.Status = models.GameStatusWaiting

		repo, gen := new(MockRepository), new(MockGenerator)
		repo.On("GetGameByRoomCode", cctx, "AB12CD").Return(g, nil)
		repo.On("ApplyGameUpdate", cctx, g.ID, mock.Anything).Return(&waiting, nil).Once()
		gen.On("GenerateQuestions", cctx, "Geografia", 5).Run(func(mock.Arguments) { cancel() }).
			Return(nil, errors.New("quota exceeded"))
		repo.On("ApplyGameUpdate", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), g.ID,
			progression.Restore(waiting, models.GameStatusConfig)).Return(g, nil).Once()

		_, err := newTestApp(repo, gen, nil, nil).StartGame(cctx, admin, "AB12CD")
		assert.ErrorIs(t, err, ErrGeneration)
		repo.AssertExpectations(t)
	})

	t.Run("already running", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusQuestion), nil)
		_, err := newTestApp(repo, new(MockGenerator), nil, nil).StartGame(ctx, admin, "AB12CD")
		assert.ErrorIs(t, err, progression.ErrInvalidTransition)
	})

	t.Run("other admin", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusConfig), nil)
		_, err := newTestApp(repo, new(MockGenerator), nil, nil).StartGame(ctx, uuid.New(), "AB12CD")
		assert.ErrorIs(t, err, ErrNotAdmin)
	})
}

func TestAdminTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("pause then resume restores status", func(t *testing.T) {
		g := testGame(models.GameStatusQuestion)
		g.Countdown = 12
		prev := models.GameStatusQuestion
		paused := *g
		paused.Status = models.GameStatusPaused
		paused.PreviousStatus = &prev

		repo, lc := new(MockRepository), new(MockLifecycle)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil).Once()
		repo.On("ApplyGameUpdate", ctx, g.ID, mock.MatchedBy(func(u models.GameUpdate) bool {
			return u.Status == models.GameStatusPaused && *u.PreviousStatus == models.GameStatusQuestion && u.Countdown == 12
		})).Return(&paused, nil).Once()

		app := newTestApp(repo, nil, nil, lc)
		out, err := app.PauseGame(ctx, admin, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusPaused, out.Status)

		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(&paused, nil).Once()
		repo.On("ApplyGameUpdate", ctx, g.ID, mock.MatchedBy(func(u models.GameUpdate) bool {
			return u.Status == models.GameStatusQuestion && u.PreviousStatus == nil && u.Countdown == 12
		})).Return(g, nil).Once()
		lc.On("GameStarted", ctx, g).Once()

		out, err = app.ResumeGame(ctx, admin, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusQuestion, out.Status)
		lc.AssertExpectations(t)
	})

	t.Run("end and reset stop the session", func(t *testing.T) {
		for _, op := range []func(*App) (*models.Game, error){
			func(a *App) (*models.Game, error) { return a.EndGame(ctx, admin, "AB12CD") },
			func(a *App) (*models.Game, error) { return a.ResetGame(ctx, admin, "AB12CD") },
		} {
			g := testGame(models.GameStatusRoundEnd)
			repo, lc := new(MockRepository), new(MockLifecycle)
			repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
			repo.On("ApplyGameUpdate", ctx, g.ID, mock.Anything).Return(g, nil)
			lc.On("GameStopped", g).Once()

			_, err := op(newTestApp(repo, nil, nil, lc))
			require.NoError(t, err)
			lc.AssertExpectations(t)
		}
	})

	t.Run("stale write surfaces", func(t *testing.T) {
		g := testGame(models.GameStatusCountdown)
		repo := new(MockRepository)
		repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
		repo.On("ApplyGameUpdate", ctx, g.ID, mock.Anything).Return(nil, repository.ErrStaleState)
		_, err := newTestApp(repo, nil, nil, nil).PauseGame(ctx, admin, "AB12CD")
		assert.ErrorIs(t, err, ErrStaleState)
	})
}

func TestRanking(t *testing.T) {
	ctx := context.Background()
	g := testGame(models.GameStatusGameEnd)
	a := models.Player{ID: uuid.New(), Name: "a", Score: 120}
	b := models.Player{ID: uuid.New(), Name: "b", Score: 340}
	repo := new(MockRepository)
	repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(g, nil)
	repo.On("ListPlayers", ctx, g.ID).Return([]models.Player{a, b}, nil)

	ranked, err := newTestApp(repo, nil, nil, nil).Ranking(ctx, "AB12CD")
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].Player.Name)
	assert.Equal(t, 2, ranked[1].Position)
}

func TestJoinInfo(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("GetGameByRoomCode", ctx, "AB12CD").Return(testGame(models.GameStatusConfig), nil)
	cfg := DefaultConfig()
	cfg.PublicOrigin = "https://quiz.example.com/"
	cfg.JoinPath = "/play"

	info, err := NewApp(repo, nil, nil, nil, cfg).JoinInfo(ctx, "ab12cd")
	require.NoError(t, err)
	assert.Equal(t, "https://quiz.example.com/play#/?roomCode=AB12CD", info.URL)
}
