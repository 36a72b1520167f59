package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/auth"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubApp answers the calls a test sets and panics on the rest.
type stubApp struct {
	GameApp
	create  func(adminID uuid.UUID, req CreateGameRequest) (*models.Game, error)
	get     func(roomCode string) (*models.Game, error)
	join    func(roomCode string, req JoinRequest) (*models.Player, error)
	answer  func(roomCode string, req AnswerRequest) (*models.PlayerAnswer, error)
	start   func(adminID uuid.UUID, roomCode string) (*models.Game, error)
	remove  func(adminID uuid.UUID, roomCode string, playerID uuid.UUID) error
	qrImage []byte
}

func (s *stubApp) CreateGame(_ context.Context, adminID uuid.UUID, req CreateGameRequest) (*models.Game, error) {
	return s.create(adminID, req)
}

func (s *stubApp) GetGame(_ context.Context, roomCode string) (*models.Game, error) {
	return s.get(roomCode)
}

func (s *stubApp) JoinGame(_ context.Context, roomCode string, req JoinRequest) (*models.Player, error) {
	return s.join(roomCode, req)
}

func (s *stubApp) SubmitAnswer(_ context.Context, roomCode string, req AnswerRequest) (*models.PlayerAnswer, error) {
	return s.answer(roomCode, req)
}

func (s *stubApp) StartGame(_ context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error) {
	return s.start(adminID, roomCode)
}

func (s *stubApp) RemovePlayer(_ context.Context, adminID uuid.UUID, roomCode string, playerID uuid.UUID) error {
	return s.remove(adminID, roomCode, playerID)
}

func (s *stubApp) JoinQRCode(context.Context, string) ([]byte, error) {
	return s.qrImage, nil
}

func newTestServer(t *testing.T, app GameApp) (*httptest.Server, string) {
	t.Helper()
	authn, err := auth.NewAuthenticator(auth.Config{
		Username: "host",
		Password: "s3cret",
		Secret:   "test-secret",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewService(app, authn).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	session, err := authn.Login("host", "s3cret")
	require.NoError(t, err)
	return srv, session.Token
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServiceLogin(t *testing.T) {
	srv, _ := newTestServer(t, &stubApp{})

	resp := do(t, http.MethodPost, srv.URL+"/api/admin/login", "", `{"username":"host","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session auth.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, auth.AdminID("host"), session.AdminID)

	resp = do(t, http.MethodPost, srv.URL+"/api/admin/login", "", `{"username":"host","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServiceCreateGame(t *testing.T) {
	var gotAdmin uuid.UUID
	app := &stubApp{create: func(adminID uuid.UUID, req CreateGameRequest) (*models.Game, error) {
		gotAdmin = adminID
		assert.Equal(t, 8, req.NumberOfQuestions)
		return testGame(models.GameStatusConfig), nil
	}}
	srv, token := newTestServer(t, app)

	t.Run("requires token", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/games", "", `{"number_of_questions":8}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("created", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/games", token, `{"number_of_questions":8}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var g models.Game
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
		assert.Equal(t, "AB12CD", g.RoomCode)
		assert.Equal(t, auth.AdminID("host"), gotAdmin)
	})

	t.Run("unknown fields", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/games", token, `{"rounds":8}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServiceJoinPassesSession(t *testing.T) {
	app := &stubApp{join: func(roomCode string, req JoinRequest) (*models.Player, error) {
		assert.Equal(t, "ab12cd", roomCode)
		assert.Equal(t, "device-1", req.SessionID)
		return &models.Player{ID: uuid.New(), Name: req.Name}, nil
	}}
	srv, _ := newTestServer(t, app)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/games/ab12cd/players", strings.NewReader(`{"name":"Ana"}`))
	require.NoError(t, err)
	req.Header.Set(SessionHeader, "device-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var p models.Player
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Ana", p.Name)
}

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: room ZZZZ", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: name too long", ErrValidation), http.StatusBadRequest},
		{ErrNotAdmin, http.StatusForbidden},
		{fmt.Errorf("%w: question 2", ErrQuestionClosed), http.StatusConflict},
		{fmt.Errorf("%w: game moved", ErrStaleState), http.StatusConflict},
		{fmt.Errorf("%w: QUESTION -> COUNTDOWN", progression.ErrInvalidTransition), http.StatusConflict},
		{ErrGameEnded, http.StatusConflict},
		{fmt.Errorf("%w: upstream 500", ErrGeneration), http.StatusBadGateway},
		{fmt.Errorf("%w: no api key", ErrConfiguration), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := &stubApp{get: func(string) (*models.Game, error) { return nil, tt.err }}
			srv, _ := newTestServer(t, app)

			resp := do(t, http.MethodGet, srv.URL+"/api/games/AB12CD", "", "")
			assert.Equal(t, tt.want, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestServiceControl(t *testing.T) {
	started := 0
	app := &stubApp{start: func(adminID uuid.UUID, roomCode string) (*models.Game, error) {
		started++
		assert.Equal(t, "AB12CD", roomCode)
		return testGame(models.GameStatusCountdown), nil
	}}
	srv, token := newTestServer(t, app)

	resp := do(t, http.MethodPost, srv.URL+"/api/games/AB12CD/start", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, started)

	resp = do(t, http.MethodPost, srv.URL+"/api/games/AB12CD/explode", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/games/AB12CD/start", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, started)
}

func TestServiceRemovePlayer(t *testing.T) {
	playerID := uuid.New()
	app := &stubApp{remove: func(_ uuid.UUID, roomCode string, id uuid.UUID) error {
		assert.Equal(t, playerID, id)
		return nil
	}}
	srv, token := newTestServer(t, app)

	resp := do(t, http.MethodDelete, srv.URL+"/api/games/AB12CD/players/"+playerID.String(), token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/games/AB12CD/players/not-a-uuid", token, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceQRCode(t *testing.T) {
	srv, _ := newTestServer(t, &stubApp{qrImage: []byte("\x89PNG")})

	resp := do(t, http.MethodGet, srv.URL+"/api/games/AB12CD/qr.png", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}
