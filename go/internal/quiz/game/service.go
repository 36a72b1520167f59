package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/auth"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/scoring"
	"github.com/rs/zerolog/log"
)

// SessionHeader carries the device id used to resume a player.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 1 << 16

// GameApp defines what the service layer needs from the quiz application.
type GameApp interface {
	CreateGame(ctx context.Context, adminID uuid.UUID, req CreateGameRequest) (*models.Game, error)
	GetGame(ctx context.Context, roomCode string) (*models.Game, error)
	ConfigureGame(ctx context.Context, adminID uuid.UUID, roomCode string, req CreateGameRequest) (*models.Game, error)
	JoinInfo(ctx context.Context, roomCode string) (*JoinInfo, error)
	JoinQRCode(ctx context.Context, roomCode string) ([]byte, error)
	JoinGame(ctx context.Context, roomCode string, req JoinRequest) (*models.Player, error)
	SubmitAnswer(ctx context.Context, roomCode string, req AnswerRequest) (*models.PlayerAnswer, error)
	StartGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error)
	PauseGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error)
	ResumeGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error)
	EndGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error)
	ResetGame(ctx context.Context, adminID uuid.UUID, roomCode string) (*models.Game, error)
	RemovePlayer(ctx context.Context, adminID uuid.UUID, roomCode string, playerID uuid.UUID) error
	Snapshot(ctx context.Context, roomCode string) (*models.Snapshot, error)
	Ranking(ctx context.Context, roomCode string) ([]scoring.RankedPlayer, error)
}

// Admins signs the admin in and guards admin routes.
type Admins interface {
	Login(username, password string) (*auth.Session, error)
	Require(next http.Handler) http.Handler
}

// Service exposes the quiz over JSON HTTP.
type Service struct {
	app    GameApp
	admins Admins
}

func NewService(app GameApp, admins Admins) *Service {
	return &Service{app: app, admins: admins}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	admin := func(h func(http.ResponseWriter, *http.Request, uuid.UUID)) http.Handler {
		return s.admins.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.AdminFromContext(r.Context())
			h(w, r, id)
		}))
	}

	mux.HandleFunc("POST /api/admin/login", s.login)
	mux.HandleFunc("GET /api/categories", s.categories)
	mux.Handle("POST /api/games", admin(s.createGame))
	mux.HandleFunc("GET /api/games/{code}", s.getGame)
	mux.Handle("PUT /api/games/{code}/config", admin(s.configureGame))
	mux.HandleFunc("GET /api/games/{code}/snapshot", s.snapshot)
	mux.HandleFunc("GET /api/games/{code}/ranking", s.ranking)
	mux.HandleFunc("GET /api/games/{code}/join-url", s.joinURL)
	mux.HandleFunc("GET /api/games/{code}/qr.png", s.qrCode)
	mux.HandleFunc("POST /api/games/{code}/players", s.joinGame)
	mux.Handle("DELETE /api/games/{code}/players/{id}", admin(s.removePlayer))
	mux.HandleFunc("POST /api/games/{code}/answers", s.submitAnswer)
	mux.Handle("POST /api/games/{code}/{action}", admin(s.control))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := s.admins.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Service) categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": models.Categories,
		"defaults":   models.DefaultQuizConfig(),
	})
}

func (s *Service) createGame(w http.ResponseWriter, r *http.Request, adminID uuid.UUID) {
	var req CreateGameRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := s.app.CreateGame(r.Context(), adminID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Service) getGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.app.GetGame(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Service) configureGame(w http.ResponseWriter, r *http.Request, adminID uuid.UUID) {
	var req CreateGameRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := s.app.ConfigureGame(r.Context(), adminID, r.PathValue("code"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Service) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Snapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) ranking(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.app.Ranking(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Service) joinURL(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.JoinInfo(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Service) qrCode(w http.ResponseWriter, r *http.Request) {
	png, err := s.app.JoinQRCode(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(png); err != nil {
		log.Debug().Err(err).Msg("failed to write qr code")
	}
}

func (s *Service) joinGame(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}
	req.SessionID = r.Header.Get(SessionHeader)
	p, err := s.app.JoinGame(r.Context(), r.PathValue("code"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Service) removePlayer(w http.ResponseWriter, r *http.Request, adminID uuid.UUID) {
	playerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.app.RemovePlayer(r.Context(), adminID, r.PathValue("code"), playerID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.app.SubmitAnswer(r.Context(), r.PathValue("code"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Service) control(w http.ResponseWriter, r *http.Request, adminID uuid.UUID) {
	var op func(context.Context, uuid.UUID, string) (*models.Game, error)
	switch r.PathValue("action") {
	case "start":
		op = s.app.StartGame
	case "pause":
		op = s.app.PauseGame
	case "resume":
		op = s.app.ResumeGame
	case "end":
		op = s.app.EndGame
	case "reset":
		op = s.app.ResetGame
	default:
		http.NotFound(w, r)
		return
	}
	g, err := op(r.Context(), adminID, r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStaleState), errors.Is(err, progression.ErrInvalidTransition),
		errors.Is(err, ErrQuestionClosed), errors.Is(err, ErrGameEnded):
		return http.StatusConflict
	case errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrRoomCodeTaken):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	writeError(w, status, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
