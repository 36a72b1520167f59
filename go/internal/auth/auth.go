// Package auth signs in the quiz admin and guards admin-only routes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "quizcoletivo"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotConfigured      = errors.New("admin credentials are not configured")
)

// adminNamespace seeds admin ids so the same username always maps to the same id.
var adminNamespace = uuid.MustParse("6f1d3a52-9c4b-4b7e-8e0a-2f5c7d9e1b34")

// AdminID returns the stable id of the admin called username.
func AdminID(username string) uuid.UUID {
	return uuid.NewSHA1(adminNamespace, []byte(username))
}

type Config struct {
	Username string
	// Password is hashed on start. PasswordHash, a bcrypt hash, takes precedence.
	Password     string
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
}

// Authenticator checks admin credentials and issues signed tokens.
type Authenticator struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	clock    clockwork.Clock
}

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	return NewAuthenticatorWithClock(cfg, clockwork.NewRealClock())
}

func NewAuthenticatorWithClock(cfg Config, clock clockwork.Clock) (*Authenticator, error) {
	if cfg.Username == "" || (cfg.Password == "" && cfg.PasswordHash == "") {
		return nil, ErrNotConfigured
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: missing token secret", ErrNotConfigured)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}

	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &Authenticator{
		username: cfg.Username,
		hash:     hash,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		clock:    clock,
	}, nil
}

// Session is a signed-in admin.
type Session struct {
	Token     string    `json:"token"`
	AdminID   uuid.UUID `json:"admin_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login checks username and password and returns a token for the admin.
func (a *Authenticator) Login(username, password string) (*Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil || !userOK {
		return nil, ErrInvalidCredentials
	}

	id := AdminID(a.username)
	now := a.clock.Now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Token: signed, AdminID: id, ExpiresAt: expires}, nil
}

// Verify returns the admin id a token was issued to.
func (a *Authenticator) Verify(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

type contextKey struct{}

// WithAdmin returns ctx carrying adminID.
func WithAdmin(ctx context.Context, adminID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, adminID)
}

// AdminFromContext returns the admin a request was authenticated as.
func AdminFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		id, err := a.Verify(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected admin token")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), id)))
	})
}
