// Package auth handles lettersprout accounts: password hashing, sign-up,
// sign-in and bearer token verification.
//
// Passwords are pre-hashed with SHA-256 before bcrypt so that inputs longer
// than bcrypt's 72-byte limit still count in full. Tokens are HS256 JWTs
// whose subject is the user's nickname.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrWong99/lettersprout/internal/store"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidCredentials is returned by [Service.Login] for an unknown
	// nickname or a wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken is returned by [Service.Authenticate] for a token that
	// is malformed, expired, badly signed, or names a user that no longer
	// exists.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNicknameTaken is returned by [Service.Register] when another user
	// already has the nickname.
	ErrNicknameTaken = errors.New("auth: nickname already taken")

	// ErrInvalidInput is returned by [Service.Register] for an empty or
	// over-long nickname or an empty password.
	ErrInvalidInput = errors.New("auth: invalid input")
)

// Option configures a [Service].
type Option func(*Service)

// WithTokenTTL sets the lifetime of issued tokens. Non-positive values are
// ignored.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now for token issue and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost sets the bcrypt work factor. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// Service issues and verifies credentials against a [store.Store].
// It is safe for concurrent use.
type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	cost   int

	// dummyHash is compared against when the nickname is unknown so both
	// failure paths take the same time.
	dummyHash string
}

// New creates a Service signing tokens with secret.
func New(st store.Store, secret []byte, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("auth: store must not be nil")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	s := &Service{
		store:  st,
		secret: secret,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}
	h, err := s.HashPassword("lettersprout")
	if err != nil {
		return nil, err
	}
	s.dummyHash = h
	return s, nil
}

func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// HashPassword returns the storable hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}

// Register creates an account. The nickname is trimmed before use.
func (s *Service) Register(ctx context.Context, nickname, password string) (store.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > store.MaxNicknameLen {
		return store.User{}, fmt.Errorf("%w: nickname must be 1-%d characters", ErrInvalidInput, store.MaxNicknameLen)
	}
	if password == "" {
		return store.User{}, fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	u, err := s.store.CreateUser(ctx, store.User{Nickname: nickname, PasswordHash: hash})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, ErrNicknameTaken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("auth: register: %w", err)
	}
	slog.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies the credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, nickname, password string) (string, error) {
	u, err := s.store.UserByNickname(ctx, nickname)
	switch {
	case errors.Is(err, store.ErrNotFound):
		CheckPassword(s.dummyHash, password)
		return "", ErrInvalidCredentials
	case err != nil:
		return "", fmt.Errorf("auth: login: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(u.Nickname)
}

// IssueToken signs a token for nickname that expires after the configured
// TTL.
func (s *Service) IssueToken(nickname string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   nickname,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return tok, nil
}

// Authenticate verifies token and loads the user it names.
func (s *Service) Authenticate(ctx context.Context, token string) (store.User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return store.User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return store.User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	u, err := s.store.UserByNickname(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("%w: unknown user", ErrInvalidToken)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("auth: authenticate: %w", err)
	}
	return u, nil
}
