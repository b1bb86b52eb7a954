package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lettersprout/internal/auth"
	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/store"
)

type userHandler func(w http.ResponseWriter, r *http.Request, u store.User)

// authed resolves the bearer token to a user before calling h. Failures
// answer 401 with a Bearer challenge.
func (s *Server) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "not authenticated")
			return
		}
		u, err := s.auth.Authenticate(r.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			unauthorized(w, "invalid authentication credentials")
			return
		}
		if err != nil {
			internalError(w, r, err)
			return
		}
		h(w, r, u)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, detail)
}

type userResponse struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u store.User) userResponse {
	r := userResponse{ID: u.ID, Nickname: u.Nickname, CreatedAt: u.CreatedAt}
	if u.Avatar != "" {
		r.Avatar = &u.Avatar
	}
	return r
}

type registerRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.auth.Register(r.Context(), req.Nickname, req.Password)
	switch {
	case errors.Is(err, auth.ErrNicknameTaken):
		writeError(w, http.StatusBadRequest, "nickname is already taken")
		return
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin accepts the OAuth2 password form fields username and
// password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	tok, err := s.auth.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		observe.Logger(r.Context()).Info("login rejected")
		unauthorized(w, "incorrect nickname or password")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, u store.User) {
	writeJSON(w, http.StatusOK, toUserResponse(u))
}
