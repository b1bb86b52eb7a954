// Package api serves the lettersprout JSON HTTP API.
//
// Routes are registered on an [http.ServeMux] with method patterns. Every
// error body has the shape {"detail": "..."}. Routes other than sign-up,
// sign-in and the letter table require an "Authorization: Bearer <token>"
// header issued by [auth.Service].
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/MrWong99/lettersprout/internal/auth"
	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/progress"
	"github.com/MrWong99/lettersprout/internal/recording"
	"github.com/MrWong99/lettersprout/internal/speech"
)

// DefaultMaxAudioBytes caps uploaded clips at 5 MiB.
const DefaultMaxAudioBytes = 5 << 20

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

// Deps are the services the API delegates to. All fields are required.
type Deps struct {
	Auth       *auth.Service
	Progress   *progress.Service
	Recordings *recording.Service
	Evaluator  *speech.Evaluator
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxAudioBytes sets the upload limit for audio clips. Non-positive
// values are ignored.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAudio.Store(n)
		}
	}
}

// Server holds the API handlers. The evaluator and the upload limit can be
// swapped at runtime when the configuration is reloaded.
type Server struct {
	auth       *auth.Service
	progress   *progress.Service
	recordings *recording.Service

	evaluator atomic.Pointer[speech.Evaluator]
	maxAudio  atomic.Int64
}

// New creates a Server.
func New(d Deps, opts ...Option) (*Server, error) {
	var errs []error
	if d.Auth == nil {
		errs = append(errs, errors.New("auth service is required"))
	}
	if d.Progress == nil {
		errs = append(errs, errors.New("progress service is required"))
	}
	if d.Recordings == nil {
		errs = append(errs, errors.New("recording service is required"))
	}
	if d.Evaluator == nil {
		errs = append(errs, errors.New("evaluator is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, errors.Join(errors.New("api: invalid deps"), err)
	}

	s := &Server{
		auth:       d.Auth,
		progress:   d.Progress,
		recordings: d.Recordings,
	}
	s.evaluator.Store(d.Evaluator)
	s.maxAudio.Store(DefaultMaxAudioBytes)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SetEvaluator replaces the evaluator used by new requests.
func (s *Server) SetEvaluator(e *speech.Evaluator) {
	if e != nil {
		s.evaluator.Store(e)
	}
}

// SetMaxAudioBytes replaces the upload limit used by new requests.
func (s *Server) SetMaxAudioBytes(n int64) {
	if n > 0 {
		s.maxAudio.Store(n)
	}
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.authed(s.handleMe))

	mux.HandleFunc("GET /api/progress", s.authed(s.handleListProgress))
	mux.HandleFunc("GET /api/progress/{$}", s.authed(s.handleListProgress))
	mux.HandleFunc("POST /api/progress/update", s.authed(s.handleUpdateProgress))
	mux.HandleFunc("POST /api/progress/checkin", s.authed(s.handleCheckin))
	mux.HandleFunc("GET /api/progress/checkins", s.authed(s.handleListCheckins))
	mux.HandleFunc("GET /api/progress/stats", s.authed(s.handleStats))
	mux.HandleFunc("GET /api/achievements", s.authed(s.handleAchievements))

	mux.HandleFunc("POST /api/speech/evaluate", s.authed(s.handleEvaluate))
	mux.HandleFunc("POST /api/speech/save", s.authed(s.handleSaveRecording))
	mux.HandleFunc("GET /api/speech/recordings", s.authed(s.handleListRecordings))

	mux.HandleFunc("GET /api/letters", handleLetters)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// internalError logs err and answers 500 without leaking it.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type letterResponse struct {
	ID     int    `json:"id"`
	Letter string `json:"letter"`
	Word   string `json:"word"`
	Image  string `json:"image"`
}

func handleLetters(w http.ResponseWriter, _ *http.Request) {
	ts := speech.Targets()
	out := make([]letterResponse, len(ts))
	for i, t := range ts {
		out[i] = letterResponse{ID: t.ID(), Letter: t.Letter, Word: t.Word, Image: t.Emoji}
	}
	writeJSON(w, http.StatusOK, out)
}
