package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrWong99/lettersprout/internal/progress"
	"github.com/MrWong99/lettersprout/internal/store"
)

type progressResponse struct {
	LetterID  int  `json:"letter_id"`
	Stage     int  `json:"stage"`
	Score     int  `json:"score"`
	Completed bool `json:"completed"`
}

func toProgressResponse(p store.Progress) progressResponse {
	return progressResponse{LetterID: p.LetterID, Stage: p.Stage, Score: p.Score, Completed: p.Completed}
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request, u store.User) {
	ps, err := s.progress.List(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]progressResponse, len(ps))
	for i, p := range ps {
		out[i] = toProgressResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

type progressUpdateRequest struct {
	LetterID int `json:"letter_id"`
	Stage    int `json:"stage"`
	Score    int `json:"score"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request, u store.User) {
	var req progressUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.progress.Update(r.Context(), u.ID, req.LetterID, req.Stage, req.Score)
	switch {
	case errors.Is(err, progress.ErrInvalidLetter):
		writeError(w, http.StatusBadRequest, "invalid letter id")
		return
	case errors.Is(err, progress.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, "stage and score must be between 0 and 3")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(p))
}

type checkinResponse struct {
	Date           string `json:"date"`
	LettersLearned int    `json:"letters_learned"`
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request, u store.User) {
	c, err := s.progress.Checkin(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkinResponse{Date: c.Date, LettersLearned: c.LettersLearned})
}

func (s *Server) handleListCheckins(w http.ResponseWriter, r *http.Request, u store.User) {
	cs, err := s.progress.Checkins(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]checkinResponse, len(cs))
	for i, c := range cs {
		out[i] = checkinResponse{Date: c.Date, LettersLearned: c.LettersLearned}
	}
	writeJSON(w, http.StatusOK, out)
}

type statsResponse struct {
	TotalStars       int `json:"total_stars"`
	CompletedLetters int `json:"completed_letters"`
	StreakDays       int `json:"streak_days"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, u store.User) {
	st, err := s.progress.Stats(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalStars:       st.TotalStars,
		CompletedLetters: st.CompletedLetters,
		StreakDays:       st.StreakDays,
	})
}

type achievementResponse struct {
	BadgeType  string    `json:"badge_type"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request, u store.User) {
	as, err := s.progress.Achievements(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]achievementResponse, len(as))
	for i, a := range as {
		out[i] = achievementResponse{BadgeType: a.Badge, UnlockedAt: a.UnlockedAt}
	}
	writeJSON(w, http.StatusOK, out)
}
