// Package progress implements the learning-progress rules: the 26-letter
// overview, best-of merging of practice results, daily check-ins, streaks,
// summary statistics and badge unlocking.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/store"
)

const (
	// LetterCount is the number of letters tracked per user.
	LetterCount = 26

	// MaxStage is the stage at which a letter counts as completed.
	MaxStage = 3

	// MaxScore is the highest star rating.
	MaxScore = 3

	// CheckinHistory is how many check-ins [Service.Checkins] returns.
	CheckinHistory = 30
)

var (
	// ErrInvalidLetter is returned for a letter ID outside 1..26.
	ErrInvalidLetter = errors.New("progress: invalid letter id")

	// ErrInvalidValue is returned for a stage or score outside 0..3.
	ErrInvalidValue = errors.New("progress: invalid stage or score")
)

// Stats summarises a user's learning.
type Stats struct {
	TotalStars       int
	CompletedLetters int
	StreakDays       int
}

// Option configures a [Service].
type Option func(*Service)

// WithClock replaces time.Now. The clock's location decides which calendar
// day a check-in belongs to.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records check-in metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service applies progress rules on top of a [store.Store].
type Service struct {
	store   store.Store
	now     func() time.Time
	metrics *observe.Metrics
}

// New creates a Service.
func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("progress: store must not be nil")
	}
	s := &Service{store: st, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// List returns exactly [LetterCount] entries in letter order. Letters the
// user has not practised yet are zero-valued apart from UserID and LetterID.
func (s *Service) List(ctx context.Context, userID int64) ([]store.Progress, error) {
	stored, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("progress: list: %w", err)
	}
	out := make([]store.Progress, LetterCount)
	for i := range out {
		out[i] = store.Progress{UserID: userID, LetterID: i + 1}
	}
	for _, p := range stored {
		if p.LetterID >= 1 && p.LetterID <= LetterCount {
			out[p.LetterID-1] = p
		}
	}
	return out, nil
}

// Update merges a practice result into the stored progress. Stage and score
// never decrease.
func (s *Service) Update(ctx context.Context, userID int64, letterID, stage, score int) (store.Progress, error) {
	if letterID < 1 || letterID > LetterCount {
		return store.Progress{}, ErrInvalidLetter
	}
	if stage < 0 || stage > MaxStage || score < 0 || score > MaxScore {
		return store.Progress{}, ErrInvalidValue
	}
	p, err := s.store.MergeProgress(ctx, userID, letterID, stage, score)
	if err != nil {
		return store.Progress{}, fmt.Errorf("progress: update: %w", err)
	}
	s.unlockAchievements(ctx, userID)
	return p, nil
}

// Today returns the current calendar day in [store.DateLayout].
func (s *Service) Today() string {
	return s.now().Format(store.DateLayout)
}

// Checkin records activity for today. The first call of the day creates
// the check-in and later calls increment LettersLearned.
func (s *Service) Checkin(ctx context.Context, userID int64) (store.Checkin, error) {
	c, created, err := s.store.IncrementCheckin(ctx, userID, s.Today())
	if err != nil {
		return store.Checkin{}, fmt.Errorf("progress: checkin: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCheckin(ctx, created)
	}
	if created {
		s.unlockAchievements(ctx, userID)
	}
	return c, nil
}

// Checkins returns the latest [CheckinHistory] check-ins, newest first.
func (s *Service) Checkins(ctx context.Context, userID int64) ([]store.Checkin, error) {
	cs, err := s.store.ListCheckins(ctx, userID, CheckinHistory)
	if err != nil {
		return nil, fmt.Errorf("progress: checkins: %w", err)
	}
	return cs, nil
}

// Stats computes the user's totals and current streak.
func (s *Service) Stats(ctx context.Context, userID int64) (Stats, error) {
	ps, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("progress: stats: %w", err)
	}
	cs, err := s.store.ListCheckins(ctx, userID, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("progress: stats: %w", err)
	}

	var st Stats
	for _, p := range ps {
		st.TotalStars += p.Score
		if p.Completed {
			st.CompletedLetters++
		}
	}
	dates := make([]string, len(cs))
	for i, c := range cs {
		dates[i] = c.Date
	}
	st.StreakDays = Streak(dates, s.now())
	return st, nil
}

// Achievements returns the user's unlocked badges.
func (s *Service) Achievements(ctx context.Context, userID int64) ([]store.Achievement, error) {
	as, err := s.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("progress: achievements: %w", err)
	}
	return as, nil
}

// Streak counts consecutive days ending today. dates must be sorted newest
// first; the count stops at the first date that is not exactly one day
// before the previous one, so a streak without today is 0.
func Streak(dates []string, today time.Time) int {
	n := 0
	for i, d := range dates {
		if d != today.AddDate(0, 0, -i).Format(store.DateLayout) {
			break
		}
		n++
	}
	return n
}

// unlockAchievements grants every badge the user now qualifies for. Badge
// failures are logged and never fail the triggering request.
func (s *Service) unlockAchievements(ctx context.Context, userID int64) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		observe.Logger(ctx).Warn("progress: compute stats for badges", "user_id", userID, "err", err)
		return
	}
	for _, b := range EarnedBadges(st) {
		unlocked, err := s.store.UnlockAchievement(ctx, userID, string(b))
		if err != nil {
			observe.Logger(ctx).Warn("progress: unlock badge", "user_id", userID, "badge", b, "err", err)
			continue
		}
		if unlocked {
			observe.Logger(ctx).Info("badge unlocked", "user_id", userID, "badge", b)
		}
	}
}
