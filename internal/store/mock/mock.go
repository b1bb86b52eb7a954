// Package mock provides an in-memory [store.Store] for tests.
//
// Unlike a pure stub, [Store] keeps real state so handlers and services can
// be exercised end to end without a database. Every method call is recorded
// for assertion and the exported *Err fields force failures.
//
// Typical usage:
//
//	s := mock.New()
//	s.PingErr = errors.New("down")
//
//	// inject s into the system under test …
//
//	if got := s.CallCount("Ping"); got != 1 {
//	    t.Errorf("expected 1 Ping call, got %d", got)
//	}
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/lettersprout/internal/store"
)

var _ store.Store = (*Store)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

type progressKey struct {
	userID   int64
	letterID int
}

type checkinKey struct {
	userID int64
	date   string
}

// Store is an in-memory implementation of [store.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call

	// Now supplies timestamps. Defaults to time.Now.
	Now func() time.Time

	// CreateUserErr is returned by [Store.CreateUser] when non-nil.
	CreateUserErr error

	// MergeProgressErr is returned by [Store.MergeProgress] when non-nil.
	MergeProgressErr error

	// IncrementCheckinErr is returned by [Store.IncrementCheckin] when non-nil.
	IncrementCheckinErr error

	// UnlockAchievementErr is returned by [Store.UnlockAchievement] when non-nil.
	UnlockAchievementErr error

	// CreateRecordingErr is returned by [Store.CreateRecording] when non-nil.
	CreateRecordingErr error

	// PingErr is returned by [Store.Ping] when non-nil.
	PingErr error

	nextUserID      int64
	nextRecordingID int64
	users           map[int64]store.User
	progress        map[progressKey]store.Progress
	checkins        map[checkinKey]store.Checkin
	achievements    []store.Achievement
	recordings      []store.Recording
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[int64]store.User),
		progress: make(map[progressKey]store.Progress),
		checkins: make(map[checkinKey]store.Checkin),
	}
}

// Calls returns a copy of all recorded method invocations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls. Stored data is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// record must be called with s.mu held.
func (s *Store) record(method string, args ...any) {
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateUser implements [store.Store].
func (s *Store) CreateUser(_ context.Context, u store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateUser", u.Nickname)
	if s.CreateUserErr != nil {
		return store.User{}, s.CreateUserErr
	}
	for _, existing := range s.users {
		if existing.Nickname == u.Nickname {
			return store.User{}, store.ErrDuplicate
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	return u, nil
}

// UserByNickname implements [store.Store].
func (s *Store) UserByNickname(_ context.Context, nickname string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UserByNickname", nickname)
	for _, u := range s.users {
		if u.Nickname == nickname {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

// UserByID implements [store.Store].
func (s *Store) UserByID(_ context.Context, id int64) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UserByID", id)
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// ListProgress implements [store.Store].
func (s *Store) ListProgress(_ context.Context, userID int64) ([]store.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListProgress", userID)
	out := []store.Progress{}
	for k, p := range s.progress {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b store.Progress) int { return cmp.Compare(a.LetterID, b.LetterID) })
	return out, nil
}

// MergeProgress implements [store.Store].
func (s *Store) MergeProgress(_ context.Context, userID int64, letterID, stage, score int) (store.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("MergeProgress", userID, letterID, stage, score)
	if s.MergeProgressErr != nil {
		return store.Progress{}, s.MergeProgressErr
	}
	k := progressKey{userID, letterID}
	p, ok := s.progress[k]
	if !ok {
		p = store.Progress{UserID: userID, LetterID: letterID}
	}
	p.Stage = max(p.Stage, stage)
	p.Score = max(p.Score, score)
	p.Completed = store.IsCompleted(p.Stage)
	p.UpdatedAt = s.now()
	s.progress[k] = p
	return p, nil
}

// IncrementCheckin implements [store.Store].
func (s *Store) IncrementCheckin(_ context.Context, userID int64, date string) (store.Checkin, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("IncrementCheckin", userID, date)
	if s.IncrementCheckinErr != nil {
		return store.Checkin{}, false, s.IncrementCheckinErr
	}
	k := checkinKey{userID, date}
	c, ok := s.checkins[k]
	if ok {
		c.LettersLearned++
	} else {
		c = store.Checkin{UserID: userID, Date: date, LettersLearned: 1, CreatedAt: s.now()}
	}
	s.checkins[k] = c
	return c, !ok, nil
}

// ListCheckins implements [store.Store].
func (s *Store) ListCheckins(_ context.Context, userID int64, limit int) ([]store.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListCheckins", userID, limit)
	out := []store.Checkin{}
	for k, c := range s.checkins {
		if k.userID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b store.Checkin) int { return cmp.Compare(b.Date, a.Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UnlockAchievement implements [store.Store].
func (s *Store) UnlockAchievement(_ context.Context, userID int64, badge string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UnlockAchievement", userID, badge)
	if s.UnlockAchievementErr != nil {
		return false, s.UnlockAchievementErr
	}
	for _, a := range s.achievements {
		if a.UserID == userID && a.Badge == badge {
			return false, nil
		}
	}
	s.achievements = append(s.achievements, store.Achievement{UserID: userID, Badge: badge, UnlockedAt: s.now()})
	return true, nil
}

// ListAchievements implements [store.Store].
func (s *Store) ListAchievements(_ context.Context, userID int64) ([]store.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListAchievements", userID)
	out := []store.Achievement{}
	for _, a := range s.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateRecording implements [store.Store].
func (s *Store) CreateRecording(_ context.Context, r store.Recording) (store.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateRecording", r.UserID, r.Letter)
	if s.CreateRecordingErr != nil {
		return store.Recording{}, s.CreateRecordingErr
	}
	s.nextRecordingID++
	r.ID = s.nextRecordingID
	r.CreatedAt = s.now()
	s.recordings = append(s.recordings, r)
	return r, nil
}

// ListRecordings implements [store.Store]. Recordings are returned newest
// first by insertion order.
func (s *Store) ListRecordings(_ context.Context, userID int64, limit int) ([]store.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListRecordings", userID, limit)
	out := []store.Recording{}
	for i := len(s.recordings) - 1; i >= 0; i-- {
		if s.recordings[i].UserID != userID {
			continue
		}
		out = append(out, s.recordings[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Ping")
	return s.PingErr
}
