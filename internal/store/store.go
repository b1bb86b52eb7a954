// Package store defines the persistence layer for lettersprout: user
// accounts, per-letter progress, daily check-ins, achievements and saved
// recordings.
//
// The [Store] interface is implemented by the PostgreSQL backend in
// [github.com/MrWong99/lettersprout/internal/store/postgres] and by the
// in-memory test double in
// [github.com/MrWong99/lettersprout/internal/store/mock].
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, such as a taken nickname.
	ErrDuplicate = errors.New("store: duplicate")
)

// MaxNicknameLen is the longest nickname the users table accepts.
const MaxNicknameLen = 50

// DateLayout is the format of [Checkin.Date].
const DateLayout = "2006-01-02"

// User is a registered account.
type User struct {
	ID           int64
	Nickname     string
	Avatar       string
	PasswordHash string
	CreatedAt    time.Time
}

// Progress is a user's state for one letter.
type Progress struct {
	UserID int64

	// LetterID is 1 for A through 26 for Z.
	LetterID int

	// Stage is 0 (not started), 1 (recognised), 2 (pronounced) or
	// 3 (practice complete).
	Stage int

	// Score is the best star rating reached, 0-3.
	Score int

	// Completed is true once Stage reaches 3.
	Completed bool

	UpdatedAt time.Time
}

// Checkin is one day of activity. There is at most one per user and date.
type Checkin struct {
	UserID int64

	// Date is the local calendar day in [DateLayout].
	Date string

	LettersLearned int
	CreatedAt      time.Time
}

// Achievement is an unlocked badge. There is at most one per user and badge.
type Achievement struct {
	UserID     int64
	Badge      string
	UnlockedAt time.Time
}

// Recording is a saved audio attempt.
type Recording struct {
	ID       int64
	UserID   int64
	LetterID int
	Letter   string

	// FilePath is where the audio lives on disk; FileURL is where clients
	// fetch it.
	FilePath string
	FileURL  string

	Score     int
	CreatedAt time.Time
}

// Store persists all lettersprout entities.
type Store interface {
	// CreateUser inserts a user and returns it with ID and CreatedAt set.
	// Returns [ErrDuplicate] when the nickname is taken.
	CreateUser(ctx context.Context, u User) (User, error)

	// UserByNickname returns [ErrNotFound] when no user has that nickname.
	UserByNickname(ctx context.Context, nickname string) (User, error)

	// UserByID returns [ErrNotFound] when the user does not exist.
	UserByID(ctx context.Context, id int64) (User, error)

	// ListProgress returns the stored progress rows for a user ordered by
	// letter. Letters the user never touched are absent.
	ListProgress(ctx context.Context, userID int64) ([]Progress, error)

	// MergeProgress atomically raises the stored stage and score for one
	// letter to at least the given values, creating the row if needed.
	// Completed is recomputed from the merged stage.
	MergeProgress(ctx context.Context, userID int64, letterID, stage, score int) (Progress, error)

	// IncrementCheckin creates the check-in for date with LettersLearned 1,
	// or increments an existing one. created reports which happened.
	IncrementCheckin(ctx context.Context, userID int64, date string) (c Checkin, created bool, err error)

	// ListCheckins returns at most limit check-ins, newest date first.
	// A non-positive limit returns all of them.
	ListCheckins(ctx context.Context, userID int64, limit int) ([]Checkin, error)

	// UnlockAchievement records badge for the user. unlocked is false when
	// the badge was already held.
	UnlockAchievement(ctx context.Context, userID int64, badge string) (unlocked bool, err error)

	// ListAchievements returns a user's badges in unlock order.
	ListAchievements(ctx context.Context, userID int64) ([]Achievement, error)

	// CreateRecording inserts r and returns it with ID and CreatedAt set.
	CreateRecording(ctx context.Context, r Recording) (Recording, error)

	// ListRecordings returns at most limit recordings, newest first.
	ListRecordings(ctx context.Context, userID int64, limit int) ([]Recording, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// IsCompleted reports whether stage counts as a finished letter.
func IsCompleted(stage int) bool { return stage >= 3 }
