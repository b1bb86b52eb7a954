package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lettersprout/internal/store"
)

var _ store.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store is the PostgreSQL implementation of [store.Store]. It is safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound maps pgx.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

// CreateUser implements [store.Store].
func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	const q = `
		INSERT INTO users (nickname, avatar, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, q, u.Nickname, u.Avatar, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.User{}, store.ErrDuplicate
		}
		return store.User{}, fmt.Errorf("postgres store: create user: %w", err)
	}
	return u, nil
}

const selectUser = `
	SELECT id, nickname, avatar, hashed_password, created_at
	FROM   users`

func scanUser(row pgx.Row) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Nickname, &u.Avatar, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// UserByNickname implements [store.Store].
func (s *Store) UserByNickname(ctx context.Context, nickname string) (store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, selectUser+` WHERE nickname = $1`, nickname))
	if err != nil {
		return store.User{}, fmt.Errorf("postgres store: user by nickname: %w", notFound(err))
	}
	return u, nil
}

// UserByID implements [store.Store].
func (s *Store) UserByID(ctx context.Context, id int64) (store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return store.User{}, fmt.Errorf("postgres store: user by id: %w", notFound(err))
	}
	return u, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

const progressColumns = `user_id, letter_id, stage, score, completed, updated_at`

func scanProgress(row pgx.Row) (store.Progress, error) {
	var p store.Progress
	err := row.Scan(&p.UserID, &p.LetterID, &p.Stage, &p.Score, &p.Completed, &p.UpdatedAt)
	return p, err
}

// ListProgress implements [store.Store].
func (s *Store) ListProgress(ctx context.Context, userID int64) ([]store.Progress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = $1 ORDER BY letter_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list progress: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Progress, error) {
		return scanProgress(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list progress: %w", err)
	}
	if out == nil {
		out = []store.Progress{}
	}
	return out, nil
}

// MergeProgress implements [store.Store]. The merge happens in a single
// upsert so concurrent updates for the same letter cannot lower each other.
func (s *Store) MergeProgress(ctx context.Context, userID int64, letterID, stage, score int) (store.Progress, error) {
	const q = `
		INSERT INTO progress (user_id, letter_id, stage, score, completed, updated_at)
		VALUES ($1, $2, $3, $4, $3::smallint >= 3, now())
		ON CONFLICT (user_id, letter_id) DO UPDATE SET
		    stage      = GREATEST(progress.stage, EXCLUDED.stage),
		    score      = GREATEST(progress.score, EXCLUDED.score),
		    completed  = GREATEST(progress.stage, EXCLUDED.stage) >= 3,
		    updated_at = now()
		RETURNING ` + progressColumns

	p, err := scanProgress(s.pool.QueryRow(ctx, q, userID, letterID, stage, score))
	if err != nil {
		return store.Progress{}, fmt.Errorf("postgres store: merge progress: %w", err)
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Check-ins
// ─────────────────────────────────────────────────────────────────────────────

// IncrementCheckin implements [store.Store]. xmax is zero only for a freshly
// inserted row, which tells an insert apart from the conflict update.
func (s *Store) IncrementCheckin(ctx context.Context, userID int64, date string) (store.Checkin, bool, error) {
	const q = `
		INSERT INTO checkins (user_id, date, letters_learned)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, date) DO UPDATE SET
		    letters_learned = checkins.letters_learned + 1
		RETURNING user_id, date, letters_learned, created_at, (xmax = 0)`

	var (
		c       store.Checkin
		created bool
	)
	err := s.pool.QueryRow(ctx, q, userID, date).
		Scan(&c.UserID, &c.Date, &c.LettersLearned, &c.CreatedAt, &created)
	if err != nil {
		return store.Checkin{}, false, fmt.Errorf("postgres store: increment checkin: %w", err)
	}
	return c, created, nil
}

// ListCheckins implements [store.Store].
func (s *Store) ListCheckins(ctx context.Context, userID int64, limit int) ([]store.Checkin, error) {
	const q = `
		SELECT user_id, date, letters_learned, created_at
		FROM   checkins
		WHERE  user_id = $1
		ORDER  BY date DESC
		LIMIT  NULLIF(GREATEST($2::int, 0), 0)`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list checkins: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Checkin, error) {
		var c store.Checkin
		err := row.Scan(&c.UserID, &c.Date, &c.LettersLearned, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list checkins: %w", err)
	}
	if out == nil {
		out = []store.Checkin{}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements
// ─────────────────────────────────────────────────────────────────────────────

// UnlockAchievement implements [store.Store].
func (s *Store) UnlockAchievement(ctx context.Context, userID int64, badge string) (bool, error) {
	const q = `
		INSERT INTO achievements (user_id, badge_type)
		VALUES ($1, $2)
		ON CONFLICT (user_id, badge_type) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, userID, badge)
	if err != nil {
		return false, fmt.Errorf("postgres store: unlock achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAchievements implements [store.Store].
func (s *Store) ListAchievements(ctx context.Context, userID int64) ([]store.Achievement, error) {
	const q = `
		SELECT user_id, badge_type, unlocked_at
		FROM   achievements
		WHERE  user_id = $1
		ORDER  BY unlocked_at, badge_type`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list achievements: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Achievement, error) {
		var a store.Achievement
		err := row.Scan(&a.UserID, &a.Badge, &a.UnlockedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list achievements: %w", err)
	}
	if out == nil {
		out = []store.Achievement{}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recordings
// ─────────────────────────────────────────────────────────────────────────────

// CreateRecording implements [store.Store].
func (s *Store) CreateRecording(ctx context.Context, r store.Recording) (store.Recording, error) {
	const q = `
		INSERT INTO recordings (user_id, letter_id, letter, file_path, file_url, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, q, r.UserID, r.LetterID, r.Letter, r.FilePath, r.FileURL, r.Score).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return store.Recording{}, fmt.Errorf("postgres store: create recording: %w", err)
	}
	return r, nil
}

// ListRecordings implements [store.Store].
func (s *Store) ListRecordings(ctx context.Context, userID int64, limit int) ([]store.Recording, error) {
	const q = `
		SELECT id, user_id, letter_id, letter, file_path, file_url, score, created_at
		FROM   recordings
		WHERE  user_id = $1
		ORDER  BY created_at DESC, id DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list recordings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Recording, error) {
		var r store.Recording
		err := row.Scan(&r.ID, &r.UserID, &r.LetterID, &r.Letter, &r.FilePath, &r.FileURL, &r.Score, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list recordings: %w", err)
	}
	if out == nil {
		out = []store.Recording{}
	}
	return out, nil
}
