// Package postgres provides a PostgreSQL-backed [store.Store].
//
// All tables share a single [pgxpool.Pool]. [Migrate] creates them with
// CREATE TABLE IF NOT EXISTS, so it is safe to run on every start.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//
//	u, err := s.CreateUser(ctx, store.User{Nickname: "mia", PasswordHash: h})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id              BIGSERIAL    PRIMARY KEY,
    nickname        VARCHAR(50)  NOT NULL UNIQUE,
    avatar          TEXT         NOT NULL DEFAULT '',
    hashed_password TEXT         NOT NULL,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlProgress = `
CREATE TABLE IF NOT EXISTS progress (
    user_id    BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    letter_id  SMALLINT     NOT NULL CHECK (letter_id BETWEEN 1 AND 26),
    stage      SMALLINT     NOT NULL DEFAULT 0 CHECK (stage BETWEEN 0 AND 3),
    score      SMALLINT     NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 3),
    completed  BOOLEAN      NOT NULL DEFAULT false,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, letter_id)
);
`

const ddlCheckins = `
CREATE TABLE IF NOT EXISTS checkins (
    user_id         BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    date            CHAR(10)     NOT NULL,
    letters_learned INTEGER      NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, date)
);
`

const ddlAchievements = `
CREATE TABLE IF NOT EXISTS achievements (
    user_id     BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    badge_type  TEXT         NOT NULL,
    unlocked_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, badge_type)
);
`

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS recordings (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    letter_id  SMALLINT     NOT NULL,
    letter     CHAR(1)      NOT NULL,
    file_path  TEXT         NOT NULL,
    file_url   TEXT         NOT NULL,
    score      SMALLINT     NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recordings_user_created
    ON recordings (user_id, created_at DESC);
`

// Migrate creates every table and index. Statements run in dependency
// order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{
		ddlUsers,
		ddlProgress,
		ddlCheckins,
		ddlAchievements,
		ddlRecordings,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
