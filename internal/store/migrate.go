package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'admin')),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone_number);

CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	event_date  DATE NOT NULL,
	fee         NUMERIC(12,2) NOT NULL CHECK (fee >= 0),
	image_url   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payments (
	id             BIGSERIAL PRIMARY KEY,
	user_id        BIGINT NOT NULL,
	event_id       BIGINT NOT NULL,
	amount         NUMERIC(12,2) NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	proof          TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'rejected')),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id);

CREATE TABLE IF NOT EXISTS payment_transitions (
	id          BIGSERIAL PRIMARY KEY,
	payment_id  BIGINT NOT NULL,
	actor_id    BIGINT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transitions_payment ON payment_transitions(payment_id);

CREATE TABLE IF NOT EXISTS auth_accounts (
	id           UUID PRIMARY KEY,
	handle       TEXT NOT NULL UNIQUE,
	secret_hash  TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
