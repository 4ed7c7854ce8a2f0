package postgres

// Schema is the reference DDL for the tables this package reads and writes.
// Integrators apply it through their own migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                 UUID PRIMARY KEY,
    email              TEXT NOT NULL UNIQUE,
    password_hash      TEXT NOT NULL,
    role               TEXT NOT NULL DEFAULT 'member',
    two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    two_factor_secret  TEXT,
    last_login         TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
    id            UUID PRIMARY KEY,
    user_id       UUID NOT NULL REFERENCES users (id),
    user_agent    TEXT NOT NULL DEFAULT '',
    ip            TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    expires_at    TIMESTAMPTZ NOT NULL,
    last_accessed TIMESTAMPTZ NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS sessions_user_active_idx
    ON sessions (user_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS security_log (
    id         UUID PRIMARY KEY,
    user_id    TEXT NOT NULL DEFAULT '',
    event_type TEXT NOT NULL,
    ip         TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    success    BOOLEAN NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    metadata   JSONB,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS security_log_user_created_idx
    ON security_log (user_id, created_at);
`
