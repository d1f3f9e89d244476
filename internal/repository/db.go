package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

// ErrConflict marks a write rejected by a uniqueness rule.
var ErrConflict = errors.New("conflict")

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// Open opens the sqlite database and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	logger = common.LoggerOrDefault(logger)
	logger.Info("db.open", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("db.open.fail", "error", err)
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		logger.Error("db.migrate.fail", "error", err)
		return nil, err
	}
	logger.Info("db.open.ok")
	return db, nil
}

func Close(db *sql.DB, logger *slog.Logger) {
	logger = common.LoggerOrDefault(logger)
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("db.close.fail", "error", err)
		return
	}
	logger.Info("db.closed")
}

// HealthCheck pings the database within timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	logger = common.LoggerOrDefault(logger)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("db.ping.fail", "error", err)
		return err
	}
	logger.Debug("db.ping.ok")
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	email        TEXT NOT NULL UNIQUE,
	phone_number TEXT,
	user_type    TEXT NOT NULL,
	profile      TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tax_documents (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        INTEGER NOT NULL REFERENCES users(id),
	document_type  TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	extracted_data TEXT,
	reveal_after   INTEGER NOT NULL DEFAULT 0,
	polls          INTEGER NOT NULL DEFAULT 0,
	uploaded_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS receipts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id),
	file_path   TEXT NOT NULL,
	category    TEXT,
	amount      TEXT NOT NULL,
	date        TEXT NOT NULL,
	uploaded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tax_returns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id),
	cpa_id      INTEGER REFERENCES users(id),
	year        INTEGER NOT NULL,
	status      TEXT NOT NULL,
	return_data TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE (user_id, year)
);
CREATE TABLE IF NOT EXISTS subscriptions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id),
	plan_type  TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date   TEXT NOT NULL,
	status     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        INTEGER NOT NULL REFERENCES users(id),
	amount         TEXT NOT NULL,
	currency       TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Stored timestamps use the backend's zone-less UTC layout.
const stampLayout = "2006-01-02T15:04:05.000000"

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, common.ErrNotFound)
}
