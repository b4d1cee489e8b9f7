package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the BNPL store (SQLite).
var Migrations = migrate.NewGroup("bnpl")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bnpl_loans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_loans (
    id           INTEGER PRIMARY KEY,
    borrower     TEXT NOT NULL DEFAULT '',
    merchant     TEXT NOT NULL DEFAULT '',
    principal    INTEGER NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    due_at       TEXT NOT NULL DEFAULT (datetime('now')),
    repaid       INTEGER NOT NULL DEFAULT 0,
    defaulted    INTEGER NOT NULL DEFAULT 0,
    repaid_at    TEXT,
    defaulted_at TEXT,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bnpl_loans_borrower ON bnpl_loans (borrower, id);
CREATE INDEX IF NOT EXISTS idx_bnpl_loans_due ON bnpl_loans (repaid, defaulted, due_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_loans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_active_loans",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_active_loans (
    borrower TEXT PRIMARY KEY,
    loan_id  INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_active_loans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_credit_accounts",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_credit_accounts (
    user              TEXT PRIMARY KEY,
    credit_limit      INTEGER NOT NULL DEFAULT 0,
    credit_used       INTEGER NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT '',
    defaulted         INTEGER NOT NULL DEFAULT 0,
    has_active_credit INTEGER NOT NULL DEFAULT 0,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bnpl_accounts_defaulted ON bnpl_credit_accounts (defaulted);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_credit_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_pool_state",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_pool_state (
    id                 INTEGER PRIMARY KEY,
    total_liquidity    INTEGER NOT NULL DEFAULT 0,
    outstanding_credit INTEGER NOT NULL DEFAULT 0,
    protocol_fees      INTEGER NOT NULL DEFAULT 0,
    currency           TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_pool_state`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_counters",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO bnpl_counters (name, value) VALUES ('loan_id', 0);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_counters`)
				return err
			},
		},
	)
}
