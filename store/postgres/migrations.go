package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the BNPL store.
var Migrations = migrate.NewGroup("bnpl")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bnpl_loans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_loans (
    id           BIGINT PRIMARY KEY,
    borrower     TEXT NOT NULL DEFAULT '',
    merchant     TEXT NOT NULL DEFAULT '',
    principal    BIGINT NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    due_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    repaid       BOOLEAN NOT NULL DEFAULT FALSE,
    defaulted    BOOLEAN NOT NULL DEFAULT FALSE,
    repaid_at    TIMESTAMPTZ,
    defaulted_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    loan_id  BIGINT NOT NULL DEFAULT 0
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
    user_id           TEXT PRIMARY KEY,
    credit_limit      BIGINT NOT NULL DEFAULT 0,
    credit_used       BIGINT NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT '',
    defaulted         BOOLEAN NOT NULL DEFAULT FALSE,
    has_active_credit BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    id                 INT PRIMARY KEY,
    total_liquidity    BIGINT NOT NULL DEFAULT 0,
    outstanding_credit BIGINT NOT NULL DEFAULT 0,
    protocol_fees      BIGINT NOT NULL DEFAULT 0,
    currency           TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    value BIGINT NOT NULL DEFAULT 0
);

INSERT INTO bnpl_counters (name, value) VALUES ('loan_id', 0)
ON CONFLICT (name) DO NOTHING;
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
