package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// GrantsDDL creates the grant ledger. The partial unique index allows at
// most one active grant per (subject_id, tier). expires_at may precede
// granted_at; such a grant is recorded but never in force.
const GrantsDDL = `
CREATE TABLE IF NOT EXISTS role_grants (
    id           TEXT PRIMARY KEY,
    subject_id   TEXT NOT NULL,
    tier         SMALLINT NOT NULL CHECK (tier BETWEEN 1 AND 3),
    granted_by   TEXT NOT NULL DEFAULT '',
    granted_at   TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    permissions  JSONB,
    revoked_at   TIMESTAMPTZ,
    revoked_by   TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_role_grants_active
    ON role_grants (subject_id, tier) WHERE active;
CREATE INDEX IF NOT EXISTS idx_role_grants_subject ON role_grants (subject_id, granted_at);
`

// ActivityDDL creates the append-only activity log.
const ActivityDDL = `
CREATE TABLE IF NOT EXISTS activity_log (
    id             TEXT PRIMARY KEY,
    seq            BIGINT NOT NULL,
    actor_id       TEXT NOT NULL,
    action         TEXT NOT NULL,
    resource_type  TEXT NOT NULL DEFAULT '',
    resource_id    TEXT NOT NULL DEFAULT '',
    details        JSONB,
    request_id     TEXT NOT NULL DEFAULT '',
    prev_hash      TEXT NOT NULL DEFAULT '',
    hash           TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_activity_log_seq ON activity_log (seq);
CREATE INDEX IF NOT EXISTS idx_activity_log_actor ON activity_log (actor_id, seq);
CREATE INDEX IF NOT EXISTS idx_activity_log_resource ON activity_log (resource_type, resource_id);
`

// Migrations is the grove migration group for the Tenure store (PostgreSQL).
var Migrations = migrate.NewGroup("tenure")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_role_grants",
			Version: "20260501000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, GrantsDDL)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS role_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_activity_log",
			Version: "20260501000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ActivityDDL)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS activity_log`)
				return err
			},
		},
	)
}
