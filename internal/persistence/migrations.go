package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrations are applied in order on startup when enabled. Statements are
// idempotent so repeated runs are safe.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "001_users",
		sql: `
        CREATE EXTENSION IF NOT EXISTS "pgcrypto";
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'reporter',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	},
	{
		name: "002_tickets",
		sql: `
        CREATE TABLE IF NOT EXISTS tickets (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            external_key TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'open',
            priority TEXT NOT NULL DEFAULT 'medium',
            tags TEXT[] NOT NULL DEFAULT '{}',
            assignee_id UUID REFERENCES users(id) ON DELETE SET NULL,
            reporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
        CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
        CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets(assignee_id);`,
	},
	{
		name: "003_ticket_status_changes",
		sql: `
        CREATE TABLE IF NOT EXISTS ticket_status_changes (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
            old_status TEXT NOT NULL,
            new_status TEXT NOT NULL,
            changed_by_user_id UUID NOT NULL REFERENCES users(id),
            changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_status_changes_ticket ON ticket_status_changes(ticket_id);`,
	},
}

// RunMigrations executes the embedded SQL migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for _, migration := range migrations {
		logger.Info("applying migration", zap.String("name", migration.name))
		if _, err := pool.Exec(ctx, migration.sql); err != nil {
			return err
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
