package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS weekly_report_entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		period_end TIMESTAMPTZ NOT NULL,
		user_id TEXT NOT NULL,
		seconds BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(period_end, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_report_entries_period ON weekly_report_entries (period_end)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
