package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/mimamorin/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) SaveWeeklyReport(ctx context.Context, periodEnd time.Time, entries []repository.WeeklyReportEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO weekly_report_entries (period_end, user_id, seconds)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (period_end, user_id) DO UPDATE SET seconds = EXCLUDED.seconds`,
			periodEnd, e.UserID, e.Seconds)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DisabledRepository is used when no DATABASE_URL is configured; archiving
// becomes a no-op instead of an error.
type DisabledRepository struct{}

func NewDisabledRepository() repository.Repository {
	return &DisabledRepository{}
}

func (r *DisabledRepository) SaveWeeklyReport(_ context.Context, _ time.Time, _ []repository.WeeklyReportEntry) error {
	return nil
}
