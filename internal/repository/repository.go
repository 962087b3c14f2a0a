package repository

import (
	"context"
	"time"
)

type WeeklyReportEntry struct {
	UserID  string
	Seconds int64
}

// Repository archives the weekly ranked totals. Deployments without a
// database run with a disabled implementation.
type Repository interface {
	SaveWeeklyReport(ctx context.Context, periodEnd time.Time, entries []WeeklyReportEntry) error
}
