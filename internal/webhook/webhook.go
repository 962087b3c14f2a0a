package webhook

import "context"

type WeeklyReportPayloadEntry struct {
	UserID  string `json:"user_id"`
	Seconds int64  `json:"seconds"`
}

type WeeklyReportPayload struct {
	PeriodEnd string                     `json:"period_end"`
	Entries   []WeeklyReportPayloadEntry `json:"entries"`
}

type Sender interface {
	SendWeeklyReport(ctx context.Context, payload WeeklyReportPayload) error
}
