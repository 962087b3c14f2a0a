package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/foxseedlab/mimamorin/internal/repository"
	"github.com/foxseedlab/mimamorin/internal/webhook"
)

const (
	reportWeekday = time.Sunday
	reportHour    = 23
)

// RunWeeklyReporter emits the ranked weekly report every Sunday at 23:00
// provider time until ctx is done.
func (w *Watcher) RunWeeklyReporter(ctx context.Context) {
	for {
		now := w.now().In(w.loc)
		timer := time.NewTimer(nextReportTime(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.runWeeklyReport(w.now().In(w.loc))
		}
	}
}

func nextReportTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), reportHour, 0, 0, 0, now.Location())
	for !next.After(now) || next.Weekday() != reportWeekday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// runWeeklyReport closes every open session at the cutoff (reopening it
// there), emits the ranked report, archives it, then resets the totals.
// Totals are reset even when delivery fails; the report is best effort, the
// cutoff is not.
func (w *Watcher) runWeeklyReport(cutoff time.Time) {
	slog.Info("running weekly report", "cutoff", cutoff)
	w.store.RolloverSessions(cutoff)
	totals := w.store.TotalsSnapshot()

	if w.cfg.DiscordReportChannelID != "" {
		content := messageWeeklyReportEmpty
		if len(totals) > 0 {
			content = messageWeeklyReportHeader + "\n" + strings.Join(rankedTotalLines(totals), "\n")
		}
		if err := w.discord.SendChannelMessage(w.cfg.DiscordReportChannelID, content); err != nil {
			slog.Error("failed to send weekly report", "error", err)
		}
	}

	w.archiveWeeklyReport(cutoff, totals)

	w.store.ResetTotals()
	w.saveState()
}

func (w *Watcher) archiveWeeklyReport(cutoff time.Time, totals map[string]int64) {
	if len(totals) == 0 {
		return
	}
	ctx := context.Background()
	entries := make([]repository.WeeklyReportEntry, 0, len(totals))
	payloadEntries := make([]webhook.WeeklyReportPayloadEntry, 0, len(totals))
	for _, userID := range rankedUserIDs(totals) {
		entries = append(entries, repository.WeeklyReportEntry{UserID: userID, Seconds: totals[userID]})
		payloadEntries = append(payloadEntries, webhook.WeeklyReportPayloadEntry{UserID: userID, Seconds: totals[userID]})
	}
	if err := w.repo.SaveWeeklyReport(ctx, cutoff, entries); err != nil {
		slog.Error("failed to archive weekly report", "error", err)
	}
	payload := webhook.WeeklyReportPayload{
		PeriodEnd: cutoff.Format(time.RFC3339),
		Entries:   payloadEntries,
	}
	if err := w.webhook.SendWeeklyReport(ctx, payload); err != nil {
		slog.Error("failed to send weekly report webhook", "error", err)
	}
}

func rankedUserIDs(totals map[string]int64) []string {
	userIDs := make([]string, 0, len(totals))
	for userID := range totals {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		if totals[userIDs[i]] != totals[userIDs[j]] {
			return totals[userIDs[i]] > totals[userIDs[j]]
		}
		return userIDs[i] < userIDs[j]
	})
	return userIDs
}

func rankedTotalLines(totals map[string]int64) []string {
	lines := make([]string, 0, len(totals))
	for _, userID := range rankedUserIDs(totals) {
		hours := float64(totals[userID]) / 3600.0
		lines = append(lines, fmt.Sprintf("- %s: %.2fh", mention(userID), hours))
	}
	return lines
}
