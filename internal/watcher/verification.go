package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
)

const (
	verificationReminderHour = 22
	verificationCheckHour    = 23

	verificationDateLayout = "2006.01.02"
)

// verificationWeekday reports whether daily-verification duty applies on the
// given weekday.
func verificationWeekday(d time.Weekday) bool {
	return d == time.Monday || d == time.Wednesday || d == time.Saturday
}

type verificationEvent int

const (
	verificationEventReminder verificationEvent = iota
	verificationEventCheck
)

// RunVerificationReminder runs the two daily-verification wakeups on duty
// days: a blanket reminder at 22:00 provider time, then a 23:00 check that
// pings only the members whose verification page is still empty.
func (w *Watcher) RunVerificationReminder(ctx context.Context) {
	if !w.cfg.VerificationWatchEnabled() {
		slog.Info("verification reminders disabled; no database id or channel configured")
		return
	}
	for {
		now := w.now().In(w.loc)
		next, event := nextVerificationEvent(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			switch event {
			case verificationEventReminder:
				w.sendVerificationReminder()
			case verificationEventCheck:
				w.runVerificationCheck(ctx)
			}
		}
	}
}

// nextVerificationEvent returns the first reminder or check instant strictly
// after now.
func nextVerificationEvent(now time.Time) (time.Time, verificationEvent) {
	for day := 0; ; day++ {
		date := now.AddDate(0, 0, day)
		if !verificationWeekday(date.Weekday()) {
			continue
		}
		reminder := time.Date(date.Year(), date.Month(), date.Day(), verificationReminderHour, 0, 0, 0, now.Location())
		if reminder.After(now) {
			return reminder, verificationEventReminder
		}
		check := time.Date(date.Year(), date.Month(), date.Day(), verificationCheckHour, 0, 0, 0, now.Location())
		if check.After(now) {
			return check, verificationEventCheck
		}
	}
}

func (w *Watcher) sendVerificationReminder() {
	if err := w.discord.SendChannelMessage(w.cfg.DiscordVerificationChannelID, messageVerificationReminder); err != nil {
		slog.Error("failed to send verification reminder", "error", err)
	}
}

// runVerificationCheck looks up tomorrow's verification page and mentions
// every tracked member whose relation column on it is still empty. A missing
// page means nothing to check yet.
func (w *Watcher) runVerificationCheck(ctx context.Context) {
	targetDate := w.now().In(w.loc).AddDate(0, 0, 1).Format(verificationDateLayout)
	rows, err := w.notion.QueryDatabase(ctx, w.cfg.NotionVerificationDatabaseID, notion.Query{
		TitleProperty: w.cfg.NotionNameProperty,
		TitleEquals:   targetDate,
		PageSize:      1,
	})
	if err != nil {
		slog.Warn("verification page query failed; skipping check", "error", err)
		return
	}
	if len(rows) == 0 {
		slog.Info("no verification page for target date; skipping check", "target_date", targetDate)
		return
	}

	missing := w.missingVerificationMentions(rows[0])
	if len(missing) == 0 {
		return
	}
	msg := fmt.Sprintf(messageVerificationMissingFormat, strings.Join(missing, " "), targetDate)
	if err := w.discord.SendChannelMessage(w.cfg.DiscordVerificationChannelID, msg); err != nil {
		slog.Error("failed to send verification ping", "error", err)
		return
	}
	slog.Info("verification ping sent", "target_date", targetDate, "missing_members", len(missing))
}

// missingVerificationMentions scans the page's per-member relation columns,
// one per tracked provider name, and returns a mention for each empty one.
// Members that cannot be resolved on the platform fall back to a plain-text
// name so the ping never silently drops anyone.
func (w *Watcher) missingVerificationMentions(row notion.Row) []string {
	members, err := w.discord.ListGuildMembers(w.cfg.DiscordGuildID)
	if err != nil {
		slog.Warn("guild member listing failed during verification check", "error", err)
		members = nil
	}

	providerNames := make([]string, 0, len(w.aliases))
	for providerName := range w.aliases {
		providerNames = append(providerNames, providerName)
	}
	sort.Strings(providerNames)

	missing := make([]string, 0, len(providerNames))
	for _, providerName := range providerNames {
		refs, ok := row.Relation(providerName)
		if !ok || len(refs) > 0 {
			continue
		}
		platformName := w.aliases.Resolve(providerName)
		if member, found := findMemberByName(members, platformName); found {
			missing = append(missing, mention(member.UserID))
		} else {
			missing = append(missing, "@"+platformName)
		}
	}
	return missing
}

func findMemberByName(members []discord.GuildMember, name string) (discord.GuildMember, bool) {
	for _, m := range members {
		if m.DisplayName == name {
			return m, true
		}
	}
	for _, m := range members {
		if m.Username == name {
			return m, true
		}
	}
	return discord.GuildMember{}, false
}
