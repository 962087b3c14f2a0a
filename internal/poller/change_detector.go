package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/state"
)

// completedStatusNames is the known-complete vocabulary: containment for the
// CJK labels, exact match for the English ones.
var completedStatusNames = map[string]struct{}{
	"done":      {},
	"completed": {},
	"complete":  {},
}

func isCompletedStatus(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	if strings.Contains(n, "완료") || strings.Contains(n, "完了") {
		return true
	}
	_, ok := completedStatusNames[n]
	return ok
}

func anyCompleted(names []string) bool {
	for _, name := range names {
		if isCompletedStatus(name) {
			return true
		}
	}
	return false
}

func splitStoredStatuses(stored string) []string {
	parts := strings.Split(stored, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func (p *Poller) featureLine(row notion.Row) string {
	title := row.PlainText(p.cfg.NotionTitleProperty)
	if title == "" {
		title = "(内容なし)"
	}
	desc := row.PlainText(p.cfg.NotionDescProperty, "Description")
	if desc == "" {
		desc = "(説明なし)"
	}
	return fmt.Sprintf("- %s：%s", title, desc)
}

// pollFeatures detects newly added feature rows and completed-status flips.
// The baseline (known ids + stored status strings) only advances after every
// due notification was delivered, so a failed delivery retries next cycle.
func (p *Poller) pollFeatures(ctx context.Context) {
	rows, err := p.queryLatest(ctx, p.cfg.NotionFeatureDatabaseID)
	if err != nil {
		slog.Warn("feature query failed; skipping cycle", "error", err)
		return
	}
	current := rowIDSet(rows)
	known := p.baseline.KnownIDs(state.CollectionFeatures)
	added := subtract(current, known)

	if len(added) > 0 {
		// Re-fetch after the settle delay so late-populated fields on
		// just-created rows make it into the notification.
		p.sleep(settleDelay)
		refreshed, err := p.queryLatest(ctx, p.cfg.NotionFeatureDatabaseID)
		if err != nil {
			slog.Warn("feature re-fetch failed; skipping cycle", "error", err)
			return
		}
		rows = refreshed
	}

	var newRequested, newCompleted, flipped []string
	statusUpdates := make(map[string]string, len(rows))
	for _, row := range rows {
		statuses := row.StatusNames(p.cfg.NotionStatusProperty)
		statusUpdates[row.ID] = strings.Join(statuses, ",")

		if _, isNew := added[row.ID]; isNew {
			if anyCompleted(statuses) {
				newCompleted = append(newCompleted, p.featureLine(row))
			} else {
				newRequested = append(newRequested, p.featureLine(row))
			}
			continue
		}
		// Flip scan is independent of additions: any known row that went
		// from not-completed to completed gets exactly one notice.
		stored, seen := p.baseline.FeatureStatus(row.ID)
		if seen && !anyCompleted(splitStoredStatuses(stored)) && anyCompleted(statuses) {
			flipped = append(flipped, p.featureLine(row))
		}
	}

	channelID := p.cfg.DiscordFeatureChannelID
	if err := p.sendLongMessage(channelID, messageFeatureRequestedHeader, newRequested); err != nil {
		slog.Error("failed to deliver feature request notice; baseline not advanced", "error", err)
		return
	}
	if err := p.sendLongMessage(channelID, messageFeatureCompletedHeader, newCompleted); err != nil {
		slog.Error("failed to deliver feature completion notice; baseline not advanced", "error", err)
		return
	}
	if err := p.sendLongMessage(channelID, messageFeatureCompletedHeader, flipped); err != nil {
		slog.Error("failed to deliver status flip notice; baseline not advanced", "error", err)
		return
	}

	p.baseline.ReplaceKnownIDs(state.CollectionFeatures, current)
	for id, status := range statusUpdates {
		p.baseline.SetFeatureStatus(id, status)
	}
	p.saveBaseline()
	if len(added) > 0 || len(flipped) > 0 {
		slog.Info("feature changes notified", "added", len(added), "flipped", len(flipped))
	}
}

func (p *Poller) pollBoards(ctx context.Context) {
	rows, err := p.queryLatest(ctx, p.cfg.NotionBoardDatabaseID)
	if err != nil {
		slog.Warn("board query failed; skipping cycle", "error", err)
		return
	}
	current := rowIDSet(rows)
	added := subtract(current, p.baseline.KnownIDs(state.CollectionBoards))
	if len(added) == 0 {
		return
	}
	if err := p.discord.SendChannelMessage(p.cfg.DiscordAlarmChannelID, messageBoardNewPost); err != nil {
		slog.Error("failed to deliver board notice; baseline not advanced", "error", err)
		return
	}
	p.baseline.ReplaceKnownIDs(state.CollectionBoards, current)
	p.saveBaseline()
	slog.Info("board changes notified", "added", len(added))
}

func (p *Poller) pollScheduleAnnouncements(ctx context.Context) {
	rows, err := p.queryLatest(ctx, p.cfg.NotionScheduleDatabaseID)
	if err != nil {
		slog.Warn("schedule announcement query failed; skipping cycle", "error", err)
		return
	}
	current := rowIDSet(rows)
	added := subtract(current, p.baseline.KnownIDs(state.CollectionSchedules))
	if len(added) == 0 {
		return
	}

	p.sleep(settleDelay)
	refreshed, err := p.queryLatest(ctx, p.cfg.NotionScheduleDatabaseID)
	if err != nil {
		slog.Warn("schedule re-fetch failed; skipping cycle", "error", err)
		return
	}

	lines := make([]string, 0, len(added))
	for _, row := range refreshed {
		if _, isNew := added[row.ID]; !isNew {
			continue
		}
		lines = append(lines, p.scheduleLine(row))
	}
	if err := p.sendLongMessage(p.cfg.DiscordAlarmChannelID, messageScheduleRegisteredHeader, lines); err != nil {
		slog.Error("failed to deliver schedule notice; baseline not advanced", "error", err)
		return
	}
	p.baseline.ReplaceKnownIDs(state.CollectionSchedules, current)
	p.saveBaseline()
	slog.Info("schedule changes notified", "added", len(added))
}

func (p *Poller) scheduleLine(row notion.Row) string {
	window := ""
	if date, ok := row.Date(p.cfg.NotionDateProperty); ok {
		window = trimToMinute(date.Start)
		if date.End != "" {
			window += " ~ " + trimToMinute(date.End)
		}
	}
	tags := row.MultiSelect(p.cfg.NotionTagsProperty)
	label := "(タグなし)"
	if len(tags) > 0 {
		label = strings.Join(tags, ", ")
	}
	return fmt.Sprintf("- %s：%s", label, window)
}
