package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/schedule"
)

const isoDateLayout = "2006-01-02"

// refreshScheduleIndex rebuilds the member-to-schedule mapping from the
// provider and replaces the shared index atomically. Rows that resolve to no
// platform member are discarded silently; rows failing the retention
// predicate are not re-affirmed and therefore drop out of the index.
func (p *Poller) refreshScheduleIndex(ctx context.Context) {
	now := p.now().In(p.loc)
	rows, err := p.notion.QueryDatabase(ctx, p.cfg.NotionScheduleDatabaseID, notion.Query{
		DateProperty:  p.cfg.NotionDateProperty,
		DateOnOrAfter: now.Format(isoDateLayout),
		PageSize:      queryPageSize,
	})
	if err != nil {
		slog.Warn("schedule query failed; keeping previous index", "error", err)
		return
	}
	members, err := p.discord.ListGuildMembers(p.cfg.DiscordGuildID)
	if err != nil {
		slog.Warn("guild member listing failed; keeping previous index", "error", err)
		return
	}

	entries := make(map[string]schedule.Entry)
	for _, row := range rows {
		date, ok := row.Date(p.cfg.NotionDateProperty)
		if !ok || date.End == "" {
			continue
		}
		start, err := notion.ParseTime(date.Start, p.loc)
		if err != nil {
			slog.Warn("dropping schedule row with unparsable start", "page_id", row.ID, "value", date.Start)
			continue
		}
		end, err := notion.ParseTime(date.End, p.loc)
		if err != nil {
			slog.Warn("dropping schedule row with unparsable end", "page_id", row.ID, "value", date.End)
			continue
		}

		member, providerName, ok := p.resolveMember(row.MultiSelect(p.cfg.NotionTagsProperty), members)
		if !ok {
			continue
		}
		// First matched row wins when a member has overlapping schedules.
		if _, taken := entries[member.UserID]; taken {
			continue
		}
		entry := schedule.Entry{
			UserID: member.UserID,
			PageID: row.ID,
			Name:   providerName,
			Start:  start,
			End:    end,
		}
		if !p.retainEntry(entry, now) {
			continue
		}
		entries[member.UserID] = entry
	}
	p.index.ReplaceAll(entries)
	slog.Debug("schedule index refreshed", "entries", len(entries), "rows", len(rows))
}

// resolveMember maps the row's provider tags to a platform member: alias
// table first, then display name, then account name.
func (p *Poller) resolveMember(tagNames []string, members []discord.GuildMember) (discord.GuildMember, string, bool) {
	for _, raw := range tagNames {
		target := p.aliases.Resolve(raw)
		for _, m := range members {
			if m.DisplayName == target {
				return m, raw, true
			}
		}
		for _, m := range members {
			if m.Username == target {
				return m, raw, true
			}
		}
	}
	return discord.GuildMember{}, "", false
}

// retainEntry keeps a row iff the window has started AND (it has not ended
// beyond the grace buffer OR the member is still in the monitored channel).
// An overtime session keeps its entry alive as long as the member stays
// connected.
func (p *Poller) retainEntry(entry schedule.Entry, now time.Time) bool {
	if now.Before(entry.Start) {
		return false
	}
	if !now.After(entry.End.Add(p.cfg.GraceBuffer())) {
		return true
	}
	channelID, err := p.discord.GetUserVoiceChannelID(p.cfg.DiscordGuildID, entry.UserID)
	if err != nil {
		slog.Warn("presence check failed during index refresh; treating member as absent", "error", err, "user_id", entry.UserID)
		return false
	}
	return channelID == p.cfg.DiscordVCID
}
