package poller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/foxseedlab/mimamorin/internal/state"
)

const (
	// Just-created rows can have half-populated properties; wait before
	// re-fetching details for anything that showed up in the diff.
	settleDelay = 20 * time.Second

	// Stay under Discord's message size ceiling with headroom for the
	// header line.
	messageChunkLimit = 1900

	queryPageSize = 50
)

// Poller refreshes the schedule index and runs change detection against
// every configured external collection, once per poll interval. It is the
// single writer of the schedule index and the baselines.
type Poller struct {
	cfg      *config.Config
	notion   notion.Client
	discord  discord.Client
	index    *schedule.Index
	baseline *state.Baseline
	aliases  schedule.AliasTable
	loc      *time.Location

	now   func() time.Time
	sleep func(time.Duration)
}

func New(cfg *config.Config, nc notion.Client, dc discord.Client, index *schedule.Index, baseline *state.Baseline, aliases schedule.AliasTable) *Poller {
	return &Poller{
		cfg:      cfg,
		notion:   nc,
		discord:  dc,
		index:    index,
		baseline: baseline,
		aliases:  aliases,
		loc:      cfg.Location(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

func (p *Poller) Run(ctx context.Context) {
	if !p.cfg.ScheduleWatchEnabled() && !p.cfg.FeatureWatchEnabled() && !p.cfg.BoardWatchEnabled() {
		slog.Info("notion polling disabled; no token or database ids configured")
		return
	}
	slog.Info("notion poller started", "interval", p.cfg.PollInterval())
	ticker := time.NewTicker(p.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("notion poller stopped")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce runs every subsystem independently; one collection's failure
// never blocks the others.
func (p *Poller) pollOnce(ctx context.Context) {
	if p.cfg.ScheduleWatchEnabled() {
		p.refreshScheduleIndex(ctx)
	}
	if p.cfg.FeatureWatchEnabled() {
		p.pollFeatures(ctx)
	}
	if p.cfg.BoardWatchEnabled() {
		p.pollBoards(ctx)
	}
	if p.cfg.ScheduleAnnounceEnabled() {
		p.pollScheduleAnnouncements(ctx)
	}
}

func (p *Poller) queryLatest(ctx context.Context, databaseID string) ([]notion.Row, error) {
	return p.notion.QueryDatabase(ctx, databaseID, notion.Query{
		PageSize:   queryPageSize,
		SortLatest: true,
	})
}

// subtract returns current minus known.
func subtract(current, known map[string]struct{}) map[string]struct{} {
	added := make(map[string]struct{})
	for id := range current {
		if _, ok := known[id]; !ok {
			added[id] = struct{}{}
		}
	}
	return added
}

func rowIDSet(rows []notion.Row) map[string]struct{} {
	ids := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		ids[row.ID] = struct{}{}
	}
	return ids
}

// sendLongMessage splits the body into chunks under the transport limit,
// always on line boundaries.
func (p *Poller) sendLongMessage(channelID, header string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	current := ""
	if header != "" {
		current = header + "\n"
	}
	for _, line := range lines {
		if len(current)+len(line) > messageChunkLimit {
			if err := p.discord.SendChannelMessage(channelID, current); err != nil {
				return err
			}
			current = ""
		}
		current += line + "\n"
	}
	if current == "" {
		return nil
	}
	return p.discord.SendChannelMessage(channelID, current)
}

func (p *Poller) saveBaseline() {
	if err := p.baseline.Save(); err != nil {
		slog.Error("failed to persist change detector baselines", "error", err)
	}
}

// trimToMinute turns a provider ISO timestamp into "2006-01-02 15:04" for
// human-facing notifications.
func trimToMinute(iso string) string {
	if iso == "" {
		return ""
	}
	datePart, timePart, found := strings.Cut(iso, "T")
	if !found {
		return iso
	}
	if len(timePart) > 5 {
		timePart = timePart[:5]
	}
	return datePart + " " + timePart
}
