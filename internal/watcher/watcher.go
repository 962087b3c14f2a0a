package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/repository"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/foxseedlab/mimamorin/internal/state"
	"github.com/foxseedlab/mimamorin/internal/webhook"
)

const (
	// The watch sequence wakes twice: one minute after departure, then at
	// the ten-minute mark. The deadlines are checkpoints, not cancellable
	// timers; each wake re-queries live presence and exits when the member
	// is back.
	graceFirstWait  = 60 * time.Second
	graceSecondWait = 540 * time.Second

	// Short pause before enumerating absentees so near-simultaneous joins
	// settle into the voice state cache.
	activitySettleDelay = time.Second

	mentionChunkSize = 40

	wallClockLayout = "15:04"
)

type Watcher struct {
	cfg     *config.Config
	store   *state.Store
	index   *schedule.Index
	discord discord.Client
	notion  notion.Client
	repo    repository.Repository
	webhook webhook.Sender
	aliases schedule.AliasTable
	loc     *time.Location

	now   func() time.Time
	sleep func(time.Duration)

	mu            sync.Mutex
	channelActive bool
	lastAlertAt   time.Time
}

func NewWatcher(cfg *config.Config, store *state.Store, index *schedule.Index, dc discord.Client, nc notion.Client, repo repository.Repository, wh webhook.Sender, aliases schedule.AliasTable) *Watcher {
	return &Watcher{
		cfg:     cfg,
		store:   store,
		index:   index,
		discord: dc,
		notion:  nc,
		repo:    repo,
		webhook: wh,
		aliases: aliases,
		loc:     cfg.Location(),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

func (w *Watcher) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.GuildID != w.cfg.DiscordGuildID {
		return
	}
	if event.UserIsBot {
		return
	}
	target := w.cfg.DiscordVCID
	entered := event.BeforeChannelID != target && event.AfterChannelID == target
	left := event.BeforeChannelID == target && event.AfterChannelID != target
	switch {
	case entered:
		w.handleJoin(event)
	case left:
		w.handleLeave(event)
	}
}

func (w *Watcher) handleJoin(event discord.VoiceStateEvent) {
	now := w.now().In(w.loc)
	slog.Info("member entered monitored channel", "user_id", event.UserID)
	w.store.RecordSessionStart(event.UserID, now)
	w.saveState()

	if w.shouldAnnounceActivity(now) {
		go w.announceActivity(event.UserID)
	}
}

// shouldAnnounceActivity applies the empty-to-occupied transition and the
// cooldown gate. It flips channelActive and stamps the alert time under the
// lock so concurrent joins trigger at most one announcement.
func (w *Watcher) shouldAnnounceActivity(now time.Time) bool {
	participants, err := w.discord.ListVoiceChannelParticipants(w.cfg.DiscordGuildID, w.cfg.DiscordVCID)
	if err != nil {
		slog.Warn("failed to list voice channel participants", "error", err)
		return false
	}
	if countHumans(participants) == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.channelActive {
		return false
	}
	// A suppressed join leaves channelActive false: once the cooldown
	// expires, the next join may still announce the ongoing occupancy.
	if !w.lastAlertAt.IsZero() && now.Sub(w.lastAlertAt) <= w.cfg.ActivityCooldown() {
		return false
	}
	w.channelActive = true
	w.lastAlertAt = now
	return true
}

func (w *Watcher) announceActivity(joinedUserID string) {
	if w.cfg.DiscordReportChannelID == "" {
		return
	}
	w.sleep(activitySettleDelay)

	channelName, err := w.discord.GetChannelName(w.cfg.DiscordVCID)
	if err != nil {
		slog.Warn("failed to resolve monitored channel name", "error", err, "channel_id", w.cfg.DiscordVCID)
		channelName = w.cfg.DiscordVCID
	}
	header := fmt.Sprintf(messageActivityHeaderFormat, channelName)

	absent, err := w.absentMemberIDs()
	if err != nil {
		slog.Warn("failed to enumerate absent members", "error", err)
		return
	}
	if len(absent) == 0 {
		if err := w.discord.SendChannelMessage(w.cfg.DiscordReportChannelID, header); err != nil {
			slog.Error("failed to send channel activity notice", "error", err)
		}
		return
	}
	w.sendMentionChunks(w.cfg.DiscordReportChannelID, header, absent)
	slog.Info("channel activity alert sent", "joined_user_id", joinedUserID, "absent_members", len(absent))
}

func (w *Watcher) absentMemberIDs() ([]string, error) {
	members, err := w.discord.ListGuildMembers(w.cfg.DiscordGuildID)
	if err != nil {
		return nil, err
	}
	participants, err := w.discord.ListVoiceChannelParticipants(w.cfg.DiscordGuildID, w.cfg.DiscordVCID)
	if err != nil {
		return nil, err
	}
	inChannel := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		inChannel[p.UserID] = struct{}{}
	}
	absent := make([]string, 0, len(members))
	for _, m := range members {
		if m.IsBot {
			continue
		}
		if _, present := inChannel[m.UserID]; present {
			continue
		}
		absent = append(absent, m.UserID)
	}
	return absent, nil
}

func (w *Watcher) sendMentionChunks(channelID, header string, userIDs []string) {
	for start := 0; start < len(userIDs); start += mentionChunkSize {
		end := start + mentionChunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		mentions := make([]string, 0, end-start)
		for _, userID := range userIDs[start:end] {
			mentions = append(mentions, mention(userID))
		}
		text := strings.Join(mentions, " ")
		if header != "" {
			text += "\n" + header
		}
		if err := w.discord.SendChannelMessage(channelID, text); err != nil {
			slog.Error("failed to send mention chunk", "error", err, "channel_id", channelID)
			return
		}
	}
}

func (w *Watcher) handleLeave(event discord.VoiceStateEvent) {
	leftAt := w.now().In(w.loc)
	elapsed := w.store.CloseSession(event.UserID, leftAt)
	slog.Info("member left monitored channel", "user_id", event.UserID, "elapsed_sec", elapsed)

	// The schedule snapshot is captured here, at departure time. The watch
	// sequence keeps using it even if a later poll cycle evicts the entry.
	entry, hasSchedule := w.index.Get(event.UserID)
	if hasSchedule {
		w.applyScheduleProgress(entry, elapsed)
	}
	w.saveState()
	w.markInactiveWhenEmpty()

	if hasSchedule {
		go w.runWatchSequence(event.UserID, entry, leftAt)
	}
}

func (w *Watcher) applyScheduleProgress(entry schedule.Entry, elapsed int64) {
	total := w.store.AddScheduleProgress(entry.PageID, elapsed)
	planned := int64(entry.PlannedDuration().Seconds())
	if planned <= 0 || total < planned {
		return
	}
	if w.store.IsPraised(entry.PageID) {
		return
	}
	w.store.MarkPraised(entry.PageID)
	overtimeMin := (total - planned) / 60
	if w.cfg.DiscordReportChannelID == "" {
		return
	}
	msg := fmt.Sprintf(messagePraiseFormat, entry.UserID, overtimeMin)
	if err := w.discord.SendChannelMessage(w.cfg.DiscordReportChannelID, msg); err != nil {
		slog.Error("failed to send praise message", "error", err, "user_id", entry.UserID, "page_id", entry.PageID)
	}
}

func (w *Watcher) markInactiveWhenEmpty() {
	participants, err := w.discord.ListVoiceChannelParticipants(w.cfg.DiscordGuildID, w.cfg.DiscordVCID)
	if err != nil {
		slog.Warn("failed to list voice channel participants", "error", err)
		return
	}
	if countHumans(participants) > 0 {
		return
	}
	w.mu.Lock()
	w.channelActive = false
	w.mu.Unlock()
}

// runWatchSequence is the per-departure state machine. There is no
// cancellation token: each wake re-queries live presence and a returned
// member simply makes the sequence exit without side effects.
func (w *Watcher) runWatchSequence(userID string, entry schedule.Entry, leftAt time.Time) {
	w.sleep(graceFirstWait)
	if w.isBackInChannel(userID) {
		slog.Info("member returned within first grace period", "user_id", userID, "page_id", entry.PageID)
		return
	}
	now := w.now().In(w.loc)
	if now.Before(entry.End) {
		w.sendChaseAlert(userID, entry, now)
	}

	w.sleep(graceSecondWait)
	if w.isBackInChannel(userID) {
		slog.Info("member returned within second grace period", "user_id", userID, "page_id", entry.PageID)
		return
	}
	if !leftAt.Before(entry.End) {
		return
	}
	w.correctScheduleEnd(userID, entry, leftAt)
}

// isBackInChannel treats a failed presence lookup as "not back" so an alert
// is never silently lost.
func (w *Watcher) isBackInChannel(userID string) bool {
	channelID, err := w.discord.GetUserVoiceChannelID(w.cfg.DiscordGuildID, userID)
	if err != nil {
		slog.Warn("presence recheck failed; treating member as absent", "error", err, "user_id", userID)
		return false
	}
	return channelID == w.cfg.DiscordVCID
}

func (w *Watcher) sendChaseAlert(userID string, entry schedule.Entry, now time.Time) {
	channelID := w.cfg.ChaseChannelID()
	if channelID == "" {
		return
	}
	minutesLeft := int(entry.End.Sub(now).Minutes())
	msg := fmt.Sprintf(messageChaseAlertFormat, userID, entry.End.In(w.loc).Format(wallClockLayout), minutesLeft)
	if err := w.discord.SendChannelMessage(channelID, msg); err != nil {
		slog.Error("failed to send chase alert", "error", err, "user_id", userID, "page_id", entry.PageID)
	}
}

func (w *Watcher) correctScheduleEnd(userID string, entry schedule.Entry, leftAt time.Time) {
	err := w.notion.UpdatePageDate(context.Background(), entry.PageID, w.cfg.NotionDateProperty, entry.Start.In(w.loc), leftAt)
	if err != nil {
		slog.Error("failed to patch schedule end time", "error", err, "page_id", entry.PageID, "user_id", userID)
	} else {
		slog.Info("schedule end time corrected", "page_id", entry.PageID, "user_id", userID, "left_at", leftAt)
	}

	channelID := w.cfg.DiscordAlarmChannelID
	if channelID == "" {
		return
	}
	msg := fmt.Sprintf(messageCorrectedFormat, userID, leftAt.Format(wallClockLayout))
	if err := w.discord.SendChannelMessage(channelID, msg); err != nil {
		slog.Error("failed to send correction notice", "error", err, "user_id", userID, "page_id", entry.PageID)
	}
}

func (w *Watcher) saveState() {
	if err := w.store.Save(); err != nil {
		slog.Error("failed to persist watcher state", "error", err)
	}
}

func countHumans(participants []discord.VoiceParticipant) int {
	n := 0
	for _, p := range participants {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}
