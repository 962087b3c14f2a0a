package poller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/foxseedlab/mimamorin/internal/state"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeDiscordClient struct {
	sent           []sentMessage
	sendErr        error
	members        []discord.GuildMember
	membersErr     error
	userChannels   map[string]string
	userChannelErr error
}

func (f *fakeDiscordClient) Connect(_ context.Context) error { return nil }
func (f *fakeDiscordClient) Close() error                    { return nil }

func (f *fakeDiscordClient) SendChannelMessage(channelID, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return nil
}

func (f *fakeDiscordClient) RegisterVoiceStateUpdateHandler(_ func(discord.VoiceStateEvent)) {}
func (f *fakeDiscordClient) RegisterSlashCommandHandler(_ func(discord.SlashCommandEvent))  {}

func (f *fakeDiscordClient) UpsertGuildSlashCommands(_ string, _ []discord.SlashCommandDefinition) error {
	return nil
}

func (f *fakeDiscordClient) GetUserVoiceChannelID(_, userID string) (string, error) {
	if f.userChannelErr != nil {
		return "", f.userChannelErr
	}
	return f.userChannels[userID], nil
}

func (f *fakeDiscordClient) ListVoiceChannelParticipants(_, _ string) ([]discord.VoiceParticipant, error) {
	return nil, nil
}

func (f *fakeDiscordClient) ListGuildMembers(_ string) ([]discord.GuildMember, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members, nil
}

func (f *fakeDiscordClient) GetChannelName(_ string) (string, error) { return "vc", nil }
func (f *fakeDiscordClient) GetBotUserID() (string, error)          { return "bot", nil }
func (f *fakeDiscordClient) Run() error                             { return nil }

type fakeNotionClient struct {
	rowsByDatabase map[string][]notion.Row
	queryErr       error
	queryCount     int
}

func (f *fakeNotionClient) QueryDatabase(_ context.Context, databaseID string, _ notion.Query) ([]notion.Row, error) {
	f.queryCount++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rowsByDatabase[databaseID], nil
}

func (f *fakeNotionClient) UpdatePageDate(_ context.Context, _, _ string, _, _ time.Time) error {
	return nil
}

func featureRow(id, title, desc, status string) notion.Row {
	props := map[string]notion.Property{
		"내용": {Type: "title", Text: title},
		"설명": {Type: "rich_text", Text: desc},
	}
	if status != "" {
		props["상태"] = notion.Property{Type: "status", Options: []string{status}}
	}
	return notion.Row{ID: id, Properties: props}
}

func scheduleRow(id string, tags []string, start, end string) notion.Row {
	return notion.Row{ID: id, Properties: map[string]notion.Property{
		"날짜": {Type: "date", Date: &notion.DateValue{Start: start, End: end}},
		"태그": {Type: "multi_select", Options: tags},
	}}
}

type pollerFixture struct {
	poller  *Poller
	discord *fakeDiscordClient
	notion  *fakeNotionClient
	index   *schedule.Index
	base    *state.Baseline
	nowAt   time.Time
}

func newPollerFixture(t *testing.T) *pollerFixture {
	t.Helper()
	cfg := &config.Config{
		Env:                      "test",
		DiscordToken:             "token",
		DiscordGuildID:           "guild-1",
		DiscordVCID:              "vc-1",
		DiscordAlarmChannelID:    "alarm-1",
		DiscordFeatureChannelID:  "feature-1",
		NotionToken:              "secret",
		NotionScheduleDatabaseID: "db-sched",
		NotionFeatureDatabaseID:  "db-feat",
		NotionBoardDatabaseID:    "db-board",
		NotionDateProperty:       "날짜",
		NotionTagsProperty:       "태그",
		NotionStatusProperty:     "상태",
		NotionTitleProperty:      "내용",
		NotionDescProperty:       "설명",
		ProviderTimezone:         "UTC",
		StateFilePath:            filepath.Join(t.TempDir(), "state.json"),
		BaselineFilePath:         filepath.Join(t.TempDir(), "baseline.json"),
		PollIntervalSec:          60,
		ActivityCooldownSec:      600,
		GraceBufferMin:           30,
	}
	dc := &fakeDiscordClient{userChannels: map[string]string{}}
	nc := &fakeNotionClient{rowsByDatabase: map[string][]notion.Row{}}
	index := schedule.NewIndex()
	base := state.NewBaseline(cfg.BaselineFilePath)
	aliases := schedule.AliasTable{"수진": "sujin"}

	p := New(cfg, nc, dc, index, base, aliases)
	fixture := &pollerFixture{poller: p, discord: dc, notion: nc, index: index, base: base}
	fixture.nowAt = time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixture.nowAt }
	p.sleep = func(time.Duration) {}
	return fixture
}

func TestPollFeaturesNotifiesAdditionsOnce(t *testing.T) {
	f := newPollerFixture(t)
	f.base.ReplaceKnownIDs(state.CollectionFeatures, map[string]struct{}{"f-1": {}, "f-2": {}})
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-2", "既存", "既存の説明", "진행중"),
		featureRow("f-3", "新機能", "説明文", "요청"),
	}

	f.poller.pollFeatures(context.Background())

	if len(f.discord.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.discord.sent))
	}
	msg := f.discord.sent[0]
	if msg.channelID != "feature-1" {
		t.Errorf("feature notice should go to the feature channel, got %s", msg.channelID)
	}
	if !strings.HasPrefix(msg.content, messageFeatureRequestedHeader) {
		t.Errorf("expected requested header, got:\n%s", msg.content)
	}
	if !strings.Contains(msg.content, "- 新機能：説明文") {
		t.Errorf("expected the new row's line, got:\n%s", msg.content)
	}
	if strings.Contains(msg.content, "既存") {
		t.Errorf("already known rows must not be re-announced:\n%s", msg.content)
	}

	// Stale f-1 drops out, f-3 is now known; the next cycle is silent.
	f.poller.pollFeatures(context.Background())
	if len(f.discord.sent) != 1 {
		t.Errorf("second cycle with no changes should be silent, got %d messages", len(f.discord.sent))
	}
	known := f.base.KnownIDs(state.CollectionFeatures)
	if _, ok := known["f-1"]; ok {
		t.Error("rows gone from the query result should leave the baseline")
	}
	if _, ok := known["f-3"]; !ok {
		t.Error("new rows should enter the baseline")
	}
}

func TestPollFeaturesClassifiesCompletedAdditions(t *testing.T) {
	f := newPollerFixture(t)
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-1", "即日対応", "説明", "완료"),
	}

	f.poller.pollFeatures(context.Background())

	if len(f.discord.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.discord.sent))
	}
	if !strings.HasPrefix(f.discord.sent[0].content, messageFeatureCompletedHeader) {
		t.Errorf("a row born completed belongs under the completed header:\n%s", f.discord.sent[0].content)
	}
}

func TestPollFeaturesRefetchesAfterSettleDelay(t *testing.T) {
	f := newPollerFixture(t)
	var slept []time.Duration
	f.poller.sleep = func(d time.Duration) { slept = append(slept, d) }
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-1", "新機能", "説明", ""),
	}

	f.poller.pollFeatures(context.Background())

	if len(slept) != 1 || slept[0] != settleDelay {
		t.Errorf("expected one settle pause of %v, got %v", settleDelay, slept)
	}
	if f.notion.queryCount != 2 {
		t.Errorf("an addition should trigger a re-fetch, got %d queries", f.notion.queryCount)
	}
}

func TestPollFeaturesStatusFlipNotifiesExactlyOnce(t *testing.T) {
	f := newPollerFixture(t)
	f.base.ReplaceKnownIDs(state.CollectionFeatures, map[string]struct{}{"f-1": {}})
	f.base.SetFeatureStatus("f-1", "진행중")
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-1", "機能A", "説明", "완료"),
	}

	f.poller.pollFeatures(context.Background())
	if len(f.discord.sent) != 1 {
		t.Fatalf("expected one flip notification, got %d", len(f.discord.sent))
	}
	if !strings.HasPrefix(f.discord.sent[0].content, messageFeatureCompletedHeader) {
		t.Errorf("flip notice should use the completed header:\n%s", f.discord.sent[0].content)
	}

	f.poller.pollFeatures(context.Background())
	if len(f.discord.sent) != 1 {
		t.Errorf("an already notified flip must not fire again, got %d messages", len(f.discord.sent))
	}
}

func TestPollFeaturesCompletedSynonymsDoNotRetrigger(t *testing.T) {
	f := newPollerFixture(t)
	f.base.ReplaceKnownIDs(state.CollectionFeatures, map[string]struct{}{"f-1": {}})
	f.base.SetFeatureStatus("f-1", "Done")
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-1", "機能A", "説明", "완료"),
	}

	f.poller.pollFeatures(context.Background())

	if len(f.discord.sent) != 0 {
		t.Errorf("moving between completed labels is not a flip, got %d messages", len(f.discord.sent))
	}
}

func TestPollFeaturesKeepsBaselineOnDeliveryFailure(t *testing.T) {
	f := newPollerFixture(t)
	f.discord.sendErr = fmt.Errorf("discord unavailable")
	f.notion.rowsByDatabase["db-feat"] = []notion.Row{
		featureRow("f-1", "新機能", "説明", ""),
	}

	f.poller.pollFeatures(context.Background())
	if _, ok := f.base.KnownIDs(state.CollectionFeatures)["f-1"]; ok {
		t.Fatal("baseline must not advance when delivery fails")
	}

	// Delivery recovers; the same addition is retried on the next cycle.
	f.discord.sendErr = nil
	f.poller.pollFeatures(context.Background())
	if len(f.discord.sent) != 1 {
		t.Fatalf("expected the retried notification, got %d messages", len(f.discord.sent))
	}
	if _, ok := f.base.KnownIDs(state.CollectionFeatures)["f-1"]; !ok {
		t.Error("baseline should advance after a successful retry")
	}
}

func TestPollBoardsNotifiesOnce(t *testing.T) {
	f := newPollerFixture(t)
	f.notion.rowsByDatabase["db-board"] = []notion.Row{{ID: "b-1"}}

	f.poller.pollBoards(context.Background())
	if len(f.discord.sent) != 1 {
		t.Fatalf("expected one board notice, got %d", len(f.discord.sent))
	}
	if f.discord.sent[0].channelID != "alarm-1" || f.discord.sent[0].content != messageBoardNewPost {
		t.Errorf("unexpected board notice: %+v", f.discord.sent[0])
	}

	f.poller.pollBoards(context.Background())
	if len(f.discord.sent) != 1 {
		t.Errorf("a known board post must not re-notify, got %d messages", len(f.discord.sent))
	}
}

func TestPollScheduleAnnouncements(t *testing.T) {
	f := newPollerFixture(t)
	f.notion.rowsByDatabase["db-sched"] = []notion.Row{
		scheduleRow("s-1", []string{"수진"}, "2026-08-26T15:00:00", "2026-08-26T17:30:00"),
	}

	f.poller.pollScheduleAnnouncements(context.Background())

	if len(f.discord.sent) != 1 {
		t.Fatalf("expected one schedule notice, got %d", len(f.discord.sent))
	}
	msg := f.discord.sent[0]
	if !strings.HasPrefix(msg.content, messageScheduleRegisteredHeader) {
		t.Errorf("expected registered header, got:\n%s", msg.content)
	}
	want := "- 수진：2026-08-26 15:00 ~ 2026-08-26 17:30"
	if !strings.Contains(msg.content, want) {
		t.Errorf("expected line %q, got:\n%s", want, msg.content)
	}
}

func TestRefreshScheduleIndexResolvesMembers(t *testing.T) {
	f := newPollerFixture(t)
	f.discord.members = []discord.GuildMember{
		{UserID: "user-1", Username: "sujin_acct", DisplayName: "sujin"},
		{UserID: "user-2", Username: "minho", DisplayName: "민호"},
	}
	f.notion.rowsByDatabase["db-sched"] = []notion.Row{
		// Resolved through the alias table.
		scheduleRow("s-1", []string{"수진"}, "2026-08-26T13:00:00", "2026-08-26T16:00:00"),
		// Resolved by account name.
		scheduleRow("s-2", []string{"minho"}, "2026-08-26T13:30:00", "2026-08-26T15:00:00"),
		// No matching member.
		scheduleRow("s-3", []string{"누군가"}, "2026-08-26T13:00:00", "2026-08-26T16:00:00"),
	}

	f.poller.refreshScheduleIndex(context.Background())

	if got := f.index.Len(); got != 2 {
		t.Fatalf("expected 2 index entries, got %d", got)
	}
	entry, ok := f.index.Get("user-1")
	if !ok {
		t.Fatal("expected an entry for the aliased member")
	}
	if entry.PageID != "s-1" || entry.Name != "수진" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	wantEnd := time.Date(2026, 8, 26, 16, 0, 0, 0, time.UTC)
	if !entry.End.Equal(wantEnd) {
		t.Errorf("entry end mismatch: got %v, want %v", entry.End, wantEnd)
	}
	if _, ok := f.index.Get("user-2"); !ok {
		t.Error("expected an entry for the account-name match")
	}
}

func TestRefreshScheduleIndexFirstMatchedRowWins(t *testing.T) {
	f := newPollerFixture(t)
	f.discord.members = []discord.GuildMember{
		{UserID: "user-1", Username: "sujin_acct", DisplayName: "sujin"},
	}
	f.notion.rowsByDatabase["db-sched"] = []notion.Row{
		scheduleRow("s-1", []string{"수진"}, "2026-08-26T13:00:00", "2026-08-26T16:00:00"),
		scheduleRow("s-2", []string{"수진"}, "2026-08-26T13:00:00", "2026-08-26T18:00:00"),
	}

	f.poller.refreshScheduleIndex(context.Background())

	entry, ok := f.index.Get("user-1")
	if !ok {
		t.Fatal("expected an entry")
	}
	if entry.PageID != "s-1" {
		t.Errorf("the first matched row should win, got %s", entry.PageID)
	}
}

func TestRefreshScheduleIndexRetention(t *testing.T) {
	f := newPollerFixture(t)
	f.discord.members = []discord.GuildMember{
		{UserID: "user-1", Username: "a1", DisplayName: "alpha"},
		{UserID: "user-2", Username: "a2", DisplayName: "bravo"},
		{UserID: "user-3", Username: "a3", DisplayName: "charlie"},
		{UserID: "user-4", Username: "a4", DisplayName: "delta"},
	}
	// now is 14:00 UTC; the grace buffer is 30 minutes.
	f.notion.rowsByDatabase["db-sched"] = []notion.Row{
		// Not started yet.
		scheduleRow("s-1", []string{"alpha"}, "2026-08-26T15:00:00", "2026-08-26T17:00:00"),
		// Ended 31 minutes ago, member absent.
		scheduleRow("s-2", []string{"bravo"}, "2026-08-26T10:00:00", "2026-08-26T13:29:00"),
		// Ended 31 minutes ago, member still connected.
		scheduleRow("s-3", []string{"charlie"}, "2026-08-26T10:00:00", "2026-08-26T13:29:00"),
		// Still inside the grace buffer.
		scheduleRow("s-4", []string{"delta"}, "2026-08-26T10:00:00", "2026-08-26T13:45:00"),
	}
	f.discord.userChannels["user-3"] = "vc-1"

	f.poller.refreshScheduleIndex(context.Background())

	if _, ok := f.index.Get("user-1"); ok {
		t.Error("a window that has not started must not be indexed")
	}
	if _, ok := f.index.Get("user-2"); ok {
		t.Error("an expired window with an absent member must be evicted")
	}
	if _, ok := f.index.Get("user-3"); !ok {
		t.Error("an expired window with a connected member must be retained")
	}
	if _, ok := f.index.Get("user-4"); !ok {
		t.Error("a window inside the grace buffer must be retained")
	}
}

func TestRefreshScheduleIndexPresenceErrorEvicts(t *testing.T) {
	f := newPollerFixture(t)
	f.discord.members = []discord.GuildMember{
		{UserID: "user-1", Username: "a1", DisplayName: "alpha"},
	}
	f.discord.userChannelErr = fmt.Errorf("gateway timeout")
	f.notion.rowsByDatabase["db-sched"] = []notion.Row{
		scheduleRow("s-1", []string{"alpha"}, "2026-08-26T10:00:00", "2026-08-26T13:00:00"),
	}

	f.poller.refreshScheduleIndex(context.Background())

	if _, ok := f.index.Get("user-1"); ok {
		t.Error("a failed presence check during refresh treats the member as absent")
	}
}

func TestRefreshScheduleIndexKeepsPreviousOnQueryFailure(t *testing.T) {
	f := newPollerFixture(t)
	f.index.ReplaceAll(map[string]schedule.Entry{
		"user-1": {UserID: "user-1", PageID: "s-1"},
	})
	f.notion.queryErr = fmt.Errorf("notion is down")

	f.poller.refreshScheduleIndex(context.Background())

	if _, ok := f.index.Get("user-1"); !ok {
		t.Error("a failed query must keep the previous index")
	}
}

func TestSendLongMessageSplitsOnLineBoundaries(t *testing.T) {
	f := newPollerFixture(t)
	line := strings.Repeat("あ", 100)
	lines := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		lines = append(lines, line)
	}

	if err := f.poller.sendLongMessage("feature-1", "header", lines); err != nil {
		t.Fatalf("sendLongMessage: %v", err)
	}

	if len(f.discord.sent) < 2 {
		t.Fatalf("expected the body to split into multiple messages, got %d", len(f.discord.sent))
	}
	if !strings.HasPrefix(f.discord.sent[0].content, "header\n") {
		t.Error("the first chunk should start with the header")
	}
	total := 0
	for i, msg := range f.discord.sent {
		if len(msg.content) > messageChunkLimit+len(line)+1 {
			t.Errorf("chunk %d exceeds the size limit: %d bytes", i, len(msg.content))
		}
		total += strings.Count(msg.content, line)
	}
	if total != 30 {
		t.Errorf("expected all 30 lines delivered, got %d", total)
	}
}

func TestSendLongMessageEmptyBody(t *testing.T) {
	f := newPollerFixture(t)
	if err := f.poller.sendLongMessage("feature-1", "header", nil); err != nil {
		t.Fatalf("sendLongMessage: %v", err)
	}
	if len(f.discord.sent) != 0 {
		t.Errorf("an empty body should send nothing, got %d messages", len(f.discord.sent))
	}
}

func TestTrimToMinute(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"2026-08-26", "2026-08-26"},
		{"2026-08-26T15:04:05", "2026-08-26 15:04"},
		{"2026-08-26T15:04:05.000+09:00", "2026-08-26 15:04"},
	}
	for _, tc := range cases {
		if got := trimToMinute(tc.in); got != tc.want {
			t.Errorf("trimToMinute(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsCompletedStatus(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"완료", true},
		{"진행 완료", true},
		{"完了", true},
		{"Done", true},
		{"completed", true},
		{"COMPLETE", true},
		{"", false},
		{"진행중", false},
		{"in progress", false},
		{"undone-ish", false},
	}
	for _, tc := range cases {
		if got := isCompletedStatus(tc.in); got != tc.want {
			t.Errorf("isCompletedStatus(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
