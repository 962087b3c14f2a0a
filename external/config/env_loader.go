package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/mimamorin/internal/config"
)

type envConfig struct {
	Env string `env:"ENV" envDefault:"production"`

	DiscordToken                 string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID               string `env:"DISCORD_GUILD_ID,required"`
	DiscordVCID                  string `env:"DISCORD_VC_ID,required"`
	DiscordReportChannelID       string `env:"DISCORD_REPORT_CHANNEL_ID"`
	DiscordAlarmChannelID        string `env:"DISCORD_ALARM_CHANNEL_ID"`
	DiscordChaseChannelID        string `env:"DISCORD_CHASE_CHANNEL_ID"`
	DiscordFeatureChannelID      string `env:"DISCORD_FEATURE_CHANNEL_ID"`
	DiscordVerificationChannelID string `env:"DISCORD_VERIFICATION_CHANNEL_ID"`

	NotionToken                  string `env:"NOTION_TOKEN"`
	NotionScheduleDatabaseID     string `env:"NOTION_SCHEDULE_DATABASE_ID"`
	NotionFeatureDatabaseID      string `env:"NOTION_FEATURE_DATABASE_ID"`
	NotionBoardDatabaseID        string `env:"NOTION_BOARD_DATABASE_ID"`
	NotionVerificationDatabaseID string `env:"NOTION_VERIFICATION_DATABASE_ID"`
	NotionDateProperty           string `env:"NOTION_DATE_PROPERTY" envDefault:"날짜"`
	NotionTagsProperty           string `env:"NOTION_TAGS_PROPERTY" envDefault:"태그"`
	NotionStatusProperty         string `env:"NOTION_STATUS_PROPERTY" envDefault:"상태"`
	NotionTitleProperty          string `env:"NOTION_TITLE_PROPERTY" envDefault:"내용"`
	NotionDescProperty           string `env:"NOTION_DESC_PROPERTY" envDefault:"설명"`
	NotionNameProperty           string `env:"NOTION_NAME_PROPERTY" envDefault:"이름"`

	ProviderTimezone string `env:"PROVIDER_TIMEZONE" envDefault:"Asia/Seoul"`

	DatabaseURL      string `env:"DATABASE_URL"`
	ReportWebhookURL string `env:"REPORT_WEBHOOK_URL"`

	StateFilePath    string `env:"STATE_FILE_PATH" envDefault:"data/watcher_state.json"`
	BaselineFilePath string `env:"BASELINE_FILE_PATH" envDefault:"data/notion_db.json"`
	AliasFilePath    string `env:"NAME_ALIAS_FILE_PATH"`

	PollIntervalSec     int `env:"NOTION_POLL_INTERVAL_SEC" envDefault:"60"`
	ActivityCooldownSec int `env:"ACTIVITY_COOLDOWN_SEC" envDefault:"600"`
	GraceBufferMin      int `env:"SCHEDULE_GRACE_BUFFER_MIN" envDefault:"30"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                          raw.Env,
		DiscordToken:                 raw.DiscordToken,
		DiscordGuildID:               raw.DiscordGuildID,
		DiscordVCID:                  raw.DiscordVCID,
		DiscordReportChannelID:       raw.DiscordReportChannelID,
		DiscordAlarmChannelID:        raw.DiscordAlarmChannelID,
		DiscordChaseChannelID:        raw.DiscordChaseChannelID,
		DiscordFeatureChannelID:      raw.DiscordFeatureChannelID,
		DiscordVerificationChannelID: raw.DiscordVerificationChannelID,
		NotionToken:                  raw.NotionToken,
		NotionScheduleDatabaseID:     raw.NotionScheduleDatabaseID,
		NotionFeatureDatabaseID:      raw.NotionFeatureDatabaseID,
		NotionBoardDatabaseID:        raw.NotionBoardDatabaseID,
		NotionVerificationDatabaseID: raw.NotionVerificationDatabaseID,
		NotionDateProperty:           raw.NotionDateProperty,
		NotionTagsProperty:           raw.NotionTagsProperty,
		NotionStatusProperty:         raw.NotionStatusProperty,
		NotionTitleProperty:          raw.NotionTitleProperty,
		NotionDescProperty:           raw.NotionDescProperty,
		NotionNameProperty:           raw.NotionNameProperty,
		ProviderTimezone:             raw.ProviderTimezone,
		DatabaseURL:                  raw.DatabaseURL,
		ReportWebhookURL:             raw.ReportWebhookURL,
		StateFilePath:                raw.StateFilePath,
		BaselineFilePath:             raw.BaselineFilePath,
		AliasFilePath:                raw.AliasFilePath,
		PollIntervalSec:              raw.PollIntervalSec,
		ActivityCooldownSec:          raw.ActivityCooldownSec,
		GraceBufferMin:               raw.GraceBufferMin,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
