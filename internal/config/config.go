package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env string

	DiscordToken                 string
	DiscordGuildID               string
	DiscordVCID                  string
	DiscordReportChannelID       string
	DiscordAlarmChannelID        string
	DiscordChaseChannelID        string
	DiscordFeatureChannelID      string
	DiscordVerificationChannelID string

	NotionToken                  string
	NotionScheduleDatabaseID     string
	NotionFeatureDatabaseID      string
	NotionBoardDatabaseID        string
	NotionVerificationDatabaseID string
	NotionDateProperty           string
	NotionTagsProperty           string
	NotionStatusProperty         string
	NotionTitleProperty          string
	NotionDescProperty           string
	NotionNameProperty           string

	ProviderTimezone string

	DatabaseURL      string
	ReportWebhookURL string

	StateFilePath    string
	BaselineFilePath string
	AliasFilePath    string

	PollIntervalSec     int
	ActivityCooldownSec int
	GraceBufferMin      int
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("NOTION_POLL_INTERVAL_SEC must be positive, got %d", c.PollIntervalSec)
	}
	if c.ActivityCooldownSec <= 0 {
		return fmt.Errorf("ACTIVITY_COOLDOWN_SEC must be positive, got %d", c.ActivityCooldownSec)
	}
	if c.GraceBufferMin < 0 {
		return fmt.Errorf("SCHEDULE_GRACE_BUFFER_MIN must not be negative, got %d", c.GraceBufferMin)
	}
	if _, err := time.LoadLocation(c.ProviderTimezone); err != nil {
		return fmt.Errorf("PROVIDER_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "DISCORD_VC_ID", value: c.DiscordVCID},
		{name: "PROVIDER_TIMEZONE", value: c.ProviderTimezone},
		{name: "STATE_FILE_PATH", value: c.StateFilePath},
		{name: "BASELINE_FILE_PATH", value: c.BaselineFilePath},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Location resolves the provider timezone. Validate has already checked the
// name, so a lookup failure here only happens on an unvalidated Config.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ProviderTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ScheduleWatchEnabled() bool {
	return c.NotionToken != "" && c.NotionScheduleDatabaseID != ""
}

func (c *Config) FeatureWatchEnabled() bool {
	return c.NotionToken != "" && c.NotionFeatureDatabaseID != "" && c.DiscordFeatureChannelID != ""
}

func (c *Config) BoardWatchEnabled() bool {
	return c.NotionToken != "" && c.NotionBoardDatabaseID != "" && c.DiscordAlarmChannelID != ""
}

func (c *Config) ScheduleAnnounceEnabled() bool {
	return c.ScheduleWatchEnabled() && c.DiscordAlarmChannelID != ""
}

func (c *Config) VerificationWatchEnabled() bool {
	return c.NotionToken != "" && c.NotionVerificationDatabaseID != "" && c.DiscordVerificationChannelID != ""
}

// ChaseChannelID is where the come-back alerts go; deployments without a
// dedicated chase channel reuse the alarm channel.
func (c *Config) ChaseChannelID() string {
	if c.DiscordChaseChannelID != "" {
		return c.DiscordChaseChannelID
	}
	return c.DiscordAlarmChannelID
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) ActivityCooldown() time.Duration {
	return time.Duration(c.ActivityCooldownSec) * time.Second
}

func (c *Config) GraceBuffer() time.Duration {
	return time.Duration(c.GraceBufferMin) * time.Minute
}
