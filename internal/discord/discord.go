package discord

import "context"

type SlashCommandDefinition struct {
	Name        string
	Description string
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	RespondEphemeral func(content string) error
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type VoiceParticipant struct {
	UserID string
	IsBot  bool
}

type GuildMember struct {
	UserID      string
	Username    string
	DisplayName string
	IsBot       bool
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	SendChannelMessage(channelID, content string) error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	ListVoiceChannelParticipants(guildID, channelID string) ([]VoiceParticipant, error)
	ListGuildMembers(guildID string) ([]GuildMember, error)
	GetChannelName(channelID string) (string, error)
	GetBotUserID() (string, error)
	Run() error
}
