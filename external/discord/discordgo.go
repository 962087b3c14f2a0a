package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/mimamorin/internal/discord"
)

const guildMembersPageSize = 1000

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		afterChannelID := vs.ChannelID
		if beforeChannelID == afterChannelID && beforeChannelID != "" {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:         vs.GuildID,
			UserID:          vs.UserID,
			UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannelID: beforeChannelID,
			AfterChannelID:  afterChannelID,
		})
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
		}
		if userID == "" {
			return
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
		})
	})
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if cmd.Description == def.Description {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func (c *Client) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	if c.session == nil {
		return "", nil
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return vs.ChannelID, nil
		}
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil {
			for _, state := range guild.VoiceStates {
				if state != nil && state.UserID == userID {
					return state.ChannelID, nil
				}
			}
		}
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	vs, err := c.session.UserVoiceState(guildID, userID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func (c *Client) ListVoiceChannelParticipants(guildID, channelID string) ([]discordpkg.VoiceParticipant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	participants := make([]discordpkg.VoiceParticipant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		participants = append(participants, discordpkg.VoiceParticipant{
			UserID: state.UserID,
			IsBot:  c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return participants, nil
}

func (c *Client) ListGuildMembers(guildID string) ([]discordpkg.GuildMember, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	members := c.guildMembersFromState(guildID)
	if len(members) == 0 {
		fetched, err := c.session.GuildMembers(guildID, "", guildMembersPageSize)
		if err != nil {
			return nil, err
		}
		members = fetched
	}
	list := make([]discordpkg.GuildMember, 0, len(members))
	for _, m := range members {
		if m == nil || m.User == nil || m.User.ID == "" {
			continue
		}
		list = append(list, discordpkg.GuildMember{
			UserID:      m.User.ID,
			Username:    m.User.Username,
			DisplayName: memberDisplayName(m),
			IsBot:       m.User.Bot,
		})
	}
	return list, nil
}

func (c *Client) guildMembersFromState(guildID string) []*discordgo.Member {
	if c.session.State == nil {
		return nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil
	}
	return guild.Members
}

func memberDisplayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func (c *Client) GetChannelName(channelID string) (string, error) {
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel.Name, nil
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil {
		return "", err
	}
	if channel == nil || channel.Name == "" {
		return "", fmt.Errorf("channel %s has no resolvable name", channelID)
	}
	return channel.Name, nil
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func (c *Client) Run() error {
	select {}
}
