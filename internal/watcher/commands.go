package watcher

import (
	"log/slog"
	"strings"

	"github.com/foxseedlab/mimamorin/internal/discord"
)

const commandVoiceTime = "voicetime"

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: commandVoiceTime, Description: slashCommandVoiceTimeDescription},
	}
}

func (w *Watcher) HandleSlashCommand(event discord.SlashCommandEvent) {
	if event.GuildID != w.cfg.DiscordGuildID {
		w.respondEphemeral(event, messageEphemeralWrongGuild)
		return
	}
	switch event.CommandName {
	case commandVoiceTime:
		w.respondVoiceTime(event)
	default:
		w.respondEphemeral(event, messageEphemeralUnknownCommand)
	}
}

func (w *Watcher) respondVoiceTime(event discord.SlashCommandEvent) {
	totals := w.store.TotalsSnapshot()
	if len(totals) == 0 {
		w.respondEphemeral(event, messageEphemeralNoTotals)
		return
	}
	w.respondEphemeral(event, strings.Join(rankedTotalLines(totals), "\n"))
}

func (w *Watcher) respondEphemeral(event discord.SlashCommandEvent, content string) {
	if event.RespondEphemeral == nil {
		return
	}
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName, "user_id", event.UserID)
	}
}
