package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	aliasesimpl "github.com/foxseedlab/mimamorin/external/aliases"
	configloader "github.com/foxseedlab/mimamorin/external/config"
	"github.com/foxseedlab/mimamorin/external/discord"
	notionimpl "github.com/foxseedlab/mimamorin/external/notion"
	repositoryimpl "github.com/foxseedlab/mimamorin/external/repository"
	webhookimpl "github.com/foxseedlab/mimamorin/external/webhook"
	"github.com/foxseedlab/mimamorin/internal/config"
	discordpkg "github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/poller"
	"github.com/foxseedlab/mimamorin/internal/state"
	"github.com/foxseedlab/mimamorin/internal/watcher"
	"github.com/samber/do/v2"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching presence watcher")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	state.RegisterDI(injector)
	aliasesimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	notionimpl.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	poller.RegisterDI(injector)
	watcher.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	w, err := do.Invoke[*watcher.Watcher](injector)
	if err != nil {
		slog.Error("failed to resolve presence watcher", "error", err)
		os.Exit(1)
	}
	p, err := do.Invoke[*poller.Poller](injector)
	if err != nil {
		slog.Error("failed to resolve notion poller", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	if err := dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, watcher.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}

	dc.RegisterVoiceStateUpdateHandler(w.HandleVoiceStateUpdate)
	dc.RegisterSlashCommandHandler(w.HandleSlashCommand)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID, "monitored_vc", cfg.DiscordVCID)
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	loopCtx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()
	go p.Run(loopCtx)
	go w.RunWeeklyReporter(loopCtx)
	go w.RunVerificationReminder(loopCtx)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}
