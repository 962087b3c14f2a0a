package watcher

import (
	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/repository"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/foxseedlab/mimamorin/internal/state"
	"github.com/foxseedlab/mimamorin/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Watcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*state.Store](i)
		index := do.MustInvoke[*schedule.Index](i)
		dc := do.MustInvoke[discord.Client](i)
		nc := do.MustInvoke[notion.Client](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		aliases := do.MustInvoke[schedule.AliasTable](i)
		return NewWatcher(cfg, store, index, dc, nc, repo, wh, aliases), nil
	})
}
