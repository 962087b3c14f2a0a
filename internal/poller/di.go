package poller

import (
	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/discord"
	"github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/foxseedlab/mimamorin/internal/state"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*schedule.Index, error) {
		return schedule.NewIndex(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Poller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		nc := do.MustInvoke[notion.Client](i)
		dc := do.MustInvoke[discord.Client](i)
		index := do.MustInvoke[*schedule.Index](i)
		baseline := do.MustInvoke[*state.Baseline](i)
		aliases := do.MustInvoke[schedule.AliasTable](i)
		return New(cfg, nc, dc, index, baseline, aliases), nil
	})
}
