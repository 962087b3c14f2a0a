package aliases

import (
	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/foxseedlab/mimamorin/internal/schedule"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (schedule.AliasTable, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return Load(cfg.AliasFilePath)
	})
}
