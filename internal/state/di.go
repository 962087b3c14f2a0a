package state

import (
	"github.com/foxseedlab/mimamorin/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		s := NewStore(cfg.StateFilePath)
		s.Load()
		return s, nil
	})
	do.Provide(injector, func(i do.Injector) (*Baseline, error) {
		cfg := do.MustInvoke[*config.Config](i)
		b := NewBaseline(cfg.BaselineFilePath)
		b.Load()
		return b, nil
	})
}
