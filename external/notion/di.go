package notion

import (
	"github.com/foxseedlab/mimamorin/internal/config"
	notionpkg "github.com/foxseedlab/mimamorin/internal/notion"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notionpkg.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPClient(c.NotionToken), nil
	})
}
