package aliases

import (
	"fmt"
	"os"

	"github.com/foxseedlab/mimamorin/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Load reads the provider-name to display-name table from a YAML file of the
// form `provider name: display name`. An empty path yields an empty table.
func Load(path string) (schedule.AliasTable, error) {
	if path == "" {
		return schedule.AliasTable{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}
	var table schedule.AliasTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("alias file is not valid yaml: %w", err)
	}
	if table == nil {
		table = schedule.AliasTable{}
	}
	return table, nil
}
