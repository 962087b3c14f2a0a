package schedule

// AliasTable maps provider-side participant names to platform display names.
// Loaded from an external file so participant changes need no recompile.
type AliasTable map[string]string

// Resolve returns the platform name for a provider name, or the name itself
// when no alias exists.
func (t AliasTable) Resolve(name string) string {
	if mapped, ok := t[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
