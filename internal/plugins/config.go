package plugins

import "slices"

// Config is the plugins section of the config file.
type Config struct {
	// Enabled set to false disables every plugin.
	Enabled *bool                  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Allow   []string               `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny    []string               `yaml:"deny,omitempty" json:"deny,omitempty"`
	Entries map[string]EntryConfig `yaml:"entries,omitempty" json:"entries,omitempty"`
}

// EntryConfig configures one plugin.
type EntryConfig struct {
	Enabled *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Config  map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// disabledReason returns why id is disabled, or "" when it may load.
// A deny entry beats an allow entry.
func (c Config) disabledReason(id string) string {
	switch {
	case c.Enabled != nil && !*c.Enabled:
		return "plugins disabled"
	case slices.Contains(c.Deny, id):
		return "denied"
	case len(c.Allow) > 0 && !slices.Contains(c.Allow, id):
		return "not in allow list"
	}
	if e, ok := c.Entries[id]; ok && e.Enabled != nil && !*e.Enabled {
		return "disabled in entries"
	}
	return ""
}
