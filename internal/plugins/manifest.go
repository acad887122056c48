// Package plugins is the registration host through which channel, tool
// and service plugins attach themselves to a running text2llm instance.
//
// At startup [Host.RegisterAll] calls each plugin's Register function
// exactly once, sequentially and in a fixed order, handing it an [API]
// that is only valid for the duration of that call. What a plugin
// registers is staged and committed only when Register succeeds, so a
// skipped plugin leaves nothing behind.
package plugins

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigSchema validates a plugin's entry in the plugins.entries config
// section before the plugin is registered.
type ConfigSchema interface {
	Validate(cfg map[string]any) error
}

type emptySchema struct{}

func (emptySchema) Validate(cfg map[string]any) error {
	if len(cfg) == 0 {
		return nil
	}
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("plugin takes no configuration (got %s)", strings.Join(keys, ", "))
}

// EmptyConfigSchema returns a schema that accepts only an empty config.
func EmptyConfigSchema() ConfigSchema { return emptySchema{} }

// KeysSchema accepts a config whose keys are all in the set.
type KeysSchema []string

// Validate implements ConfigSchema.
func (s KeysSchema) Validate(cfg map[string]any) error {
	for k := range cfg {
		if !s.allows(k) {
			return fmt.Errorf("unknown config key %q (allowed: %s)", k, strings.Join(s, ", "))
		}
	}
	return nil
}

func (s KeysSchema) allows(key string) bool {
	for _, k := range s {
		if k == key {
			return true
		}
	}
	return false
}

// Manifest is a plugin's static description.
type Manifest struct {
	ID           string
	Name         string
	Description  string
	ConfigSchema ConfigSchema

	// Optional plugins that fail to register are logged and skipped
	// instead of aborting startup.
	Optional bool
}

// Plugin pairs a manifest with its registration entry point.
type Plugin struct {
	Manifest
	Register func(api *API) error
}
