// Package builtin provides the plugins compiled into text2llm: one
// channel plugin per built-in channel, the llm_task and lobster agent
// tools, and the MQTT presence service.
package builtin

import (
	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/mqtt"
	"github.com/text2llm/text2llm/internal/plugins"
)

// Deps carries what the built-in plugins need from the host process.
type Deps struct {
	// TaskRunner backs llm_task. Nil uses the command configured in the
	// plugin entry, if any.
	TaskRunner TaskRunner

	// MQTT, StateDir and Stats feed the presence service.
	MQTT     config.MQTTConfig
	StateDir string
	Stats    mqtt.StatsSource
}

// Plugins returns every built-in plugin in registration order:
// channels first, then tools, then services.
func Plugins(deps Deps) []plugins.Plugin {
	var out []plugins.Plugin
	for _, spec := range channels.Builtin() {
		out = append(out, ChannelPlugin(spec))
	}
	return append(out,
		LLMTaskPlugin(deps.TaskRunner),
		LobsterPlugin(),
		PresencePlugin(deps.MQTT, deps.StateDir, deps.Stats),
	)
}

// ChannelPlugin wraps a channel spec as a plugin with an empty config
// schema.
func ChannelPlugin(spec channels.Spec) plugins.Plugin {
	return plugins.Plugin{
		Manifest: plugins.Manifest{
			ID:           spec.ID,
			Name:         spec.Label,
			Description:  spec.Label + " channel",
			ConfigSchema: plugins.EmptyConfigSchema(),
		},
		Register: func(api *plugins.API) error {
			if err := api.RegisterChannel(plugins.ChannelPlugin{Spec: spec}); err != nil {
				return err
			}
			accounts, err := api.Accounts(spec.ID)
			if err != nil {
				return err
			}
			api.Logger().Debug("channel registered", "accounts", len(accounts))
			return nil
		},
	}
}
