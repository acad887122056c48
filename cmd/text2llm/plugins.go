package main

import (
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/paths"
	"github.com/text2llm/text2llm/internal/plugins"
	"github.com/text2llm/text2llm/internal/plugins/builtin"
)

// newHost builds a plugin host for cfg and registers the built-in
// plugins. The host is returned even when registration fails so its
// status can still be reported.
func (a *app) newHost(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer, stats *hostStats) (*plugins.Host, error) {
	host, err := plugins.NewHost(plugins.Options{
		Logger:     logger,
		Config:     cfg.Plugins,
		Channels:   cfg.Channels,
		Env:        a.env,
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}

	deps := builtin.Deps{MQTT: cfg.MQTT}
	if stats != nil {
		deps.Stats = stats
		stats.host = host
	}
	if stateDir, err := paths.ResolveStateDir(a.env); err == nil {
		deps.StateDir = stateDir
	}
	return host, host.RegisterAll(builtin.Plugins(deps))
}

func (a *app) pluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugin registration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Register the built-in plugins and show the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			host, regErr := a.newHost(cfg, a.logger(slog.LevelWarn), nil, nil)
			if host == nil {
				return regErr
			}

			status := host.Status()
			if a.jsonOutput() {
				if err := a.printJSON(status); err != nil {
					return err
				}
				return regErr
			}
			rows := make([][]string, 0, len(status))
			for _, st := range status {
				var provides []string
				provides = append(provides, st.Channels...)
				provides = append(provides, st.Services...)
				provides = append(provides, st.Tools...)
				rows = append(rows, []string{st.ID, string(st.State), strings.Join(provides, ","), st.Reason})
			}
			if err := a.table([]string{"PLUGIN", "STATE", "PROVIDES", "REASON"}, rows); err != nil {
				return err
			}
			return regErr
		},
	})

	var sandboxed bool
	tools := &cobra.Command{
		Use:   "tools",
		Short: "List the agent tools the plugins provide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			host, err := a.newHost(cfg, a.logger(slog.LevelWarn), nil, nil)
			if err != nil {
				return err
			}
			workspace, _ := paths.ResolveAgentDir(a.env)
			list, err := host.Tools(plugins.ExecContext{Sandboxed: sandboxed, WorkspaceDir: workspace})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				if list == nil {
					list = []plugins.Tool{}
				}
				return a.printJSON(list)
			}
			rows := make([][]string, 0, len(list))
			for _, t := range list {
				rows = append(rows, []string{t.Name, t.Description})
			}
			return a.table([]string{"TOOL", "DESCRIPTION"}, rows)
		},
	}
	tools.Flags().BoolVar(&sandboxed, "sandboxed", false, "list tools for a sandboxed execution")
	cmd.AddCommand(tools)
	return cmd
}
