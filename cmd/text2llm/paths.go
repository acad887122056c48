package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/daemon"
	"github.com/text2llm/text2llm/internal/paths"
)

type pathsReport struct {
	paths.Resolved
	SystemdUnit string `json:"systemd_unit"`
}

func (a *app) pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the resolved state, config and credential paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := paths.Resolve(a.env)
			if err != nil {
				return err
			}
			rep := pathsReport{Resolved: resolved, SystemdUnit: daemon.SystemdUnitName(a.env)}
			if a.jsonOutput() {
				return a.printJSON(rep)
			}
			return a.table([]string{"NAME", "VALUE"}, [][]string{
				{"profile", rep.Profile},
				{"home", rep.Home},
				{"state_dir", rep.StateDir},
				{"config_path", rep.ConfigPath},
				{"oauth_dir", rep.OAuthDir},
				{"agent_dir", rep.AgentDir},
				{"systemd_unit", rep.SystemdUnit},
				{"nix_mode", strconv.FormatBool(rep.NixMode)},
				{"gateway_port", fmt.Sprint(a.gatewayPort())},
			})
		},
	}
}
