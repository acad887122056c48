package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/buildinfo"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Current()
			if a.jsonOutput() {
				return a.printJSON(info)
			}
			fmt.Fprintln(a.stdout, buildinfo.String())
			for _, kv := range [][2]string{
				{"go_version", info.GoVersion},
				{"os", info.OS},
				{"arch", info.Arch},
			} {
				fmt.Fprintf(a.stdout, "  %-12s %s\n", kv[0]+":", kv[1])
			}
			return nil
		},
	}
}
