package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/daemon"
)

func (a *app) daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the gateway's background service",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newManager()
			if err != nil {
				return err
			}
			rep, err := m.Status(cmd.Context())
			if err != nil && rep.Unit == "" {
				return err
			}
			// A report that failed to parse still names the unit and
			// shows the state as unknown.
			if perr := a.printReport(rep); perr != nil {
				return errors.Join(err, perr)
			}
			return err
		},
	})

	verbs := []struct {
		use, short, done string
		act             func(daemon.Manager, context.Context) error
	}{
		{"start", "Start the service", "started", daemon.Manager.Start},
		{"stop", "Stop the service", "stopped", daemon.Manager.Stop},
		{"restart", "Restart the service", "restarted", daemon.Manager.Restart},
	}
	for _, v := range verbs {
		v := v
		cmd.AddCommand(&cobra.Command{
			Use:   v.use,
			Short: v.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.newManager()
				if err != nil {
					return err
				}
				if err := v.act(m, cmd.Context()); err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(map[string]string{"result": v.done})
				}
				fmt.Fprintf(a.stdout, "gateway service %s\n", v.done)
				fmt.Fprintf(a.stdout, "check it with: %s\n", a.hint("text2llm daemon status"))
				return nil
			},
		})
	}
	return cmd
}

func (a *app) printReport(rep daemon.Report) error {
	if a.jsonOutput() {
		return a.printJSON(rep)
	}
	rows := [][]string{
		{"platform", rep.Platform},
		{"unit", rep.Unit},
		{"path", rep.Path},
		{"state", rep.State},
	}
	if rep.Status != nil {
		rows = append(rows,
			[]string{"active_state", rep.Status.ActiveState},
			[]string{"sub_state", rep.Status.SubState},
		)
		if rep.Status.HasExecMainStatus {
			rows = append(rows, []string{"exit_status", strconv.Itoa(rep.Status.ExecMainStatus)})
		}
	}
	if rep.PID > 0 {
		rows = append(rows, []string{"pid", strconv.Itoa(rep.PID)})
	}
	if rep.LastExitCode != nil {
		rows = append(rows, []string{"last_exit_code", strconv.Itoa(*rep.LastExitCode)})
	}
	return a.table([]string{"FIELD", "VALUE"}, rows)
}
