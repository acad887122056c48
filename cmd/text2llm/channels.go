package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/paths"
)

type channelAccounts struct {
	Channel  string                     `json:"channel"`
	Label    string                     `json:"label"`
	Accounts []channels.ResolvedAccount `json:"accounts"`
}

// channelReport resolves every account of every configured channel.
// Channels without a config section are left out.
func channelReport(cfg *config.Config, env paths.Env) []channelAccounts {
	ids := make([]string, 0, len(cfg.Channels))
	for id := range cfg.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]channelAccounts, 0, len(ids))
	for _, id := range ids {
		chCfg := cfg.Channels[id]
		spec := channels.SpecFor(id)
		r := channels.Resolver{Spec: spec, Env: env}

		entry := channelAccounts{Channel: id, Label: spec.Label}
		for _, accountID := range channels.ListAccountIDs(chCfg) {
			entry.Accounts = append(entry.Accounts, r.ResolveAccount(chCfg, accountID))
		}
		out = append(out, entry)
	}
	return out
}

func (a *app) channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Inspect channel configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured channel accounts and where their credentials come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			report := channelReport(cfg, a.env)
			if a.jsonOutput() {
				return a.printJSON(report)
			}

			var rows [][]string
			for _, ch := range report {
				def := channels.ResolveDefaultAccountID(cfg.Channels[ch.Channel])
				for _, acct := range ch.Accounts {
					account := acct.AccountID
					if account == def {
						account += " *"
					}
					source := string(acct.TokenSource)
					if !acct.HasToken() {
						source = "missing"
					}
					rows = append(rows, []string{ch.Channel, account, acct.Name, strconv.FormatBool(acct.Enabled), source})
				}
			}
			return a.table([]string{"CHANNEL", "ACCOUNT", "NAME", "ENABLED", "TOKEN"}, rows)
		},
	})
	return cmd
}
