package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/discovery"
	"github.com/text2llm/text2llm/internal/paths"
)

func (a *app) gatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Discover and pair with gateways on the LAN",
	}
	cmd.AddCommand(
		a.gatewayDiscoverCmd(),
		a.gatewayListCmd(),
		a.gatewayPairCmd(),
		a.gatewayForgetCmd(),
	)
	return cmd
}

// openKnown opens the known-gateway store in the profile's state dir,
// creating the directory if needed.
func (a *app) openKnown() (*discovery.KnownStore, error) {
	stateDir, err := paths.ResolveStateDir(a.env)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return discovery.NewKnownStore(discovery.KnownStorePath(stateDir))
}

func (a *app) gatewayDiscoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse mDNS for gateways",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			found, err := a.discover(ctx, cfg.Gateway.ServiceType, cfg.Gateway.Domain)
			if err != nil {
				return err
			}

			if save && len(found) > 0 {
				store, err := a.openKnown()
				if err != nil {
					return err
				}
				defer store.Close()
				seen := a.now()
				for _, e := range found {
					if err := store.Upsert(e, seen); err != nil {
						return err
					}
				}
			}

			if a.jsonOutput() {
				if found == nil {
					found = []discovery.Endpoint{}
				}
				return a.printJSON(found)
			}
			if len(found) == 0 {
				fmt.Fprintln(a.stdout, "no gateways found")
				return nil
			}
			rows := make([][]string, 0, len(found))
			for _, e := range found {
				rows = append(rows, []string{discovery.StableID(e), discovery.PrettyLabel(e), e.Host, strconv.Itoa(e.Port)})
			}
			return a.table([]string{"ID", "LABEL", "HOST", "PORT"}, rows)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to browse")
	cmd.Flags().BoolVar(&save, "save", false, "remember the gateways found")
	return cmd
}

func (a *app) gatewayListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remembered gateways",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openKnown()
			if err != nil {
				return err
			}
			defer store.Close()

			known, err := store.List()
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				if known == nil {
					known = []discovery.Known{}
				}
				return a.printJSON(known)
			}
			if len(known) == 0 {
				fmt.Fprintf(a.stdout, "no remembered gateways; run: %s\n", a.hint("text2llm gateway discover --save"))
				return nil
			}
			rows := make([][]string, 0, len(known))
			for _, k := range known {
				rows = append(rows, []string{k.ID, k.Label, k.Endpoint.String(), k.LastSeen.Local().Format(time.DateTime)})
			}
			return a.table([]string{"ID", "LABEL", "ADDRESS", "LAST SEEN"}, rows)
		},
	}
}

// lookupKnown finds a remembered gateway by stable id or by address
// fingerprint. Labels are display-only and never matched.
func lookupKnown(store *discovery.KnownStore, ref string) (discovery.Known, error) {
	k, ok, err := store.Get(ref)
	if err != nil {
		return discovery.Known{}, err
	}
	if ok {
		return k, nil
	}

	all, err := store.List()
	if err != nil {
		return discovery.Known{}, err
	}
	for _, k := range all {
		if k.Fingerprint != "" && strings.EqualFold(k.Fingerprint, ref) {
			return k, nil
		}
	}
	return discovery.Known{}, fmt.Errorf("gateway %q: %w", ref, errNotFound)
}

func (a *app) gatewayPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <id|fingerprint>",
		Short: "Print a pairing QR code for a remembered gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openKnown()
			if err != nil {
				return err
			}
			defer store.Close()

			k, err := lookupKnown(store, args[0])
			if err != nil {
				return err
			}
			payload := discovery.NewPairingPayload(k.Endpoint)
			if a.jsonOutput() {
				return a.printJSON(payload)
			}
			qr, err := discovery.RenderPairingQR(payload)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, qr)
			fmt.Fprintf(a.stdout, "%s  %s:%d\n", payload.Label, payload.Host, payload.Port)
			if payload.Fingerprint != "" {
				fmt.Fprintf(a.stdout, "fingerprint %s\n", payload.Fingerprint)
			}
			return nil
		},
	}
}

func (a *app) gatewayForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id|fingerprint>",
		Short: "Forget a remembered gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openKnown()
			if err != nil {
				return err
			}
			defer store.Close()

			k, err := lookupKnown(store, args[0])
			if err != nil {
				return err
			}
			if _, err := store.Forget(k.ID); err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(map[string]string{"forgotten": k.ID})
			}
			fmt.Fprintf(a.stdout, "forgot %s (%s)\n", k.Label, k.ID)
			return nil
		},
	}
}
