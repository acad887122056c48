// text2llm runs and manages a text2llm gateway node.
//
// Usage:
//
//	text2llm [--profile <name> | --dev] [--config <path>] [-o text|json] <command>
//
//	text2llm init                     Create the state dir and an example config
//	text2llm serve                    Run the gateway in the foreground
//	text2llm paths                    Show the resolved state paths
//	text2llm daemon status            Show the background service state
//	text2llm gateway discover         Look for gateways on the LAN
//	text2llm gateway pair <id>        Print a pairing QR code
//	text2llm channels list            Show channel accounts and credentials
//	text2llm plugins list             Show plugin registration results
//	text2llm version                  Print version and build information
//
// --profile and --dev select a namespaced instance and must come before
// the command.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/daemon"
	"github.com/text2llm/text2llm/internal/discovery"
	"github.com/text2llm/text2llm/internal/paths"
	"github.com/text2llm/text2llm/internal/profile"
)

// main constructs the OS-level environment and delegates to [run], so
// os.Exit, os.Stdout, os.Environ and os.Args stay out of the
// application logic and the whole command surface can be driven from
// tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:], os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand. Its function fields are
// the seams tests replace.
type app struct {
	env        paths.Env
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	output     string

	newManager func() (daemon.Manager, error)
	discover   func(ctx context.Context, serviceType, domain string) ([]discovery.Endpoint, error)
	now        func() time.Time
}

// run is the real entry point. The profile flags are peeled off first so
// the environment every command sees already reflects the profile;
// everything else goes to cobra.
func run(ctx context.Context, stdout, stderr io.Writer, args, environ []string) error {
	parsed, err := profile.ParseArgs(args, "--config", "-o", "--output")
	if err != nil {
		return err
	}

	env := paths.FromEnviron(environ)
	if parsed.Profile != "" {
		if env, err = paths.ApplyProfile(env, parsed.Profile); err != nil {
			return err
		}
	}

	a := &app{
		env:    env,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
	a.newManager = func() (daemon.Manager, error) {
		return daemon.ForPlatform(runtime.GOOS, a.env, os.Getuid(), daemon.ExecRunner{})
	}
	a.discover = func(ctx context.Context, serviceType, domain string) ([]discovery.Endpoint, error) {
		return discovery.NewBrowser(serviceType, domain, a.logger(slog.LevelWarn)).Discover(ctx)
	}

	root := a.rootCmd()
	root.SetArgs(parsed.Args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "text2llm",
		Short: "text2llm gateway node",
		Long: "text2llm runs a chat gateway node and manages its profiles, service unit and LAN pairing.\n\n" +
			"Global --profile <name> and --dev must appear before the command.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.output != "text" && a.output != "json" {
				return fmt.Errorf("unknown output format: %q (expected text or json)", a.output)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default: <state dir>/text2llm.json)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		a.serveCmd(),
		a.initCmd(),
		a.pathsCmd(),
		a.daemonCmd(),
		a.gatewayCmd(),
		a.channelsCmd(),
		a.pluginsCmd(),
		a.versionCmd(),
	)
	return root
}

// loadConfig finds and parses the config file. A missing default file
// yields the defaults; a missing explicit file is an error.
func (a *app) loadConfig() (*config.Config, string, error) {
	path, ok, err := config.FindConfig(a.configPath, a.env)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return config.Default(), path, nil
	}
	cfg, err := config.Load(path, a.env)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// logger returns a logger on stderr so command output on stdout stays
// machine-readable.
func (a *app) logger(level slog.Level) *slog.Logger {
	return newLogger(a.stderr, level, "text")
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func (a *app) jsonOutput() bool { return a.output == "json" }

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows aligned in columns.
func (a *app) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	writeRow := func(cols []string) {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}
	writeRow(header)
	for _, r := range rows {
		writeRow(r)
	}
	return tw.Flush()
}

// hint formats a suggested follow-up command for the active profile.
func (a *app) hint(command string) string {
	return profile.FormatCommand(command, a.env.Profile())
}

var errNotFound = errors.New("not found")
