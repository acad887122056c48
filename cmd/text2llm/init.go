package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/defaults"
	"github.com/text2llm/text2llm/internal/paths"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the state directory and an example config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := paths.Resolve(a.env)
			if err != nil {
				return err
			}
			return runInit(a.stdout, resolved, a.hint("text2llm channels list"))
		},
	}
}

// runInit lays out a profile's state directory and writes the example
// config. Existing files are never overwritten.
func runInit(w io.Writer, r paths.Resolved, next string) error {
	fmt.Fprintf(w, "Initializing text2llm (%s profile) in %s\n", r.Profile, r.StateDir)

	for _, dir := range []string{r.StateDir, r.OAuthDir, r.AgentDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		fmt.Fprintf(w, "  ✓ %s\n", dir)
	}

	wrote, err := writeIfMissing(r.ConfigPath, defaults.ConfigJSON, defaults.ConfigFileMode)
	if err != nil {
		return err
	}
	if wrote {
		fmt.Fprintf(w, "  ✓ %s\n", r.ConfigPath)
	} else {
		fmt.Fprintf(w, "  - %s (exists, left alone)\n", r.ConfigPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Edit %s, then check your channels with: %s\n", r.ConfigPath, next)
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist.
func writeIfMissing(path string, content []byte, mode os.FileMode) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, f.Close()
}
