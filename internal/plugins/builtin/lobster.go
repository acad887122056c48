package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/text2llm/text2llm/internal/plugins"
)

// LobsterID is the plugin id of the lobster workflow tool.
const LobsterID = "lobster"

const (
	defaultLobsterPath    = "lobster"
	defaultLobsterTimeout = 20 * time.Second
)

// LobsterPlugin registers the optional lobster tool, which runs
// workflow pipelines through the lobster CLI in the agent's workspace.
// The tool is absent from sandboxed executions.
func LobsterPlugin() plugins.Plugin {
	return plugins.Plugin{
		Manifest: plugins.Manifest{
			ID:           LobsterID,
			Name:         "Lobster",
			Description:  "Run lobster workflow pipelines",
			ConfigSchema: plugins.KeysSchema{"lobsterPath", "timeoutMs"},
		},
		Register: func(api *plugins.API) error {
			cfg, err := api.PluginConfig()
			if err != nil {
				return err
			}
			path, err := stringValue(cfg, "lobsterPath")
			if err != nil {
				return err
			}
			if path == "" {
				path = defaultLobsterPath
			}
			timeout, err := durationMs(cfg, "timeoutMs", defaultLobsterTimeout)
			if err != nil {
				return err
			}

			l := lobster{path: path, timeout: timeout}
			return api.RegisterTool(plugins.ToolFactory(l.provide),
				plugins.ToolOptions{Optional: true, Name: "lobster"})
		},
	}
}

type lobster struct {
	path    string
	timeout time.Duration
}

func (l lobster) provide(ec plugins.ExecContext) (plugins.Provision, error) {
	if ec.Sandboxed {
		return plugins.Unavailable(), nil
	}
	return plugins.Available(plugins.Tool{
		Name:        "lobster",
		Description: "Run a lobster workflow pipeline in the workspace and return its JSON result.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pipeline": map[string]any{
					"type":        "string",
					"description": "Pipeline to run, e.g. 'inbox list | inbox triage'",
				},
				"args": map[string]any{
					"type":        "object",
					"description": "Optional arguments passed to the pipeline as JSON",
				},
			},
			"required": []string{"pipeline"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return l.run(ctx, ec.WorkspaceDir, args)
		},
	}), nil
}

func (l lobster) argv(pipeline string, args map[string]any) ([]string, error) {
	argv := []string{l.path, "run", "--mode", "tool", pipeline}
	if len(args) > 0 {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode lobster args: %w", err)
		}
		argv = append(argv, "--args-json", string(data))
	}
	return argv, nil
}

func (l lobster) run(ctx context.Context, dir string, args map[string]any) (string, error) {
	pipeline, _ := args["pipeline"].(string)
	if strings.TrimSpace(pipeline) == "" {
		return "", errors.New("lobster: pipeline is required")
	}
	pipelineArgs, _ := args["args"].(map[string]any)

	argv, err := l.argv(pipeline, pipelineArgs)
	if err != nil {
		return "", err
	}
	res, err := runCommand(ctx, l.timeout, dir, "", argv)
	if err != nil {
		return "", fmt.Errorf("lobster: %w", err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("lobster: encode result: %w", err)
	}
	return string(data), nil
}
