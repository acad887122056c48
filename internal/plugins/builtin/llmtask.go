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

// LLMTaskID is the plugin id of the llm_task tool.
const LLMTaskID = "llm-task"

// ErrNoTaskRunner is returned by llm_task when no model backend is
// configured.
var ErrNoTaskRunner = errors.New("llm_task: no task runner configured")

// TaskRequest is one self-contained model call made by llm_task.
type TaskRequest struct {
	Prompt string
	Input  any
	Schema map[string]any
}

// TaskRunner runs a TaskRequest against a model and returns its raw
// text output.
type TaskRunner interface {
	RunTask(ctx context.Context, req TaskRequest) (string, error)
}

// CommandTaskRunner runs a model through an external command. The
// rendered request is written to the command's stdin and stdout is the
// model output.
type CommandTaskRunner struct {
	Command []string
	Timeout time.Duration
}

// RunTask implements TaskRunner.
func (r CommandTaskRunner) RunTask(ctx context.Context, req TaskRequest) (string, error) {
	stdin, err := renderTask(req)
	if err != nil {
		return "", err
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	res, err := runCommand(ctx, timeout, "", stdin, r.Command)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", fmt.Errorf("%s timed out after %s", r.Command[0], timeout)
	}
	if res.ExitCode != 0 {
		stderr := res.Stderr
		if len(stderr) > 500 {
			stderr = stderr[:500]
		}
		return "", fmt.Errorf("%s exited %d: %s", r.Command[0], res.ExitCode, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// renderTask turns a request into a single prompt text.
func renderTask(req TaskRequest) (string, error) {
	var b strings.Builder
	b.WriteString(req.Prompt)
	if req.Input != nil {
		data, err := json.MarshalIndent(req.Input, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode task input: %w", err)
		}
		b.WriteString("\n\nInput:\n")
		b.Write(data)
	}
	if req.Schema != nil {
		data, err := json.MarshalIndent(req.Schema, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode task schema: %w", err)
		}
		b.WriteString("\n\nRespond with JSON only, matching this schema:\n")
		b.Write(data)
	}
	b.WriteString("\n")
	return b.String(), nil
}

// LLMTaskPlugin registers the optional llm_task tool. runner wins over
// a command set in the plugin entry's config.
func LLMTaskPlugin(runner TaskRunner) plugins.Plugin {
	return plugins.Plugin{
		Manifest: plugins.Manifest{
			ID:           LLMTaskID,
			Name:         "LLM Task",
			Description:  "Run a single structured model call as a tool",
			ConfigSchema: plugins.KeysSchema{"command", "timeoutMs"},
		},
		Register: func(api *plugins.API) error {
			r := runner
			if r == nil {
				cfg, err := api.PluginConfig()
				if err != nil {
					return err
				}
				if r, err = commandRunner(cfg); err != nil {
					return err
				}
			}
			tool := newLLMTaskTool(r)
			return api.RegisterTool(plugins.StaticTool(tool), plugins.ToolOptions{Optional: true})
		},
	}
}

func commandRunner(cfg map[string]any) (TaskRunner, error) {
	command, err := stringList(cfg, "command")
	if err != nil {
		return nil, err
	}
	if len(command) == 0 {
		return nil, nil
	}
	timeout, err := durationMs(cfg, "timeoutMs", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	return CommandTaskRunner{Command: command, Timeout: timeout}, nil
}

func newLLMTaskTool(runner TaskRunner) plugins.Tool {
	return plugins.Tool{
		Name:        "llm_task",
		Description: "Run a one-off model call with a prompt and optional JSON input. When a schema is given the result must be JSON.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Instructions for the model",
				},
				"input": map[string]any{
					"description": "Optional data the prompt operates on",
				},
				"schema": map[string]any{
					"type":        "object",
					"description": "Optional JSON schema the output must follow",
				},
			},
			"required": []string{"prompt"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return handleLLMTask(ctx, runner, args)
		},
	}
}

func handleLLMTask(ctx context.Context, runner TaskRunner, args map[string]any) (string, error) {
	if runner == nil {
		return "", ErrNoTaskRunner
	}
	prompt, _ := args["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("llm_task: prompt is required")
	}
	req := TaskRequest{Prompt: prompt, Input: args["input"]}
	if s, ok := args["schema"].(map[string]any); ok {
		req.Schema = s
	}

	out, err := runner.RunTask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm_task: %w", err)
	}
	if req.Schema == nil {
		return out, nil
	}

	out = stripCodeFence(out)
	if !json.Valid([]byte(out)) {
		return "", errors.New("llm_task: model output is not valid JSON")
	}
	return out, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
