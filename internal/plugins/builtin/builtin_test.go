package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/plugins"
)

func newHost(t *testing.T, cfg plugins.Config) *plugins.Host {
	t.Helper()
	h, err := plugins.NewHost(plugins.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	return h
}

func toolNamed(t *testing.T, h *plugins.Host, ec plugins.ExecContext, name string) (plugins.Tool, bool) {
	t.Helper()
	tools, err := h.Tools(ec)
	if err != nil {
		t.Fatalf("Tools() = %v", err)
	}
	for _, tl := range tools {
		if tl.Name == name {
			return tl, true
		}
	}
	return plugins.Tool{}, false
}

func TestPlugins_RegisterAll(t *testing.T) {
	h := newHost(t, plugins.Config{})
	if err := h.RegisterAll(Plugins(Deps{})); err != nil {
		t.Fatalf("RegisterAll() = %v", err)
	}

	if got, want := len(h.Channels()), len(channels.Builtin()); got != want {
		t.Errorf("Channels() = %d, want %d", got, want)
	}
	for _, st := range h.Status() {
		if st.State != plugins.StateRegistered {
			t.Errorf("%s state = %s (%s)", st.ID, st.State, st.Reason)
		}
		if st.ID == PresenceID && len(st.Services) != 0 {
			t.Errorf("presence registered services without a broker: %v", st.Services)
		}
	}

	if _, ok := toolNamed(t, h, plugins.ExecContext{}, "llm_task"); !ok {
		t.Error("llm_task missing")
	}
	if _, ok := toolNamed(t, h, plugins.ExecContext{}, "lobster"); !ok {
		t.Error("lobster missing")
	}
}

func TestChannelPlugin_RejectsConfig(t *testing.T) {
	h := newHost(t, plugins.Config{Entries: map[string]plugins.EntryConfig{
		"telegram": {Config: map[string]any{"anything": true}},
	}})
	spec, _ := channels.LookupSpec("telegram")
	err := h.RegisterAll([]plugins.Plugin{ChannelPlugin(spec)})
	var regErr *plugins.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("RegisterAll() = %v, want RegistrationError", err)
	}
}

type fakeRunner struct {
	out string
	err error
	got TaskRequest
}

func (f *fakeRunner) RunTask(_ context.Context, req TaskRequest) (string, error) {
	f.got = req
	return f.out, f.err
}

func TestLLMTask(t *testing.T) {
	schema := map[string]any{"type": "object"}
	tests := []struct {
		name    string
		out     string
		runErr  error
		args    map[string]any
		want    string
		wantErr bool
	}{
		{name: "plain text", out: "summary", args: map[string]any{"prompt": "summarize"}, want: "summary"},
		{name: "json in fence", out: "```json\n{\"ok\":true}\n```", args: map[string]any{"prompt": "p", "schema": schema}, want: `{"ok":true}`},
		{name: "schema not json", out: "sure thing", args: map[string]any{"prompt": "p", "schema": schema}, wantErr: true},
		{name: "missing prompt", args: map[string]any{}, wantErr: true},
		{name: "runner error", runErr: errors.New("rate limited"), args: map[string]any{"prompt": "p"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{out: tt.out, err: tt.runErr}
			h := newHost(t, plugins.Config{})
			if err := h.RegisterAll([]plugins.Plugin{LLMTaskPlugin(runner)}); err != nil {
				t.Fatal(err)
			}
			tool, ok := toolNamed(t, h, plugins.ExecContext{}, "llm_task")
			if !ok {
				t.Fatal("llm_task missing")
			}
			got, err := tool.Handler(context.Background(), tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Handler() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLLMTask_NoRunner(t *testing.T) {
	h := newHost(t, plugins.Config{})
	if err := h.RegisterAll([]plugins.Plugin{LLMTaskPlugin(nil)}); err != nil {
		t.Fatal(err)
	}
	tool, _ := toolNamed(t, h, plugins.ExecContext{}, "llm_task")
	if _, err := tool.Handler(context.Background(), map[string]any{"prompt": "p"}); !errors.Is(err, ErrNoTaskRunner) {
		t.Errorf("Handler() error = %v, want ErrNoTaskRunner", err)
	}
}

func TestCommandTaskRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	h := newHost(t, plugins.Config{Entries: map[string]plugins.EntryConfig{
		LLMTaskID: {Config: map[string]any{"command": []any{"sh", "-c", "cat"}, "timeoutMs": 5000}},
	}})
	if err := h.RegisterAll([]plugins.Plugin{LLMTaskPlugin(nil)}); err != nil {
		t.Fatal(err)
	}
	tool, _ := toolNamed(t, h, plugins.ExecContext{}, "llm_task")
	got, err := tool.Handler(context.Background(), map[string]any{
		"prompt": "Classify this",
		"input":  map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("Handler() = %v", err)
	}
	if !strings.HasPrefix(got, "Classify this") || !strings.Contains(got, `"text": "hello"`) {
		t.Errorf("Handler() = %q", got)
	}

	failing := CommandTaskRunner{Command: []string{"sh", "-c", "echo quota exceeded >&2; exit 3"}}
	if _, err := failing.RunTask(context.Background(), TaskRequest{Prompt: "p"}); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("RunTask() error = %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lobster")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLobster_Sandboxed(t *testing.T) {
	h := newHost(t, plugins.Config{})
	if err := h.RegisterAll([]plugins.Plugin{LobsterPlugin()}); err != nil {
		t.Fatal(err)
	}
	if _, ok := toolNamed(t, h, plugins.ExecContext{Sandboxed: true}, "lobster"); ok {
		t.Error("lobster offered to a sandboxed execution")
	}
	if _, ok := toolNamed(t, h, plugins.ExecContext{}, "lobster"); !ok {
		t.Error("lobster missing outside the sandbox")
	}
}

func TestLobster_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	script := writeScript(t, `printf '%s|' "$@"; echo; pwd`)
	workspace := t.TempDir()

	h := newHost(t, plugins.Config{Entries: map[string]plugins.EntryConfig{
		LobsterID: {Config: map[string]any{"lobsterPath": script}},
	}})
	if err := h.RegisterAll([]plugins.Plugin{LobsterPlugin()}); err != nil {
		t.Fatal(err)
	}
	tool, ok := toolNamed(t, h, plugins.ExecContext{WorkspaceDir: workspace}, "lobster")
	if !ok {
		t.Fatal("lobster missing")
	}

	out, err := tool.Handler(context.Background(), map[string]any{
		"pipeline": "inbox list | inbox triage",
		"args":     map[string]any{"limit": 5},
	})
	if err != nil {
		t.Fatalf("Handler() = %v", err)
	}
	var res execResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("result %q is not JSON: %v", out, err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
	wantArgs := `run|--mode|tool|inbox list | inbox triage|--args-json|{"limit":5}|`
	if !strings.HasPrefix(res.Stdout, wantArgs) {
		t.Errorf("Stdout = %q, want prefix %q", res.Stdout, wantArgs)
	}
	if !strings.Contains(res.Stdout, filepath.Base(workspace)) {
		t.Errorf("command did not run in the workspace: %q", res.Stdout)
	}

	if _, err := tool.Handler(context.Background(), map[string]any{}); err == nil {
		t.Error("missing pipeline should fail")
	}
}

func TestLobster_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	script := writeScript(t, "exec sleep 5")
	l := lobster{path: script, timeout: 100 * time.Millisecond}

	out, err := l.run(context.Background(), "", map[string]any{"pipeline": "slow"})
	if err != nil {
		t.Fatalf("run() = %v", err)
	}
	var res execResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if !res.TimedOut || res.ExitCode != -1 {
		t.Errorf("result = %+v, want timed out", res)
	}
}

func TestLobster_BadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{"timeout not a number", map[string]any{"timeoutMs": "soon"}},
		{"negative timeout", map[string]any{"timeoutMs": -1}},
		{"path not a string", map[string]any{"lobsterPath": 42}},
		{"unknown key", map[string]any{"shell": "bash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHost(t, plugins.Config{Entries: map[string]plugins.EntryConfig{
				LobsterID: {Config: tt.cfg},
			}})
			var regErr *plugins.RegistrationError
			if err := h.RegisterAll([]plugins.Plugin{LobsterPlugin()}); !errors.As(err, &regErr) {
				t.Errorf("RegisterAll() = %v, want RegistrationError", err)
			}
		})
	}
}

type fakeStats struct{}

func (fakeStats) Uptime() time.Duration { return time.Minute }
func (fakeStats) Version() string       { return "test" }
func (fakeStats) Profile() string       { return "default" }
func (fakeStats) ChannelCount() int     { return 1 }
func (fakeStats) AccountCount() int     { return 1 }
func (fakeStats) PluginCount() int      { return 1 }
func (fakeStats) GatewayPort() int      { return 18789 }

func TestPresencePlugin(t *testing.T) {
	cfg := config.MQTTConfig{Broker: "mqtt://127.0.0.1:1883", DeviceName: "den", PublishIntervalSec: 60}

	h := newHost(t, plugins.Config{})
	if err := h.RegisterAll([]plugins.Plugin{PresencePlugin(cfg, t.TempDir(), fakeStats{})}); err != nil {
		t.Fatal(err)
	}
	st := h.Status()
	if len(st) != 1 || !slices.Equal(st[0].Services, []string{PresenceID}) {
		t.Errorf("Status() = %+v", st)
	}

	h = newHost(t, plugins.Config{})
	if err := h.RegisterAll([]plugins.Plugin{PresencePlugin(cfg, "", fakeStats{})}); err != nil {
		t.Fatal(err)
	}
	if got := h.Status()[0].State; got != plugins.StateSkipped {
		t.Errorf("presence without a state dir = %s, want skipped", got)
	}
}

func TestPresenceService_StopBeforeStart(t *testing.T) {
	s := &presenceService{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}
