package plugins

import (
	"context"
	"fmt"
)

// Tool is a callable capability exposed to the agent.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// ExecContext describes the execution a tool set is being assembled
// for. Tool providers decide availability from it and nothing else.
type ExecContext struct {
	Sandboxed    bool
	AgentID      string
	SessionKey   string
	WorkspaceDir string
}

// Provision is the outcome of asking a provider for its tool: either
// an available tool or none at all. An unavailable tool is absent, not
// disabled, and is not an error.
type Provision struct {
	tool *Tool
}

// Available returns a Provision carrying t.
func Available(t Tool) Provision { return Provision{tool: &t} }

// Unavailable returns a Provision with no tool.
func Unavailable() Provision { return Provision{} }

// Tool returns the provisioned tool and whether there is one.
func (p Provision) Tool() (Tool, bool) {
	if p.tool == nil {
		return Tool{}, false
	}
	return *p.tool, true
}

// ToolProvider produces a tool for an execution context.
type ToolProvider interface {
	Provide(ec ExecContext) (Provision, error)
}

type staticTool struct{ tool Tool }

func (s staticTool) Provide(ExecContext) (Provision, error) { return Available(s.tool), nil }

// StaticTool returns a provider that always yields t.
func StaticTool(t Tool) ToolProvider { return staticTool{tool: t} }

// ToolFactory adapts a function to ToolProvider. The function is
// evaluated lazily, once per [Host.Tools] call.
type ToolFactory func(ec ExecContext) (Provision, error)

// Provide implements ToolProvider.
func (f ToolFactory) Provide(ec ExecContext) (Provision, error) { return f(ec) }

// ToolOptions qualify a tool registration.
type ToolOptions struct {
	// Optional tools whose provider fails are logged and left out.
	Optional bool
	// Name, when known up front, is checked for duplicates at
	// registration time. StaticTool names are always checked.
	Name string
}

type toolEntry struct {
	pluginID string
	provider ToolProvider
	opts     ToolOptions
}

// provide calls the provider, converting a panic into an error.
func (e toolEntry) provide(ec ExecContext) (p Provision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool provider panicked: %v", r)
		}
	}()
	return e.provider.Provide(ec)
}
