package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/text2llm/text2llm/internal/channels"
)

// ChannelPlugin attaches a chat channel. The host uses its spec for
// config validation and per-account resolution; message transport is
// the adapter's business.
type ChannelPlugin struct {
	Spec channels.Spec
}

// Service is a long-running component started after registration and
// stopped at shutdown.
type Service interface {
	ID() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// API is handed to a plugin's Register function. It is valid only
// during that call; afterwards every method returns
// ErrRegistrationClosed.
type API struct {
	host     *Host
	manifest Manifest
	config   map[string]any
	logger   *slog.Logger
	closed   bool

	// duplicate is the first id clash seen during registration.
	duplicate *DuplicateIDError

	channels []ChannelPlugin
	services []Service
	tools    []toolEntry
}

// Logger returns a logger tagged with the plugin id. It stays usable
// after registration closes.
func (a *API) Logger() *slog.Logger { return a.logger }

// PluginConfig returns the plugin's validated entry config. The map is
// never nil.
func (a *API) PluginConfig() (map[string]any, error) {
	if a.closed {
		return nil, ErrRegistrationClosed
	}
	out := make(map[string]any, len(a.config))
	for k, v := range a.config {
		out[k] = v
	}
	return out, nil
}

// Accounts returns the enabled accounts configured for channelID,
// resolved with the channel's spec when it is already registered.
func (a *API) Accounts(channelID string) ([]channels.ResolvedAccount, error) {
	if a.closed {
		return nil, ErrRegistrationClosed
	}
	spec := channels.SpecFor(channelID)
	for _, ch := range a.channels {
		if strings.EqualFold(ch.Spec.ID, channelID) {
			spec = ch.Spec
		}
	}
	if ch, ok := a.host.channel(channelID); ok {
		spec = ch.Spec
	}
	r := channels.Resolver{Spec: spec, Env: a.host.env}
	return r.ListEnabledAccounts(a.host.channelConfig(channelID)), nil
}

// RegisterChannel attaches a channel plugin.
func (a *API) RegisterChannel(ch ChannelPlugin) error {
	if a.closed {
		return ErrRegistrationClosed
	}
	id := strings.ToLower(strings.TrimSpace(ch.Spec.ID))
	if err := a.claim("channel", id, func(other *API) bool {
		for _, c := range other.channels {
			if strings.EqualFold(c.Spec.ID, id) {
				return true
			}
		}
		return false
	}); err != nil {
		return err
	}
	ch.Spec.ID = id
	a.channels = append(a.channels, ch)
	return nil
}

// RegisterService attaches a service.
func (a *API) RegisterService(svc Service) error {
	if a.closed {
		return ErrRegistrationClosed
	}
	id := svc.ID()
	if err := a.claim("service", id, func(other *API) bool {
		for _, s := range other.services {
			if s.ID() == id {
				return true
			}
		}
		return false
	}); err != nil {
		return err
	}
	a.services = append(a.services, svc)
	return nil
}

// RegisterTool attaches a tool provider. Static tools and providers
// registered with opts.Name are checked for name clashes now; factory
// output is checked when tools are assembled.
func (a *API) RegisterTool(provider ToolProvider, opts ToolOptions) error {
	if a.closed {
		return ErrRegistrationClosed
	}
	if st, ok := provider.(staticTool); ok && opts.Name == "" {
		opts.Name = st.tool.Name
	}
	if opts.Name != "" {
		name := opts.Name
		if err := a.claim("tool", name, func(other *API) bool {
			for _, t := range other.tools {
				if t.opts.Name == name {
					return true
				}
			}
			return false
		}); err != nil {
			return err
		}
	}
	a.tools = append(a.tools, toolEntry{pluginID: a.manifest.ID, provider: provider, opts: opts})
	return nil
}

// claim reports a *DuplicateIDError when id is already taken by a
// committed plugin or earlier in this registration. The error is also
// remembered so the plugin fails even if it ignores the return value.
func (a *API) claim(kind, id string, taken func(*API) bool) error {
	if id == "" {
		return fmt.Errorf("%s id is blank", kind)
	}
	owner := ""
	if taken(a) {
		owner = a.manifest.ID
	} else {
		owner = a.host.owner(taken)
	}
	if owner == "" {
		return nil
	}
	err := &DuplicateIDError{Kind: kind, ID: id, PluginID: a.manifest.ID, Owner: owner}
	if a.duplicate == nil {
		a.duplicate = err
	}
	return err
}
