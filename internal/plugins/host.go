package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/paths"
)

// State is a plugin's position in the registration lifecycle.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateRegistered   State = "registered"
	StateSkipped      State = "skipped"
	StateFatal        State = "fatal"
)

// Status is a snapshot of one plugin for diagnostics.
type Status struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	State    State    `json:"state"`
	Optional bool     `json:"optional,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Services []string `json:"services,omitempty"`
	Tools    []string `json:"tools,omitempty"`
}

// Options configure a Host.
type Options struct {
	Logger   *slog.Logger
	Config   Config
	Channels map[string]channels.ChannelConfig
	Env      paths.Env

	// Registerer receives the host's metrics. Nil keeps them private.
	Registerer prometheus.Registerer
}

type record struct {
	manifest Manifest
	state    State
	reason   string
	api      *API
}

// Host owns plugin registration and the registered contributions.
// RegisterAll must be called from a single goroutine; every other
// method is safe for concurrent use.
type Host struct {
	logger     *slog.Logger
	cfg        Config
	channelCfg map[string]channels.ChannelConfig
	env        paths.Env
	metrics    *metrics

	mu        sync.Mutex
	order     []string
	records   map[string]*record
	committed []*API
	started   []Service
}

// NewHost creates a host. It fails only if the metrics cannot be
// registered.
func NewHost(opts Options) (*Host, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register plugin metrics: %w", err)
	}
	return &Host{
		logger:     logger,
		cfg:        opts.Config,
		channelCfg: opts.Channels,
		env:        opts.Env,
		metrics:    m,
		records:    make(map[string]*record),
	}, nil
}

// RegisterAll registers plugins one at a time in the given order.
//
// Disabled plugins are skipped. A plugin whose Register returns an
// error or panics is skipped when optional, with none of its staged
// contributions kept; otherwise RegisterAll stops and returns a
// *RegistrationError. A duplicate plugin id, or a channel, service or
// tool id already taken, stops registration with a *DuplicateIDError
// and leaves the first registration in place.
func (h *Host) RegisterAll(plugins []Plugin) error {
	for _, p := range plugins {
		if err := h.register(p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) register(p Plugin) error {
	id := strings.TrimSpace(p.ID)
	log := h.logger.With("plugin", id)

	if id == "" {
		return &RegistrationError{PluginID: "(unnamed)", Err: errors.New("plugin id is blank")}
	}

	h.mu.Lock()
	if _, dup := h.records[id]; dup {
		h.mu.Unlock()
		return &DuplicateIDError{Kind: "plugin", ID: id}
	}
	rec := &record{manifest: p.Manifest, state: StateUnregistered}
	h.records[id] = rec
	h.order = append(h.order, id)
	h.mu.Unlock()

	if reason := h.cfg.disabledReason(id); reason != "" {
		h.finish(rec, StateSkipped, reason)
		log.Debug("plugin skipped", "reason", reason)
		return nil
	}

	h.setState(rec, StateRegistering)

	entry := h.cfg.Entries[id].Config
	api := &API{
		host:     h,
		manifest: p.Manifest,
		config:   entry,
		logger:   log,
	}

	err := h.validateConfig(p.Manifest, entry)
	if err == nil {
		err = callRegister(p, api)
	}
	api.closed = true

	if api.duplicate != nil {
		h.finish(rec, StateFatal, api.duplicate.Error())
		log.Error("plugin registration failed", "error", api.duplicate)
		return api.duplicate
	}
	if err != nil {
		if p.Optional {
			h.finish(rec, StateSkipped, err.Error())
			log.Warn("optional plugin failed to register, skipping", "error", err)
			return nil
		}
		h.finish(rec, StateFatal, err.Error())
		log.Error("plugin registration failed", "error", err)
		return &RegistrationError{PluginID: id, Err: err}
	}

	h.mu.Lock()
	rec.api = api
	h.committed = append(h.committed, api)
	h.mu.Unlock()
	h.finish(rec, StateRegistered, "")
	log.Info("plugin registered",
		"channels", len(api.channels),
		"services", len(api.services),
		"tools", len(api.tools),
	)
	return nil
}

func (h *Host) validateConfig(m Manifest, cfg map[string]any) error {
	if m.ConfigSchema == nil {
		return nil
	}
	if err := m.ConfigSchema.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// callRegister invokes p.Register, converting a panic into an error.
func callRegister(p Plugin, api *API) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register panicked: %v", r)
		}
	}()
	if p.Register == nil {
		return errors.New("plugin has no register function")
	}
	return p.Register(api)
}

func (h *Host) setState(rec *record, s State) {
	h.mu.Lock()
	rec.state = s
	h.mu.Unlock()
}

func (h *Host) finish(rec *record, s State, reason string) {
	h.mu.Lock()
	rec.state = s
	rec.reason = reason
	h.mu.Unlock()
	h.metrics.registrations.WithLabelValues(string(s)).Inc()
}

// owner returns the id of the committed plugin for which taken is
// true, or "".
func (h *Host) owner(taken func(*API) bool) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, api := range h.committed {
		if taken(api) {
			return api.manifest.ID
		}
	}
	return ""
}

func (h *Host) channel(id string) (ChannelPlugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, api := range h.committed {
		for _, ch := range api.channels {
			if strings.EqualFold(ch.Spec.ID, id) {
				return ch, true
			}
		}
	}
	return ChannelPlugin{}, false
}

func (h *Host) channelConfig(id string) channels.ChannelConfig {
	if cfg, ok := h.channelCfg[id]; ok {
		return cfg
	}
	for k, cfg := range h.channelCfg {
		if strings.EqualFold(k, id) {
			return cfg
		}
	}
	return channels.ChannelConfig{}
}

// Channels returns the registered channel plugins in registration
// order.
func (h *Host) Channels() []ChannelPlugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []ChannelPlugin
	for _, api := range h.committed {
		out = append(out, api.channels...)
	}
	return out
}

// ResolveAccount resolves the effective account for a message on
// channelID. A blank accountID selects the channel's default account.
func (h *Host) ResolveAccount(channelID, accountID string) (channels.ResolvedAccount, error) {
	ch, ok := h.channel(channelID)
	if !ok {
		return channels.ResolvedAccount{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	cfg := h.channelConfig(ch.Spec.ID)
	if strings.TrimSpace(accountID) == "" {
		accountID = channels.ResolveDefaultAccountID(cfg)
	}
	r := channels.Resolver{Spec: ch.Spec, Env: h.env}
	return r.ResolveAccount(cfg, accountID), nil
}

// Tools assembles the tool set for ec. Providers are evaluated in
// registration order. An unavailable provision is left out. A provider
// error or panic, or a name already produced, drops an optional tool
// with a warning and fails the call for a required one.
func (h *Host) Tools(ec ExecContext) ([]Tool, error) {
	h.mu.Lock()
	var entries []toolEntry
	for _, api := range h.committed {
		entries = append(entries, api.tools...)
	}
	h.mu.Unlock()

	var (
		out  []Tool
		seen = make(map[string]string)
	)
	for _, e := range entries {
		prov, err := e.provide(ec)
		if err == nil {
			tool, ok := prov.Tool()
			if !ok {
				h.metrics.toolsUnavailable.WithLabelValues("capability").Inc()
				continue
			}
			if owner, dup := seen[tool.Name]; dup {
				err = &DuplicateIDError{Kind: "tool", ID: tool.Name, PluginID: e.pluginID, Owner: owner}
			} else {
				seen[tool.Name] = e.pluginID
				out = append(out, tool)
				continue
			}
		}

		if e.opts.Optional {
			h.metrics.toolsUnavailable.WithLabelValues("error").Inc()
			h.logger.Warn("optional tool unavailable",
				"plugin", e.pluginID,
				"tool", e.opts.Name,
				"error", err,
			)
			continue
		}
		return nil, fmt.Errorf("plugin %s: tool %s: %w", e.pluginID, e.opts.Name, err)
	}
	return out, nil
}

// StartServices starts registered services in order. If one fails, the
// ones already started are stopped in reverse order and the error is
// returned.
func (h *Host) StartServices(ctx context.Context) error {
	h.mu.Lock()
	var services []Service
	for _, api := range h.committed {
		services = append(services, api.services...)
	}
	h.mu.Unlock()

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			stopErr := h.StopServices(ctx)
			return errors.Join(fmt.Errorf("start service %s: %w", svc.ID(), err), stopErr)
		}
		h.mu.Lock()
		h.started = append(h.started, svc)
		h.mu.Unlock()
		h.logger.Info("service started", "service", svc.ID())
	}
	return nil
}

// StopServices stops every started service in reverse start order and
// returns all stop errors joined.
func (h *Host) StopServices(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.started = nil
	h.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		if err := svc.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop service %s: %w", svc.ID(), err))
			continue
		}
		h.logger.Info("service stopped", "service", svc.ID())
	}
	return errors.Join(errs...)
}

// Status returns every plugin seen by RegisterAll, in order.
func (h *Host) Status() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Status, 0, len(h.order))
	for _, id := range h.order {
		rec := h.records[id]
		st := Status{
			ID:       id,
			Name:     rec.manifest.Name,
			State:    rec.state,
			Optional: rec.manifest.Optional,
			Reason:   rec.reason,
		}
		if rec.api != nil {
			for _, ch := range rec.api.channels {
				st.Channels = append(st.Channels, ch.Spec.ID)
			}
			for _, svc := range rec.api.services {
				st.Services = append(st.Services, svc.ID())
			}
			for _, t := range rec.api.tools {
				if t.opts.Name != "" {
					st.Tools = append(st.Tools, t.opts.Name)
				}
			}
		}
		out = append(out, st)
	}
	return out
}
