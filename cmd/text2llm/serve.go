package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/text2llm/text2llm/internal/buildinfo"
	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/discovery"
	"github.com/text2llm/text2llm/internal/paths"
	"github.com/text2llm/text2llm/internal/plugins"
	"github.com/text2llm/text2llm/internal/profile"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

// gatewayPort resolves the port from the environment and config file,
// falling back to the default when the config cannot be read.
func (a *app) gatewayPort() int {
	cfg, _, err := a.loadConfig()
	if err != nil {
		cfg = nil
	}
	return cfg.GatewayPort(a.env)
}

// hostStats adapts the plugin host to [mqtt.StatsSource]. host is set
// once registration begins and only read after services start.
type hostStats struct {
	host *plugins.Host
	cfg  *config.Config
	env  paths.Env
}

func (s *hostStats) Uptime() time.Duration { return buildinfo.Uptime() }
func (s *hostStats) Version() string       { return buildinfo.Version }
func (s *hostStats) Profile() string       { return profile.Normalize(s.env.Profile()).String() }
func (s *hostStats) GatewayPort() int      { return s.cfg.GatewayPort(s.env) }
func (s *hostStats) ChannelCount() int     { return len(s.host.Channels()) }

// AccountCount counts enabled accounts on registered channels that have
// a config section.
func (s *hostStats) AccountCount() int {
	n := 0
	for _, ch := range s.host.Channels() {
		chCfg, ok := s.cfg.Channels[ch.Spec.ID]
		if !ok {
			continue
		}
		r := channels.Resolver{Spec: ch.Spec, Env: s.env}
		n += len(r.ListEnabledAccounts(chCfg))
	}
	return n
}

func (s *hostStats) PluginCount() int {
	n := 0
	for _, st := range s.host.Status() {
		if st.State == plugins.StateRegistered {
			n++
		}
	}
	return n
}

type statusResponse struct {
	Version string           `json:"version"`
	Profile string           `json:"profile"`
	Uptime  string           `json:"uptime"`
	Plugins []plugins.Status `json:"plugins"`
}

// gatewayMux serves health, status and, unless metrics has its own
// listener, the Prometheus endpoint.
func gatewayMux(host *plugins.Host, stats *hostStats, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{
			Version: stats.Version(),
			Profile: stats.Profile(),
			Uptime:  stats.Uptime().String(),
			Plugins: host.Status(),
		})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

// runServe runs the gateway until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts everything down in reverse order.
func (a *app) runServe(ctx context.Context) error {
	cfg, cfgPath, err := a.loadConfig()
	if err != nil {
		return err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(a.stdout, level, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats := &hostStats{cfg: cfg, env: a.env}
	logger.Info("text2llm starting",
		"version", buildinfo.Version,
		"profile", stats.Profile(),
		"config", cfgPath,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	host, err := a.newHost(cfg, logger, reg, stats)
	if err != nil {
		return fmt.Errorf("register plugins: %w", err)
	}

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	var metricsServer *http.Server
	if cfg.Metrics.Listen != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metricsHandler)
		metricsServer = &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}
		metricsHandler = nil
	}

	port := cfg.GatewayPort(a.env)
	addr := net.JoinHostPort(cfg.Gateway.Bind, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	server := &http.Server{Handler: gatewayMux(host, stats, metricsHandler), ReadHeaderTimeout: 10 * time.Second}

	if err := host.StartServices(ctx); err != nil {
		ln.Close()
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()
	if metricsServer != nil {
		go func() {
			logger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	withdraw := func() {}
	if cfg.Gateway.Advertise {
		name := cfg.Gateway.Name
		if name == "" {
			name, _ = os.Hostname()
		}
		w, err := discovery.Advertise(discovery.Advertisement{
			Name:        name,
			ServiceType: cfg.Gateway.ServiceType,
			Domain:      cfg.Gateway.Domain,
			Port:        port,
			Text:        []string{"version=" + buildinfo.Version, "profile=" + stats.Profile()},
		}, logger)
		if err != nil {
			logger.Warn("mdns advertisement failed, continuing without it", "error", err)
		} else {
			withdraw = w
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	withdraw()
	errs := []error{runErr, host.StopServices(shutdownCtx), server.Shutdown(shutdownCtx)}
	if metricsServer != nil {
		errs = append(errs, metricsServer.Shutdown(shutdownCtx))
	}
	logger.Info("text2llm stopped")
	return errors.Join(errs...)
}
