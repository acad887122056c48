package builtin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/text2llm/text2llm/internal/config"
	"github.com/text2llm/text2llm/internal/mqtt"
	"github.com/text2llm/text2llm/internal/plugins"
)

// PresenceID is the plugin id of the MQTT presence service.
const PresenceID = "mqtt-presence"

// PresencePlugin registers a service announcing this node to Home
// Assistant over MQTT. Without a configured broker it registers
// nothing.
func PresencePlugin(cfg config.MQTTConfig, stateDir string, stats mqtt.StatsSource) plugins.Plugin {
	return plugins.Plugin{
		Manifest: plugins.Manifest{
			ID:           PresenceID,
			Name:         "MQTT Presence",
			Description:  "Publish node presence and sensors to Home Assistant",
			ConfigSchema: plugins.EmptyConfigSchema(),
			Optional:     true,
		},
		Register: func(api *plugins.API) error {
			if !cfg.Configured() {
				api.Logger().Debug("mqtt not configured, presence disabled")
				return nil
			}
			if stats == nil {
				return errors.New("no stats source")
			}
			if stateDir == "" {
				return errors.New("no state directory for the instance id")
			}
			return api.RegisterService(&presenceService{
				cfg:      cfg,
				stateDir: stateDir,
				stats:    stats,
				logger:   api.Logger(),
			})
		},
	}
}

type presenceService struct {
	cfg      config.MQTTConfig
	stateDir string
	stats    mqtt.StatsSource
	logger   *slog.Logger

	mu     sync.Mutex
	pub    *mqtt.Publisher
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *presenceService) ID() string { return PresenceID }

// Start loads the instance id and runs the publisher in the
// background. Broker availability is not required to start.
func (s *presenceService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pub != nil {
		return errors.New("presence already started")
	}

	id, err := mqtt.LoadOrCreateInstanceID(s.stateDir)
	if err != nil {
		return fmt.Errorf("instance id: %w", err)
	}

	pub := mqtt.New(s.cfg, id, s.stats, s.logger)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pub.Start(runCtx); err != nil {
			s.logger.Error("mqtt presence stopped", "error", err)
		}
	}()

	s.pub, s.cancel, s.done = pub, cancel, done
	s.logger.Info("mqtt presence started", "broker", s.cfg.Broker, "instance_id", id)
	return nil
}

// Stop publishes "offline", disconnects and waits for the publish loop
// to exit or ctx to end.
func (s *presenceService) Stop(ctx context.Context) error {
	s.mu.Lock()
	pub, cancel, done := s.pub, s.cancel, s.done
	s.pub, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()
	if pub == nil {
		return nil
	}

	err := pub.Stop(ctx)
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}
