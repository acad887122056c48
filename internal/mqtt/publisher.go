package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/text2llm/text2llm/internal/config"
)

// StatsSource provides the values published as sensor states. The
// serve command adapts the plugin host to it.
type StatsSource interface {
	Uptime() time.Duration
	Version() string
	Profile() string
	ChannelCount() int
	AccountCount() int
	PluginCount() int
	GatewayPort() int
}

// Publisher owns the broker connection, publishes discovery configs on
// every (re-)connect, and pushes sensor states on a fixed interval.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     DeviceInfo
	stats      StatsSource
	logger     *slog.Logger

	mu sync.Mutex
	cm *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to connect and run the publish loop.
func New(cfg config.MQTTConfig, instanceID string, stats StatsSource, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDeviceInfo(instanceID, cfg.DeviceName),
		stats:      stats,
		logger:     logger,
	}
}

// Device returns the HA device block this publisher announces.
func (p *Publisher) Device() DeviceInfo { return p.device }

// Start connects to the broker and runs the publish loop until ctx is
// cancelled. A broker that is unreachable at startup is retried in the
// background.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "text2llm-" + p.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.mu.Lock()
	p.cm = cm
	p.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop publishes "offline" and disconnects. ctx bounds both.
func (p *Publisher) Stop(ctx context.Context) error {
	cm := p.conn()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

func (p *Publisher) conn() *autopaho.ConnectionManager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cm
}

func (p *Publisher) baseTopic() string {
	return "text2llm/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

// sensor describes one published entity.
type sensor struct {
	entity     string
	name       string
	icon       string
	diagnostic bool
	stateClass string
	unit       string
}

var sensors = []sensor{
	{entity: "uptime", name: "Uptime", icon: "mdi:clock-outline", diagnostic: true},
	{entity: "version", name: "Version", icon: "mdi:tag", diagnostic: true},
	{entity: "profile", name: "Profile", icon: "mdi:account-switch", diagnostic: true},
	{entity: "gateway_port", name: "Gateway Port", icon: "mdi:lan-connect", diagnostic: true},
	{entity: "channels", name: "Channels", icon: "mdi:forum", stateClass: "measurement", unit: "channels"},
	{entity: "accounts", name: "Accounts", icon: "mdi:account-multiple", stateClass: "measurement", unit: "accounts"},
	{entity: "plugins", name: "Plugins", icon: "mdi:puzzle", stateClass: "measurement", unit: "plugins"},
}

type sensorDef struct {
	entitySuffix string
	config       SensorConfig
}

func (p *Publisher) sensorDefinitions() []sensorDef {
	defs := make([]sensorDef, 0, len(sensors))
	for _, s := range sensors {
		cfg := SensorConfig{
			Name:              s.name,
			ObjectID:          s.entity,
			HasEntityName:     true,
			UniqueID:          p.instanceID + "_" + s.entity,
			StateTopic:        p.stateTopic(s.entity),
			AvailabilityTopic: p.availabilityTopic(),
			Device:            p.device,
			Icon:              s.icon,
			StateClass:        s.stateClass,
			UnitOfMeasurement: s.unit,
		}
		if s.diagnostic {
			cfg.EntityCategory = "diagnostic"
		}
		defs = append(defs, sensorDef{entitySuffix: s.entity, config: cfg})
	}
	return defs
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	for _, s := range p.sensorDefinitions() {
		topic := p.discoveryTopic("sensor", s.entitySuffix)
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload",
				"entity", s.entitySuffix, "error", err)
			continue
		}

		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: payload,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			p.logger.Warn("mqtt discovery publish failed",
				"entity", s.entitySuffix, "topic", topic, "error", err)
		}
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
		return
	}
	p.logger.Info("mqtt availability published", "status", status)
}

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishStates(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx)
		}
	}
}

// states renders the current sensor values keyed by entity.
func (p *Publisher) states() map[string]string {
	return map[string]string{
		"uptime":       p.stats.Uptime().Truncate(time.Second).String(),
		"version":      p.stats.Version(),
		"profile":      p.stats.Profile(),
		"gateway_port": strconv.Itoa(p.stats.GatewayPort()),
		"channels":     strconv.Itoa(p.stats.ChannelCount()),
		"accounts":     strconv.Itoa(p.stats.AccountCount()),
		"plugins":      strconv.Itoa(p.stats.PluginCount()),
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	cm := p.conn()
	if cm == nil || p.stats == nil {
		return
	}

	states := p.states()
	for entity, value := range states {
		p.logger.Log(ctx, config.LevelTrace, "mqtt state",
			"topic", p.stateTopic(entity), "payload", value)
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed",
				"entity", entity, "error", err)
		}
	}
	p.logger.Debug("mqtt sensor states published", "entities", len(states))
}
