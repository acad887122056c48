// Package config handles text2llm configuration loading.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/paths"
	"github.com/text2llm/text2llm/internal/plugins"
)

// DefaultGatewayPort is used when neither the environment nor the
// config file names a port.
const DefaultGatewayPort = 18789

// FindConfig locates the config file. An explicit path must exist.
// Otherwise the profile's resolved config path is used; ok is false
// when that file does not exist, which is not an error.
func FindConfig(explicit string, env paths.Env) (path string, ok bool, err error) {
	if explicit != "" {
		p, err := paths.ExpandHome(explicit, env)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(p); err != nil {
			return "", false, fmt.Errorf("config file not found: %s", explicit)
		}
		return p, true, nil
	}

	p, err := paths.ResolveConfigPath(env)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(p); err != nil {
		return p, false, nil
	}
	return p, true, nil
}

// Config holds all text2llm configuration.
type Config struct {
	LogLevel  string                            `yaml:"log_level"`
	LogFormat string                            `yaml:"log_format"`
	Gateway   GatewayConfig                     `yaml:"gateway"`
	Channels  map[string]channels.ChannelConfig `yaml:"channels"`
	Plugins   plugins.Config                    `yaml:"plugins"`
	MQTT      MQTTConfig                        `yaml:"mqtt"`
	Metrics   MetricsConfig                     `yaml:"metrics"`
}

// GatewayConfig defines the local gateway and its LAN advertisement.
type GatewayConfig struct {
	Port        int    `yaml:"port"`
	Bind        string `yaml:"bind"`      // Bind address (default: "" = all interfaces)
	Advertise   bool   `yaml:"advertise"` // Announce over mDNS while serving
	ServiceType string `yaml:"service_type"`
	Domain      string `yaml:"domain"`
	Name        string `yaml:"name"` // Instance name (default: hostname)
}

// MQTTConfig defines the optional MQTT presence publisher.
type MQTTConfig struct {
	Broker             string `yaml:"broker"` // mqtt://, mqtts://, tcp:// or ssl://
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	DeviceName         string `yaml:"device_name"`
	DiscoveryPrefix    string `yaml:"discovery_prefix"`
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// Configured reports whether both a broker and a device name are set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != "" && c.DeviceName != ""
}

// MetricsConfig defines the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads configuration from path. JSON files may carry comments and
// trailing commas; .yaml and .yml files are YAML. ${VAR} references are
// expanded from env before decoding.
func Load(path string, env paths.Env) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path), env)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data as the format named by ext, applies defaults and
// validates the result.
func Parse(data []byte, ext string, env paths.Env) (*Config, error) {
	expanded := os.Expand(string(data), env.Get)

	doc := []byte(expanded)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
	default:
		var err error
		if doc, err = jsonToYAML(jsonc.ToJSON(doc)); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := yaml.Unmarshal(doc, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// jsonToYAML re-encodes a JSON document as YAML so the YAML decoder
// never sees tab indentation.
func jsonToYAML(data []byte) ([]byte, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return yaml.Marshal(v)
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Gateway: GatewayConfig{
			Port:        DefaultGatewayPort,
			ServiceType: "_text2llm-gw._tcp",
			Domain:      "local.",
		},
		MQTT: MQTTConfig{
			DiscoveryPrefix:    "homeassistant",
			PublishIntervalSec: 60,
		},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Gateway.ServiceType == "" {
		c.Gateway.ServiceType = d.Gateway.ServiceType
	}
	if c.Gateway.Domain == "" {
		c.Gateway.Domain = d.Gateway.Domain
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = d.MQTT.DiscoveryPrefix
	}
	if c.MQTT.PublishIntervalSec <= 0 {
		c.MQTT.PublishIntervalSec = d.MQTT.PublishIntervalSec
	}
}

// Validate checks the log settings, every channel section against its
// channel's settings schema, and the MQTT broker URL when MQTT is
// configured. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := validateLogFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d out of range", c.Gateway.Port))
	}

	ids := make([]string, 0, len(c.Channels))
	for id := range c.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := channels.SpecFor(id).Validate(c.Channels[id]); err != nil {
			errs = append(errs, err)
		}
	}

	if c.MQTT.Configured() {
		u, err := url.Parse(c.MQTT.Broker)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("mqtt.broker: %w", err))
		case u.Scheme == "" || u.Host == "":
			errs = append(errs, fmt.Errorf("mqtt.broker %q must be a URL like mqtt://host:1883", c.MQTT.Broker))
		}
	}
	return errors.Join(errs...)
}

// GatewayPort resolves the gateway port: a valid TEXT2LLM_GATEWAY_PORT
// wins, then the config file, then DefaultGatewayPort.
func (c *Config) GatewayPort(env paths.Env) int {
	if raw := env.Get(paths.VarGatewayPort); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 65535 {
			return n
		}
	}
	if c != nil && c.Gateway.Port > 0 {
		return c.Gateway.Port
	}
	return DefaultGatewayPort
}
