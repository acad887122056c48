package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/text2llm/text2llm/internal/channels"
	"github.com/text2llm/text2llm/internal/paths"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	got, ok, err := FindConfig(path, paths.Env{"HOME": dir})
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if !ok || got != path {
		t.Errorf("FindConfig(%q) = %q, %v", path, got, ok)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, _, err := FindConfig("/nonexistent/text2llm.json", paths.Env{"HOME": "/home/u"})
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_ProfilePath(t *testing.T) {
	home := t.TempDir()
	env := paths.Env{"HOME": home, paths.VarProfile: "work"}
	want := filepath.Join(home, ".text2llm-work", "text2llm.json")

	got, ok, err := FindConfig("", env)
	if err != nil {
		t.Fatalf("FindConfig() error: %v", err)
	}
	if ok || got != want {
		t.Errorf("FindConfig() = %q, %v; want %q, false", got, ok, want)
	}

	if err := os.MkdirAll(filepath.Dir(want), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := FindConfig("", env); !ok {
		t.Error("FindConfig() did not find the written file")
	}
}

func TestParse_JSONC(t *testing.T) {
	data := []byte(`{
	// comments and trailing commas are fine
	"log_level": "debug",
	"gateway": {"port": 19002, "advertise": true,},
	"channels": {
		"telegram": {
			"token": "${TG_TOKEN}",
			"mediaMaxMb": 5,
			"accounts": {
				"work": {"enabled": false, "tokenEnv": "WORK_TG"},
			},
		},
	},
	"plugins": {"deny": ["lobster"], "entries": {"lobster": {"config": {"timeoutMs": 5000}}}},
}`)
	cfg, err := Parse(data, ".json", paths.Env{"TG_TOKEN": "123:ABC"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Gateway.Port != 19002 || !cfg.Gateway.Advertise {
		t.Errorf("Gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.ServiceType != "_text2llm-gw._tcp" || cfg.Gateway.Domain != "local." {
		t.Errorf("gateway defaults not applied: %+v", cfg.Gateway)
	}

	tg := cfg.Channels["telegram"]
	if tg.Token != "123:ABC" {
		t.Errorf("telegram token = %q", tg.Token)
	}
	if tg.Settings["mediaMaxMb"] != 5 {
		t.Errorf("telegram settings = %v", tg.Settings)
	}
	work := tg.Accounts["work"]
	if work.Enabled == nil || *work.Enabled || work.TokenEnv != "WORK_TG" {
		t.Errorf("work account = %+v", work)
	}

	if len(cfg.Plugins.Deny) != 1 || cfg.Plugins.Deny[0] != "lobster" {
		t.Errorf("Plugins.Deny = %v", cfg.Plugins.Deny)
	}
	if cfg.Plugins.Entries["lobster"].Config["timeoutMs"] != 5000 {
		t.Errorf("lobster config = %v", cfg.Plugins.Entries["lobster"].Config)
	}
	if cfg.MQTT.PublishIntervalSec != 60 || cfg.MQTT.DiscoveryPrefix != "homeassistant" {
		t.Errorf("mqtt defaults not applied: %+v", cfg.MQTT)
	}
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
log_format: json
mqtt:
  broker: mqtt://broker.lan:1883
  device_name: text2llm-den
  publish_interval_sec: 15
metrics:
  listen: 127.0.0.1:9464
`)
	cfg, err := Parse(data, ".yaml", nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if !cfg.MQTT.Configured() || cfg.MQTT.PublishIntervalSec != 15 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil, ".json", nil)
	if err != nil {
		t.Fatalf("Parse(empty) error: %v", err)
	}
	if cfg.Gateway.Port != DefaultGatewayPort || cfg.LogLevel != "info" {
		t.Errorf("Parse(empty) = %+v", cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad log level", `{"log_level": "loud"}`},
		{"bad log format", `{"log_format": "xml"}`},
		{"port out of range", `{"gateway": {"port": 70000}}`},
		{"unknown channel setting", `{"channels": {"telegram": {"colour": "red"}}}`},
		{"wrong setting kind", `{"channels": {"irc": {"port": "6697"}}}`},
		{"bad broker", `{"mqtt": {"broker": "localhost", "device_name": "x"}}`},
		{"not json", `{"log_level": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), ".json", nil); err == nil {
				t.Errorf("Parse(%s) should fail", tt.data)
			}
		})
	}
}

func TestParse_DuplicateAccountIDs(t *testing.T) {
	data := `{"channels": {"slack": {"accounts": {"Work": {}, "work": {}}}}}`
	_, err := Parse([]byte(data), ".json", nil)
	var dup *channels.DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("Parse() = %v, want channels.DuplicateIDError", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "text2llm.json")
	if err := os.WriteFile(path, []byte(`{"gateway": {"name": "${NODE}"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, paths.Env{"NODE": "den"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.Name != "den" {
		t.Errorf("Gateway.Name = %q", cfg.Gateway.Name)
	}

	if _, err := Load(filepath.Join(dir, "missing.json"), nil); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestGatewayPort(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		env  paths.Env
		want int
	}{
		{"default", nil, nil, DefaultGatewayPort},
		{"env wins", &Config{Gateway: GatewayConfig{Port: 19002}}, paths.Env{paths.VarGatewayPort: "19001"}, 19001},
		{"invalid env falls back", &Config{Gateway: GatewayConfig{Port: 19003}}, paths.Env{paths.VarGatewayPort: "nope"}, 19003},
		{"config", &Config{Gateway: GatewayConfig{Port: 19004}}, nil, 19004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GatewayPort(tt.env); got != tt.want {
				t.Errorf("GatewayPort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMQTTConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  MQTTConfig
		want bool
	}{
		{"both set", MQTTConfig{Broker: "mqtt://localhost", DeviceName: "text2llm"}, true},
		{"missing broker", MQTTConfig{DeviceName: "text2llm"}, false},
		{"missing device_name", MQTTConfig{Broker: "mqtt://localhost"}, false},
		{"empty", MQTTConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{" debug ", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := ReplaceLogLevelNames(nil, slog.Any(slog.LevelKey, LevelTrace))
	if a.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q", a.Value.String())
	}
	a = ReplaceLogLevelNames(nil, slog.Any(slog.LevelKey, slog.LevelInfo))
	if a.Value.Any() != slog.LevelInfo {
		t.Errorf("info level changed to %v", a.Value)
	}
}
