package mqtt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/text2llm/text2llm/internal/config"
)

func TestLoadOrCreateInstanceID_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	id, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error = %v", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("id %q is not a UUID: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("id version = %d, want 7", parsed.Version())
	}

	data, err := os.ReadFile(filepath.Join(dir, InstanceIDFile))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != id {
		t.Errorf("file content = %q, want %q", got, id)
	}
}

func TestLoadOrCreateInstanceID_ReturnsExisting(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if second != first {
		t.Errorf("second = %q, want %q", second, first)
	}
}

func TestLoadOrCreateInstanceID_BlankFileRegenerates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, InstanceIDFile), []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	id, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error = %v", err)
	}
	if id == "" {
		t.Error("blank file produced an empty id")
	}
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("test-instance-id", "den-node")
	if info.Name != "den-node" {
		t.Errorf("Name = %q, want %q", info.Name, "den-node")
	}
	if len(info.Identifiers) != 1 || info.Identifiers[0] != "test-instance-id" {
		t.Errorf("Identifiers = %v, want [test-instance-id]", info.Identifiers)
	}
	if info.Manufacturer != "text2llm" {
		t.Errorf("Manufacturer = %q", info.Manufacturer)
	}
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:             "mqtt://localhost:1883",
		DeviceName:         "den-node",
		DiscoveryPrefix:    "homeassistant",
		PublishIntervalSec: 60,
	}
}

func TestPublisher_TopicPaths(t *testing.T) {
	p := New(testConfig(), "test-id", nil, nil)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", p.baseTopic(), "text2llm/den-node"},
		{"availabilityTopic", p.availabilityTopic(), "text2llm/den-node/availability"},
		{"stateTopic uptime", p.stateTopic("uptime"), "text2llm/den-node/uptime/state"},
		{"discoveryTopic sensor uptime", p.discoveryTopic("sensor", "uptime"), "homeassistant/sensor/den-node/uptime/config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublisher_SensorDefinitions(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, "instance-123", nil, nil)

	want := []string{"uptime", "version", "profile", "gateway_port", "channels", "accounts", "plugins"}
	defs := p.sensorDefinitions()
	if len(defs) != len(want) {
		t.Fatalf("got %d sensor definitions, want %d", len(defs), len(want))
	}

	for i, d := range defs {
		if d.entitySuffix != want[i] {
			t.Errorf("sensor %d = %q, want %q", i, d.entitySuffix, want[i])
		}
		if strings.Contains(d.config.Name, cfg.DeviceName) {
			t.Errorf("sensor %s: Name %q repeats the device name", d.entitySuffix, d.config.Name)
		}
		if d.config.AvailabilityTopic != "text2llm/den-node/availability" {
			t.Errorf("sensor %s: AvailabilityTopic = %q", d.entitySuffix, d.config.AvailabilityTopic)
		}
		if d.config.UniqueID != "instance-123_"+d.entitySuffix {
			t.Errorf("sensor %s: UniqueID = %q", d.entitySuffix, d.config.UniqueID)
		}
		if d.config.ObjectID != d.entitySuffix || !d.config.HasEntityName {
			t.Errorf("sensor %s: ObjectID = %q, HasEntityName = %v",
				d.entitySuffix, d.config.ObjectID, d.config.HasEntityName)
		}
		if len(d.config.Device.Identifiers) == 0 {
			t.Errorf("sensor %s: Device.Identifiers is empty", d.entitySuffix)
		}
	}
}

func TestSensorConfig_JSON(t *testing.T) {
	p := New(testConfig(), "instance-123", nil, nil)
	var channels SensorConfig
	for _, d := range p.sensorDefinitions() {
		if d.entitySuffix == "channels" {
			channels = d.config
		}
	}

	data, err := json.Marshal(channels)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["state_class"] != "measurement" {
		t.Errorf("state_class = %v", decoded["state_class"])
	}
	if _, ok := decoded["entity_category"]; ok {
		t.Errorf("measurement sensor should not be diagnostic:\n%s", data)
	}
}

type fakeStats struct{}

func (fakeStats) Uptime() time.Duration { return 90*time.Second + 400*time.Millisecond }
func (fakeStats) Version() string       { return "1.2.3" }
func (fakeStats) Profile() string       { return "work" }
func (fakeStats) ChannelCount() int     { return 3 }
func (fakeStats) AccountCount() int     { return 5 }
func (fakeStats) PluginCount() int      { return 7 }
func (fakeStats) GatewayPort() int      { return 19001 }

func TestPublisher_States(t *testing.T) {
	p := New(testConfig(), "instance-123", fakeStats{}, nil)
	got := p.states()

	want := map[string]string{
		"uptime":       "1m30s",
		"version":      "1.2.3",
		"profile":      "work",
		"gateway_port": "19001",
		"channels":     "3",
		"accounts":     "5",
		"plugins":      "7",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("states[%q] = %q, want %q", k, got[k], v)
		}
	}
	for _, d := range p.sensorDefinitions() {
		if _, ok := got[d.entitySuffix]; !ok {
			t.Errorf("sensor %q has no state", d.entitySuffix)
		}
	}
}

func TestPublisher_NotStarted(t *testing.T) {
	p := New(testConfig(), "instance-123", fakeStats{}, nil)
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Start = %v", err)
	}
	if dev := p.Device(); dev.Name != "den-node" {
		t.Errorf("Device().Name = %q", dev.Name)
	}
}
