package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: fanctld\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("default broker host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default broker port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Control.DumpPath != "/tmp/fan_control_dump.json" {
		t.Errorf("default dump path = %q", cfg.Control.DumpPath)
	}
	if cfg.Bus.RequestTimeout != 5 {
		t.Errorf("default bus request timeout = %d, want 5", cfg.Bus.RequestTimeout)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: bmc-broker.internal
    port: 8883
    tls: true
    client_id: fanctld-01
control:
  policy_dir: /etc/fanctl/policy
  discovery_depth: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "bmc-broker.internal" {
		t.Errorf("broker host = %q", cfg.MQTT.Broker.Host)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("broker TLS not applied from file")
	}
	if cfg.Control.PolicyDir != "/etc/fanctl/policy" {
		t.Errorf("policy dir = %q", cfg.Control.PolicyDir)
	}
	if cfg.Control.DiscoveryDepth != 2 {
		t.Errorf("discovery depth = %d, want 2", cfg.Control.DiscoveryDepth)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: from-file
`)
	t.Setenv("FANCTL_MQTT_HOST", "from-env")
	t.Setenv("FANCTL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("broker host = %q, want from-env", cfg.MQTT.Broker.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() with missing file should error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker host", func(c *Config) { c.MQTT.Broker.Host = "" }},
		{"port out of range", func(c *Config) { c.MQTT.Broker.Port = 70000 }},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"zero request timeout", func(c *Config) { c.Bus.RequestTimeout = 0 }},
		{"empty policy dir", func(c *Config) { c.Control.PolicyDir = "" }},
		{"negative discovery depth", func(c *Config) { c.Control.DiscoveryDepth = -1 }},
		{"influx enabled without url", func(c *Config) { c.InfluxDB.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should reject this configuration")
			}
		})
	}
}
