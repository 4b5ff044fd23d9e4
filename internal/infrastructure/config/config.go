package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the fanctld daemon.
// All configuration is loaded from YAML and can be overridden by environment
// variables with the FANCTL_ prefix.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Bus      BusConfig      `yaml:"bus"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Control  ControlConfig  `yaml:"control"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// ServiceConfig identifies this daemon instance.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// MQTTConfig contains broker connection settings for the management bus
// transport.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BusConfig contains settings for the object-bus query layer that rides on
// top of the MQTT transport.
type BusConfig struct {
	// RequestTimeout is the maximum time to wait for a query reply (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains telemetry recording settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ControlConfig contains fan-control policy settings.
type ControlConfig struct {
	// PolicyDir is the directory holding the policy files
	// (zones.json, fans.json, events.json, groups.json, profiles.json).
	PolicyDir string `yaml:"policy_dir"`

	// DumpPath is the fixed path the diagnostic dump is written to.
	DumpPath string `yaml:"dump_path"`

	// DiscoveryDepth bounds bus-wide interface discovery. 0 means unbounded.
	DiscoveryDepth int `yaml:"discovery_depth"`

	// FlightRecorderSize is the number of entries kept in the in-memory
	// flight recorder ring.
	FlightRecorderSize int `yaml:"flight_recorder_size"`
}

// MonitorConfig contains fan rotor health monitoring settings.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between health evaluations (seconds).
	Interval int `yaml:"interval"`

	// Deviation is the allowed percentage a tach reading may differ from
	// the commanded target before the rotor counts as nonfunctional.
	Deviation int `yaml:"deviation"`

	// AllowedNonfunctional is how many rotors may be out of range before
	// the whole fan is marked nonfunctional in the inventory.
	AllowedNonfunctional int `yaml:"allowed_nonfunctional"`

	// Bus service names the monitor queries and updates.
	SensorService    string `yaml:"sensor_service"`
	FanService       string `yaml:"fan_service"`
	InventoryService string `yaml:"inventory_service"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// Loading order: hardcoded defaults, then YAML file values, then FANCTL_*
// environment variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config populated with sensible defaults for a
// development deployment.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "fanctld",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fanctld",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Bus: BusConfig{
			RequestTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "data/fanctl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Control: ControlConfig{
			PolicyDir:          "configs/policy",
			DumpPath:           "/tmp/fan_control_dump.json",
			DiscoveryDepth:     0,
			FlightRecorderSize: 200,
		},
		Monitor: MonitorConfig{
			Interval:             30,
			Deviation:            15,
			AllowedNonfunctional: 0,
			SensorService:        "svc.sensors",
			FanService:           "svc.fans",
			InventoryService:     "svc.inventory",
		},
	}
}

// applyEnvOverrides overrides configuration values from FANCTL_* environment
// variables. Only the settings that routinely differ between deployments are
// overridable; structural policy lives in the files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FANCTL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FANCTL_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("FANCTL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FANCTL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FANCTL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FANCTL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("FANCTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FANCTL_POLICY_DIR"); v != "" {
		cfg.Control.PolicyDir = v
	}
}

// Validate checks the configuration for values that would prevent the daemon
// from starting.
func (c *Config) Validate() error {
	var problems []string

	if c.MQTT.Broker.Host == "" {
		problems = append(problems, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
		problems = append(problems, fmt.Sprintf("mqtt.broker.port %d out of range", c.MQTT.Broker.Port))
	}
	if c.MQTT.Broker.ClientID == "" {
		problems = append(problems, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		problems = append(problems, fmt.Sprintf("mqtt.qos %d invalid (must be 0, 1, or 2)", c.MQTT.QoS))
	}
	if c.Bus.RequestTimeout <= 0 {
		problems = append(problems, "bus.request_timeout must be positive")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			problems = append(problems, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			problems = append(problems, "influxdb.bucket is required when influxdb is enabled")
		}
	}
	if c.Control.PolicyDir == "" {
		problems = append(problems, "control.policy_dir is required")
	}
	if c.Control.DumpPath == "" {
		problems = append(problems, "control.dump_path is required")
	}
	if c.Control.DiscoveryDepth < 0 {
		problems = append(problems, "control.discovery_depth must not be negative")
	}

	if c.Monitor.Enabled {
		if c.Monitor.Interval <= 0 {
			problems = append(problems, "monitor.interval must be positive")
		}
		if c.Monitor.Deviation < 0 || c.Monitor.Deviation > 100 {
			problems = append(problems, fmt.Sprintf("monitor.deviation %d out of range", c.Monitor.Deviation))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
