package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultFile is read when present; missing is not an error
const DefaultFile = "config/default.yaml"

// Config represents the complete configuration for the bridge
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Device    DeviceConfig    `yaml:"device"`
	Mappings  []MappingConfig `yaml:"mappings"`
	Freshness FreshnessConfig `yaml:"freshness"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NetworkConfig holds network-related settings
type NetworkConfig struct {
	UDP  UDPConfig  `yaml:"udp"`
	HTTP HTTPConfig `yaml:"http"`
}

// UDPConfig holds telemetry listener settings
type UDPConfig struct {
	Port             int `yaml:"port"`
	ReceiveTimeoutMs int `yaml:"receiveTimeoutMs"`
	BufferBytes      int `yaml:"bufferBytes"`
}

// HTTPConfig holds the host property server settings
type HTTPConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
}

// DeviceConfig selects the output device
type DeviceConfig struct {
	Driver   string `yaml:"driver"` // vjoy, virtual or none
	ID       uint   `yaml:"id"`
	Required bool   `yaml:"required"` // abort startup when the device cannot be acquired
}

// MappingConfig binds one telemetry channel to one device axis
type MappingConfig struct {
	Channel string   `yaml:"channel"`
	Axis    string   `yaml:"axis"`
	Scale   float64  `yaml:"scale"`
	Offset  *float64 `yaml:"offset,omitempty"` // nil centres on the axis midpoint
}

// FreshnessConfig holds the stalled-feed window
type FreshnessConfig struct {
	MaxAgeSec int `yaml:"maxAgeSec"`
}

// LoggingConfig holds log level and rotation settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Device drivers
const (
	DriverVJoy    = "vjoy"
	DriverVirtual = "virtual"
	DriverNone    = "none"
)

// ReceiveTimeout returns the bounded receive wait of the listener loop
func (c UDPConfig) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutMs) * time.Millisecond
}

// MaxAge returns the freshness window
func (c FreshnessConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSec) * time.Second
}

// Load loads configuration from the default file, FLIGHTBRIDGE_CONFIG and environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration like Load, taking the override file from path when it is not empty
func LoadFrom(path string) (*Config, error) {
	loadDotEnv()

	cfg := getDefaultConfig()

	if err := loadFromFile(cfg, DefaultFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Warning: Could not load default config: %v\n", err)
	}

	if path == "" {
		path = os.Getenv("FLIGHTBRIDGE_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return getDefaultConfig()
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			UDP: UDPConfig{
				Port:             49005,
				ReceiveTimeoutMs: 500,
				BufferBytes:      64 * 1024,
			},
			HTTP: HTTPConfig{
				Port:    8888,
				Enabled: true,
			},
		},
		Device: DeviceConfig{
			Driver:   DriverVJoy,
			ID:       1,
			Required: false,
		},
		Mappings: []MappingConfig{
			{Channel: "ACCELERATION_BODY_X", Axis: "X", Scale: 500},
			{Channel: "ACCELERATION_BODY_Y", Axis: "Y", Scale: 500},
			{Channel: "ACCELERATION_BODY_Z", Axis: "Z", Scale: 500},
		},
		Freshness: FreshnessConfig{
			MaxAgeSec: 5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("FLIGHTBRIDGE_UDP_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Network.UDP.Port = n
		}
	}

	if port := os.Getenv("FLIGHTBRIDGE_HTTP_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Network.HTTP.Port = n
		}
	}

	if id := os.Getenv("FLIGHTBRIDGE_DEVICE_ID"); id != "" {
		if n, err := strconv.ParseUint(id, 10, 32); err == nil {
			cfg.Device.ID = uint(n)
		}
	}

	if driver := os.Getenv("FLIGHTBRIDGE_DEVICE_DRIVER"); driver != "" {
		cfg.Device.Driver = strings.ToLower(driver)
	}

	if required := os.Getenv("FLIGHTBRIDGE_DEVICE_REQUIRED"); required != "" {
		if b, err := strconv.ParseBool(required); err == nil {
			cfg.Device.Required = b
		}
	}

	if level := os.Getenv("FLIGHTBRIDGE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if err := validatePort("network.udp.port", cfg.Network.UDP.Port); err != nil {
		return err
	}

	if cfg.Network.HTTP.Enabled {
		if err := validatePort("network.http.port", cfg.Network.HTTP.Port); err != nil {
			return err
		}
		if cfg.Network.HTTP.Port == cfg.Network.UDP.Port {
			// different protocols, but sharing a number is almost always a typo
			return fmt.Errorf("network.http.port and network.udp.port must differ, both are %d", cfg.Network.UDP.Port)
		}
	}

	if cfg.Network.UDP.ReceiveTimeoutMs <= 0 || cfg.Network.UDP.ReceiveTimeoutMs > 5000 {
		return fmt.Errorf("receive timeout %dms is outside reasonable range [1, 5000]", cfg.Network.UDP.ReceiveTimeoutMs)
	}

	if cfg.Network.UDP.BufferBytes < 512 || cfg.Network.UDP.BufferBytes > 64*1024 {
		return fmt.Errorf("buffer size %d is outside range [512, 65536]", cfg.Network.UDP.BufferBytes)
	}

	validDrivers := []string{DriverVJoy, DriverVirtual, DriverNone}
	if !contains(validDrivers, cfg.Device.Driver) {
		return fmt.Errorf("invalid device driver %s, must be one of: %v", cfg.Device.Driver, validDrivers)
	}

	if cfg.Device.Driver != DriverNone && cfg.Device.ID == 0 {
		return fmt.Errorf("device id must be at least 1")
	}

	for i, m := range cfg.Mappings {
		if m.Channel == "" || m.Axis == "" {
			return fmt.Errorf("mapping %d must name both a channel and an axis", i)
		}
	}

	if cfg.Freshness.MaxAgeSec <= 0 {
		return fmt.Errorf("freshness window %d seconds must be positive", cfg.Freshness.MaxAgeSec)
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d is outside range [1, 65535]", name, port)
	}
	return nil
}

// loadDotEnv reads .env when present; it never overrides variables already set in the environment
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Warning: Could not load .env: %v\n", err)
	}
}

// ResolveFile returns the file LoadFrom reads last for path: path itself, else FLIGHTBRIDGE_CONFIG,
// else DefaultFile
func ResolveFile(path string) string {
	if path != "" {
		return path
	}
	loadDotEnv()
	if env := os.Getenv("FLIGHTBRIDGE_CONFIG"); env != "" {
		return env
	}
	return DefaultFile
}

// SaveUDPPort writes network.udp.port into a YAML file. Every other key, and the comments, are left
// as they are; a missing file is created holding only the port.
func SaveUDPPort(filename string, port int) error {
	if err := validatePort("network.udp.port", port); err != nil {
		return err
	}

	var doc yamlv3.Node
	data, err := os.ReadFile(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err == nil {
		if err := yamlv3.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filename, err)
		}
	}

	// empty or comment-only files decode to no content
	if doc.Kind == 0 {
		doc.Kind = yamlv3.DocumentNode
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yamlv3.Node{{Kind: yamlv3.MappingNode, Tag: "!!map"}}
	}

	network, err := mappingChild(doc.Content[0], "network")
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	udp, err := mappingChild(network, "udp")
	if err != nil {
		return fmt.Errorf("%s: network: %w", filename, err)
	}
	setScalar(udp, "port", "!!int", strconv.Itoa(port))

	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// mappingChild returns the mapping stored under key in m, adding it when absent or null
func mappingChild(m *yamlv3.Node, key string) (*yamlv3.Node, error) {
	if m.Kind != yamlv3.MappingNode {
		return nil, fmt.Errorf("expected a mapping at line %d", m.Line)
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind == yamlv3.ScalarNode && v.Tag == "!!null" {
			v.Kind, v.Tag, v.Value = yamlv3.MappingNode, "!!map", ""
		}
		if v.Kind != yamlv3.MappingNode {
			return nil, fmt.Errorf("%s is not a mapping (line %d)", key, v.Line)
		}
		return v, nil
	}

	v := &yamlv3.Node{Kind: yamlv3.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: key}, v)
	return v, nil
}

// setScalar sets key in mapping m, keeping the comments of an existing value
func setScalar(m *yamlv3.Node, key, tag, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			v := m.Content[i+1]
			v.Kind, v.Tag, v.Value, v.Style = yamlv3.ScalarNode, tag, value, 0
			v.Content = nil
			return
		}
	}
	m.Content = append(m.Content,
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: key},
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: tag, Value: value})
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
