package config

import (
	"os"
	"strings"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := getDefaultConfig()

	if cfg.Network.UDP.Port != 49005 {
		t.Errorf("Expected UDP port 49005, got %d", cfg.Network.UDP.Port)
	}
	if cfg.Network.UDP.ReceiveTimeout() != 500*time.Millisecond {
		t.Errorf("Expected receive timeout 500ms, got %v", cfg.Network.UDP.ReceiveTimeout())
	}
	if cfg.Freshness.MaxAge() != 5*time.Second {
		t.Errorf("Expected freshness window 5s, got %v", cfg.Freshness.MaxAge())
	}
	if cfg.Device.Driver != DriverVJoy || cfg.Device.ID != 1 {
		t.Errorf("Expected vjoy device 1, got %s/%d", cfg.Device.Driver, cfg.Device.ID)
	}
	if cfg.Device.Required {
		t.Error("Expected device output to be optional by default")
	}

	// Default mappings mirror the body-acceleration channels on X/Y/Z
	require.Len(t, cfg.Mappings, 3)
	for i, axis := range []string{"X", "Y", "Z"} {
		assert.Equal(t, axis, cfg.Mappings[i].Axis)
		assert.Equal(t, 500.0, cfg.Mappings[i].Scale)
		assert.Nil(t, cfg.Mappings[i].Offset, "default mappings centre on the axis midpoint")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	content := `
network:
  udp:
    port: 20777
device:
  driver: virtual
  id: 2
mappings:
  - channel: PLANE_BANK_DEGREES
    axis: RX
    scale: 100
    offset: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := getDefaultConfig()
	require.NoError(t, loadFromFile(cfg, path))

	assert.Equal(t, 20777, cfg.Network.UDP.Port)
	// Unset keys keep their defaults
	assert.Equal(t, 500, cfg.Network.UDP.ReceiveTimeoutMs)
	assert.Equal(t, DriverVirtual, cfg.Device.Driver)
	assert.Equal(t, uint(2), cfg.Device.ID)

	require.Len(t, cfg.Mappings, 1, "a mappings list in the file replaces the defaults")
	require.NotNil(t, cfg.Mappings[0].Offset)
	assert.Equal(t, 0.0, *cfg.Mappings[0].Offset)
	assert.Equal(t, "RX", cfg.Mappings[0].Axis)
}

func TestLoadConfigFromNonExistentFile(t *testing.T) {
	cfg := &Config{}
	err := loadFromFile(cfg, "non-existent-file.yaml")
	if err == nil {
		t.Error("Expected error when loading non-existent file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := getDefaultConfig()

	t.Setenv("FLIGHTBRIDGE_UDP_PORT", "5555")
	t.Setenv("FLIGHTBRIDGE_HTTP_PORT", "9090")
	t.Setenv("FLIGHTBRIDGE_DEVICE_ID", "3")
	t.Setenv("FLIGHTBRIDGE_DEVICE_DRIVER", "VIRTUAL")
	t.Setenv("FLIGHTBRIDGE_DEVICE_REQUIRED", "true")
	t.Setenv("FLIGHTBRIDGE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	assert.Equal(t, 5555, cfg.Network.UDP.Port)
	assert.Equal(t, 9090, cfg.Network.HTTP.Port)
	assert.Equal(t, uint(3), cfg.Device.ID)
	assert.Equal(t, DriverVirtual, cfg.Device.Driver)
	assert.True(t, cfg.Device.Required)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverridesIgnoresInvalidValues(t *testing.T) {
	cfg := getDefaultConfig()
	originalPort := cfg.Network.UDP.Port

	t.Setenv("FLIGHTBRIDGE_UDP_PORT", "invalid")
	t.Setenv("FLIGHTBRIDGE_DEVICE_REQUIRED", "maybe")

	applyEnvOverrides(cfg)

	if cfg.Network.UDP.Port != originalPort {
		t.Errorf("Expected original port %d for invalid env var, got %d", originalPort, cfg.Network.UDP.Port)
	}
	if cfg.Device.Required {
		t.Error("Expected required flag unchanged for invalid env var")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: func() *Config {
				return getDefaultConfig()
			},
			wantErr: false,
		},
		{
			name: "udp port zero",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.UDP.Port = 0
				return cfg
			},
			wantErr: true,
		},
		{
			name: "udp port too high",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.UDP.Port = 70000
				return cfg
			},
			wantErr: true,
		},
		{
			name: "http port ignored when disabled",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.HTTP.Enabled = false
				cfg.Network.HTTP.Port = 0
				return cfg
			},
			wantErr: false,
		},
		{
			name: "http and udp share a port",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.HTTP.Port = cfg.Network.UDP.Port
				return cfg
			},
			wantErr: true,
		},
		{
			name: "receive timeout zero",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.UDP.ReceiveTimeoutMs = 0
				return cfg
			},
			wantErr: true,
		},
		{
			name: "buffer too small",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Network.UDP.BufferBytes = 16
				return cfg
			},
			wantErr: true,
		},
		{
			name: "invalid driver",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Device.Driver = "xinput"
				return cfg
			},
			wantErr: true,
		},
		{
			name: "device id zero",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Device.ID = 0
				return cfg
			},
			wantErr: true,
		},
		{
			name: "device id zero without device",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Device.Driver = DriverNone
				cfg.Device.ID = 0
				return cfg
			},
			wantErr: false,
		},
		{
			name: "mapping without axis",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Mappings = append(cfg.Mappings, MappingConfig{Channel: "G_FORCE"})
				return cfg
			},
			wantErr: true,
		},
		{
			name: "freshness window zero",
			config: func() *Config {
				cfg := getDefaultConfig()
				cfg.Freshness.MaxAgeSec = 0
				return cfg
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config())
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		slice []string
		item  string
		want  bool
	}{
		{[]string{"vjoy", "virtual", "none"}, "vjoy", true},
		{[]string{"vjoy", "virtual", "none"}, "invalid", false},
		{[]string{}, "test", false},
		{[]string{"single"}, "single", true},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := contains(tt.slice, tt.item); got != tt.want {
				t.Errorf("contains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  udp:\n    port: 30000\n"), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 30000, cfg.Network.UDP.Port)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("freshness:\n  maxAgeSec: 2\n"), 0644))
	t.Setenv("FLIGHTBRIDGE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Freshness.MaxAge())
}

func TestLoadFailsForMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  driver: gamepad\n"), 0644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid device driver")
}

func TestSaveUDPPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  driver: virtual\n  id: 4\n"), 0644))

	require.NoError(t, SaveUDPPort(path, 40000))

	cfg := getDefaultConfig()
	require.NoError(t, loadFromFile(cfg, path))
	assert.Equal(t, 40000, cfg.Network.UDP.Port)
	assert.Equal(t, DriverVirtual, cfg.Device.Driver, "other settings survive the save")
	assert.Equal(t, uint(4), cfg.Device.ID)
}

func TestSaveUDPPortCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")

	require.NoError(t, SaveUDPPort(path, 41000))

	cfg := getDefaultConfig()
	require.NoError(t, loadFromFile(cfg, path))
	assert.Equal(t, 41000, cfg.Network.UDP.Port)
}

func TestSaveUDPPortRejectsInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.Error(t, SaveUDPPort(path, 0))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written for an invalid port")
}

// chdirTemp runs the test from an empty directory so DefaultFile resolves inside it
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

const layeredDefault = `# shipped settings
network:
  udp:
    port: 49005
    receiveTimeoutMs: 250 # faster shutdown
  http:
    port: 8890
device:
  driver: virtual # no vJoy on this host
  id: 2
mappings:
  - channel: PLANE_BANK_DEGREES
    axis: RZ
    scale: 100
freshness:
  maxAgeSec: 3
`

func TestSaveUDPPortChangesOnlyThePort(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("FLIGHTBRIDGE_CONFIG", "")
	t.Setenv("FLIGHTBRIDGE_UDP_PORT", "")
	t.Setenv("FLIGHTBRIDGE_DEVICE_DRIVER", "")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.WriteFile(DefaultFile, []byte(layeredDefault), 0644))
	require.NoError(t, os.WriteFile("override.yaml", []byte("network:\n  udp:\n    port: 50000\n"), 0644))

	before, err := LoadFrom("override.yaml")
	require.NoError(t, err)
	require.Equal(t, DriverVirtual, before.Device.Driver)
	require.Equal(t, 50000, before.Network.UDP.Port)

	require.NoError(t, SaveUDPPort(ResolveFile("override.yaml"), 50001))

	after, err := LoadFrom("override.yaml")
	require.NoError(t, err)

	want := *before
	want.Network.UDP.Port = 50001
	assert.Equal(t, &want, after, "nothing but the port may change")

	// the override still holds only the port
	data, err := os.ReadFile("override.yaml")
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Len(t, raw, 1)
	assert.Equal(t, "network:\n  udp:\n    port: 50001\n", string(data))
}

func TestSaveUDPPortKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte(layeredDefault), 0644))

	require.NoError(t, SaveUDPPort(path, 50002))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "# shipped settings")
	assert.Contains(t, out, "receiveTimeoutMs: 250 # faster shutdown")
	assert.Contains(t, out, "driver: virtual # no vJoy on this host")
	assert.Contains(t, out, "port: 50002")
	assert.NotContains(t, out, "49005")
	assert.Equal(t, 1, strings.Count(out, "port: 50002"))
}

func TestSaveUDPPortAddsMissingSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"comment only", "# nothing yet\n"},
		{"null network", "network:\ndevice:\n  id: 3\n"},
		{"no udp section", "network:\n  http:\n    port: 9000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bridge.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			require.NoError(t, SaveUDPPort(path, 42000))

			cfg := getDefaultConfig()
			require.NoError(t, loadFromFile(cfg, path))
			assert.Equal(t, 42000, cfg.Network.UDP.Port)
		})
	}
}

func TestSaveUDPPortRejectsNonMappingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	content := []byte("network: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	assert.Error(t, SaveUDPPort(path, 42000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, data, "a rejected save leaves the file alone")
}

func TestResolveFile(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FLIGHTBRIDGE_CONFIG", "")
	assert.Equal(t, DefaultFile, ResolveFile(""))
	assert.Equal(t, "explicit.yaml", ResolveFile("explicit.yaml"))

	t.Setenv("FLIGHTBRIDGE_CONFIG", "from-env.yaml")
	assert.Equal(t, "from-env.yaml", ResolveFile(""))
	assert.Equal(t, "explicit.yaml", ResolveFile("explicit.yaml"))
}
