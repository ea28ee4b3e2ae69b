package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_MatchesFirmwareConstants(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	if cfg.Network.BootAttempts != 30 {
		t.Errorf("BootAttempts = %d, want 30", cfg.Network.BootAttempts)
	}
	if cfg.Network.ReconnectAttempts != 20 {
		t.Errorf("ReconnectAttempts = %d, want 20", cfg.Network.ReconnectAttempts)
	}
	if cfg.Network.RetryInterval != 500*time.Millisecond {
		t.Errorf("RetryInterval = %v, want 500ms", cfg.Network.RetryInterval)
	}
	if cfg.Server.Timeout != 3*time.Second {
		t.Errorf("Server.Timeout = %v, want 3s", cfg.Server.Timeout)
	}
	if len(cfg.Stations) != 2 || cfg.Stations[0].Pin != "GPIO18" || cfg.Stations[1].Pin != "GPIO19" {
		t.Errorf("Stations = %+v, want GPIO18/GPIO19", cfg.Stations)
	}
	if cfg.ManagedLink() {
		t.Error("default config should not manage a network interface")
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	data := []byte(`
version: 1
network:
  interface: wlan0
  ssid: "POCO X3 Pro"
server:
  base_url: http://172.23.240.29:3000
  timeout: 5s
stations:
  - id: 1
    pin: GPIO5
  - id: 2
    pin: GPIO6
  - id: 3
    name: Meja VIP
    pin: GPIO13
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Network.SSID != "POCO X3 Pro" {
		t.Errorf("SSID = %q", cfg.Network.SSID)
	}
	if cfg.Server.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Server.Timeout)
	}
	// untouched fields keep defaults
	if cfg.Network.BootAttempts != 30 {
		t.Errorf("BootAttempts = %d, want default 30", cfg.Network.BootAttempts)
	}
	if !cfg.Server.PerStation {
		t.Error("PerStation should keep default true")
	}
	if len(cfg.Stations) != 3 {
		t.Fatalf("got %d stations, want 3", len(cfg.Stations))
	}
	if cfg.Stations[0].DisplayName() != "Meja 1" {
		t.Errorf("DisplayName() = %q, want Meja 1", cfg.Stations[0].DisplayName())
	}
	if cfg.Stations[2].DisplayName() != "Meja VIP" {
		t.Errorf("DisplayName() = %q, want Meja VIP", cfg.Stations[2].DisplayName())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown field", "servr:\n  base_url: http://x\n", "servr"},
		{"bad version", "version: 2\n", "unsupported config version"},
		{"bad duration", "server:\n  timeout: soon\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no stations", func(c *Config) { c.Stations = nil }, "at least one station"},
		{"duplicate id", func(c *Config) { c.Stations[1].ID = 1 }, "duplicate id 1"},
		{"zero id", func(c *Config) { c.Stations[0].ID = 0 }, "id must be positive"},
		{"shared pin", func(c *Config) { c.Stations[1].Pin = "GPIO18" }, "pin GPIO18 already used"},
		{"missing pin", func(c *Config) { c.Stations[0].Pin = "" }, "pin is required"},
		{"bad driver", func(c *Config) { c.GPIO.Driver = "wiringpi" }, "gpio.driver"},
		{"no server", func(c *Config) { c.Server.BaseURL = "" }, "base_url or server.mdns_instance"},
		{"bad url", func(c *Config) { c.Server.BaseURL = "ftp://host" }, "http(s) URL"},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, "server.timeout"},
		{"zero attempts", func(c *Config) { c.Network.BootAttempts = 0 }, "boot_attempts"},
		{"zero interval", func(c *Config) { c.Network.RetryInterval = 0 }, "retry_interval"},
		{"managed link without command", func(c *Config) {
			c.Network.Interface = "wlan0"
			c.Network.ConnectCommand = ""
		}, "connect_command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_MDNSOnly(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = ""
	cfg.Server.MDNSInstance = "billiard-server"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.BaseURL != Default().Server.BaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.Server.BaseURL)
	}
}

func TestLoad_PassphraseFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("network:\n  passphrase: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(PassphraseEnvVar, "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Network.Passphrase != "from-env" {
		t.Errorf("Passphrase = %q, want from-env", cfg.Network.Passphrase)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.BaseURL = "http://10.0.0.2:3000"
	cfg.Timing.CycleDelay = 2 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.BaseURL != cfg.Server.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.Server.BaseURL, cfg.Server.BaseURL)
	}
	if loaded.Timing.CycleDelay != 2*time.Second {
		t.Errorf("CycleDelay = %v, want 2s", loaded.Timing.CycleDelay)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Network.Passphrase = "pakeajaskin"

	red := cfg.Redacted()
	if red.Network.Passphrase == "pakeajaskin" {
		t.Error("Redacted() should mask the passphrase")
	}
	if cfg.Network.Passphrase != "pakeajaskin" {
		t.Error("Redacted() must not modify the original")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() = %v, want config.yaml", path)
	}
	if !strings.Contains(path, "mejalight") {
		t.Errorf("GetConfigPath() = %v, want mejalight directory", path)
	}
}
