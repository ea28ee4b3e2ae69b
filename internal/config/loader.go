package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "mejalight"
	configFile = "config.yaml"
)

// PassphraseEnvVar overrides network.passphrase when set
const PassphraseEnvVar = "MEJALIGHT_WIFI_PASSPHRASE"

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/mejalight or $HOME/.config/mejalight
//   - macOS: $HOME/.config/mejalight
//   - Windows: %LOCALAPPDATA%\mejalight
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads and validates the configuration at path. An empty path selects
// GetConfigPath. A missing file yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if pass := os.Getenv(PassphraseEnvVar); pass != "" {
		cfg.Network.Passphrase = pass
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default(). Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}
	return cfg, nil
}

// Validate checks the configuration for values the agent cannot run with
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Stations) == 0 {
		addf("at least one station is required")
	}
	ids := make(map[int]bool)
	pins := make(map[string]bool)
	for i, s := range c.Stations {
		if s.ID <= 0 {
			addf("stations[%d]: id must be positive", i)
		} else if ids[s.ID] {
			addf("stations[%d]: duplicate id %d", i, s.ID)
		}
		ids[s.ID] = true

		if s.Pin == "" {
			addf("stations[%d]: pin is required", i)
		} else if pins[s.Pin] {
			addf("stations[%d]: pin %s already used", i, s.Pin)
		}
		pins[s.Pin] = true
	}

	switch c.GPIO.Driver {
	case DriverPeriph, DriverSim:
	default:
		addf("gpio.driver must be %q or %q, got %q", DriverPeriph, DriverSim, c.GPIO.Driver)
	}

	if c.Server.BaseURL == "" && c.Server.MDNSInstance == "" {
		addf("server.base_url or server.mdns_instance is required")
	}
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			addf("server.base_url must be an http(s) URL, got %q", c.Server.BaseURL)
		}
	}
	if c.Server.Timeout <= 0 {
		addf("server.timeout must be positive")
	}
	if c.Server.MDNSInstance != "" && c.Server.DiscoverTimeout <= 0 {
		addf("server.discover_timeout must be positive")
	}

	if c.Network.BootAttempts <= 0 {
		addf("network.boot_attempts must be positive")
	}
	if c.Network.ReconnectAttempts <= 0 {
		addf("network.reconnect_attempts must be positive")
	}
	if c.Network.RetryInterval <= 0 {
		addf("network.retry_interval must be positive")
	}
	if c.Network.RestartDelay < 0 {
		addf("network.restart_delay must not be negative")
	}
	if c.ManagedLink() && c.Network.ConnectCommand == "" {
		addf("network.connect_command is required when network.interface is set")
	}

	if c.Timing.StationDelay < 0 || c.Timing.CycleDelay < 0 {
		addf("timing delays must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Save writes the configuration to path atomically with 0600 permissions.
// An empty path selects GetConfigPath.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	header := []byte("# mejalight agent configuration\n# Location: " + path + "\n\n")
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy with the passphrase masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Stations = append([]StationConfig(nil), c.Stations...)
	if out.Network.Passphrase != "" {
		out.Network.Passphrase = "********"
	}
	return &out
}
