package config

import (
	"fmt"
	"time"
)

// CurrentVersion is the only configuration schema version understood
const CurrentVersion = 1

// GPIO driver names
const (
	DriverPeriph = "periph"
	DriverSim    = "sim"
)

// Config is the complete agent configuration
type Config struct {
	Version  int             `yaml:"version"`
	LogLevel string          `yaml:"log_level,omitempty"`
	Network  NetworkConfig   `yaml:"network"`
	Restart  RestartConfig   `yaml:"restart"`
	Server   ServerConfig    `yaml:"server"`
	GPIO     GPIOConfig      `yaml:"gpio"`
	Stations []StationConfig `yaml:"stations"`
	Timing   TimingConfig    `yaml:"timing"`
}

// NetworkConfig describes the wireless link the agent keeps associated.
// An empty Interface means the link is not managed (wired or development
// machines) and is always considered up.
type NetworkConfig struct {
	Interface  string `yaml:"interface,omitempty"`
	SSID       string `yaml:"ssid,omitempty"`
	Passphrase string `yaml:"passphrase,omitempty"`

	// Command templates. {interface}, {ssid} and {passphrase} are substituted
	// per argument after splitting, so values may contain spaces.
	ConnectCommand    string `yaml:"connect_command,omitempty"`
	DisconnectCommand string `yaml:"disconnect_command,omitempty"`

	BootAttempts      int           `yaml:"boot_attempts"`      // status checks at boot before restart
	ReconnectAttempts int           `yaml:"reconnect_attempts"` // status checks on reconnect before restart
	RetryInterval     time.Duration `yaml:"retry_interval"`     // fixed wait between status checks
	RestartDelay      time.Duration `yaml:"restart_delay"`      // pause before restarting after a failed boot association
}

// RestartConfig selects how a restart is performed once association is
// exhausted. With an empty Command the process exits with ExitCode and the
// service manager is expected to start it again.
type RestartConfig struct {
	Command  string `yaml:"command,omitempty"`
	ExitCode int    `yaml:"exit_code"`
}

// ServerConfig describes the command endpoint
type ServerConfig struct {
	BaseURL         string        `yaml:"base_url,omitempty"`
	MDNSInstance    string        `yaml:"mdns_instance,omitempty"` // resolve BaseURL via mDNS when BaseURL is empty
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
	PerStation      bool          `yaml:"per_station"` // append ?meja=<id> and poll once per station
	Timeout         time.Duration `yaml:"timeout"`
	LogFailures     bool          `yaml:"log_failures"` // log poll failures at warn instead of debug
}

// GPIOConfig selects the output driver
type GPIOConfig struct {
	Driver string `yaml:"driver"`
}

// StationConfig is one relay-controlled station ("meja")
type StationConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	Pin  string `yaml:"pin"` // periph pin name, e.g. "GPIO18"
}

// DisplayName returns Name or "Meja <id>" when unset
func (s StationConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Meja %d", s.ID)
}

// TimingConfig holds the fixed loop delays
type TimingConfig struct {
	StationDelay time.Duration `yaml:"station_delay"` // between station polls within a cycle
	CycleDelay   time.Duration `yaml:"cycle_delay"`   // after each cycle
}

// Default returns the configuration of the stock two-table relay board
// constants: two stations on GPIO18/GPIO19, 30 boot and 20 reconnect status
// checks 500ms apart, a 3s request timeout and per-station polling.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Network: NetworkConfig{
			ConnectCommand:    "nmcli device wifi connect {ssid} password {passphrase} ifname {interface}",
			DisconnectCommand: "nmcli device disconnect {interface}",
			BootAttempts:      30,
			ReconnectAttempts: 20,
			RetryInterval:     500 * time.Millisecond,
			RestartDelay:      3 * time.Second,
		},
		Restart: RestartConfig{
			ExitCode: 3,
		},
		Server: ServerConfig{
			BaseURL:         "http://localhost:3000",
			DiscoverTimeout: 10 * time.Second,
			PerStation:      true,
			Timeout:         3 * time.Second,
			LogFailures:     true,
		},
		GPIO: GPIOConfig{
			Driver: DriverPeriph,
		},
		Stations: []StationConfig{
			{ID: 1, Name: "Meja 1", Pin: "GPIO18"},
			{ID: 2, Name: "Meja 2", Pin: "GPIO19"},
		},
		Timing: TimingConfig{
			StationDelay: 300 * time.Millisecond,
			CycleDelay:   1500 * time.Millisecond,
		},
	}
}

// ManagedLink reports whether the agent manages a network interface
func (c *Config) ManagedLink() bool {
	return c.Network.Interface != ""
}
