package link

import (
	"github.com/mejalight/mejalight/internal/config"
)

// FromConfig builds the link described by cfg: an InterfaceLink when an
// interface is configured, otherwise a StaticLink.
func FromConfig(cfg config.NetworkConfig) Link {
	if cfg.Interface == "" {
		return StaticLink{}
	}
	return &InterfaceLink{
		Name:              cfg.Interface,
		SSID:              cfg.SSID,
		Passphrase:        cfg.Passphrase,
		ConnectCommand:    cfg.ConnectCommand,
		DisconnectCommand: cfg.DisconnectCommand,
	}
}

// RestarterFromConfig returns a CommandRestarter when a command is set,
// otherwise an ExitRestarter.
func RestarterFromConfig(cfg config.RestartConfig) Restarter {
	if cfg.Command != "" {
		return CommandRestarter{Command: cfg.Command}
	}
	return ExitRestarter{Code: cfg.ExitCode}
}

// OptionsFromConfig extracts the association counters
func OptionsFromConfig(cfg config.NetworkConfig) Options {
	return Options{
		BootAttempts:      cfg.BootAttempts,
		ReconnectAttempts: cfg.ReconnectAttempts,
		RetryInterval:     cfg.RetryInterval,
		RestartDelay:      cfg.RestartDelay,
	}
}
