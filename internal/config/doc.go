// Package config loads and validates the agent configuration.
//
// The configuration is a YAML file describing the network link, the command
// server, the GPIO driver and the ordered list of stations. Every field has a
// default matching the ESP32 relay board this agent replaces, so an empty or missing
// file yields a runnable two-station configuration.
//
// # Configuration File Location
//
// When no explicit path is given the file is looked up in the
// platform-appropriate location:
//   - Linux: $XDG_CONFIG_HOME/mejalight/config.yaml or $HOME/.config/mejalight/config.yaml
//   - macOS: $HOME/.config/mejalight/config.yaml
//   - Windows: %LOCALAPPDATA%\mejalight\config.yaml
//
// # Example
//
//	version: 1
//	network:
//	  interface: wlan0
//	  ssid: "POCO X3 Pro"
//	server:
//	  base_url: http://192.168.1.20:3000
//	  per_station: true
//	  timeout: 3s
//	stations:
//	  - id: 1
//	    pin: GPIO18
//	  - id: 2
//	    pin: GPIO19
//
// # Secrets
//
// The WiFi passphrase may be kept out of the file by setting
// MEJALIGHT_WIFI_PASSPHRASE, which overrides network.passphrase. Saved files
// are written with 0600 permissions.
package config
