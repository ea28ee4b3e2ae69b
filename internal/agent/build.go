package agent

import (
	"fmt"

	"github.com/mejalight/mejalight/internal/config"
	"github.com/mejalight/mejalight/internal/relay"
	"github.com/mejalight/mejalight/internal/station"
)

// BuildActuator opens one relay per configured station on driver
func BuildActuator(stations []config.StationConfig, driver relay.Driver) (*station.Actuator, error) {
	out := make([]*station.Station, 0, len(stations))
	for _, sc := range stations {
		pin, err := driver.Open(sc.Pin)
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", sc.ID, err)
		}
		out = append(out, station.New(sc.ID, sc.DisplayName(), relay.New(pin)))
	}
	return station.NewActuator(out)
}

// OptionsFromConfig extracts the loop settings
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PerStation:   cfg.Server.PerStation,
		StationDelay: cfg.Timing.StationDelay,
		CycleDelay:   cfg.Timing.CycleDelay,
		LogFailures:  cfg.Server.LogFailures,
	}
}
