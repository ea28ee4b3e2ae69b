package relay

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphDriver opens pins registered by periph.io host drivers
type PeriphDriver struct {
	drivers int
}

// NewPeriphDriver initialises periph host state. host.Init is idempotent.
func NewPeriphDriver() (*PeriphDriver, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	return &PeriphDriver{drivers: len(state.Loaded)}, nil
}

// Open looks the pin up in the periph GPIO registry
func (d *PeriphDriver) Open(name string) (Pin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s (periph loaded %d host drivers)", ErrUnknownPin, name, d.drivers)
	}
	return p, nil
}

func (d *PeriphDriver) String() string {
	return "periph"
}
