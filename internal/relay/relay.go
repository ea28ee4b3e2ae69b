package relay

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// ErrUnknownPin is returned when a driver has no pin with the requested name
var ErrUnknownPin = errors.New("unknown pin")

// Pin is the subset of periph's gpio.PinOut the agent needs.
// Any gpio.PinIO satisfies it.
type Pin interface {
	Name() string
	Out(l gpio.Level) error
}

// Driver opens output pins by name
type Driver interface {
	Open(name string) (Pin, error)
	String() string
}

// Relay is one active-low relay channel
type Relay struct {
	pin Pin
}

// New wraps pin as an active-low relay
func New(pin Pin) *Relay {
	return &Relay{pin: pin}
}

// Set energizes (on=true, line LOW) or releases (on=false, line HIGH) the relay
func (r *Relay) Set(on bool) error {
	if err := r.pin.Out(Level(on)); err != nil {
		return fmt.Errorf("failed to drive %s: %w", r.pin.Name(), err)
	}
	return nil
}

// Pin returns the underlying output
func (r *Relay) Pin() Pin {
	return r.pin
}

// Level maps a relay state to the active-low line level
func Level(on bool) gpio.Level {
	if on {
		return gpio.Low
	}
	return gpio.High
}

// NewDriver returns the driver registered under name ("periph" or "sim")
func NewDriver(name string) (Driver, error) {
	switch name {
	case "periph":
		return NewPeriphDriver()
	case "sim":
		return NewSimDriver(), nil
	default:
		return nil, fmt.Errorf("unknown gpio driver %q", name)
	}
}
