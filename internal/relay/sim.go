package relay

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// SimDriver hands out in-memory pins. Opening the same name twice returns
// the same pin.
type SimDriver struct {
	mu   sync.Mutex
	pins map[string]*SimPin
}

// NewSimDriver creates an empty simulated GPIO bank
func NewSimDriver() *SimDriver {
	return &SimDriver{pins: make(map[string]*SimPin)}
}

// Open returns the simulated pin called name, creating it on first use
func (d *SimDriver) Open(name string) (Pin, error) {
	return d.Get(name), nil
}

// Get is Open with the concrete type, for inspection
func (d *SimDriver) Get(name string) *SimPin {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[name]
	if !ok {
		p = &SimPin{name: name}
		d.pins[name] = p
	}
	return p
}

func (d *SimDriver) String() string {
	return "sim"
}

// SimPin records the level and number of writes of a simulated output.
// A new pin has never been driven and reports gpio.Low.
type SimPin struct {
	mu     sync.Mutex
	name   string
	level  gpio.Level
	writes int
	fail   error
}

// ErrSimWrite is a convenience error for FailWith
var ErrSimWrite = errors.New("simulated write failure")

func (p *SimPin) Name() string {
	return p.name
}

// Out records the level unless a failure was injected
func (p *SimPin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.level = l
	p.writes++
	return nil
}

// Level returns the last written level
func (p *SimPin) Level() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Writes returns how many successful writes the pin has seen
func (p *SimPin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// FailWith makes subsequent writes return err; nil clears it
func (p *SimPin) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}
