// Package station maps plain-text commands to relay writes.
//
// Each Station owns one relay and the flag mirroring its output. Commands
// are the exact tokens ON<id> and OFF<id>; the Actuator builds its token
// table from the configured stations, so adding a station is a data change.
package station

import (
	"fmt"
	"strconv"

	"github.com/mejalight/mejalight/internal/logging"
	"go.uber.org/zap"
)

// Output is what a station drives; *relay.Relay implements it
type Output interface {
	Set(on bool) error
}

// Station is one relay-controlled table
type Station struct {
	ID   int
	Name string
	On   bool

	out Output
}

// New creates a station in the OFF state. The output is not written until
// Reset or a command is applied.
func New(id int, name string, out Output) *Station {
	if name == "" {
		name = fmt.Sprintf("Meja %d", id)
	}
	return &Station{ID: id, Name: name, out: out}
}

// set writes the output and updates the flag only if the write succeeded
func (s *Station) set(on bool) error {
	if err := s.out.Set(on); err != nil {
		return fmt.Errorf("station %d: %w", s.ID, err)
	}
	changed := s.On != on
	s.On = on
	logging.LogStation(s.ID, s.Name, on, changed)
	return nil
}

// Command is a parsed ON/OFF instruction for one station
type Command struct {
	StationID int
	On        bool
}

// String returns the wire token for the command
func (c Command) String() string {
	if c.On {
		return "ON" + strconv.Itoa(c.StationID)
	}
	return "OFF" + strconv.Itoa(c.StationID)
}

// Actuator applies commands to an ordered set of stations
type Actuator struct {
	stations []*Station
	tokens   map[string]target
}

type target struct {
	station *Station
	on      bool
}

// NewActuator builds the token table for stations. Station IDs must be
// unique.
func NewActuator(stations []*Station) (*Actuator, error) {
	a := &Actuator{
		stations: stations,
		tokens:   make(map[string]target, 2*len(stations)),
	}
	for _, s := range stations {
		on := Command{StationID: s.ID, On: true}.String()
		if _, dup := a.tokens[on]; dup {
			return nil, fmt.Errorf("duplicate station id %d", s.ID)
		}
		a.tokens[on] = target{station: s, on: true}
		a.tokens[Command{StationID: s.ID}.String()] = target{station: s}
	}
	return a, nil
}

// Stations returns the stations in configured order
func (a *Actuator) Stations() []*Station {
	return a.stations
}

// Parse exact-matches token against the known commands
func (a *Actuator) Parse(token string) (Command, bool) {
	t, ok := a.tokens[token]
	if !ok {
		return Command{}, false
	}
	return Command{StationID: t.station.ID, On: t.on}, true
}

// Apply executes token if it is one of the known commands and reports
// whether it matched. Unknown or empty tokens are a no-op.
func (a *Actuator) Apply(token string) (bool, error) {
	t, ok := a.tokens[token]
	if !ok {
		if token != "" {
			logging.Debug("Ignoring unrecognized command", zap.String("command", token))
		}
		return false, nil
	}
	return true, t.station.set(t.on)
}

// Reset drives every station OFF. All stations are attempted; the first
// error is returned.
func (a *Actuator) Reset() error {
	var first error
	for _, s := range a.stations {
		if err := s.set(false); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Snapshot returns the ON flag of every station keyed by ID
func (a *Actuator) Snapshot() map[int]bool {
	out := make(map[int]bool, len(a.stations))
	for _, s := range a.stations {
		out[s.ID] = s.On
	}
	return out
}
