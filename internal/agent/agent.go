// Package agent runs the poll-and-actuate loop.
//
// One goroutine does everything in order: make sure the link is up, poll
// the command endpoint (once per station or once per cycle), apply the
// returned command, sleep, repeat. Poll failures never stop the loop; they
// are treated as "no command" for that cycle. The loop ends when the
// context is cancelled or the link manager has issued a restart.
package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mejalight/mejalight/internal/logging"
	"github.com/mejalight/mejalight/internal/poller"
	"github.com/mejalight/mejalight/internal/station"
)

// Poller fetches the pending command for a station.
// stationID is 0 in single-endpoint mode.
type Poller interface {
	Poll(ctx context.Context, stationID int) (string, error)
	String() string
}

// Connectivity is the link policy the loop depends on
type Connectivity interface {
	Connect(ctx context.Context) error
	Ensure(ctx context.Context) error
}

// Options controls polling mode and pacing
type Options struct {
	// PerStation polls each station with ?meja=<id>; otherwise one
	// request per cycle
	PerStation bool

	StationDelay time.Duration
	CycleDelay   time.Duration

	// LogFailures logs poll failures at warn instead of debug
	LogFailures bool
}

// Result describes a single poll within a cycle
type Result struct {
	StationID int
	Command   string
	Matched   bool
	Err       error
}

// Agent ties the actuator, poller and link together
type Agent struct {
	actuator *station.Actuator
	poller   Poller
	link     Connectivity
	opts     Options

	// Sleep waits between polls; tests replace it
	Sleep func(ctx context.Context, d time.Duration) error
}

// restartHooker is implemented by link managers that can restart the
// process, see link.Manager.BeforeRestart
type restartHooker interface {
	BeforeRestart(fn func())
}

// New creates an agent. When link can restart the process, every station
// is driven OFF before the restart is issued.
func New(actuator *station.Actuator, p Poller, link Connectivity, opts Options) *Agent {
	a := &Agent{
		actuator: actuator,
		poller:   p,
		link:     link,
		opts:     opts,
		Sleep:    sleep,
	}
	if h, ok := link.(restartHooker); ok {
		h.BeforeRestart(a.shutdown)
	}
	return a
}

// Run drives all stations OFF, associates, then loops until ctx is
// cancelled (returns nil) or a restart was issued (returns the link error).
// Stations are driven OFF again on the way out.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.actuator.Reset(); err != nil {
		logging.Warn("Failed to drive stations off at startup", zap.Error(err))
	}
	defer a.shutdown()

	logging.Info("Agent starting",
		zap.String("endpoint", a.poller.String()),
		zap.Int("stations", len(a.actuator.Stations())),
	)

	if err := a.link.Connect(ctx); err != nil {
		return exitError(err)
	}

	for {
		if _, err := a.RunCycle(ctx); err != nil {
			return exitError(err)
		}
		if err := a.Sleep(ctx, a.opts.CycleDelay); err != nil {
			return exitError(err)
		}
	}
}

// RunCycle runs one iteration: ensure connectivity, then poll and apply.
// It returns an error only when the link gave up or ctx is done.
func (a *Agent) RunCycle(ctx context.Context) ([]Result, error) {
	if err := a.link.Ensure(ctx); err != nil {
		return nil, err
	}

	if !a.opts.PerStation {
		return []Result{a.pollOnce(ctx, 0)}, ctx.Err()
	}

	stations := a.actuator.Stations()
	results := make([]Result, 0, len(stations))
	for i, s := range stations {
		if i > 0 {
			if err := a.Sleep(ctx, a.opts.StationDelay); err != nil {
				return results, err
			}
		}
		results = append(results, a.pollOnce(ctx, s.ID))
	}
	return results, ctx.Err()
}

// pollOnce polls for stationID and applies whatever came back. Any known
// token is applied regardless of which station was asked for.
func (a *Agent) pollOnce(ctx context.Context, stationID int) Result {
	res := Result{StationID: stationID}

	cmd, err := a.poller.Poll(ctx, stationID)
	if err != nil {
		res.Err = err
		if ctx.Err() == nil {
			a.logFailure(stationID, err)
		}
		return res
	}

	res.Command = cmd
	if cmd != "" {
		logging.LogCommand(stationID, cmd)
	}

	res.Matched, res.Err = a.actuator.Apply(cmd)
	if res.Err != nil {
		logging.Warn("Failed to apply command",
			zap.Int("station", stationID),
			zap.String("command", cmd),
			zap.Error(res.Err),
		)
	}
	return res
}

func (a *Agent) logFailure(stationID int, err error) {
	fields := []zap.Field{
		zap.Int("station", stationID),
		zap.String("reason", poller.ShortMessage(err)),
		zap.Error(err),
	}
	if a.opts.LogFailures {
		logging.Warn("Poll failed", fields...)
		return
	}
	logging.Debug("Poll failed", fields...)
}

func (a *Agent) shutdown() {
	if err := a.actuator.Reset(); err != nil {
		logging.Warn("Failed to drive stations off at shutdown", zap.Error(err))
		return
	}
	logging.Info("All stations off")
}

func exitError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
