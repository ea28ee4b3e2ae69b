package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mejalight/mejalight/internal/logging"
)

// ErrRestarted is returned once association was exhausted and a restart
// was issued. The caller must stop.
var ErrRestarted = errors.New("association exhausted, restart issued")

var errNotAssociated = errors.New("link not associated")

// Options holds the fixed association counters
type Options struct {
	BootAttempts      int
	ReconnectAttempts int
	RetryInterval     time.Duration
	RestartDelay      time.Duration
}

// Manager applies the connect/reconnect policy to a Link
type Manager struct {
	link      Link
	restarter Restarter
	opts      Options

	// Timer drives every wait; nil uses real time. Tests inject one that
	// fires immediately.
	Timer backoff.Timer

	beforeRestart []func()
}

// NewManager creates a manager for link
func NewManager(link Link, restarter Restarter, opts Options) *Manager {
	return &Manager{link: link, restarter: restarter, opts: opts}
}

// BeforeRestart registers fn to run right before a restart is issued.
// An exiting restarter skips deferred calls, so outputs must be released here.
func (m *Manager) BeforeRestart(fn func()) {
	m.beforeRestart = append(m.beforeRestart, fn)
}

// Link returns the managed link
func (m *Manager) Link() Link {
	return m.link
}

// Connect performs the boot association
func (m *Manager) Connect(ctx context.Context) error {
	logging.LogLink(m.link.String(), "connecting", 0)

	if err := m.link.Begin(ctx); err != nil {
		logging.Warn("Failed to start association", zap.String("link", m.link.String()), zap.Error(err))
	}

	checks, err := m.await(ctx, m.opts.BootAttempts)
	if err == nil {
		logging.LogLink(m.link.String(), "connected", checks)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	logging.Error("Association failed at boot",
		zap.String("link", m.link.String()),
		zap.Int("checks", checks),
		zap.Duration("restart_delay", m.opts.RestartDelay),
	)
	if err := m.wait(ctx, m.opts.RestartDelay); err != nil {
		return err
	}
	return m.restart(ctx, "boot association failed")
}

// Ensure reconnects if the link is down. It is a synchronous check meant to
// run before each poll cycle.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.link.Connected() {
		return nil
	}
	return m.Reconnect(ctx)
}

// Reconnect drops and re-establishes the association
func (m *Manager) Reconnect(ctx context.Context) error {
	logging.LogLink(m.link.String(), "reconnecting", 0)

	if err := m.link.Disconnect(ctx); err != nil {
		logging.Warn("Failed to disconnect", zap.String("link", m.link.String()), zap.Error(err))
	}
	if err := m.link.Begin(ctx); err != nil {
		logging.Warn("Failed to start association", zap.String("link", m.link.String()), zap.Error(err))
	}

	checks, err := m.await(ctx, m.opts.ReconnectAttempts)
	if err == nil {
		logging.LogLink(m.link.String(), "reconnected", checks)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	logging.Error("Reconnect failed",
		zap.String("link", m.link.String()),
		zap.Int("checks", checks),
	)
	return m.restart(ctx, "reconnect failed")
}

// await checks the link status, then up to attempts more times with a
// fixed interval in between. It returns the number of checks made.
func (m *Manager) await(ctx context.Context, attempts int) (int, error) {
	checks := 0
	check := func() error {
		checks++
		if m.link.Connected() {
			return nil
		}
		return errNotAssociated
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.RetryInterval), uint64(attempts)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		logging.Debug("Link not up yet",
			zap.String("link", m.link.String()),
			zap.Int("check", checks),
			zap.Duration("next", next),
		)
	}

	err := backoff.RetryNotifyWithTimer(check, policy, notify, m.timer())
	return checks, err
}

func (m *Manager) restart(ctx context.Context, reason string) error {
	for _, fn := range m.beforeRestart {
		fn()
	}
	if err := m.restarter.Restart(ctx, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrRestarted, err)
	}
	return ErrRestarted
}

// wait blocks for d or until ctx is done
func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := m.timer()
	t.Start(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

func (m *Manager) timer() backoff.Timer {
	if m.Timer != nil {
		return m.Timer
	}
	return &clockTimer{}
}

// clockTimer is a backoff.Timer on top of time.Timer
type clockTimer struct {
	t *time.Timer
}

func (c *clockTimer) Start(d time.Duration) {
	if c.t == nil {
		c.t = time.NewTimer(d)
		return
	}
	c.t.Reset(d)
}

func (c *clockTimer) Stop() {
	if c.t != nil {
		c.t.Stop()
	}
}

func (c *clockTimer) C() <-chan time.Time {
	return c.t.C
}
