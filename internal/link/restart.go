package link

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mejalight/mejalight/internal/logging"
)

// Restarter performs the fail-fast restart after association is exhausted
type Restarter interface {
	Restart(ctx context.Context, reason string) error
}

// ExitRestarter terminates the process with a non-zero code; the service
// manager (systemd Restart=on-failure) brings the agent back.
type ExitRestarter struct {
	Code int
	// Exit replaces os.Exit in tests
	Exit func(code int)
}

func (r ExitRestarter) Restart(ctx context.Context, reason string) error {
	logging.Error("Restarting agent",
		zap.String("reason", reason),
		zap.Int("exit_code", r.Code),
	)
	logging.Sync()

	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(r.Code)
	return nil
}

// CommandRestarter runs a command such as "systemctl reboot"
type CommandRestarter struct {
	Command string
	Runner  Runner
}

func (r CommandRestarter) Restart(ctx context.Context, reason string) error {
	argv, err := expandCommand(r.Command, nil)
	if err != nil {
		return err
	}

	logging.Error("Restarting device",
		zap.String("reason", reason),
		zap.String("command", r.Command),
	)

	runner := r.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	if err := runner.Run(ctx, argv); err != nil {
		return fmt.Errorf("restart command %q failed: %w", r.Command, err)
	}
	return nil
}
