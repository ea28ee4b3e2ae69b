package link

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/shlex"
)

// Link is a network association the agent depends on
type Link interface {
	// Connected reports whether the link is currently usable
	Connected() bool
	// Begin starts an association; it does not wait for completion
	Begin(ctx context.Context) error
	// Disconnect drops the current association
	Disconnect(ctx context.Context) error
	String() string
}

// StaticLink is always connected. Begin and Disconnect do nothing.
type StaticLink struct{}

func (StaticLink) Connected() bool                    { return true }
func (StaticLink) Begin(ctx context.Context) error      { return nil }
func (StaticLink) Disconnect(ctx context.Context) error { return nil }
func (StaticLink) String() string                       { return "static" }

// InterfaceLink manages a wireless interface through external commands.
// The interface counts as connected when it is up, running and holds a
// routable IPv4 address.
type InterfaceLink struct {
	Name       string
	SSID       string
	Passphrase string

	// Command templates, see expandCommand
	ConnectCommand    string
	DisconnectCommand string

	// Runner executes commands; nil selects ExecRunner
	Runner Runner

	// Inspect returns the interface and its addresses; nil selects the net package
	Inspect func(name string) (*net.Interface, []net.Addr, error)
}

// Connected checks interface flags and addresses
func (l *InterfaceLink) Connected() bool {
	inspect := l.Inspect
	if inspect == nil {
		inspect = inspectInterface
	}

	iface, addrs, err := inspect(l.Name)
	if err != nil || iface == nil {
		return false
	}
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
		return false
	}
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() && !ip4.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}

// Begin runs the connect command
func (l *InterfaceLink) Begin(ctx context.Context) error {
	return l.run(ctx, l.ConnectCommand)
}

// Disconnect runs the disconnect command; an empty template is a no-op
func (l *InterfaceLink) Disconnect(ctx context.Context) error {
	if l.DisconnectCommand == "" {
		return nil
	}
	return l.run(ctx, l.DisconnectCommand)
}

func (l *InterfaceLink) String() string {
	if l.SSID != "" {
		return fmt.Sprintf("%s (%s)", l.Name, l.SSID)
	}
	return l.Name
}

func (l *InterfaceLink) run(ctx context.Context, template string) error {
	argv, err := expandCommand(template, map[string]string{
		"interface":  l.Name,
		"ssid":       l.SSID,
		"passphrase": l.Passphrase,
	})
	if err != nil {
		return err
	}
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	if err := runner.Run(ctx, argv); err != nil {
		// the template, not argv, so the passphrase stays out of errors
		return fmt.Errorf("%q failed: %w", template, err)
	}
	return nil
}

func inspectInterface(name string) (*net.Interface, []net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, err
	}
	return iface, addrs, nil
}

// expandCommand splits template with shell quoting rules and substitutes
// {name} placeholders inside each argument. Substitution happens after
// splitting, so values containing spaces stay one argument.
func expandCommand(template string, vars map[string]string) ([]string, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", template, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	for i, arg := range argv {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		argv[i] = arg
	}
	return argv, nil
}
