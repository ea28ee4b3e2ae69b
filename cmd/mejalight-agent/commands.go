package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mejalight/mejalight/internal/agent"
	"github.com/mejalight/mejalight/internal/config"
	"github.com/mejalight/mejalight/internal/discovery"
	"github.com/mejalight/mejalight/internal/link"
	"github.com/mejalight/mejalight/internal/logging"
	"github.com/mejalight/mejalight/internal/poller"
	"github.com/mejalight/mejalight/internal/relay"
	"github.com/mejalight/mejalight/internal/station"
	"github.com/mejalight/mejalight/internal/ui"
)

// Command flags
var (
	driverOverride  string
	baseURLOverride string
	dryRun          bool
	scanTimeout     time.Duration
)

func init() {
	for _, cmd := range []*cobra.Command{runCmd, pollCmd, checkCmd} {
		cmd.Flags().StringVar(&driverOverride, "driver", "", "GPIO driver override (periph, sim)")
		cmd.Flags().StringVar(&baseURLOverride, "server", "", "Server base URL override (skips mDNS discovery)")
	}
	pollCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and parse commands without driving relays")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scanCmd)
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if driverOverride != "" {
		cfg.GPIO.Driver = driverOverride
	}
	if baseURLOverride != "" {
		cfg.Server.BaseURL = baseURLOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging applies --log-level, then MEJALIGHT_LOG_LEVEL, then fallback
func initLogging(fallback string) {
	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = fallback
	}
	if err := logging.Initialize(level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// resolveBaseURL returns the configured base URL or discovers the server
func resolveBaseURL(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = cfg.Server.DiscoverTimeout
	server, err := scanner.Find(ctx, cfg.Server.MDNSInstance)
	if err != nil {
		return "", fmt.Errorf("failed to discover server: %w", err)
	}
	return server.BaseURL(), nil
}

func openActuator(cfg *config.Config) (*station.Actuator, error) {
	driver, err := relay.NewDriver(cfg.GPIO.Driver)
	if err != nil {
		return nil, err
	}
	return agent.BuildActuator(cfg.Stations, driver)
}

// runCmd is the service entry point
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the poll-and-actuate loop",
	Long: `Run the agent until SIGINT or SIGTERM.

At startup every relay is driven OFF and the wireless link is associated
(when network.interface is set). Each cycle the agent checks the link,
polls the server and applies the returned command. When the link cannot
be re-established the agent restarts: by exiting with restart.exit_code so
the service manager starts it again, or by running restart.command.

On shutdown every relay is driven OFF.`,
	Example: `  # Run with the default config file
  mejalight-agent run

  # Run against a development server without GPIO hardware
  mejalight-agent run --driver sim --server http://localhost:3000 --log-level debug`,
	RunE: runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfgLogLevel(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	actuator, err := openActuator(cfg)
	if err != nil {
		return err
	}

	baseURL, err := resolveBaseURL(ctx, cfg)
	if err != nil {
		return err
	}
	p := poller.New(baseURL, cfg.Server.Timeout, cfg.Server.PerStation)

	mgr := link.NewManager(
		link.FromConfig(cfg.Network),
		link.RestarterFromConfig(cfg.Restart),
		link.OptionsFromConfig(cfg.Network),
	)

	logging.Info("Configuration loaded",
		zap.String("server", baseURL),
		zap.String("link", mgr.Link().String()),
		zap.String("gpio", cfg.GPIO.Driver),
	)

	err = agent.New(actuator, p, mgr, agent.OptionsFromConfig(cfg)).Run(ctx)
	if errors.Is(err, link.ErrRestarted) {
		return fmt.Errorf("agent stopped: %w", err)
	}
	return err
}

func cfgLogLevel(cfg *config.Config) string {
	if cfg.LogLevel != "" {
		return cfg.LogLevel
	}
	return "info"
}

// staticConnectivity skips link management for one-shot commands
type staticConnectivity struct{}

func (staticConnectivity) Connect(ctx context.Context) error { return nil }
func (staticConnectivity) Ensure(ctx context.Context) error  { return nil }

// pollCmd runs a single cycle
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the server once and apply the result",
	Long: `Run one poll cycle and print what the server returned.

The link is not managed and relays are not reset first. With --dry-run the
simulated GPIO driver is used, so commands are parsed but no relay moves.`,
	Example: `  mejalight-agent poll
  mejalight-agent poll --dry-run --server http://192.168.1.10:3000`,
	RunE: runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	if dryRun {
		driverOverride = config.DriverSim
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging("")

	ctx := cmd.Context()
	printer := ui.NewPrinter(nil)

	actuator, err := openActuator(cfg)
	if err != nil {
		return report(printer, "Poll failed", err)
	}
	baseURL, err := resolveBaseURL(ctx, cfg)
	if err != nil {
		return report(printer, "Poll failed", err)
	}
	p := poller.New(baseURL, cfg.Server.Timeout, cfg.Server.PerStation)

	a := agent.New(actuator, p, staticConnectivity{}, agent.OptionsFromConfig(cfg))
	results, err := a.RunCycle(ctx)
	if err != nil {
		return report(printer, "Poll failed", err)
	}

	details := []ui.Field{{Key: "Endpoint", Value: p.String()}}
	failed := 0
	for _, r := range results {
		key := "Response"
		if r.StationID > 0 {
			key = "meja=" + strconv.Itoa(r.StationID)
		}
		details = append(details, ui.Field{Key: key, Value: describeResult(r)})
		if r.Err != nil {
			failed++
		}
	}
	for _, s := range actuator.Stations() {
		details = append(details, ui.Field{Key: s.Name, Value: ui.RenderState(s.On)})
	}

	if failed == len(results) {
		printer.PrintWarning("No command received", details)
		return nil
	}
	printer.PrintSuccess("Poll complete", details)
	return nil
}

// reportedError has already been shown in a result box; main only sets
// the exit code.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// report prints err in a failure box with troubleshooting tips
func report(printer *ui.Printer, title string, err error) error {
	printer.PrintError(title, err, checkTroubleshooting(err))
	return &reportedError{err: err}
}

func describeResult(r agent.Result) string {
	switch {
	case r.Err != nil && r.Command == "":
		return poller.ShortMessage(r.Err)
	case r.Err != nil:
		return fmt.Sprintf("%s (not applied: %v)", r.Command, r.Err)
	case r.Command == "":
		return "(empty)"
	case !r.Matched:
		return fmt.Sprintf("%q (ignored)", r.Command)
	default:
		return r.Command
	}
}

// checkCmd verifies the setup without moving any relay
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration, link, GPIO and server",
	Long: `Run the startup path step by step and report what works.

Relays are opened but never written; polled commands are parsed and shown
but not applied.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	initLogging("")
	ctx := cmd.Context()

	path := configPath
	if path == "" {
		path, _ = config.GetConfigPath()
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Agent Check",
		Command: "mejalight-agent check",
		Params:  []ui.Field{{Key: "Config", Value: path}},
		StepNames: []string{
			"Load configuration",
			"Check network link",
			"Open GPIO pins",
			"Resolve server",
			"Poll endpoint",
		},
		Troubleshooting: checkTroubleshooting,
	})

	return runner.Run(ctx, func(onStep ui.StepCallback) ([]ui.Field, error) {
		onStep(1, "", ui.StepRunning, "")
		cfg, err := loadConfig()
		if err != nil {
			onStep(1, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(1, "", ui.StepComplete, fmt.Sprintf("%d stations", len(cfg.Stations)))

		onStep(2, "", ui.StepRunning, "")
		l := link.FromConfig(cfg.Network)
		if !cfg.ManagedLink() {
			onStep(2, "", ui.StepSkipped, "not managed")
		} else if !l.Connected() {
			onStep(2, "", ui.StepFailed, l.String())
			return nil, fmt.Errorf("link %s is not connected", l)
		} else {
			onStep(2, "", ui.StepComplete, l.String())
		}

		onStep(3, "", ui.StepRunning, "")
		actuator, err := openActuator(cfg)
		if err != nil {
			onStep(3, "", ui.StepFailed, cfg.GPIO.Driver)
			return nil, err
		}
		onStep(3, "", ui.StepComplete, cfg.GPIO.Driver)

		onStep(4, "", ui.StepRunning, "")
		baseURL, err := resolveBaseURL(ctx, cfg)
		if err != nil {
			onStep(4, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(4, "", ui.StepComplete, baseURL)

		onStep(5, "", ui.StepRunning, "")
		p := poller.New(baseURL, cfg.Server.Timeout, cfg.Server.PerStation)
		id := 0
		if cfg.Server.PerStation {
			id = actuator.Stations()[0].ID
		}
		body, err := p.Poll(ctx, id)
		if err != nil {
			onStep(5, "", ui.StepFailed, poller.ShortMessage(err))
			return nil, err
		}
		onStep(5, "", ui.StepComplete, "HTTP 200")

		parsed := "(empty)"
		if body != "" {
			parsed = fmt.Sprintf("%q (ignored)", body)
			if c, ok := actuator.Parse(body); ok {
				parsed = c.String()
			}
		}

		return []ui.Field{
			{Key: "Server", Value: p.String()},
			{Key: "Link", Value: l.String()},
			{Key: "GPIO", Value: cfg.GPIO.Driver},
			{Key: "Command", Value: parsed},
		}, nil
	})
}

func checkTroubleshooting(err error) []string {
	if tips := poller.Troubleshooting(err); len(tips) > 0 {
		return tips
	}
	switch {
	case errors.Is(err, relay.ErrUnknownPin):
		return []string{
			"Use BCM pin names such as GPIO18",
			"Run with --driver sim on machines without GPIO",
		}
	case errors.Is(err, discovery.ErrNotFound):
		return []string{
			"Check server.mdns_instance matches the advertised name",
			"Make sure multicast (UDP 5353) is allowed",
			"Set server.base_url to skip discovery",
		}
	}
	return []string{"Run 'mejalight-agent config show' to review the configuration"}
}

// scanCmd lists HTTP services on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List HTTP services advertised via mDNS",
	Long: `Browse for _http._tcp services on the local network. Use the instance
name of the mejalight server as server.mdns_instance.`,
	Example: `  mejalight-agent scan
  mejalight-agent scan --timeout 3s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	initLogging("")

	printer := ui.NewPrinter(nil)
	printer.PrintHeader("Service Scan", "mejalight-agent scan", []ui.Field{
		{Key: "Service", Value: discovery.ServiceType + "." + discovery.ServiceDomain},
		{Key: "Timeout", Value: scanTimeout.String()},
	})

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	servers, err := scanner.Scan(cmd.Context())
	if err != nil {
		return report(printer, "Scan failed", err)
	}

	if len(servers) == 0 {
		printer.PrintWarning("No services found", []ui.Field{
			{Key: "Hint", Value: "try a longer --timeout"},
		})
		return nil
	}

	fmt.Printf("Found %d service(s):\n\n", len(servers))
	for i, s := range servers {
		fmt.Printf("%d. %s\n", i+1, s.Instance)
		fmt.Printf("   Host: %s\n", s.Hostname)
		fmt.Printf("   URL:  %s\n", s.BaseURL())
		if len(s.Metadata) > 0 {
			fmt.Printf("   TXT:  %v\n", s.Metadata)
		}
		fmt.Println()
	}
	return nil
}
