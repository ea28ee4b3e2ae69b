package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/mejalight/mejalight/internal/config"
	"github.com/mejalight/mejalight/internal/link"
	"github.com/mejalight/mejalight/internal/poller"
	"github.com/mejalight/mejalight/internal/relay"
	"github.com/mejalight/mejalight/internal/station"
)

// commandServer answers each poll with the next scripted response
type commandServer struct {
	mu        sync.Mutex
	responses []response
	queries   []string
}

type response struct {
	status int
	body   string
}

func (s *commandServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, r.URL.RawQuery)
	if len(s.responses) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

type fakeLink struct {
	connects   int
	ensures    int
	connectErr error
	ensureErr  error
}

func (l *fakeLink) Connect(ctx context.Context) error {
	l.connects++
	return l.connectErr
}

func (l *fakeLink) Ensure(ctx context.Context) error {
	l.ensures++
	return l.ensureErr
}

type fixture struct {
	agent  *Agent
	driver *relay.SimDriver
	server *commandServer
	link   *fakeLink
	sleeps []time.Duration
}

func newFixture(t *testing.T, perStation bool, responses ...response) *fixture {
	t.Helper()

	f := &fixture{
		driver: relay.NewSimDriver(),
		server: &commandServer{responses: responses},
		link:   &fakeLink{},
	}
	ts := httptest.NewServer(f.server)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	actuator, err := BuildActuator(cfg.Stations, f.driver)
	if err != nil {
		t.Fatalf("BuildActuator() error = %v", err)
	}

	opts := OptionsFromConfig(cfg)
	opts.PerStation = perStation

	f.agent = New(actuator, poller.New(ts.URL, time.Second, perStation), f.link, opts)
	f.agent.Sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	return f
}

func (f *fixture) level(t *testing.T, pin string) gpio.Level {
	t.Helper()
	p := f.driver.Get(pin)
	if p == nil {
		t.Fatalf("pin %s not opened", pin)
	}
	return p.Level()
}

func (f *fixture) station(id int) *station.Station {
	for _, s := range f.agent.actuator.Stations() {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func TestRunCycle_OnThenOff(t *testing.T) {
	f := newFixture(t, false,
		response{http.StatusOK, "ON1\n"},
		response{http.StatusOK, "OFF1"},
	)
	ctx := context.Background()

	results, err := f.agent.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(results) != 1 || !results[0].Matched || results[0].Command != "ON1" {
		t.Fatalf("results = %+v", results)
	}
	if !f.station(1).On {
		t.Error("station 1 should be ON")
	}
	if got := f.level(t, "GPIO18"); got != gpio.Low {
		t.Errorf("GPIO18 = %v, want Low", got)
	}

	if _, err := f.agent.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if f.station(1).On {
		t.Error("station 1 should be OFF")
	}
	if got := f.level(t, "GPIO18"); got != gpio.High {
		t.Errorf("GPIO18 = %v, want High", got)
	}
	if f.link.ensures != 2 {
		t.Errorf("ensures = %d, want 2", f.link.ensures)
	}
}

func TestRunCycle_IgnoresGarbage(t *testing.T) {
	for _, body := range []string{"", "on1", "ON3", "ON1 please", "OFF"} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t, false, response{http.StatusOK, body})

			results, err := f.agent.RunCycle(context.Background())
			if err != nil {
				t.Fatalf("RunCycle() error = %v", err)
			}
			if results[0].Matched {
				t.Errorf("command %q should not match", body)
			}
			for _, pin := range []string{"GPIO18", "GPIO19"} {
				if w := f.driver.Get(pin).Writes(); w != 0 {
					t.Errorf("%s writes = %d, want 0", pin, w)
				}
			}
		})
	}
}

func TestRunCycle_ServerErrorIsTransient(t *testing.T) {
	f := newFixture(t, false, response{http.StatusInternalServerError, "ON1"})

	results, err := f.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v, poll failures must not stop the loop", err)
	}
	if !poller.IsHTTPError(results[0].Err) {
		t.Errorf("result error = %v, want HTTP error", results[0].Err)
	}
	if f.station(1).On {
		t.Error("station 1 must not change on non-200")
	}
	if w := f.driver.Get("GPIO18").Writes(); w != 0 {
		t.Errorf("GPIO18 writes = %d, want 0", w)
	}
}

func TestRunCycle_PerStation(t *testing.T) {
	f := newFixture(t, true,
		response{http.StatusOK, "ON1"},
		response{http.StatusOK, ""},
	)

	results, err := f.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	want := []string{"meja=1", "meja=2"}
	for i, q := range f.server.queries {
		if q != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, q, want[i])
		}
	}

	// one delay between the two stations
	if len(f.sleeps) != 1 || f.sleeps[0] != 300*time.Millisecond {
		t.Errorf("sleeps = %v, want [300ms]", f.sleeps)
	}

	if !f.station(1).On || f.station(2).On {
		t.Errorf("snapshot = %v, want 1 on, 2 off", f.agent.actuator.Snapshot())
	}
}

func TestRunCycle_Isolation(t *testing.T) {
	f := newFixture(t, false,
		response{http.StatusOK, "ON2"},
		response{http.StatusOK, "ON1"},
		response{http.StatusOK, "OFF2"},
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.agent.RunCycle(ctx); err != nil {
			t.Fatalf("RunCycle() error = %v", err)
		}
	}

	if !f.station(1).On {
		t.Error("station 1 should still be ON")
	}
	if f.station(2).On {
		t.Error("station 2 should be OFF")
	}
	if got := f.level(t, "GPIO18"); got != gpio.Low {
		t.Errorf("GPIO18 = %v, want Low", got)
	}
}

func TestRunCycle_OversizedBodyNotApplied(t *testing.T) {
	body := "ON1" + strings.Repeat(" ", 1021) + "not-a-command"
	f := newFixture(t, false, response{http.StatusOK, body})

	results, err := f.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !errors.Is(results[0].Err, poller.ErrBodyTooLarge) {
		t.Errorf("result error = %v, want ErrBodyTooLarge", results[0].Err)
	}
	if results[0].Matched || results[0].Command != "" {
		t.Errorf("result = %+v, want no command", results[0])
	}
	if f.station(1).On {
		t.Error("station 1 must stay OFF")
	}
	if w := f.driver.Get("GPIO18").Writes(); w != 0 {
		t.Errorf("GPIO18 writes = %d, want 0", w)
	}
}

func TestRunCycle_WriteFailure(t *testing.T) {
	f := newFixture(t, false, response{http.StatusOK, "ON1"})
	f.driver.Get("GPIO18").FailWith(relay.ErrSimWrite)

	results, err := f.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !errors.Is(results[0].Err, relay.ErrSimWrite) {
		t.Errorf("result error = %v, want ErrSimWrite", results[0].Err)
	}
	if f.station(1).On {
		t.Error("flag must stay OFF when the write failed")
	}
}

func TestRunCycle_LinkRestarted(t *testing.T) {
	f := newFixture(t, false, response{http.StatusOK, "ON1"})
	f.link.ensureErr = link.ErrRestarted

	_, err := f.agent.RunCycle(context.Background())
	if !errors.Is(err, link.ErrRestarted) {
		t.Fatalf("RunCycle() error = %v, want ErrRestarted", err)
	}
	if len(f.server.queries) != 0 {
		t.Errorf("queries = %d, want 0 after restart", len(f.server.queries))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, false, response{http.StatusOK, "ON1"})

	ctx, cancel := context.WithCancel(context.Background())
	f.agent.Sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		cancel()
		return ctx.Err()
	}

	if err := f.agent.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v, want nil on cancel", err)
	}
	if f.link.connects != 1 {
		t.Errorf("connects = %d, want 1", f.link.connects)
	}
	if len(f.sleeps) != 1 || f.sleeps[0] != 1500*time.Millisecond {
		t.Errorf("sleeps = %v, want [1.5s]", f.sleeps)
	}
	// ON1 was applied, then everything goes off on the way out
	if f.station(1).On {
		t.Error("station 1 should be OFF after shutdown")
	}
	if got := f.level(t, "GPIO18"); got != gpio.High {
		t.Errorf("GPIO18 = %v, want High", got)
	}
}

func TestRun_ResetsAtBoot(t *testing.T) {
	f := newFixture(t, false)
	f.link.connectErr = link.ErrRestarted

	err := f.agent.Run(context.Background())
	if !errors.Is(err, link.ErrRestarted) {
		t.Fatalf("Run() error = %v, want ErrRestarted", err)
	}
	for _, pin := range []string{"GPIO18", "GPIO19"} {
		if got := f.level(t, pin); got != gpio.High {
			t.Errorf("%s = %v, want High", pin, got)
		}
	}
	if f.link.ensures != 0 {
		t.Errorf("ensures = %d, want 0", f.link.ensures)
	}
}

func TestRun_RestartsAfterExhaustedAssociation(t *testing.T) {
	f := newFixture(t, false)

	restarts := 0
	restarter := restarterFunc(func() { restarts++ })
	mgr := link.NewManager(&downLink{}, restarter, link.Options{
		BootAttempts:      30,
		ReconnectAttempts: 20,
		RetryInterval:     time.Nanosecond,
	})
	f.agent.link = mgr

	err := f.agent.Run(context.Background())
	if !errors.Is(err, link.ErrRestarted) {
		t.Fatalf("Run() error = %v, want ErrRestarted", err)
	}
	if restarts != 1 {
		t.Errorf("restarts = %d, want exactly 1", restarts)
	}
}

func TestRun_RelaysOffBeforeExitRestart(t *testing.T) {
	f := newFixture(t, false, response{http.StatusOK, "ON1"})

	var levelAtExit gpio.Level
	exits := 0
	restarter := link.ExitRestarter{Code: 3, Exit: func(code int) {
		exits++
		levelAtExit = f.driver.Get("GPIO18").Level()
	}}

	// up for boot and the first cycle, down from then on
	l := &flakyLink{upChecks: 2}
	mgr := link.NewManager(l, restarter, link.Options{
		BootAttempts:      30,
		ReconnectAttempts: 20,
		RetryInterval:     time.Nanosecond,
	})

	a := New(f.agent.actuator, f.agent.poller, mgr, f.agent.opts)
	a.Sleep = f.agent.Sleep

	err := a.Run(context.Background())
	if !errors.Is(err, link.ErrRestarted) {
		t.Fatalf("Run() error = %v, want ErrRestarted", err)
	}
	if exits != 1 {
		t.Fatalf("exits = %d, want 1", exits)
	}
	if levelAtExit != gpio.High {
		t.Errorf("GPIO18 at exit = %v, want High (relay off)", levelAtExit)
	}
}

// flakyLink is connected for the first upChecks status checks only
type flakyLink struct {
	upChecks int
	checks   int
}

func (l *flakyLink) Connected() bool {
	l.checks++
	return l.checks <= l.upChecks
}

func (l *flakyLink) Begin(ctx context.Context) error      { return nil }
func (l *flakyLink) Disconnect(ctx context.Context) error { return nil }
func (l *flakyLink) String() string                       { return "flaky" }

type downLink struct{}

func (downLink) Connected() bool                      { return false }
func (downLink) Begin(ctx context.Context) error      { return nil }
func (downLink) Disconnect(ctx context.Context) error { return nil }
func (downLink) String() string                       { return "down" }

type restarterFunc func()

func (f restarterFunc) Restart(ctx context.Context, reason string) error {
	f()
	return nil
}

func TestBuildActuator_UnknownPin(t *testing.T) {
	cfg := config.Default()
	cfg.Stations[0].Pin = "GPIO99"

	_, err := BuildActuator(cfg.Stations, failingDriver{})
	if err == nil {
		t.Fatal("BuildActuator() expected error")
	}
	if !errors.Is(err, relay.ErrUnknownPin) {
		t.Errorf("error = %v, want ErrUnknownPin", err)
	}
}

type failingDriver struct{}

func (failingDriver) Open(name string) (relay.Pin, error) {
	return nil, relay.ErrUnknownPin
}

func (failingDriver) String() string { return "failing" }
