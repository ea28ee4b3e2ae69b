package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mejalight/mejalight/internal/logging"
	"github.com/mejalight/mejalight/internal/version"
)

const (
	// CommandPath is the endpoint path serving pending commands
	CommandPath = "/api/esp-command"

	// StationParam is the query parameter carrying the station id
	StationParam = "meja"

	// DefaultTimeout bounds a whole poll request
	DefaultTimeout = 3 * time.Second

	// maxBodySize caps how much of a response is read; commands are a few bytes
	maxBodySize = 1024
)

// Poller issues command polls against one server
type Poller struct {
	// BaseURL is the server root (e.g., "http://192.168.1.20:3000")
	BaseURL string

	// PerStation appends ?meja=<id> to every poll
	PerStation bool

	// HTTPClient performs the requests; its Timeout bounds each poll
	HTTPClient *http.Client
}

// New creates a poller for baseURL. A non-positive timeout selects
// DefaultTimeout.
func New(baseURL string, timeout time.Duration, perStation bool) *Poller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		PerStation: perStation,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the poll URL for stationID. The station parameter is only
// added in per-station mode and for positive ids.
func (p *Poller) URL(stationID int) string {
	u := p.BaseURL + CommandPath
	if p.PerStation && stationID > 0 {
		q := url.Values{}
		q.Set(StationParam, strconv.Itoa(stationID))
		u += "?" + q.Encode()
	}
	return u
}

// Poll fetches the pending command for stationID. It returns the trimmed
// body on HTTP 200 and a *PollError otherwise.
func (p *Poller) Poll(ctx context.Context, stationID int) (string, error) {
	target := p.URL(stationID)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &PollError{Type: ErrTypeRequest, Message: "failed to create request", URL: target, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", NewNetworkError(target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return "", NewHTTPError(target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return "", NewReadError(target, err)
	}
	if len(body) > maxBodySize {
		// a truncated body could trim down to a valid token
		return "", NewOversizeError(target, maxBodySize)
	}

	cmd := strings.TrimSpace(string(body))
	logging.LogPoll(target, resp.StatusCode, cmd, time.Since(start))
	return cmd, nil
}

// String describes the endpoint for logs
func (p *Poller) String() string {
	mode := "single"
	if p.PerStation {
		mode = "per-station"
	}
	return fmt.Sprintf("%s%s (%s, timeout %s)", p.BaseURL, CommandPath, mode, p.HTTPClient.Timeout)
}
