package poller

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	p := New("http://172.23.240.29:3000/", 0, true)

	if p.BaseURL != "http://172.23.240.29:3000" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", p.BaseURL)
	}
	if p.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name       string
		perStation bool
		station    int
		want       string
	}{
		{"per station", true, 1, "http://srv:3000/api/esp-command?meja=1"},
		{"per station second", true, 2, "http://srv:3000/api/esp-command?meja=2"},
		{"single endpoint", false, 1, "http://srv:3000/api/esp-command"},
		{"per station without id", true, 0, "http://srv:3000/api/esp-command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("http://srv:3000", time.Second, tt.perStation)
			if got := p.URL(tt.station); got != tt.want {
				t.Errorf("URL(%d) = %s, want %s", tt.station, got, tt.want)
			}
		})
	}
}

func TestPoll_Success(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", "ON1", "ON1"},
		{"trailing newline", "OFF2\r\n", "OFF2"},
		{"padded", "  ON2\t", "ON2"},
		{"empty", "", ""},
		{"whitespace only", " \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("method = %s, want GET", r.Method)
				}
				if r.URL.Path != CommandPath {
					t.Errorf("path = %s, want %s", r.URL.Path, CommandPath)
				}
				if got := r.URL.Query().Get(StationParam); got != "1" {
					t.Errorf("meja = %q, want 1", got)
				}
				if !strings.HasPrefix(r.UserAgent(), "mejalight-agent/") {
					t.Errorf("User-Agent = %q", r.UserAgent())
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := New(server.URL, time.Second, true).Poll(context.Background(), 1)
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Poll() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPoll_NonOK(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				w.Write([]byte("ON1"))
			}))
			defer server.Close()

			got, err := New(server.URL, time.Second, false).Poll(context.Background(), 1)
			if got != "" {
				t.Errorf("Poll() = %q, want no command", got)
			}
			if !IsHTTPError(err) {
				t.Fatalf("Poll() error = %v, want HTTP error", err)
			}
			var pe *PollError
			if errors.As(err, &pe) && pe.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, status)
			}
		})
	}
}

func TestPoll_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New(server.URL, 50*time.Millisecond, true).Poll(context.Background(), 2)
	if !IsTimeout(err) {
		t.Errorf("Poll() error = %v, want timeout", err)
	}
	if !IsNetworkError(err) {
		t.Error("timeouts count as network errors")
	}
}

func TestPoll_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = New("http://"+addr, time.Second, true).Poll(context.Background(), 1)
	if !IsNetworkError(err) {
		t.Fatalf("Poll() error = %v, want network error", err)
	}
	if ShortMessage(err) == "" {
		t.Error("ShortMessage() should not be empty")
	}
}

func TestPoll_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL, time.Second, true).Poll(ctx, 1)
	if !IsCanceled(err) {
		t.Errorf("Poll() error = %v, want canceled", err)
	}
}

func TestPoll_OversizedBodyRejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"at limit", strings.Repeat(" ", maxBodySize-3) + "ON1", false},
		{"one byte over", strings.Repeat(" ", maxBodySize-2) + "ON1", true},
		{"valid prefix then garbage", "ON1" + strings.Repeat(" ", maxBodySize-3) + "not-a-command", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := New(server.URL, time.Second, true).Poll(context.Background(), 1)
			if !tt.wantErr {
				if err != nil || got != "ON1" {
					t.Fatalf("Poll() = %q, %v, want ON1", got, err)
				}
				return
			}

			if got != "" {
				t.Errorf("Poll() = %q, want empty", got)
			}
			var pe *PollError
			if !errors.As(err, &pe) || pe.Type != ErrTypeRead {
				t.Fatalf("Poll() error = %v, want read error", err)
			}
			if !errors.Is(err, ErrBodyTooLarge) {
				t.Errorf("Poll() error = %v, want ErrBodyTooLarge", err)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	httpErr := NewHTTPError("http://srv/api/esp-command", 503)

	if !IsHTTPError(httpErr) || IsNetworkError(httpErr) {
		t.Error("HTTP error misclassified")
	}
	if got := ShortMessage(httpErr); got != "Server error (HTTP 503)" {
		t.Errorf("ShortMessage() = %q", got)
	}
	if len(Troubleshooting(httpErr)) == 0 {
		t.Error("Troubleshooting() should give hints for HTTP errors")
	}

	plain := errors.New("boom")
	if IsHTTPError(plain) || IsNetworkError(plain) || IsTimeout(plain) {
		t.Error("plain errors should not match any poll category")
	}
	if ShortMessage(plain) != "boom" {
		t.Errorf("ShortMessage(plain) = %q", ShortMessage(plain))
	}

	wrapped := NewReadError("u", plain)
	if !errors.Is(wrapped, plain) {
		t.Error("PollError should unwrap to its cause")
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrTypeTimeout.String() != "Timeout" {
		t.Errorf("String() = %q", ErrTypeTimeout.String())
	}
	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("String() = %q", ErrorType(99).String())
	}
}
