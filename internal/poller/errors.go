package poller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
)

// ErrorType is the category of a poll failure
type ErrorType int

const (
	// ErrTypeNetwork is a generic transport failure
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout is a request that exceeded the client timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused means nothing listens at the server address
	ErrTypeConnectionRefused
	// ErrTypeDNS is a name resolution failure
	ErrTypeDNS
	// ErrTypeHTTP is a response with a status other than 200
	ErrTypeHTTP
	// ErrTypeRead is a failure while reading the response body
	ErrTypeRead
	// ErrTypeRequest is a request that could not be built (bad base URL)
	ErrTypeRequest
	// ErrTypeCanceled means the poll was abandoned because the agent is stopping
	ErrTypeCanceled
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeRead:
		return "Read Error"
	case ErrTypeRequest:
		return "Request Error"
	case ErrTypeCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// PollError describes why a poll produced no command
type PollError struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status for ErrTypeHTTP
	URL        string // polled URL
	Err        error  // underlying error, if any
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// NewNetworkError classifies a transport error returned by http.Client.Do
func NewNetworkError(target string, err error) *PollError {
	e := &PollError{Type: ErrTypeNetwork, Message: "request failed", URL: target, Err: err}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.Canceled):
		e.Type, e.Message = ErrTypeCanceled, "poll canceled"
	case os.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		e.Type, e.Message = ErrTypeTimeout, "request timed out"
	case errors.As(err, &dnsErr):
		e.Type, e.Message = ErrTypeDNS, fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		e.Type, e.Message = ErrTypeConnectionRefused, "server refused connection"
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EHOSTUNREACH):
		e.Message = "host unreachable"
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ENETUNREACH):
		e.Message = "network unreachable"
	}
	return e
}

// NewHTTPError creates an error for a non-200 response
func NewHTTPError(target string, statusCode int) *PollError {
	return &PollError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status %d %s", statusCode, http.StatusText(statusCode)),
		StatusCode: statusCode,
		URL:        target,
	}
}

// NewReadError creates an error for a body that could not be read
func NewReadError(target string, err error) *PollError {
	return &PollError{Type: ErrTypeRead, Message: "failed to read response body", URL: target, Err: err}
}

// ErrBodyTooLarge is wrapped by the error for bodies over the size limit
var ErrBodyTooLarge = errors.New("response too large")

// NewOversizeError creates an error for a body longer than limit bytes
func NewOversizeError(target string, limit int) *PollError {
	return &PollError{
		Type:    ErrTypeRead,
		Message: fmt.Sprintf("response larger than %d bytes", limit),
		URL:     target,
		Err:     ErrBodyTooLarge,
	}
}

func errorType(err error) (ErrorType, bool) {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return 0, false
}

// IsNetworkError reports transport-level failures (including timeout,
// refused connections and DNS)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsTimeout reports whether the poll timed out
func IsTimeout(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTimeout
}

// IsHTTPError reports a non-200 response
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsCanceled reports a poll abandoned through context cancellation
func IsCanceled(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeCanceled
}

// ShortMessage returns a concise description suitable for a log line or
// the check command output
func ShortMessage(err error) string {
	var pe *PollError
	if !errors.As(err, &pe) {
		return err.Error()
	}

	switch pe.Type {
	case ErrTypeTimeout:
		return "Server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Server refused connection - is it running?"
	case ErrTypeDNS:
		return "Cannot resolve server hostname"
	case ErrTypeHTTP:
		return fmt.Sprintf("Server error (HTTP %d)", pe.StatusCode)
	case ErrTypeCanceled:
		return "Poll canceled"
	default:
		return pe.Message
	}
}

// Troubleshooting returns hints for the check command
func Troubleshooting(err error) []string {
	var pe *PollError
	if !errors.As(err, &pe) {
		return nil
	}

	switch pe.Type {
	case ErrTypeTimeout:
		return []string{
			"Check that the command server is running and reachable",
			"Increase server.timeout if the server is slow to answer",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"Verify the port in server.base_url",
			"Start the command server",
		}
	case ErrTypeDNS:
		return []string{
			"Use the server IP address in server.base_url",
			"Or set server.mdns_instance to discover it on the LAN",
		}
	case ErrTypeHTTP:
		return []string{
			fmt.Sprintf("The server answered %s with HTTP %d", CommandPath, pe.StatusCode),
			"Check that the server exposes " + CommandPath,
		}
	case ErrTypeNetwork:
		return []string{
			"Check the network link (mejalight-agent check)",
			"Verify the agent and server are on the same network",
		}
	default:
		return nil
	}
}
