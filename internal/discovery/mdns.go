package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/mejalight/mejalight/internal/logging"
)

const (
	// ServiceType is the mDNS service type the command server advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a browse when no timeout is configured
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is used when an entry announces port 0
	DefaultPort = 80
)

// ErrNotFound is returned when no matching instance answered in time
var ErrNotFound = errors.New("server not found")

// Scanner browses for HTTP services
type Scanner struct {
	// Timeout is the maximum time to browse
	Timeout time.Duration
}

// NewScanner creates a scanner with the default timeout
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for the full timeout and returns every HTTP service seen
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	servers := make([]*Server, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// the resolver closes entries once ctx is done
	go func() {
		defer close(done)
		for entry := range entries {
			if server := parseServiceEntry(entry); server != nil {
				servers = append(servers, server)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	logging.Debug("mDNS scan finished", zap.Int("services", len(servers)))
	return servers, nil
}

// Find browses until a service with the given instance name answers.
// Names are compared case-insensitively.
func (s *Scanner) Find(ctx context.Context, instance string) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Server, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			server := parseServiceEntry(entry)
			if server == nil || !matchInstance(server.Instance, instance) {
				continue
			}
			select {
			case found <- server:
				cancel()
			default:
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case server := <-found:
		logging.Info("Discovered command server",
			zap.String("instance", server.Instance),
			zap.String("url", server.BaseURL()),
		)
		return server, nil
	case <-ctx.Done():
		// a match may have raced the deadline
		select {
		case server := <-found:
			return server, nil
		default:
		}
		return nil, fmt.Errorf("%w: instance %q within %s", ErrNotFound, instance, s.timeout())
	}
}

func (s *Scanner) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultScanTimeout
	}
	return s.Timeout
}

func matchInstance(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

// parseServiceEntry converts a zeroconf entry to a Server.
// Returns nil when the entry has no instance name or no address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Server{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
