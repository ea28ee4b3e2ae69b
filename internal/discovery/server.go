package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server is an HTTP service found through mDNS
type Server struct {
	// Instance is the advertised service instance name (e.g. "mejalight")
	Instance string

	// Hostname is the mDNS host name (e.g. "kasir.local.")
	Hostname string

	// IP is the address to connect to, IPv4 when available
	IP string

	Port int

	// Metadata holds the TXT records
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (s *Server) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)))
}

// BaseURL returns the HTTP base URL for the server
func (s *Server) BaseURL() string {
	return "http://" + net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
