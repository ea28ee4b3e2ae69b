// Package link keeps the agent's network association alive.
//
// A Link reports whether the network is usable and can start or drop an
// association. InterfaceLink watches a named interface and drives it with
// external commands (nmcli by default); StaticLink is for wired or
// development hosts where the network is not managed.
//
// Manager implements the association policy:
//
//   - Connect at boot: start association, then check the status up to
//     BootAttempts more times, RetryInterval apart. On exhaustion wait
//     RestartDelay and restart.
//   - Ensure before every poll cycle: if the link is down, Reconnect.
//   - Reconnect: disconnect, start association, check up to
//     ReconnectAttempts more times; restart immediately on exhaustion.
//
// The checks are fixed-count and fixed-interval (a constant backoff capped
// by a retry count). A restart is issued once through the Restarter and the
// manager then returns ErrRestarted; there is no degraded mode.
package link
