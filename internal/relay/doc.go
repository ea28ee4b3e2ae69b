// Package relay drives relay channels wired to GPIO outputs.
//
// A Driver opens output pins by name. The periph driver talks to real
// hardware through periph.io and addresses pins by their BCM names
// ("GPIO18"); the sim driver keeps levels in memory so the agent can run on
// machines without GPIO and so tests can observe every write.
//
// Relay boards used with the agent are active-low: driving the line LOW
// energizes the coil (relay ON), HIGH releases it (relay OFF). Relay hides
// that inversion behind Set(on).
package relay
