// Package poller fetches pending relay commands from the command server.
//
// The server exposes a single endpoint returning a bare text token:
//
//	GET <base-url>/api/esp-command            -> "ON1"
//	GET <base-url>/api/esp-command?meja=2     -> "OFF2"
//
// A poll is one blocking GET bounded by the client timeout. A 200 response
// yields the whitespace-trimmed body (possibly empty). Anything else yields a
// *PollError and no command; there is no retry, the next poll cycle is the
// recovery path.
//
// # Usage Example
//
//	p := poller.New("http://192.168.1.20:3000", 3*time.Second, true)
//	cmd, err := p.Poll(ctx, 1)
//	if err != nil {
//	    log.Printf("poll failed: %s", poller.ShortMessage(err))
//	}
//
// # Errors
//
// Transport failures are classified into timeout, connection refused, DNS
// and generic network errors; non-200 responses are HTTP errors carrying
// the status code. Use the Is* helpers or errors.As to inspect them.
package poller
