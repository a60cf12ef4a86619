// Package capability defines what happens over an established
// connection.  Each Capability encapsulates a single behaviour (print
// and echo inbound payloads, relay a terminal, ...) and operates on a
// Session rather than a raw Communicator, which keeps capabilities
// testable and decoupled from where their I/O goes.
package capability

import "tcpcomm/internal/session"

// Capability attaches a behaviour to a session.  Attach only subscribes
// handlers; it is called before the communicator delivers its first
// event and must not block.
type Capability interface {
	Attach(sess *session.Session)
}
