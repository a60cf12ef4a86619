// Package transport provides the ways a communicator can establish its
// outbound connection: a plain TCP dial, optionally from a fixed local
// endpoint, or a TCP connection forwarded through an SSH gateway.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound stream connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
