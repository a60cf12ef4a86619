// Package tunnel lets a communicator reach its peer through an SSH
// gateway, using golang.org/x/crypto/ssh for the transport and
// golang.org/x/term for interactive secrets.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an encrypted channel through which TCP connections can be
// forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the gateway connection is still up.
	IsAlive() bool
}
