package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections, optionally binding a
// specific local endpoint first.
type TCPDialer struct {
	Timeout   time.Duration
	LocalAddr *net.TCPAddr // nil = any interface, ephemeral port
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	if d.LocalAddr != nil {
		dialer.LocalAddr = d.LocalAddr
	}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
