package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"tcpcomm/internal/capability"
	"tcpcomm/internal/comm"
	ncerr "tcpcomm/internal/errors"
	"tcpcomm/internal/retry"
	"tcpcomm/internal/session"
	"tcpcomm/internal/transport"
	"tcpcomm/util"
)

// ConnectMode dials a remote address, relays stdin to it line by line
// and copies everything it sends to stdout.  This is the default client
// mode.
type ConnectMode struct {
	Host    string
	Port    int
	Dialer  transport.Dialer // closed when Run returns
	Options []comm.Option
	Retry   *retry.Backoff
	Linger  time.Duration // keep receiving this long after stdin EOF
	Relay   *capability.Relay
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the remote address and relays until stdin is exhausted and
// the linger period has passed, the peer goes away, or ctx is done.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.Dialer != nil {
		defer m.Dialer.Close()
	}

	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Dispose()

	m.Logger.Verbose("connected to %s from %s", c.RemoteAddr(), c.LocalAddr())

	sess := session.New(c, m.stdin(), m.stdout(), m.Logger)
	m.Relay.Attach(sess)
	c.Resume()

	pumped := make(chan error, 1)
	go func() { pumped <- m.Relay.Pump(ctx, sess) }()

	select {
	case <-ctx.Done():
		return nil
	case <-sess.Done():
		return ended(sess.Err())
	case err := <-pumped:
		if err != nil && !ncerr.Is(err, ncerr.ErrNotConnected) {
			return err
		}
	}

	if m.Linger <= 0 {
		return ended(sess.Err())
	}
	timer := time.NewTimer(m.Linger)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-sess.Done():
	case <-timer.C:
	}
	return ended(sess.Err())
}

func (m *ConnectMode) dial(ctx context.Context) (*comm.Communicator, error) {
	opts := append([]comm.Option{comm.WithPausedDelivery()}, m.Options...)
	if m.Dialer != nil {
		opts = append(opts, comm.WithDialer(m.Dialer))
	}
	b := m.Retry
	if b == nil {
		b = retry.DefaultBackoff()
	}

	var c *comm.Communicator
	err := b.Do(ctx, func(attempt int) error {
		var err error
		c, err = comm.Dial(ctx, m.Host, m.Port, opts...)
		if err == nil {
			return nil
		}
		if ncerr.IsArgument(err) {
			return retry.Permanent(err)
		}
		m.Logger.Verbose("attempt %d: %v", attempt, err)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", util.FormatAddr(m.Host, m.Port), err)
	}
	return c, nil
}

// ended maps the error that ended a session to Run's result: a peer that
// hung up is a normal end of the conversation.
func ended(err error) error {
	if err == nil || ncerr.Is(err, ncerr.ErrPeerClosed) {
		return nil
	}
	return err
}
