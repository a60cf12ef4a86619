package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"tcpcomm/internal/capability"
	"tcpcomm/internal/comm"
	"tcpcomm/internal/session"
	"tcpcomm/util"
)

// ServeMode accepts inbound connections until its context is cancelled
// and runs a capability on each one.  Every accepted communicator is
// tagged with its 1-based position among the live connections.
type ServeMode struct {
	Host       string
	Port       int
	Options    []comm.Option
	Capability capability.Capability
	Logger     *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer

	// Ready, when non-nil, receives the acceptor once it is listening.
	Ready chan<- *comm.Acceptor
}

func (m *ServeMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run listens, serves connections, and disposes every communicator when
// ctx is done.
func (m *ServeMode) Run(ctx context.Context) error {
	a, err := comm.Listen(m.Host, m.Port, m.Options...)
	if err != nil {
		return err
	}
	m.Logger.Append(fmt.Sprintf("listening on %s", a.Addr()), util.LevelNotice, "")

	a.OnConnected(func(ev comm.ConnectedEvent) { m.serve(a, ev.Communicator) })
	a.OnDisconnected(func(ev comm.DisconnectedEvent) {
		m.Logger.Verbose("client %v dropped by shutdown", ev.Communicator.Tag())
	})
	a.OnException(func(ev comm.ExceptionEvent) { m.Logger.Report(ev.Err) })

	if m.Ready != nil {
		m.Ready <- a
	}

	<-ctx.Done()
	a.Dispose()
	<-a.Done()
	m.Logger.Verbose("listener on %s closed", a.Addr())
	return nil
}

// serve runs inside the connected event, before the communicator
// delivers anything.
func (m *ServeMode) serve(a *comm.Acceptor, c *comm.Communicator) {
	c.SetTag(a.CommunicatorCount() + 1)
	m.Logger.Append(fmt.Sprintf("client %v connected", c.Tag()), util.LevelNotice,
		fmt.Sprintf("remote %s, id %s", c.RemoteAddr(), c.ID()))

	sess := session.New(c, nil, m.stdout(), m.Logger)
	m.Capability.Attach(sess)

	c.OnDisposing(func(ev comm.DisposingEvent) {
		m.Logger.Append(fmt.Sprintf("client %v disconnected", ev.Communicator.Tag()), util.LevelNotice, "")
	})
}
