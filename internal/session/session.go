// Package session represents a single connection lifecycle, binding a
// communicator with local I/O endpoints.
//
// Sessions decouple capabilities from concrete I/O sources: a
// capability doesn't need to know whether it's writing to os.Stdout or a
// test buffer, it just uses the session's Reader/Writer.
package session

import (
	"io"
	"sync"

	"tcpcomm/internal/comm"
	ncerr "tcpcomm/internal/errors"
	"tcpcomm/util"
)

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Comm   *comm.Communicator
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger

	outMu sync.Mutex

	once sync.Once
	done chan struct{}
	err  error
}

// New creates a Session bound to the given communicator and I/O pair.
// It should be called before the communicator delivers events, so that
// the end of the connection is not missed.
func New(c *comm.Communicator, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if stdout == nil {
		stdout = io.Discard
	}
	s := &Session{
		Comm:   c,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
		done:   make(chan struct{}),
	}
	c.OnException(func(ev comm.ExceptionEvent) {
		if !ev.Communicator.IsConnected() {
			s.end(ev.Err)
		}
	})
	c.OnDisposing(func(comm.DisposingEvent) { s.end(nil) })
	if !c.IsConnected() {
		s.end(ncerr.ErrNotConnected)
	}
	return s
}

// Write copies p to Stdout.  Writes from the event dispatcher and from
// the capability are serialized.
func (s *Session) Write(p []byte) (int, error) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.Stdout.Write(p)
}

// Done is closed when the connection fails or the communicator is
// disposed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the failure that ended the session, or nil if it ended by
// disposal or is still running.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) end(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}
