// Package comm is the connection kernel: a Communicator owns one TCP
// connection and turns inbound bytes into events, and an Acceptor listens
// for connections and hands each one to a new Communicator.
//
// Every communicator runs two goroutines.  The receive loop reads with
// short deadlines so that it notices a stop request within one poll
// interval; the dispatcher runs the loop's events in order.  Handlers
// therefore never execute on the goroutine that Dispose waits for, and
// may call Dispose or Send freely.
package comm

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ncerr "tcpcomm/internal/errors"
	"tcpcomm/internal/event"
	"tcpcomm/internal/transport"
	"tcpcomm/util"
)

// queueDepth is the number of undelivered loop events a communicator
// buffers before the receive loop waits for its handlers.
const queueDepth = 64

// errStopping is returned by read once disposal has begun.
var errStopping = ncerr.New("communicator stopping")

// Communicator exchanges opaque byte payloads over one established TCP
// connection.
type Communicator struct {
	id   string
	conn net.Conn
	opts options

	// deadlines is false for connections that cannot time out a read
	// (SSH channels); those are woken by closing the connection.
	deadlines bool

	connected atomic.Bool
	quit      atomic.Bool
	disposed  atomic.Bool

	stop   chan struct{}
	done   chan struct{}
	queue  chan func()
	ready  chan struct{}
	resume sync.Once

	tagMu sync.RWMutex
	tag   any

	dataReceived event.Registry[DataReceivedEvent]
	exception    event.Registry[ExceptionEvent]
	disposing    event.Registry[DisposingEvent]
}

// DialTCP connects to remote, binding local first when it is non-nil.
func DialTCP(ctx context.Context, local, remote *net.TCPAddr, opts ...Option) (*Communicator, error) {
	if remote == nil {
		return nil, ncerr.Argument("dial", "remote", nil, "endpoint must not be nil")
	}
	if remote.Port < 1 || remote.Port > 65535 {
		return nil, ncerr.Argument("dial", "remote", remote, "port must be in 1..65535")
	}
	o := buildOptions(opts)
	d := &transport.TCPDialer{Timeout: o.dialTimeout, LocalAddr: local}
	return dial(ctx, d, remote.String(), o)
}

// Dial connects to host:port through the configured dialer (plain TCP by
// default).
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Communicator, error) {
	if host == "" {
		return nil, ncerr.Argument("dial", "host", host, "address must not be empty")
	}
	if port < 1 || port > 65535 {
		return nil, ncerr.Argument("dial", "port", port, "must be in 1..65535")
	}
	o := buildOptions(opts)
	d := o.dialer
	if d == nil {
		d = &transport.TCPDialer{Timeout: o.dialTimeout}
	}
	return dial(ctx, d, util.FormatAddr(host, port), o)
}

func dial(ctx context.Context, d transport.Dialer, addr string, o options) (*Communicator, error) {
	o.logger.Verbose("connecting to %s", addr)
	conn, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		cerr := ncerr.Wrap("dial", addr, err)
		o.metrics.RecordError(cerr.Error())
		return nil, cerr
	}
	return newCommunicator(conn, o), nil
}

// Wrap adopts an already established connection, typically one returned
// by a listener.
func Wrap(conn net.Conn, opts ...Option) (*Communicator, error) {
	if conn == nil {
		return nil, ncerr.Argument("wrap", "conn", nil, "connection must not be nil")
	}
	return newCommunicator(conn, buildOptions(opts)), nil
}

func newCommunicator(conn net.Conn, o options) *Communicator {
	c := &Communicator{
		id:        uuid.NewString(),
		conn:      conn,
		opts:      o,
		deadlines: conn.SetReadDeadline(time.Time{}) == nil,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		queue:     make(chan func(), queueDepth),
		ready:     make(chan struct{}),
		tag:       o.tag,
	}
	if !o.paused {
		c.Resume()
	}
	report := func(err error) {
		o.metrics.RecordError(err.Error())
		o.logger.Report(err)
	}
	c.dataReceived.OnPanic = report
	c.exception.OnPanic = report
	c.disposing.OnPanic = report

	c.connected.Store(true)
	o.metrics.CommunicatorOpened()
	o.logger.Verbose("communicator %s: %s <-> %s", c.id, conn.LocalAddr(), conn.RemoteAddr())

	go c.dispatch()
	go c.receive()
	return c
}

// Resume starts delivering events held back by WithPausedDelivery.  It
// is a no-op otherwise and may be called more than once.
func (c *Communicator) Resume() {
	c.resume.Do(func() { close(c.ready) })
}

// ID returns the identifier used in log lines.
func (c *Communicator) ID() string { return c.id }

// IsConnected reports whether the connection is still usable.  It turns
// false after a read or write failure and on Dispose.
func (c *Communicator) IsConnected() bool { return c.connected.Load() }

// Tag returns the value set by the consumer.
func (c *Communicator) Tag() any {
	c.tagMu.RLock()
	defer c.tagMu.RUnlock()
	return c.tag
}

// SetTag stores an arbitrary consumer value on the communicator.
func (c *Communicator) SetTag(tag any) {
	c.tagMu.Lock()
	c.tag = tag
	c.tagMu.Unlock()
}

// LocalAddr returns the local endpoint.
func (c *Communicator) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the peer endpoint.
func (c *Communicator) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// OnDataReceived registers fn for every coalesced inbound payload.
// Handlers run on the dispatcher goroutine in read order.
func (c *Communicator) OnDataReceived(fn func(DataReceivedEvent)) event.Subscription {
	return c.dataReceived.Subscribe(fn)
}

// OnException registers fn for read and write failures.  A read failure
// is delivered on the dispatcher goroutine, a write failure on the
// goroutine that called Send.
func (c *Communicator) OnException(fn func(ExceptionEvent)) event.Subscription {
	return c.exception.Subscribe(fn)
}

// OnDisposing registers fn to run synchronously at the start of Dispose.
func (c *Communicator) OnDisposing(fn func(DisposingEvent)) event.Subscription {
	return c.disposing.Subscribe(fn)
}

// UnsubscribeDataReceived removes a handler added by OnDataReceived and
// reports whether it was registered.
func (c *Communicator) UnsubscribeDataReceived(id event.Subscription) bool {
	return c.dataReceived.Unsubscribe(id)
}

// UnsubscribeException removes a handler added by OnException.
func (c *Communicator) UnsubscribeException(id event.Subscription) bool {
	return c.exception.Unsubscribe(id)
}

// UnsubscribeDisposing removes a handler added by OnDisposing.
func (c *Communicator) UnsubscribeDisposing(id event.Subscription) bool {
	return c.disposing.Unsubscribe(id)
}

// Send writes data to the peer synchronously.  A nil slice is rejected
// with an ArgumentError before any I/O.
//
// A transport failure is not returned.  It marks the communicator
// disconnected, stops the receive loop and is delivered as an
// ExceptionEvent on the calling goroutine before Send returns nil.  A
// connection that has already failed or been disposed raises nothing.
func (c *Communicator) Send(data []byte) error {
	if data == nil {
		return ncerr.Argument("send", "data", nil, "must not be nil")
	}
	n, err := c.conn.Write(data)
	c.opts.metrics.BytesSent(int64(n))
	if err != nil {
		if terr := c.fail("write", err); terr != nil {
			c.exception.Emit(ExceptionEvent{Communicator: c, Err: terr})
		}
		return nil
	}
	c.opts.logger.Debug("communicator %s: sent %d bytes", c.id, n)
	return nil
}

// Dispose stops the receive loop, waits for it to exit and closes the
// connection.  DisposingEvent is raised synchronously before anything is
// released.  Only the first call has an effect; it may be made from any
// goroutine, event handlers included.
func (c *Communicator) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.connected.Store(false)
	c.quit.Store(true)
	close(c.stop)

	c.disposing.Emit(DisposingEvent{Communicator: c})

	c.Resume()
	c.wake()
	<-c.done
	_ = c.conn.Close()

	c.opts.metrics.CommunicatorClosed()
	c.opts.logger.Verbose("communicator %s: disposed", c.id)
}

// wake interrupts a read that is in progress.
func (c *Communicator) wake() {
	if c.deadlines {
		_ = c.conn.SetReadDeadline(time.Now())
		return
	}
	_ = c.conn.Close()
}

// receive is the loop that turns inbound bytes into DataReceivedEvents.
// A read whose deadline expires is a poll tick.  Once a read returns
// bytes the loop keeps draining with the coalesce window as deadline, so
// a burst is delivered as one payload.
func (c *Communicator) receive() {
	defer close(c.done)
	defer close(c.queue)

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := (*bufp)[:min(len(*bufp), c.opts.maxPayload)]

	for !c.quit.Load() {
		n, err := c.read(buf, c.opts.pollInterval)
		if n > 0 {
			payload := append([]byte(nil), buf[:n]...)
			if err == nil && c.deadlines {
				payload, err = c.drain(buf, payload)
			}
			c.deliver(payload)
		}
		if err == nil || ncerr.IsDeadline(err) {
			continue
		}
		if c.quit.Load() {
			// Disposal or a failed Send already ended the session.
			return
		}
		if ncerr.IsPeerClosed(err) {
			err = ncerr.ErrPeerClosed
		}
		terr := c.fail("read", err)
		if terr == nil {
			return
		}
		c.post(func() {
			c.exception.Emit(ExceptionEvent{Communicator: c, Err: terr})
		})
		return
	}
}

// drain keeps reading until the coalesce window passes without data or
// the payload reaches its size cap.  An expired deadline ends the payload
// and is not an error.
func (c *Communicator) drain(buf, payload []byte) ([]byte, error) {
	for len(payload) < c.opts.maxPayload {
		n, err := c.read(buf[:min(len(buf), c.opts.maxPayload-len(payload))], c.opts.coalesceWindow)
		payload = append(payload, buf[:n]...)
		if err != nil {
			if ncerr.IsDeadline(err) {
				return payload, nil
			}
			return payload, err
		}
	}
	return payload, nil
}

// read fills buf, waiting at most wait on connections with deadlines.  A
// failure to arm the deadline is returned like a read error, since some
// connections (pipes) report a peer close that way.
func (c *Communicator) read(buf []byte, wait time.Duration) (int, error) {
	if c.deadlines {
		if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return 0, err
		}
		// Dispose raises quit before it moves the deadline, so either the
		// deadline set above is overridden or quit is already visible.
		if c.quit.Load() {
			return 0, errStopping
		}
	}
	return c.conn.Read(buf)
}

func (c *Communicator) deliver(payload []byte) {
	c.opts.metrics.PayloadReceived(int64(len(payload)))
	c.opts.logger.Debug("communicator %s: received %d bytes", c.id, len(payload))
	c.post(func() {
		// Payloads still queued when disposal starts are dropped.
		if c.disposed.Load() {
			return
		}
		c.dataReceived.Emit(DataReceivedEvent{Communicator: c, Data: payload})
	})
}

// fail marks the connection dead and builds the error to report.  Only
// the call that takes the communicator from connected to disconnected
// gets an error back; every later one, or one after Dispose, gets nil.
func (c *Communicator) fail(op string, err error) error {
	c.quit.Store(true)
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	terr := ncerr.WrapTransport(op, c.remote(), err)
	c.opts.metrics.RecordError(terr.Error())
	c.opts.logger.Verbose("communicator %s: %v", c.id, terr)
	return terr
}

// post queues fn for the dispatcher.  It gives up once disposal started.
func (c *Communicator) post(fn func()) {
	select {
	case c.queue <- fn:
	case <-c.stop:
	}
}

func (c *Communicator) dispatch() {
	<-c.ready
	for fn := range c.queue {
		fn()
	}
}

func (c *Communicator) remote() string {
	if a := c.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (c *Communicator) String() string {
	return "communicator " + c.id + " (" + c.remote() + ", connected=" + strconv.FormatBool(c.IsConnected()) + ")"
}
