package comm

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerr "tcpcomm/internal/errors"
	"tcpcomm/internal/event"
	"tcpcomm/internal/retry"
	"tcpcomm/util"
)

// Acceptor listens on a local endpoint and wraps every inbound
// connection in a Communicator.  It keeps track of the communicators it
// created until they are disposed, and disposes the ones still alive
// when it is disposed itself.
type Acceptor struct {
	ln   net.Listener
	opts options

	mu       sync.Mutex
	tracked  map[*Communicator]tracking
	disposed atomic.Bool // written with mu held

	done chan struct{}

	connected    event.Registry[ConnectedEvent]
	disconnected event.Registry[DisconnectedEvent]
	exception    event.Registry[ExceptionEvent]
}

// tracking holds the subscriptions an acceptor keeps on a communicator.
type tracking struct {
	disposing event.Subscription
	exception event.Subscription
}

// Listen binds host:port and starts accepting.  Use "0.0.0.0" or "::"
// for every interface.
func Listen(host string, port int, opts ...Option) (*Acceptor, error) {
	if host == "" {
		return nil, ncerr.Argument("listen", "host", host, "address must not be empty")
	}
	if port < 1 || port > 65535 {
		return nil, ncerr.Argument("listen", "port", port, "must be in 1..65535")
	}
	addr, err := util.TCPAddr(host, port)
	if err != nil {
		return nil, ncerr.Wrap("listen", util.FormatAddr(host, port), err)
	}
	return listen(addr, buildOptions(opts))
}

// ListenTCP binds local and starts accepting.
func ListenTCP(local *net.TCPAddr, opts ...Option) (*Acceptor, error) {
	if local == nil {
		return nil, ncerr.Argument("listen", "local", nil, "endpoint must not be nil")
	}
	if local.Port < 1 || local.Port > 65535 {
		return nil, ncerr.Argument("listen", "local", local, "port must be in 1..65535")
	}
	return listen(local, buildOptions(opts))
}

func listen(addr *net.TCPAddr, o options) (*Acceptor, error) {
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr.String(), err)
	}

	a := &Acceptor{
		ln:      ln,
		opts:    o,
		tracked: make(map[*Communicator]tracking),
		done:    make(chan struct{}),
	}
	// A failing connected/disconnected handler surfaces as an acceptor
	// exception; a failing exception handler can only be logged.
	forward := func(err error) {
		o.metrics.RecordError(err.Error())
		a.exception.Emit(ExceptionEvent{Err: err})
	}
	a.connected.OnPanic = forward
	a.disconnected.OnPanic = forward
	a.exception.OnPanic = func(err error) {
		o.metrics.RecordError(err.Error())
		o.logger.Report(err)
	}

	o.logger.Verbose("listening on %s", ln.Addr())
	go a.acceptLoop()
	return a, nil
}

// Addr returns the bound endpoint.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// CommunicatorCount returns the number of tracked communicators.
func (a *Acceptor) CommunicatorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tracked)
}

// Done is closed once the accept loop has exited.
func (a *Acceptor) Done() <-chan struct{} { return a.done }

// OnConnected registers fn for every accepted connection.  Handlers run
// on the accept goroutine before the communicator delivers any event, so
// this is the place to subscribe to it.
func (a *Acceptor) OnConnected(fn func(ConnectedEvent)) event.Subscription {
	return a.connected.Subscribe(fn)
}

// OnDisconnected registers fn for each communicator still tracked when
// the acceptor is disposed.
func (a *Acceptor) OnDisconnected(fn func(DisconnectedEvent)) event.Subscription {
	return a.disconnected.Subscribe(fn)
}

// OnException registers fn for accept failures and for panics raised
// while admitting a connection.
func (a *Acceptor) OnException(fn func(ExceptionEvent)) event.Subscription {
	return a.exception.Subscribe(fn)
}

// UnsubscribeConnected removes a handler added by OnConnected and reports
// whether it was registered.
func (a *Acceptor) UnsubscribeConnected(id event.Subscription) bool {
	return a.connected.Unsubscribe(id)
}

// UnsubscribeDisconnected removes a handler added by OnDisconnected.
func (a *Acceptor) UnsubscribeDisconnected(id event.Subscription) bool {
	return a.disconnected.Unsubscribe(id)
}

// UnsubscribeException removes a handler added by OnException.
func (a *Acceptor) UnsubscribeException(id event.Subscription) bool {
	return a.exception.Unsubscribe(id)
}

// Dispose stops accepting and disposes every tracked communicator,
// raising DisconnectedEvent for each first.  It does not wait for the
// accept loop, so it is safe to call from an acceptor handler; use Done
// to wait.
func (a *Acceptor) Dispose() {
	a.mu.Lock()
	if a.disposed.Load() {
		a.mu.Unlock()
		return
	}
	a.disposed.Store(true)
	snapshot := a.tracked
	a.tracked = make(map[*Communicator]tracking)
	a.mu.Unlock()

	for c, t := range snapshot {
		c.UnsubscribeDisposing(t.disposing)
		c.UnsubscribeException(t.exception)
		a.disconnected.Emit(DisconnectedEvent{Communicator: c})
		c.Dispose()
	}

	_ = a.ln.Close()
	a.opts.logger.Verbose("acceptor %s: disposed, dropped %d communicators", a.ln.Addr(), len(snapshot))
}

// acceptLoop runs on a single goroutine, so the next accept is armed
// only after the previous one has been fully handled.
func (a *Acceptor) acceptLoop() {
	defer close(a.done)

	pace := retry.AcceptBackoff()
	failures := 0
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if a.disposed.Load() {
				return
			}
			failures++
			cerr := ncerr.Wrap("accept", a.ln.Addr().String(), err)
			a.opts.metrics.AcceptFailed(cerr.Error())
			a.exception.Emit(ExceptionEvent{Err: cerr})
			if ncerr.IsClosed(err) {
				// Closed from outside; there is nothing left to accept on.
				return
			}
			time.Sleep(pace.Duration(failures))
			continue
		}
		failures = 0
		a.admit(conn)
	}
}

// admit wraps an accepted connection, announces it and starts tracking
// it.  Event delivery stays paused until then, so handlers subscribed in
// the connected event see every payload.  A panic anywhere in here is
// reported as an acceptor exception, disposes the communicator and does
// not stop the accept loop.
func (a *Acceptor) admit(conn net.Conn) {
	var c *Communicator
	defer func() {
		if p := recover(); p != nil {
			err := ncerr.Recovered("accept", p)
			a.opts.metrics.RecordError(err.Error())
			a.exception.Emit(ExceptionEvent{Communicator: c, Err: err})
			if c != nil {
				// It may not be tracked, so nothing else would release it.
				c.Dispose()
			}
		}
	}()

	a.opts.logger.Verbose("connection from %s", conn.RemoteAddr())
	o := a.opts
	o.paused = true
	c = newCommunicator(conn, o)
	defer c.Resume()

	a.connected.Emit(ConnectedEvent{Communicator: c})

	if !c.IsConnected() {
		c.Dispose()
		return
	}
	a.track(c)
}

func (a *Acceptor) track(c *Communicator) {
	a.mu.Lock()
	if a.disposed.Load() {
		a.mu.Unlock()
		a.disconnected.Emit(DisconnectedEvent{Communicator: c})
		c.Dispose()
		return
	}
	a.tracked[c] = tracking{
		disposing: c.OnDisposing(a.prune),
		exception: c.OnException(a.reap),
	}
	a.mu.Unlock()

	// The communicator may have failed or been disposed before the
	// subscriptions above existed, in which case they will never fire.
	if !c.IsConnected() {
		a.untrack(c)
		c.Dispose()
	}
}

func (a *Acceptor) prune(ev DisposingEvent) {
	a.untrack(ev.Communicator)
}

// reap disposes a tracked communicator whose connection failed.  It is
// subscribed after the consumer's connected handlers, so those see the
// exception first.
func (a *Acceptor) reap(ev ExceptionEvent) {
	if !ev.Communicator.IsConnected() {
		ev.Communicator.Dispose()
	}
}

func (a *Acceptor) untrack(c *Communicator) {
	a.mu.Lock()
	t, ok := a.tracked[c]
	if ok {
		delete(a.tracked, c)
	}
	a.mu.Unlock()

	if ok {
		c.UnsubscribeDisposing(t.disposing)
		c.UnsubscribeException(t.exception)
		a.opts.logger.Debug("acceptor: released communicator %s", c.ID())
	}
}
