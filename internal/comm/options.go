package comm

import (
	"time"

	"tcpcomm/internal/metrics"
	"tcpcomm/internal/transport"
	"tcpcomm/util"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultCoalesceWindow = 5 * time.Millisecond
	DefaultMaxPayload     = 1 << 20
)

type options struct {
	pollInterval   time.Duration
	coalesceWindow time.Duration
	maxPayload     int
	dialTimeout    time.Duration
	dialer         transport.Dialer
	logger         *util.Logger
	metrics        *metrics.Collector
	tag            any
	paused         bool
}

// Option customises a Communicator or an Acceptor.  Options given to an
// Acceptor are inherited by every communicator it accepts.
type Option func(*options)

// WithPollInterval sets how long one receive poll waits for the first
// byte before checking for a stop request.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithCoalesceWindow sets the quiet period that ends a payload: bytes
// arriving within this window of each other are delivered together.
func WithCoalesceWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.coalesceWindow = d
		}
	}
}

// WithMaxPayload caps the size of one coalesced payload.
func WithMaxPayload(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayload = n
		}
	}
}

// WithDialTimeout bounds connection establishment for Dial and DialTCP
// when no custom dialer is set.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithDialer makes Dial connect through d (an SSH tunnel, for example).
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLogger sets the logging sink.  The default discards everything.
func WithLogger(l *util.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records traffic and lifecycle counters into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTag sets the initial consumer tag.
func WithTag(tag any) Option {
	return func(o *options) { o.tag = tag }
}

// WithPausedDelivery holds the receive loop's events until
// [Communicator.Resume] is called, so that handlers can be subscribed
// before the first payload is delivered.  Reading starts immediately
// regardless; at most a queue's worth of events is held.
func WithPausedDelivery() Option {
	return func(o *options) { o.paused = true }
}

func buildOptions(opts []Option) options {
	o := options{
		pollInterval:   DefaultPollInterval,
		coalesceWindow: DefaultCoalesceWindow,
		maxPayload:     DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = util.Discard()
	}
	return o
}
