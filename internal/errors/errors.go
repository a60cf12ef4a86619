// Package errors provides the error taxonomy shared by the communicator,
// the acceptor and the CLI.
//
// Setup-time failures (bad arguments, dial, listen) are returned to the
// caller.  Steady-state failures (read, write, accept) are delivered as
// exception events and carry a TransportError or ConnectionError.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrPeerClosed   = errors.New("connection closed by peer")
	ErrNotConnected = errors.New("not connected")
	ErrTunnelClosed = errors.New("tunnel is closed")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailed   = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// ArgumentError reports a nil or out-of-range argument.  It is always
// returned before any I/O is attempted.
type ArgumentError struct {
	Op      string      // "dial", "listen", "wrap", "send"
	Param   string      // offending parameter name
	Value   interface{} // the invalid value (nil if missing)
	Message string
}

func (e *ArgumentError) Error() string {
	msg := fmt.Sprintf("%s: argument %s", e.Op, e.Param)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	return msg + ": " + e.Message
}

// ConnectionError represents a failure to establish or accept a
// connection.
type ConnectionError struct {
	Op        string // "dial", "listen", "accept"
	Addr      string
	Err       error
	Retryable bool
}

func (e *ConnectionError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError represents a failure while reading from or writing to
// an established connection.  The connection is dead afterwards.
type TransportError struct {
	Op   string // "read" or "write"
	Addr string // remote address
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("socket %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InternalError wraps an unexpected failure (usually a recovered panic)
// inside an accept continuation or an event handler.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Argument creates an ArgumentError.
func Argument(op, param string, value interface{}, msg string) *ArgumentError {
	return &ArgumentError{Op: op, Param: param, Value: value, Message: msg}
}

// Wrap creates a ConnectionError, detecting retryability from the
// underlying error.
func Wrap(op, addr string, err error) *ConnectionError {
	return &ConnectionError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapTransport creates a TransportError.
func WrapTransport(op, addr string, err error) *TransportError {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Recovered converts a value obtained from recover() into an
// InternalError.
func Recovered(op string, r interface{}) *InternalError {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	return &InternalError{Op: op, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return classifyRetryable(err)
}

// IsArgument reports whether err is (or wraps) an ArgumentError.
func IsArgument(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}

// IsTimeout reports whether err is any kind of timeout.  That includes a
// deadline expiry but also a kernel ETIMEDOUT; use IsDeadline to tell a
// poll tick from a dead peer.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsDeadline reports whether err is an expired read or write deadline.
func IsDeadline(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// IsPeerClosed reports whether err means the remote end hung up.
func IsPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, ErrPeerClosed)
}

// IsClosed reports whether err stems from using a closed connection.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Reporting ────────────────────────────────────────────────────────

// Kind returns the short type name used in log summaries.
func Kind(err error) string {
	switch err.(type) {
	case *ArgumentError:
		return "ArgumentError"
	case *ConnectionError:
		return "ConnectionError"
	case *TransportError:
		return "TransportError"
	case *InternalError:
		return "InternalError"
	case *SSHError:
		return "SSHError"
	case *ConfigError:
		return "ConfigError"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// Describe renders err as a "<kind>:<message>" summary plus a detail
// blob listing the wrapped chain, one cause per line.
func Describe(err error) (summary, detail string) {
	if err == nil {
		return "", ""
	}
	summary = Kind(err) + ":" + err.Error()

	var b strings.Builder
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(&b, "caused by %s: %v\n", Kind(cause), cause)
	}
	return summary, strings.TrimSuffix(b.String(), "\n")
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
