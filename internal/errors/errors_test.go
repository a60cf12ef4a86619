package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestArgumentError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *ArgumentError
		want string
	}{
		{
			name: "with value",
			err:  Argument("dial", "port", 0, "must be between 1 and 65535"),
			want: "dial: argument port=0: must be between 1 and 65535",
		},
		{
			name: "missing value",
			err:  Argument("send", "data", nil, "must not be nil"),
			want: "send: argument data: must not be nil",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConnectionError
		want string
	}{
		{
			name: "retryable",
			err:  ConnectionError{Op: "dial", Addr: "example.com:80", Err: io.EOF, Retryable: true},
			want: "dial example.com:80: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  ConnectionError{Op: "listen", Addr: ":8080", Err: fmt.Errorf("bind failed")},
			want: "listen :8080: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := WrapTransport("read", "127.0.0.1:9", ErrPeerClosed)
	if !Is(err, ErrPeerClosed) {
		t.Error("should unwrap to ErrPeerClosed")
	}
	if got, want := err.Error(), "socket read 127.0.0.1:9: connection closed by peer"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	err := ConfigError{
		Field:   "port",
		Value:   99999,
		Message: "out of range 1-65535",
		Hint:    "use a port between 1 and 65535",
	}
	want := "config: --port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535"
	if got := err.Error(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRecovered(t *testing.T) {
	inner := fmt.Errorf("boom")
	if err := Recovered("accept", inner); !Is(err, inner) {
		t.Error("error panic value should be preserved")
	}
	err := Recovered("accept", "plain string")
	if !strings.Contains(err.Error(), "panic: plain string") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable connection", &ConnectionError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable connection", &ConnectionError{Op: "dial", Addr: "x", Err: io.EOF}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestIsTimeoutAndClosed(t *testing.T) {
	if !IsTimeout(os.ErrDeadlineExceeded) {
		t.Error("deadline exceeded should be a timeout")
	}
	if IsTimeout(io.EOF) {
		t.Error("EOF is not a timeout")
	}
	if !IsClosed(&net.OpError{Op: "read", Err: net.ErrClosed}) {
		t.Error("wrapped net.ErrClosed should be closed")
	}
}

func TestIsDeadline(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", os.ErrDeadlineExceeded, true},
		{"wrapped deadline", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, true},
		{"kernel timeout", &net.OpError{Op: "read", Err: syscall.ETIMEDOUT}, false},
		{"eof", io.EOF, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeadline(tt.err); got != tt.want {
				t.Errorf("IsDeadline(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsPeerClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"local close", net.ErrClosed, false},
		{"reset", syscall.ECONNRESET, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPeerClosed(tt.err); got != tt.want {
				t.Errorf("IsPeerClosed(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	err := WrapTransport("write", "10.0.0.1:2015", fmt.Errorf("broken pipe"))
	summary, detail := Describe(err)

	if want := "TransportError:socket write 10.0.0.1:2015: broken pipe"; summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}
	if !strings.Contains(detail, "caused by") || !strings.Contains(detail, "broken pipe") {
		t.Errorf("detail = %q", detail)
	}

	if s, d := Describe(nil); s != "" || d != "" {
		t.Errorf("nil error should describe to empty strings, got %q %q", s, d)
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrPeerClosed, ErrNotConnected, ErrTunnelClosed, ErrTimeout, ErrAuthFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
