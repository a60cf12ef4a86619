package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	ncerr "tcpcomm/internal/errors"
	"tcpcomm/tunnel"
	"tcpcomm/util"
)

func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

func TestTCPDialer_LocalAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Addr, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn.RemoteAddr()
		conn.Close()
	}()

	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	d := &TCPDialer{
		Timeout:   2 * time.Second,
		LocalAddr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
	}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case remote := <-accepted:
		if got := remote.(*net.TCPAddr).Port; got != port {
			t.Errorf("server saw source port %d, want %d", got, port)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
	}
}

func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestSSHDialer_UnreachableGateway verifies that a failed tunnel
// connect surfaces as a dial error and leaves the dialer closable.
func TestSSHDialer_UnreachableGateway(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "nobody",
		Host:        "127.0.0.1",
		Port:        port,
		KeyPath:     "/nonexistent/key",
		ConnTimeout: time.Second,
	}, util.Discard())

	_, err = d.Dial(context.Background(), "tcp", "127.0.0.1:80")
	if err == nil {
		t.Fatal("expected error for unreachable gateway")
	}
	var sshErr *ncerr.SSHError
	if !ncerr.As(err, &sshErr) {
		t.Errorf("expected SSHError in chain, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close after failed connect: %v", err)
	}
}
