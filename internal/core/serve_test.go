package core

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tcpcomm/internal/capability"
	"tcpcomm/internal/comm"
	"tcpcomm/util"
)

type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func startServe(t *testing.T, echo bool) (*comm.Acceptor, *lockedBuffer, *observer.ObservedLogs, context.CancelFunc, <-chan error) {
	t.Helper()
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	logger := util.NewLogger(1)
	logger.SetOutput(&lockedBuffer{})
	core, logs := observer.New(zapcore.Level(-2))
	logger.Attach(core)

	out := &lockedBuffer{}
	ready := make(chan *comm.Acceptor, 1)
	mode := &ServeMode{
		Host:       "127.0.0.1",
		Port:       port,
		Options:    testOptions(),
		Capability: &capability.Console{Echo: echo},
		Logger:     logger,
		Stdout:     out,
		Ready:      ready,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mode.Run(ctx) }()
	t.Cleanup(cancel)

	select {
	case a := <-ready:
		return a, out, logs, cancel, done
	case err := <-done:
		t.Fatalf("Run: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return nil, nil, nil, nil, nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestServeMode_EchoAndTags verifies tagging, logging, output and echo
// for two clients.
func TestServeMode_EchoAndTags(t *testing.T) {
	a, out, logs, _, _ := startServe(t, true)
	port := a.Addr().(*net.TCPAddr).Port

	var clients []*comm.Communicator
	echoes := make(chan string, 4)
	for i := 0; i < 2; i++ {
		c, err := comm.Dial(context.Background(), "127.0.0.1", port, testOptions()...)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(c.Dispose)
		c.OnDataReceived(func(ev comm.DataReceivedEvent) { echoes <- string(ev.Data) })
		clients = append(clients, c)
		waitFor(t, func() bool { return a.CommunicatorCount() == i+1 }, "client not tracked")
	}

	clients[1].Send([]byte("second")) //nolint:errcheck

	select {
	case got := <-echoes:
		if got != "second" {
			t.Errorf("echo = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}
	waitFor(t, func() bool { return logs.FilterMessage("client 2: second").Len() == 1 }, "payload not logged with tag 2")
	if !strings.Contains(out.String(), "second") {
		t.Errorf("stdout = %q", out.String())
	}
}

// TestServeMode_Shutdown verifies that cancelling the context disposes
// every client and returns nil.
func TestServeMode_Shutdown(t *testing.T) {
	a, _, logs, cancel, done := startServe(t, false)
	port := a.Addr().(*net.TCPAddr).Port

	c, err := comm.Dial(context.Background(), "127.0.0.1", port, testOptions()...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Dispose)
	lost := make(chan struct{})
	c.OnException(func(comm.ExceptionEvent) { close(lost) })
	waitFor(t, func() bool { return a.CommunicatorCount() == 1 }, "client not tracked")

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("client never noticed the shutdown")
	}
	if n := logs.FilterMessage("client 1 disconnected").Len(); n != 1 {
		t.Errorf("disconnect logged %d times, want 1", n)
	}
}

// TestServeMode_PortInUse verifies that a bind failure is returned.
func TestServeMode_PortInUse(t *testing.T) {
	a, _, _, _, _ := startServe(t, false)

	mode := &ServeMode{
		Host:       "127.0.0.1",
		Port:       a.Addr().(*net.TCPAddr).Port,
		Capability: &capability.Console{},
		Logger:     util.Discard(),
	}
	if err := mode.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
