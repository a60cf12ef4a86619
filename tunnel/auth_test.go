package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath)

	methods, err := BuildAuthMethods(&SSHConfig{KeyPath: keyPath})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected exactly one auth method, got %d", len(methods))
	}
}

func TestBuildAuthMethods_MissingKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	if _, err := BuildAuthMethods(&SSHConfig{KeyPath: "/nonexistent/key"}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestBuildAuthMethods_AgentWithoutSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	if _, err := BuildAuthMethods(&SSHConfig{UseAgent: true}); err == nil {
		t.Fatal("expected error when the agent socket is unset")
	}
}

func TestHostKeyCallback(t *testing.T) {
	cb, err := hostKeyCallback(&SSHConfig{StrictHostKey: false})
	if err != nil || cb == nil {
		t.Fatalf("insecure callback: cb=%v err=%v", cb != nil, err)
	}

	known := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(known, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cb, err = hostKeyCallback(&SSHConfig{StrictHostKey: true, KnownHosts: known})
	if err != nil || cb == nil {
		t.Fatalf("strict callback: cb=%v err=%v", cb != nil, err)
	}

	if _, err := hostKeyCallback(&SSHConfig{StrictHostKey: true, KnownHosts: "/nonexistent/known_hosts"}); err == nil {
		t.Error("expected error for missing known_hosts")
	}
}

func TestSSHTunnel_DialBeforeConnect(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1"}, nil)
	if tun.IsAlive() {
		t.Error("new tunnel should not be alive")
	}
	if _, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:80"); err == nil {
		t.Error("Dial before Connect should fail")
	}
	if err := tun.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// writeTestKey writes a freshly generated, unencrypted ed25519 key.
func writeTestKey(t *testing.T, path string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "tcpcomm test key")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
}
