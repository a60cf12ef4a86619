package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ncerr "tcpcomm/internal/errors"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	err := Execute(context.Background(), []string{"--version"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExecute_DryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"listen", []string{"-l", "-p", "8080", "--dry-run"}},
		{"listen positional", []string{"-l", "127.0.0.1", "8080", "--dry-run"}},
		{"connect", []string{"127.0.0.1", "2015", "--dry-run"}},
		{"connect with source port", []string{"-p", "40000", "127.0.0.1", "2015", "--dry-run"}},
		{"connect framed", []string{"--frame", "-w", "5", "--retries", "3", "localhost", "2015", "--dry-run"}},
		{"tunnel", []string{"-T", "alice@gateway:2222", "db.internal", "5432", "--dry-run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Execute(context.Background(), tt.args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"listen without port", []string{"-l", "--dry-run"}, "port"},
		{"connect without port", []string{"localhost", "--dry-run"}, "port"},
		{"listen through tunnel", []string{"-l", "-p", "8080", "-T", "gw", "--dry-run"}, "tunnel"},
		{"window not below poll", []string{"--poll-interval", "10ms", "--coalesce-window", "10ms", "localhost", "80", "--dry-run"}, "coalesce-window"},
		{"daily rotation without file", []string{"--log-daily", "localhost", "80", "--dry-run"}, "log-daily"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), tt.args)
			var ce *ncerr.ConfigError
			if !ncerr.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestExecute_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--nonexistent-flag"}, "unknown flag"},
		{"no host", []string{"--frame"}, "hostname required"},
		{"bad port", []string{"localhost", "http", "--dry-run"}, "port"},
		{"too many", []string{"a", "1", "b", "--dry-run"}, "too many arguments"},
		{"too many listen", []string{"-l", "a", "1", "b", "--dry-run"}, "too many arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcpcomm.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_ConfigFile(t *testing.T) {
	t.Run("file alone", func(t *testing.T) {
		path := writeConfig(t, "listen: true\nport: 2015\n")
		if err := Execute(context.Background(), []string{"--config", path, "--dry-run"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("flags override file", func(t *testing.T) {
		// The file's window is invalid against the default poll interval;
		// the flag brings it back in range.
		path := writeConfig(t, "listen: true\nport: 2015\ncoalesce_window: 1s\n")
		err := Execute(context.Background(), []string{"--config", path, "--dry-run"})
		if err == nil {
			t.Fatal("expected the file's coalesce window to be rejected")
		}
		err = Execute(context.Background(), []string{"--config", path, "--coalesce-window", "5ms", "--dry-run"})
		if err != nil {
			t.Fatalf("flag did not override file: %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "listen: true\nlisten_port: 2015\n")
		if err := Execute(context.Background(), []string{"--config", path, "--dry-run"}); err == nil {
			t.Fatal("expected error for unknown key")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := Execute(context.Background(), []string{"--config", missing, "--dry-run"}); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestExecute_Environment(t *testing.T) {
	t.Setenv("TCPCOMM_PORT", "2015")
	if err := Execute(context.Background(), []string{"-l", "--dry-run"}); err != nil {
		t.Fatalf("TCPCOMM_PORT not applied: %v", err)
	}

	// The environment wins over the file.
	path := writeConfig(t, "listen: true\nport: 2015\nretries: 3\n")
	t.Setenv("TCPCOMM_CONFIG", path)
	t.Setenv("TCPCOMM_COALESCE_WINDOW", "1s")
	err := Execute(context.Background(), []string{"--dry-run"})
	var ce *ncerr.ConfigError
	if !ncerr.As(err, &ce) || ce.Field != "coalesce-window" {
		t.Fatalf("err = %v, want coalesce-window ConfigError", err)
	}
}
