package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultListenHost is the bind address used when listening and no
	// host was given.
	DefaultListenHost = "0.0.0.0"

	// DefaultRetries is the number of initial dial attempts.
	DefaultRetries = 1

	// DefaultLinger is how long connect mode keeps receiving after stdin
	// reaches EOF.
	DefaultLinger = time.Second

	// DefaultPollInterval bounds how long the receive loop waits before
	// it checks for a stop request.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultCoalesceWindow is the quiet period that ends one payload.
	DefaultCoalesceWindow = 5 * time.Millisecond

	// DefaultMaxPayload caps a single coalesced payload.
	DefaultMaxPayload = 1 << 20

	// DefaultConnTimeout is the SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// Rolling log file defaults.
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 28
)
