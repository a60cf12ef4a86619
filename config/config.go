// Package config defines the runtime configuration for tcpcomm and provides
// helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "tcpcomm/internal/errors"
)

// Config holds every tuneable for a single tcpcomm session.
type Config struct {
	// ── Endpoint ─────────────────────────────────────────────────────
	Listen    bool   `yaml:"listen"`
	Host      string `yaml:"host"`       // remote host, or bind address when listening
	Port      int    `yaml:"port"`       // remote port, or listen port
	LocalHost string `yaml:"local_host"` // -s: local address to dial from
	LocalPort int    `yaml:"local_port"`
	NoDNS     bool   `yaml:"no_dns"`

	// ── Behaviour ────────────────────────────────────────────────────
	Echo    bool          `yaml:"echo"`
	Frame   bool          `yaml:"frame"`
	Timeout time.Duration `yaml:"timeout"` // dial timeout, 0 = none
	Retries int           `yaml:"retries"` // initial dial attempts
	Linger  time.Duration `yaml:"linger"`  // connect mode: wait after stdin EOF

	// ── Receive loop ─────────────────────────────────────────────────
	PollInterval   time.Duration `yaml:"poll_interval"`
	CoalesceWindow time.Duration `yaml:"coalesce_window"`
	MaxPayload     int           `yaml:"max_payload"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose        int    `yaml:"verbose"`
	LogFile        string `yaml:"log_file"`
	LogMaxSizeMB   int    `yaml:"log_max_size_mb"`
	LogMaxBackups  int    `yaml:"log_max_backups"`
	LogMaxAgeDays  int    `yaml:"log_max_age_days"`
	LogCompress    bool   `yaml:"log_compress"`
	LogDailyRotate bool   `yaml:"log_daily_rotate"`
	Stats          bool   `yaml:"stats"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Retries:        DefaultRetries,
		Linger:         DefaultLinger,
		PollInterval:   DefaultPollInterval,
		CoalesceWindow: DefaultCoalesceWindow,
		MaxPayload:     DefaultMaxPayload,
		LogMaxSizeMB:   DefaultLogMaxSizeMB,
		LogMaxBackups:  DefaultLogMaxBackups,
		LogMaxAgeDays:  DefaultLogMaxAgeDays,
		Verbose:        1,
	}
}

// ApplyTunnel parses TunnelSpec into the Tunnel* fields.  An empty spec
// disables tunnelling.
func (c *Config) ApplyTunnel() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error(),
			Hint: "use [user@]host[:port], e.g. admin@bastion:2222"}
	}
	c.TunnelEnabled = true
	c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	return nil
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port in 1..65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.  The
// returned error is a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Listen {
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port", Message: "listen mode requires a port",
				Hint: "tcpcomm -l -p 2015"}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
				Message: "listening through an SSH tunnel is not supported"}
		}
	} else {
		if c.Host == "" {
			return &ncerr.ConfigError{Field: "host", Message: "hostname is required",
				Hint: "tcpcomm <host> <port> (use --help for usage)"}
		}
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port", Message: "destination port is required"}
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port, Message: "must be in 1..65535"}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "source-port", Value: c.LocalPort, Message: "must be in 0..65535"}
	}
	if c.PollInterval <= 0 {
		return &ncerr.ConfigError{Field: "poll-interval", Value: c.PollInterval, Message: "must be positive"}
	}
	if c.CoalesceWindow <= 0 {
		return &ncerr.ConfigError{Field: "coalesce-window", Value: c.CoalesceWindow, Message: "must be positive"}
	}
	if c.CoalesceWindow >= c.PollInterval {
		return &ncerr.ConfigError{Field: "coalesce-window", Value: c.CoalesceWindow,
			Message: fmt.Sprintf("must be shorter than the poll interval (%v)", c.PollInterval)}
	}
	if c.MaxPayload <= 0 {
		return &ncerr.ConfigError{Field: "max-payload", Value: c.MaxPayload, Message: "must be positive"}
	}
	if c.Retries < 1 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries, Message: "at least one attempt is required"}
	}
	if c.Timeout < 0 || c.Linger < 0 {
		return &ncerr.ConfigError{Field: "timeout", Message: "durations must not be negative"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.LogDailyRotate && c.LogFile == "" {
		return &ncerr.ConfigError{Field: "log-daily", Message: "daily rotation needs a log file",
			Hint: "add --log-file <path>"}
	}
	return nil
}
