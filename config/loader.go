package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. YAML config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TCPCOMM_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("250ms") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if envBool("TCPCOMM_LISTEN") {
		cfg.Listen = true
	}
	if v := os.Getenv("TCPCOMM_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("TCPCOMM_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("TCPCOMM_LOCAL_HOST"); v != "" {
		cfg.LocalHost = v
	}
	if v := envInt("TCPCOMM_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("TCPCOMM_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("TCPCOMM_ECHO") {
		cfg.Echo = true
	}
	if envBool("TCPCOMM_FRAME") {
		cfg.Frame = true
	}
	if v, ok := envDuration("TCPCOMM_TIMEOUT"); ok {
		cfg.Timeout = v
	}
	if v := envInt("TCPCOMM_RETRIES"); v > 0 {
		cfg.Retries = v
	}
	if v, ok := envDuration("TCPCOMM_LINGER"); ok {
		cfg.Linger = v
	}

	// Receive loop
	if v, ok := envDuration("TCPCOMM_POLL_INTERVAL"); ok {
		cfg.PollInterval = v
	}
	if v, ok := envDuration("TCPCOMM_COALESCE_WINDOW"); ok {
		cfg.CoalesceWindow = v
	}
	if v := envInt("TCPCOMM_MAX_PAYLOAD"); v > 0 {
		cfg.MaxPayload = v
	}

	// SSH tunnel
	if v := os.Getenv("TCPCOMM_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("TCPCOMM_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("TCPCOMM_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("TCPCOMM_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("TCPCOMM_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("TCPCOMM_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("TCPCOMM_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("TCPCOMM_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if envBool("TCPCOMM_LOG_DAILY") {
		cfg.LogDailyRotate = true
	}
	if envBool("TCPCOMM_STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return secondsDuration(n), true
	}
	return 0, false
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
