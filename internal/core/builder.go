package core

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/term"

	"tcpcomm/config"
	"tcpcomm/internal/capability"
	"tcpcomm/internal/comm"
	"tcpcomm/internal/metrics"
	"tcpcomm/internal/retry"
	"tcpcomm/internal/transport"
	"tcpcomm/tunnel"
	"tcpcomm/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if cfg.Listen {
		return buildServe(cfg, logger, m)
	}
	return buildConnect(cfg, logger, m)
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	host := cfg.Host
	if host == "" {
		host = config.DefaultListenHost
	}
	if cfg.NoDNS && net.ParseIP(host) == nil {
		return nil, fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
	}

	return &ServeMode{
		Host:       host,
		Port:       cfg.Port,
		Options:    commOptions(cfg, logger, m),
		Capability: &capability.Console{Echo: cfg.Echo},
		Logger:     logger,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if _, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS); err != nil {
		return nil, err
	}

	dialer, err := buildDialer(cfg, logger)
	if err != nil {
		return nil, err
	}

	backoff := retry.DefaultBackoff()
	backoff.MaxAttempts = max(cfg.Retries, 1)

	return &ConnectMode{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Dialer:  dialer,
		Options: commOptions(cfg, logger, m),
		Retry:   backoff,
		Linger:  cfg.Linger,
		Relay: &capability.Relay{
			Frame:  cfg.Frame,
			Prompt: term.IsTerminal(int(os.Stdin.Fd())),
		},
		Logger: logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// commOptions maps the receive-loop settings onto communicator options.
func commOptions(cfg *config.Config, logger *util.Logger, m *metrics.Collector) []comm.Option {
	return []comm.Option{
		comm.WithPollInterval(cfg.PollInterval),
		comm.WithCoalesceWindow(cfg.CoalesceWindow),
		comm.WithMaxPayload(cfg.MaxPayload),
		comm.WithDialTimeout(cfg.Timeout),
		comm.WithLogger(logger),
		comm.WithMetrics(m),
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) (transport.Dialer, error) {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultConnTimeout,
		}, logger), nil
	}

	d := &transport.TCPDialer{Timeout: cfg.Timeout}
	if cfg.LocalHost != "" || cfg.LocalPort != 0 {
		local, err := util.TCPAddr(cfg.LocalHost, cfg.LocalPort)
		if err != nil {
			return nil, fmt.Errorf("source address: %w", err)
		}
		d.LocalAddr = local
	}
	return d, nil
}
