// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"tcpcomm/config"
	"tcpcomm/internal/core"
	"tcpcomm/internal/metrics"
	"tcpcomm/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tcpcomm/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected tcpcomm mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()

	// ── config file, then environment ────────────────────────────
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	// ── flags ────────────────────────────────────────────────────
	fs := flag.NewFlagSet("tcpcomm", flag.ContinueOnError)

	fs.String("config", path, "YAML configuration file")
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen mode")
	var port int
	fs.IntVarP(&port, "port", "p", 0, "Listen port (with -l) or local source port")
	fs.StringVarP(&cfg.LocalHost, "source", "s", cfg.LocalHost, "Local source address")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Connect timeout in seconds")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Initial connect attempts")
	fs.DurationVar(&cfg.Linger, "linger", cfg.Linger, "Keep receiving this long after stdin EOF")

	// ── behaviour ────────────────────────────────────────────────
	fs.BoolVar(&cfg.Echo, "echo", cfg.Echo, "Send every received payload back (with -l)")
	fs.BoolVar(&cfg.Frame, "frame", cfg.Frame, "Wrap each sent line as STX 'R' SOH <line> ETX")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Receive poll interval")
	fs.DurationVar(&cfg.CoalesceWindow, "coalesce-window", cfg.CoalesceWindow, "Quiet period that ends a payload")
	fs.IntVar(&cfg.MaxPayload, "max-payload", cfg.MaxPayload, "Largest payload delivered at once (bytes)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var verbose, quiet int
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.CountVarP(&quiet, "quiet", "q", "Decrease verbosity (repeatable)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write the log to this file")
	fs.IntVar(&cfg.LogMaxSizeMB, "log-max-size", cfg.LogMaxSizeMB, "Rotate the log file after this many MB")
	fs.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "Rotated log files to keep")
	fs.IntVar(&cfg.LogMaxAgeDays, "log-max-age", cfg.LogMaxAgeDays, "Days to keep rotated log files")
	fs.BoolVar(&cfg.LogCompress, "log-compress", cfg.LogCompress, "Gzip rotated log files")
	fs.BoolVar(&cfg.LogDailyRotate, "log-daily", cfg.LogDailyRotate, "Also rotate the log file at midnight")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print traffic counters to stderr on exit")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("tcpcomm %s\n", version)
		return nil
	}

	if timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	cfg.Verbose = max(cfg.Verbose+verbose-quiet, 0)

	// -p means the listen port with -l and the source port otherwise.
	if fs.Changed("port") {
		if cfg.Listen {
			cfg.Port = port
		} else {
			cfg.LocalPort = port
		}
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec / validate ───────────────────────────────────
	if err := cfg.ApplyTunnel(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintln(os.Stderr, "configuration OK")
		return nil
	}

	return run(ctx, cfg)
}

// run builds the logger, metrics and mode and runs the mode to
// completion.
func run(ctx context.Context, cfg *config.Config) error {
	logger := util.NewLogger(cfg.Verbose)
	defer logger.Close()

	if cfg.LogFile != "" {
		err := logger.AddFile(util.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
			Daily:      cfg.LogDailyRotate,
		})
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
	}

	m := metrics.New()
	if cfg.Stats {
		defer func() { fmt.Fprintln(os.Stderr, m.JSON()) }()
	}

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds --config before the real parse, so that the file can
// supply the defaults the flags then override.
func configPath(args []string) (string, error) {
	fs := flag.NewFlagSet("tcpcomm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}

	path := fs.String("config", "", "")
	fs.BoolP("help", "h", false, "")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *path == "" {
		return os.Getenv("TCPCOMM_CONFIG"), nil
	}
	return *path, nil
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // tcpcomm -l -p PORT
		case 1:
			cfg.Host = remaining[0]
		case 2:
			cfg.Host = remaining[0]
			port, err := config.ParsePort(remaining[1])
			if err != nil {
				return fmt.Errorf("port: %w", err)
			}
			cfg.Port = port
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	// Connect mode: host port
	switch len(remaining) {
	case 0:
		if cfg.Host == "" {
			return fmt.Errorf("hostname required (use --help for usage)")
		}
		return nil
	case 1:
		cfg.Host = remaining[0]
		return nil
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port %q: %w", remaining[1], err)
		}
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments: expected <host> <port>")
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tcpcomm – TCP communicator v%s

Connects to or serves raw TCP endpoints and exchanges opaque payloads.

Usage:
  tcpcomm [options] <host> <port>             Connect
  tcpcomm -l -p <port> [options]              Listen
  tcpcomm -T user@gateway <host> <port>       Connect through SSH

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  tcpcomm 127.0.0.1 2015                      Connect, send stdin lines
  tcpcomm --frame 127.0.0.1 2015              Send lines as STX 'R' SOH ... ETX
  tcpcomm -l -p 2015 --echo                   Serve and echo every payload
  tcpcomm -l -p 2015 --log-file srv.log -v    Serve with a rolling log
  tcpcomm --config tcpcomm.yaml               Settings from a YAML file
`)
}
