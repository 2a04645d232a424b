// Package cmd wires up the CLI flags and dispatches to the core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"mailnet/config"
	"mailnet/internal/core"
	ncerr "mailnet/internal/errors"
	"mailnet/internal/metrics"
	"mailnet/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X mailnet/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs a mailnet session.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()

	// ── config file and environment ──────────────────────────────
	path, required := configFile(args)
	if path != "" {
		if err := config.LoadFile(path, cfg, required); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("mailnet", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	fs.VarP((*seconds)(&cfg.Timeout), "timeout", "w", "Connect timeout (seconds or duration)")
	fs.Var((*seconds)(&cfg.ReadTimeout), "read-timeout", "Per-read timeout, 0 disables")
	fs.Var((*seconds)(&cfg.WriteTimeout), "write-timeout", "Per-write timeout, 0 disables")
	fs.StringVarP(&cfg.Source, "source", "s", cfg.Source, "Local source address")
	fs.StringVar(&cfg.DNSServer, "dns-server", cfg.DNSServer, "Resolve through this DNS server")

	// ── TLS ──────────────────────────────────────────────────────
	var implicitTLS, startTLS bool
	fs.BoolVar(&implicitTLS, "tls", false, "Handshake right after connect (smtps, imaps, pop3s)")
	fs.BoolVar(&startTLS, "starttls", false, "Negotiate SMTP STARTTLS, then handshake")
	fs.StringVar(&cfg.TLSBackend, "tls-backend", cfg.TLSBackend, "TLS implementation: std or utls")
	fs.StringVar(&cfg.ServerName, "server-name", cfg.ServerName, "Name to verify the certificate against (default: host)")
	fs.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM file of trusted root certificates")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip certificate verification")
	fs.StringVar(&cfg.ClientHello, "hello", cfg.ClientHello, "ClientHello fingerprint (utls backend)")
	fs.StringVar(&cfg.EHLOName, "ehlo", cfg.EHLOName, "Name sent in EHLO during STARTTLS")
	fs.Var((*seconds)(&cfg.HandshakeTimeout), "handshake-timeout", "Budget for STARTTLS and the TLS handshake")
	fs.BoolVar(&cfg.ShowCert, "show-cert", cfg.ShowCert, "Print the server certificate and exit")

	// ── execution ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Execute, "exec", "e", cfg.Execute, "Execute program after connect")
	fs.StringVarP(&cfg.Command, "command", "c", cfg.Command, "Execute shell command after connect")
	fs.BoolVar(&cfg.CRLF, "crlf", cfg.CRLF, "Send LF from stdin as CRLF")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Connect through SSH jump host [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session statistics as JSON on exit")

	var showVersion, showHelp, dryRun, dumpConfig bool
	fs.String("config", path, "YAML config file")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&dumpConfig, "dump-config", false, "Print the effective configuration as YAML and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = verbose
	}

	if showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "mailnet %s\n", version)
		return nil
	}

	switch {
	case implicitTLS && startTLS:
		return &ncerr.ConfigError{Field: "tls-mode", Message: "--tls and --starttls are mutually exclusive"}
	case implicitTLS:
		cfg.TLSMode = config.TLSImplicit
	case startTLS:
		cfg.TLSMode = config.TLSStartTLS
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── jump host spec ───────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dumpConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	if dryRun {
		fmt.Fprintf(stdout, "configuration OK: %s (tls: %s)\n", cfg.Address(), cfg.TLSMode)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	m := metrics.New()

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	err = mode.Run(ctx)
	if err != nil {
		m.RecordError(err.Error())
	}
	if cfg.Stats {
		fmt.Fprintln(stderr, m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// configFile finds the YAML file to load before the real parse, so that
// flags can still override it.  An explicit --config or MAILNET_CONFIG
// must exist; the default location is optional.
func configFile(args []string) (string, bool) {
	pre := flag.NewFlagSet("mailnet", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	path := pre.String("config", "", "")
	_ = pre.Parse(args) // real errors surface in the second pass

	if *path != "" {
		return *path, true
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return config.DefaultFile(), false
}

func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		// host and port may come from the config file or environment
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port %q: %w", remaining[1], err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: want <host> <port>")
	}
	return nil
}

// seconds is a pflag.Value for timeouts given either as a bare number of
// seconds, like netcat's -w, or in Go duration syntax.
type seconds time.Duration

func (s *seconds) String() string { return time.Duration(*s).String() }
func (s *seconds) Type() string   { return "duration" }

func (s *seconds) Set(v string) error {
	if n, err := strconv.Atoi(v); err == nil {
		*s = seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("want seconds or a duration like 1m30s")
	}
	*s = seconds(d)
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `mailnet - mail server connection tool v%s

Opens a TCP session to an SMTP, IMAP or POP3 server, optionally through
an SSH jump host, encrypts it with TLS or STARTTLS, and relays stdin.

Usage:
  mailnet [options] <host> <port>

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprint(w, `
Examples:
  mailnet mx.example.com smtp                      Plain SMTP
  mailnet --starttls mx.example.com 587            SMTP submission with STARTTLS
  mailnet --tls imap.example.com imaps             Implicit TLS
  mailnet --tls --show-cert smtp.example.com 465   Inspect the certificate
  mailnet -T admin@bastion --starttls mx1 25       Through an SSH jump host
`)
}
