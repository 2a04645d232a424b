package core

import (
	"crypto/x509"
	"fmt"
	"os"
	"os/user"

	"mailnet/config"
	"mailnet/internal/capability"
	ncerr "mailnet/internal/errors"
	"mailnet/internal/metrics"
	"mailnet/internal/resolve"
	"mailnet/netstream"
	"mailnet/tunnel"
	"mailnet/util"
)

// Build constructs the connect mode from a validated configuration.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if logger == nil {
		logger = util.NopLogger()
	}

	local, err := util.ParseLocalAddr(cfg.Source)
	if err != nil {
		return nil, &ncerr.ConfigError{Field: "source", Value: cfg.Source, Message: err.Error()}
	}

	params, err := buildTLS(cfg)
	if err != nil {
		return nil, err
	}

	mode := &ConnectMode{
		Server: cfg.Address(),
		Connect: netstream.ConnectOptions{
			Timeout:   cfg.Timeout,
			LocalAddr: local,
			Resolver:  buildResolver(cfg),
			Logger:    logger,
			Metrics:   m,
		},
		TLSMode:          cfg.TLSMode,
		TLS:              params,
		EHLOName:         cfg.EHLOName,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		Capability:       buildCapability(cfg),
		Logger:           logger,
	}

	if cfg.TunnelEnabled {
		jh := tunnel.NewJumpHost(&tunnel.Config{
			User:          tunnelUser(cfg.TunnelUser),
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultConnTimeout,
		}, logger)
		mode.JumpHost = jh
		mode.Connect.Forward = jh
	}
	return mode, nil
}

// ── component builders ───────────────────────────────────────────────

// buildResolver returns nil (platform resolver) unless a DNS server was
// given.
func buildResolver(cfg *config.Config) resolve.Resolver {
	if cfg.DNSServer == "" {
		return nil
	}
	return &resolve.DNS{Server: cfg.DNSServer}
}

// buildTLS returns nil for plain sessions.
func buildTLS(cfg *config.Config) (*netstream.TLSParameters, error) {
	if cfg.TLSMode != config.TLSImplicit && cfg.TLSMode != config.TLSStartTLS {
		return nil, nil
	}

	backend, err := netstream.ParseBackend(cfg.TLSBackend)
	if err != nil {
		return nil, &ncerr.ConfigError{Field: "tls-backend", Value: cfg.TLSBackend, Message: err.Error()}
	}
	if !backend.Enabled() {
		return nil, &ncerr.ConfigError{
			Field: "tls-backend", Value: backend, Message: "not compiled into this build",
			Hint: "rebuild without the mailnet_no_" + backend.String() + " tag or pick another backend",
		}
	}

	opts := netstream.TLSOptions{
		Backend:            backend,
		InsecureSkipVerify: cfg.Insecure,
		ClientHello:        cfg.ClientHello,
	}
	if cfg.CAFile != "" {
		pool, err := loadCAFile(cfg.CAFile)
		if err != nil {
			return nil, &ncerr.ConfigError{Field: "ca-file", Value: cfg.CAFile, Message: err.Error()}
		}
		opts.RootCAs = pool
	}
	return netstream.NewTLSParameters(cfg.TLSDomain(), opts)
}

func loadCAFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no PEM certificates found")
	}
	return pool, nil
}

// buildCapability selects the per-connection behaviour.
func buildCapability(cfg *config.Config) capability.Capability {
	switch {
	case cfg.ShowCert:
		return capability.ShowCert{}
	case cfg.Execute != "" || cfg.Command != "":
		return &capability.Exec{
			Program: cfg.Execute,
			Command: cfg.Command,
		}
	default:
		return &capability.Relay{CRLF: cfg.CRLF || util.IsTerminal(os.Stdin)}
	}
}

// tunnelUser falls back to the local account name.
func tunnelUser(u string) string {
	if u != "" {
		return u
	}
	if cur, err := user.Current(); err == nil {
		return cur.Username
	}
	return os.Getenv("USER")
}
