// Package config defines the runtime configuration for mailnet and the
// parsers for the jump-host and port arguments.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "mailnet/internal/errors"
	"mailnet/util"
)

// TLSMode selects when the connection is encrypted.
type TLSMode string

const (
	TLSNone     TLSMode = "none"
	TLSImplicit TLSMode = "implicit" // handshake right after connect (port 465)
	TLSStartTLS TLSMode = "starttls" // SMTP STARTTLS, then handshake
)

// Config holds every tuneable for a single mailnet session.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	Source       string        `yaml:"source,omitempty"` // local address to bind
	DNSServer    string        `yaml:"dns_server,omitempty"`

	// ── TLS ──────────────────────────────────────────────────────────
	TLSMode          TLSMode       `yaml:"tls,omitempty"`
	TLSBackend       string        `yaml:"tls_backend,omitempty"`
	ServerName       string        `yaml:"server_name,omitempty"` // defaults to Host
	CAFile           string        `yaml:"ca_file,omitempty"`
	Insecure         bool          `yaml:"insecure,omitempty"`
	ClientHello      string        `yaml:"client_hello,omitempty"`
	EHLOName         string        `yaml:"ehlo,omitempty"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout,omitempty"`
	ShowCert         bool          `yaml:"show_cert,omitempty"`

	// ── SSH jump host ────────────────────────────────────────────────
	TunnelSpec     string `yaml:"jump_host,omitempty"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key,omitempty"`
	SSHPassword    bool   `yaml:"ssh_password,omitempty"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent,omitempty"`
	StrictHostKey  bool   `yaml:"strict_hostkey,omitempty"`
	KnownHostsPath string `yaml:"known_hosts,omitempty"`

	// ── Execution ────────────────────────────────────────────────────
	Execute string `yaml:"exec,omitempty"`    // -e: program path
	Command string `yaml:"command,omitempty"` // -c: shell command
	CRLF    bool   `yaml:"crlf,omitempty"`    // translate LF to CRLF on stdin

	// ── Output ───────────────────────────────────────────────────────
	Verbose int  `yaml:"verbose,omitempty"`
	Stats   bool `yaml:"stats,omitempty"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		TLSMode:          TLSNone,
		TLSBackend:       DefaultTLSBackend,
		EHLOName:         DefaultEHLOName,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// Address returns host:port of the mail server.
func (c *Config) Address() string { return util.FormatAddr(c.Host, c.Port) }

// TLSDomain is the name the server certificate is checked against.
func (c *Config) TLSDomain() string {
	if c.ServerName != "" {
		return c.ServerName
	}
	return c.Host
}

// ── Port helpers ─────────────────────────────────────────────────────

// mailPorts maps the service names accepted in place of a port number.
var mailPorts = map[string]int{
	"smtp":        25,
	"submission":  587,
	"smtps":       465,
	"submissions": 465,
	"pop3":        110,
	"pop3s":       995,
	"imap":        143,
	"imaps":       993,
}

// ParsePort accepts "587" or a mail service name such as "submission".
func ParsePort(spec string) (int, error) {
	if p, ok := mailPorts[strings.ToLower(spec)]; ok {
		return p, nil
	}
	port, err := strconv.Atoi(spec)
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
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid jump host %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid jump host port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

var (
	tlsBackends  = []string{"std", "crypto/tls", "utls"}
	clientHellos = []string{"chrome", "firefox", "edge", "safari", "ios", "randomized", "golang"}
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field: "host", Message: "hostname is required",
			Hint: "mailnet [options] <host> <port>",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field: "port", Value: c.Port, Message: "destination port is required (1-65535)",
			Hint: "use 25, 587 (submission) or 465 (smtps)",
		}
	}

	for field, d := range map[string]time.Duration{
		"timeout":           c.Timeout,
		"read-timeout":      c.ReadTimeout,
		"write-timeout":     c.WriteTimeout,
		"handshake-timeout": c.HandshakeTimeout,
	} {
		if d < 0 {
			return &ncerr.ConfigError{Field: field, Value: d, Message: "must not be negative"}
		}
	}

	if c.Source != "" {
		if _, err := util.ParseLocalAddr(c.Source); err != nil {
			return &ncerr.ConfigError{Field: "source", Value: c.Source, Message: err.Error()}
		}
	}

	switch c.TLSMode {
	case "", TLSNone, TLSImplicit, TLSStartTLS:
	default:
		return &ncerr.ConfigError{
			Field: "tls-mode", Value: c.TLSMode, Message: "unknown TLS mode",
			Hint: "use none, implicit (--tls) or starttls (--starttls)",
		}
	}
	if c.TLSBackend != "" && !oneOf(c.TLSBackend, tlsBackends) {
		return &ncerr.ConfigError{
			Field: "tls-backend", Value: c.TLSBackend, Message: "unknown TLS backend",
			Hint: "use std or utls",
		}
	}
	if c.ClientHello != "" {
		if !oneOf(c.ClientHello, clientHellos) {
			return &ncerr.ConfigError{
				Field: "hello", Value: c.ClientHello, Message: "unknown ClientHello fingerprint",
				Hint: "use one of " + strings.Join(clientHellos, ", "),
			}
		}
		if !strings.EqualFold(c.TLSBackend, "utls") {
			return &ncerr.ConfigError{
				Field: "hello", Value: c.ClientHello, Message: "fingerprints need the utls backend",
				Hint: "add --tls-backend utls",
			}
		}
	}
	if c.ShowCert && !c.encrypted() {
		return &ncerr.ConfigError{
			Field: "show-cert", Message: "there is no certificate on a plain connection",
			Hint: "add --tls or --starttls",
		}
	}

	if c.Execute != "" && c.Command != "" {
		return &ncerr.ConfigError{Field: "exec", Message: "-e and -c are mutually exclusive"}
	}
	if c.ShowCert && (c.Execute != "" || c.Command != "") {
		return &ncerr.ConfigError{Field: "show-cert", Message: "--show-cert and -e/-c are mutually exclusive"}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "jump-host", Message: "jump host is required"}
	}

	return nil
}

func (c *Config) encrypted() bool {
	return c.TLSMode == TLSImplicit || c.TLSMode == TLSStartTLS
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
