package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MAILNET_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("1m30s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := env("PORT"); v != "" {
		if p, err := ParsePort(v); err == nil {
			cfg.Port = p
		}
	}
	if d, ok := envDuration("TIMEOUT"); ok {
		cfg.Timeout = d
	}
	if d, ok := envDuration("READ_TIMEOUT"); ok {
		cfg.ReadTimeout = d
	}
	if d, ok := envDuration("WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = d
	}
	if v := env("SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := env("DNS_SERVER"); v != "" {
		cfg.DNSServer = v
	}

	// TLS
	if v := env("TLS"); v != "" {
		cfg.TLSMode = TLSMode(strings.ToLower(v))
	}
	if v := env("TLS_BACKEND"); v != "" {
		cfg.TLSBackend = v
	}
	if v := env("SERVER_NAME"); v != "" {
		cfg.ServerName = v
	}
	if v := env("CA_FILE"); v != "" {
		cfg.CAFile = v
	}
	if envBool("INSECURE") {
		cfg.Insecure = true
	}
	if v := env("CLIENT_HELLO"); v != "" {
		cfg.ClientHello = v
	}
	if v := env("EHLO"); v != "" {
		cfg.EHLOName = v
	}
	if d, ok := envDuration("HANDSHAKE_TIMEOUT"); ok {
		cfg.HandshakeTimeout = d
	}

	// SSH jump host
	if v := env("JUMP_HOST"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string { return os.Getenv(EnvPrefix + key) }

func envInt(key string) int {
	v := env(key)
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
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
