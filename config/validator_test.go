package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "mailnet/internal/errors"
)

func valid() Config {
	return Config{Host: "mx.example.com", Port: 25, TLSMode: TLSNone, TLSBackend: "std"}
}

func TestValidate_OK(t *testing.T) {
	cases := map[string]func(*Config){
		"plain":        func(*Config) {},
		"implicit tls": func(c *Config) { c.Port, c.TLSMode = 465, TLSImplicit },
		"starttls utls": func(c *Config) {
			c.TLSMode, c.TLSBackend, c.ClientHello = TLSStartTLS, "utls", "firefox"
		},
		"show cert":   func(c *Config) { c.TLSMode, c.ShowCert = TLSImplicit, true },
		"source v6":   func(c *Config) { c.Source = "2001:db8::10" },
		"exec":        func(c *Config) { c.Execute = "/usr/bin/cat" },
		"empty modes": func(c *Config) { c.TLSMode, c.TLSBackend = "", "" },
		"jump host": func(c *Config) {
			c.TunnelEnabled, c.TunnelHost = true, "bastion"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

// TestValidate_Errors verifies that Validate names the offending field
// and, where one helps, offers a hint.
func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		wantHint  bool
	}{
		{"no host", func(c *Config) { c.Host = "" }, "host", true},
		{"no port", func(c *Config) { c.Port = 0 }, "port", true},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port", true},
		{"negative timeout", func(c *Config) { c.ReadTimeout = -time.Second }, "read-timeout", false},
		{"bad source", func(c *Config) { c.Source = "mail.example.com" }, "source", false},
		{"bad tls mode", func(c *Config) { c.TLSMode = "ssl" }, "tls-mode", true},
		{"bad backend", func(c *Config) { c.TLSBackend = "openssl" }, "tls-backend", true},
		{"bad hello", func(c *Config) { c.TLSBackend, c.ClientHello = "utls", "lynx" }, "hello", true},
		{"hello without utls", func(c *Config) { c.ClientHello = "chrome" }, "hello", true},
		{"show cert plain", func(c *Config) { c.ShowCert = true }, "show-cert", true},
		{"exec conflict", func(c *Config) { c.Execute, c.Command = "a", "b" }, "exec", false},
		{"show cert with exec", func(c *Config) {
			c.TLSMode, c.ShowCert, c.Command = TLSImplicit, true, "cat"
		}, "show-cert", false},
		{"jump host missing", func(c *Config) { c.TunnelEnabled = true }, "jump-host", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *ncerr.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantField, cerr.Field)
			if tt.wantHint {
				assert.Contains(t, err.Error(), "hint:")
			}
		})
	}
}

func TestValidate_ExecConflictMessage(t *testing.T) {
	cfg := valid()
	cfg.Execute, cfg.Command = "a", "b"
	assert.Contains(t, cfg.Validate().Error(), "-e and -c are mutually exclusive")
}
