package netstream

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendStd, false},
		{"std", BackendStd, false},
		{"crypto/tls", BackendStd, false},
		{"UTLS", BackendUTLS, false},
		{"openssl", BackendNone, true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBackend_String(t *testing.T) {
	assert.Equal(t, "std", BackendStd.String())
	assert.Equal(t, "utls", BackendUTLS.String())
	assert.Equal(t, "none", BackendNone.String())
	assert.False(t, BackendNone.Enabled())
}

func TestServerName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"mx.example.com", "mx.example.com", false},
		{"MX.Example.COM", "mx.example.com", false},
		{"bücher.example", "xn--bcher-kva.example", false},
		{"192.0.2.25", "192.0.2.25", false},
		{"2001:db8::25", "2001:db8::25", false},
		{"", "", true},
		{"bad..example.com", "", true},
		{"exa mple.com", "", true},
		{"under_score.example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := serverName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTLSOptions_MinVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS12), TLSOptions{}.minVersion())
	assert.Equal(t, uint16(tls.VersionTLS13), TLSOptions{MinVersion: tls.VersionTLS13}.minVersion())
}

func TestNewTLSParameters_NoBackend(t *testing.T) {
	_, err := NewTLSParameters("mx.example.com", TLSOptions{Backend: BackendNone})
	assert.Error(t, err)
}

func TestTLSParameters_Accessors(t *testing.T) {
	var nilParams *TLSParameters
	assert.Equal(t, BackendNone, nilParams.Backend())

	p := NewTLSParametersWith("mx.example.com", &fakeConnector{})
	assert.Equal(t, "mx.example.com", p.Domain())
	assert.Equal(t, BackendStd, p.Backend())
}
