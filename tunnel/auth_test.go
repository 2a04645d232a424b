package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	ncerr "mailnet/internal/errors"
)

func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	methods, err := BuildAuthMethods(&Config{KeyPath: keyPath})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestBuildAuthMethods_MissingKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := BuildAuthMethods(&Config{KeyPath: "/nonexistent/key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/key")
}

func TestBuildAuthMethods_AgentUnset(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := BuildAuthMethods(&Config{UseAgent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSH_AUTH_SOCK")
}

func TestBuildAuthMethods_NothingAvailable(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())

	_, err := BuildAuthMethods(&Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ncerr.ErrAuthFailed)
	assert.Contains(t, err.Error(), "--ssh-key")
}

func TestBuildAuthMethods_DefaultKeyFile(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	src, _ := writeTestKey(t)
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), data, 0o600))

	methods, err := BuildAuthMethods(&Config{})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestHostKeyCallback_Insecure(t *testing.T) {
	cb, err := hostKeyCallback(&Config{StrictHostKey: false})
	require.NoError(t, err)
	assert.NotNil(t, cb)
}

func TestHostKeyCallback_StrictMissingFile(t *testing.T) {
	_, err := hostKeyCallback(&Config{
		StrictHostKey: true,
		KnownHosts:    filepath.Join(t.TempDir(), "absent"),
	})
	assert.Error(t, err)
}

func TestHostKeyCallback_Strict(t *testing.T) {
	_, hostKey := newSigner(t)
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{"gw.example.com:22"}, hostKey.PublicKey())
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	cb, err := hostKeyCallback(&Config{StrictHostKey: true, KnownHosts: path})
	require.NoError(t, err)

	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.22"), Port: 22}
	assert.NoError(t, cb("gw.example.com:22", addr, hostKey.PublicKey()))

	_, other := newSigner(t)
	err = cb("gw.example.com:22", addr, other.PublicKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHANGED")

	err = cb("unknown.example.com:22", addr, hostKey.PublicKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not in")
	var keyErr *knownhosts.KeyError
	assert.ErrorAs(t, err, &keyErr)
}

func TestBuildAuthMethods_EncryptedDefaultKeySkipped(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	priv, _ := newSigner(t)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), pem.EncodeToMemory(block), 0o600))

	_, err = BuildAuthMethods(&Config{})
	require.Error(t, err, "an encrypted default key must not trigger a prompt")
	assert.Contains(t, err.Error(), "no SSH authentication methods")
}

func TestBuildAuthMethods_KeyAndPassword(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	keyPath, _ := writeTestKey(t)

	methods, err := BuildAuthMethods(&Config{KeyPath: keyPath, PromptPass: true, User: "u", Host: "gw"})
	require.NoError(t, err)
	assert.Len(t, methods, 2)
}

// ── helpers ──────────────────────────────────────────────────────────

func newSigner(t *testing.T) (ed25519.PrivateKey, ssh.Signer) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return priv, signer
}

// writeTestKey writes a fresh unencrypted OpenSSH private key and
// returns its path and signer.
func writeTestKey(t *testing.T) (string, ssh.Signer) {
	t.Helper()
	priv, signer := newSigner(t)

	block, err := ssh.MarshalPrivateKey(priv, "mailnet-test")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path, signer
}
