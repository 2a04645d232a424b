package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	ncerr "mailnet/internal/errors"
	"mailnet/util"
)

// defaultKeys are tried, in order, when no method was configured.
var defaultKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// BuildAuthMethods assembles the SSH authentication methods for the
// jump host: agent first, then key files, then a password prompt.  All
// keys travel in a single publickey method so a server with a low
// MaxAuthTries sees one attempt per key, not one per method.
func BuildAuthMethods(cfg *Config) ([]ssh.AuthMethod, error) {
	var (
		methods []ssh.AuthMethod
		signers []ssh.Signer
	)

	if cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}

	if cfg.KeyPath != "" {
		s, err := loadSigner(cfg.KeyPath, true)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		signers = append(signers, s)
	}

	// Nothing asked for: fall back to the agent and unencrypted default
	// keys, without prompting.
	if !cfg.UseAgent && cfg.KeyPath == "" && !cfg.PromptPass {
		if m, err := agentAuth(); err == nil {
			methods = append(methods, m)
		}
		signers = append(signers, defaultSigners()...)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if cfg.PromptPass {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pass, err := readSecret(fmt.Sprintf("%s@%s's password: ", cfg.User, cfg.Host))
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return string(pass), nil
		}))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no SSH authentication methods available: "+
			"use --ssh-key, --ssh-password or --ssh-agent", ncerr.ErrAuthFailed)
	}
	return methods, nil
}

// loadSigner parses a private key file.  An encrypted key asks for its
// passphrase only when interactive is set; otherwise it is an error.
func loadSigner(path string, interactive bool) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case errors.As(err, &missing) && interactive:
		pass, perr := readSecret(fmt.Sprintf("Enter passphrase for %s: ", path))
		if perr != nil {
			return nil, fmt.Errorf("reading passphrase: %w", perr)
		}
		if signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass); err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	return signer, nil
}

func defaultSigners() []ssh.Signer {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var out []ssh.Signer
	for _, name := range defaultKeys {
		if s, err := loadSigner(filepath.Join(home, ".ssh", name), false); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// readSecret prompts on stderr and reads without echo.  Stdin usually
// carries the mail session, so a non-terminal stdin is refused rather
// than consumed.
func readSecret(prompt string) ([]byte, error) {
	if !util.IsTerminal(os.Stdin) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return secret, err
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// ── host-key verification ────────────────────────────────────────────

// hostKeyCallback checks the jump host against known_hosts in strict
// mode.  Failures keep the *knownhosts.KeyError in the chain.
func hostKeyCallback(cfg *Config) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := cfg.KnownHosts
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	check, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", khFile, err)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) == 0 {
			return fmt.Errorf("%s is not in %s: %w", hostname, khFile, err)
		}
		return fmt.Errorf("host key for %s has CHANGED (%s): %w",
			hostname, ssh.FingerprintSHA256(key), err)
	}, nil
}
