package tunnel

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "mailnet/internal/errors"
	"mailnet/internal/transport"
	"mailnet/util"
)

var _ transport.ContextDialer = (*JumpHost)(nil)

// JumpHost forwards TCP dials through an SSH gateway.  The SSH session
// is opened on first use and shared by every later dial.
type JumpHost struct {
	config *Config
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
	alive  bool
	closed bool
}

// NewJumpHost returns a jump host that connects lazily.
func NewJumpHost(cfg *Config, logger *util.Logger) *JumpHost {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NopLogger()
	}
	return &JumpHost{config: cfg, logger: logger}
}

// Connect dials the gateway and completes the SSH handshake.  It does
// nothing when a live session already exists.
func (j *JumpHost) Connect(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.connectLocked(ctx)
	return err
}

func (j *JumpHost) connectLocked(ctx context.Context) (*ssh.Client, error) {
	if j.closed {
		return nil, ncerr.ErrNotConnected
	}
	if j.alive && j.client != nil {
		return j.client, nil
	}

	cfg := j.config
	authMethods, err := BuildAuthMethods(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hkCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         cfg.ConnTimeout,
	}

	addr := cfg.Addr()
	j.logger.Debug("SSH: dialing %s as %s", addr, cfg.User)

	d := net.Dialer{Timeout: cfg.ConnTimeout}
	tcpConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Connection("dial", addr, err)
	}

	// ssh.NewClientConn has no context; bound the handshake by the
	// connection deadline instead.
	if dl, ok := ctx.Deadline(); ok {
		tcpConn.SetDeadline(dl)
	} else {
		tcpConn.SetDeadline(time.Now().Add(cfg.ConnTimeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		// x/crypto/ssh reports exhausted auth methods only as text.
		if strings.Contains(err.Error(), "unable to authenticate") {
			err = fmt.Errorf("%w: %v", ncerr.ErrAuthFailed, err)
		}
		return nil, ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, err)
	}
	tcpConn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	j.client = client
	j.alive = true
	j.logger.Verbose("SSH jump host %s connected", addr)

	go j.monitor(client)
	return client, nil
}

// DialContext opens a connection to address from the gateway.
func (j *JumpHost) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	j.mu.Lock()
	client, err := j.connectLocked(ctx)
	j.mu.Unlock()
	if err != nil {
		return nil, err
	}

	j.logger.Debug("jump host: dialing %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.WrapSSH("forward", j.config.Host, j.config.Port, err)
	}
	return conn, nil
}

// Close shuts down the SSH session.  Later dials fail.
func (j *JumpHost) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	j.alive = false
	if j.client != nil {
		err := j.client.Close()
		j.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the SSH session is up.
func (j *JumpHost) IsAlive() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.alive
}

// monitor blocks until the SSH connection closes and flips the alive
// flag, so the next dial reconnects.
func (j *JumpHost) monitor(client *ssh.Client) {
	err := client.Wait()

	j.mu.Lock()
	if j.client == client {
		j.alive = false
		j.client = nil
	}
	j.mu.Unlock()

	if err != nil {
		j.logger.Debug("SSH jump host closed: %v", err)
	} else {
		j.logger.Debug("SSH jump host closed")
	}
}
