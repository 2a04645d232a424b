package capability

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"mailnet/internal/session"
)

// Exec wires the stream to a child process's stdio, so a script can
// drive the SMTP dialogue.  Either Program (-e) or Command (-c) must be
// set.
type Exec struct {
	Program string // -e: execute a program directly
	Command string // -c: execute via the system shell
}

// waitDelay bounds how long Handle waits for the stream-to-stdin copy
// after the child exits; the server may never send another byte.
const waitDelay = time.Second

// Handle starts the child process with its stdin/stdout/stderr
// connected to the session's stream.
func (e *Exec) Handle(ctx context.Context, sess *session.Session) error {
	var cmd *exec.Cmd

	switch {
	case e.Command != "":
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
		} else {
			cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
		}
	case e.Program != "":
		cmd = exec.CommandContext(ctx, e.Program)
	default:
		return fmt.Errorf("no command specified for exec mode")
	}

	cmd.Stdin = sess.Stream
	cmd.Stdout = sess.Stream
	cmd.Stderr = sess.Stream
	cmd.WaitDelay = waitDelay

	sess.Logger.Debug("exec: %s", cmd.String())

	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}
	return nil
}
