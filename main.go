// mailnet opens plain, TLS or STARTTLS sessions to mail servers,
// optionally through an SSH jump host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mailnet/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mailnet: %v\n", err)
		os.Exit(1)
	}
}
