package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// isInteractive reports whether both stdin and stderr are terminals, so an
// approval prompt can be shown and answered.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// signalContext is cancelled on the first Ctrl+C or SIGTERM. The import
// service checks it between batches and never passes it to a call in
// flight. Notification stops after the first signal, so a second Ctrl+C
// terminates the process.
func signalContext(parent context.Context, what string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\n[INTERRUPT] Received interrupt signal, stopping %s after the current statement (Ctrl+C again to quit now)\n", what)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
