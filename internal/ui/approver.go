package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// ForcedApprover shows a countdown and then approves. Used with --force.
type ForcedApprover struct {
	output    io.Writer
	countdown time.Duration
	sleepFn   func(time.Duration)
}

// NewForcedApprover creates a ForcedApprover writing to stderr.
func NewForcedApprover() *ForcedApprover {
	return &ForcedApprover{
		output:    os.Stderr,
		countdown: pgload.DefaultForceApprovalCountdown,
		sleepFn:   time.Sleep,
	}
}

// RequestApproval counts down one second at a time, then approves.
func (a *ForcedApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	fmt.Fprintln(a.output, warningStyle.Render(fmt.Sprintf("All rows in %s will be deleted before loading.", target)))

	for i := int(a.countdown.Seconds()); i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\rClearing in: %d seconds... (Press Ctrl+C to cancel)", i)
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\rProceeding: clearing %s%s\n", target, strings.Repeat(" ", 20))
	return true, nil
}

// InteractiveApprover asks the operator to type the staging table name.
type InteractiveApprover struct {
	input  io.Reader
	output io.Writer
}

// NewInteractiveApprover creates an InteractiveApprover on stdin and stderr.
func NewInteractiveApprover() *InteractiveApprover {
	return &InteractiveApprover{input: os.Stdin, output: os.Stderr}
}

// RequestApproval approves only when the typed line equals target.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	fmt.Fprintln(a.output, warningStyle.Render(fmt.Sprintf("WARNING: all rows in %s will be deleted before loading.", target)))
	fmt.Fprintf(a.output, "To confirm, type the table name '%s' and press Enter: ", target)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		line, err := bufio.NewReader(a.input).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == target {
			fmt.Fprintln(a.output, "Confirmed.")
			return true, nil
		}
		fmt.Fprintf(a.output, "Input '%s' does not match '%s'. Load cancelled.\n", input, target)
		return false, nil
	}
}

// NonInteractiveApprover refuses: without a terminal the operator must pass --force.
type NonInteractiveApprover struct{}

// RequestApproval always returns an error wrapping pgload.ErrApprovalDenied.
func (NonInteractiveApprover) RequestApproval(_ context.Context, target string) (bool, error) {
	return false, fmt.Errorf("refusing to clear %s without a terminal; rerun with --force: %w", target, pgload.ErrApprovalDenied)
}

// SelectApprover picks the approver for the given mode.
func SelectApprover(force, interactive bool) pgload.Approver {
	switch {
	case force:
		return NewForcedApprover()
	case interactive:
		return NewInteractiveApprover()
	default:
		return NonInteractiveApprover{}
	}
}

var (
	_ pgload.Approver = (*ForcedApprover)(nil)
	_ pgload.Approver = (*InteractiveApprover)(nil)
	_ pgload.Approver = NonInteractiveApprover{}
)
