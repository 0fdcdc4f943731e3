package pgload

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	summary, err := importer.Run(ctx, cfg)
//	if errors.Is(err, pgload.ErrBatchFailed) {
//	    // staging load aborted mid-way; canonical table untouched
//	}
var (
	// ErrInvalidConfig indicates missing credentials or invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the database connection or REST client
	// could not be established.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSourceUnreadable indicates the CSV file is missing or cannot be read.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrInvalidFormat indicates the CSV header or a row does not match the
	// expected shape.
	ErrInvalidFormat = errors.New("invalid source format")

	// ErrBatchFailed indicates a batch write was rejected by the target.
	ErrBatchFailed = errors.New("batch write failed")

	// ErrApprovalDenied indicates the operator declined a destructive step.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrInterrupted indicates the run stopped between batches after a signal
	// or the run timeout. The statement or request in flight was completed.
	ErrInterrupted = errors.New("interrupted")

	// ErrUsage indicates invalid command-line arguments or flags.
	ErrUsage = errors.New("usage error")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = fmt.Errorf("unsupported authentication method: %w", ErrInvalidConfig)
)

// Phase names the setup step a SetupError happened in.
type Phase string

const (
	PhaseConfig  Phase = "config"
	PhaseConnect Phase = "connect"
	PhaseSource  Phase = "source"
	PhasePrepare Phase = "prepare"
)

// SetupError is raised before any record is written. It is never recovered:
// the run stops and the process exits non-zero.
type SetupError struct {
	Phase Phase
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// NewSetupError wraps err with the phase it happened in.
func NewSetupError(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	return &SetupError{Phase: phase, Err: err}
}

// BatchError describes one failed batch write. Under the skip policy it is
// logged and counted; under the abort policy it ends the run.
type BatchError struct {
	// Batch is the 1-based batch sequence number.
	Batch int
	// Records is the number of records the batch carried.
	Records int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d records): %v", e.Batch, e.Records, e.Err)
}

// Unwrap exposes both the cause and ErrBatchFailed to errors.Is.
func (e *BatchError) Unwrap() []error {
	return []error{ErrBatchFailed, e.Err}
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrBatchFailed):
		return ExitBatchFailed
	case errors.Is(err, ErrSourceUnreadable), errors.Is(err, ErrInvalidFormat):
		return ExitSourceError
	}

	errStr := err.Error()
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
