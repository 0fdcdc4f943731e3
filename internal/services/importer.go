package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/pgload/internal/batch"
	"github.com/vvka-141/pgload/internal/csvsource"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// RecordSource yields raw rows until io.EOF.
type RecordSource interface {
	Next() (pgload.RawInstitution, error)
	Close() error
}

// SourceOpener opens the CSV file named by a run configuration.
type SourceOpener func(path string) (RecordSource, error)

// OpenCSV is the default SourceOpener.
func OpenCSV(path string) (RecordSource, error) {
	r, err := csvsource.Open(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ImportService runs one load: read, batch, submit, reconcile, verify.
// Thread-Safety: NOT safe for concurrent Run() calls on the same instance.
type ImportService struct {
	newLoader  pgload.LoaderFactory
	openSource SourceOpener
	approver   pgload.Approver
	logger     pgload.Logger
}

// NewImportService creates an ImportService. Nil dependencies are programmer
// errors and panic.
func NewImportService(
	newLoader pgload.LoaderFactory,
	openSource SourceOpener,
	approver pgload.Approver,
	logger pgload.Logger,
) *ImportService {
	if newLoader == nil {
		panic("newLoader cannot be nil")
	}
	if openSource == nil {
		panic("openSource cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ImportService{
		newLoader:  newLoader,
		openSource: openSource,
		approver:   approver,
		logger:     logger,
	}
}

// Run executes the load described by cfg. The returned summary is non-nil
// whenever the run got past setup, including when it fails mid-way.
//
// Cancelling ctx (or reaching cfg.Timeout) stops the run between batches
// with ErrInterrupted. Loader calls run on a context detached from
// cancellation, so a statement or request already sent completes or fails
// on its own.
func (s *ImportService) Run(ctx context.Context, cfg pgload.LoadConfig) (*pgload.LoadSummary, error) {
	start := time.Now()
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	if cfg.ActivePolicy == "" {
		cfg.ActivePolicy = pgload.ActiveAlways
	}

	if err := cfg.Validate(); err != nil {
		return nil, pgload.NewSetupError(pgload.PhaseConfig, err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	s.logger.Info("Run %s: loading %s via %s transport", cfg.RunID, cfg.CSVPath, cfg.Transport)
	s.logger.Info("Active policy: %s (%s)", cfg.ActivePolicy, describeActivePolicy(cfg.ActivePolicy))
	s.logger.Verbose("Batch size %d, on batch error: %s, missing token %q",
		cfg.EffectiveBatchSize(), cfg.EffectiveErrorPolicy(), cfg.MissingToken)

	src, err := s.openSource(cfg.CSVPath)
	if err != nil {
		return nil, pgload.NewSetupError(pgload.PhaseSource, err)
	}
	defer src.Close()

	loader, err := s.newLoader(ctx, &cfg)
	if err != nil {
		return nil, pgload.NewSetupError(pgload.PhaseConnect, err)
	}
	defer func() {
		if cerr := loader.Close(); cerr != nil {
			s.logger.Verbose("Closing loader: %v", cerr)
		}
	}()

	if err := s.prepare(ctx, &cfg, loader); err != nil {
		return nil, err
	}

	summary := &pgload.LoadSummary{RunID: cfg.RunID, Transport: cfg.Transport}
	defer func() { summary.Duration = time.Since(start) }()

	if err := s.stream(ctx, &cfg, src, loader, summary); err != nil {
		s.logSummary(summary)
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		s.logSummary(summary)
		return summary, interrupted(summary.Read, err)
	}

	if cfg.Transport == pgload.TransportStaging {
		s.logger.Info("Upserting to main table...")
	}
	n, err := loader.Reconcile(context.WithoutCancel(ctx))
	if err != nil {
		s.logSummary(summary)
		return summary, err
	}
	summary.Reconciled = n
	s.logSummary(summary)

	switch {
	case cfg.SkipVerify:
	case ctx.Err() != nil:
		s.logger.Info("Verification skipped: %v", ctx.Err())
	default:
		report, err := loader.Verify(context.WithoutCancel(ctx), cfg.SampleSize)
		if err != nil {
			s.logger.Error("Verification failed: %v", err)
		} else {
			summary.Report = report
		}
	}

	return summary, nil
}

// Verify builds the loader for cfg and reads the canonical report only.
func (s *ImportService) Verify(ctx context.Context, cfg pgload.LoadConfig) (*pgload.Report, error) {
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}

	loader, err := s.newLoader(ctx, &cfg)
	if err != nil {
		return nil, pgload.NewSetupError(pgload.PhaseConnect, err)
	}
	defer loader.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("verification interrupted: %w: %w", pgload.ErrInterrupted, err)
	}
	return loader.Verify(context.WithoutCancel(ctx), cfg.SampleSize)
}

func (s *ImportService) prepare(ctx context.Context, cfg *pgload.LoadConfig, loader pgload.Loader) error {
	if cfg.Transport == pgload.TransportStaging {
		target := cfg.StagingTable
		if cfg.Schema != "" {
			target = cfg.Schema + "." + cfg.StagingTable
		}

		approved, err := s.approver.RequestApproval(ctx, target)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("clearing %s was not approved: %w", target, pgload.ErrApprovalDenied)
		}
		s.logger.Info("Clearing staging table...")
	}

	if err := ctx.Err(); err != nil {
		return interrupted(0, err)
	}
	if err := loader.Prepare(context.WithoutCancel(ctx)); err != nil {
		return pgload.NewSetupError(pgload.PhasePrepare, err)
	}
	return nil
}

func (s *ImportService) stream(ctx context.Context, cfg *pgload.LoadConfig, src RecordSource, loader pgload.Loader, summary *pgload.LoadSummary) error {
	policy := cfg.EffectiveErrorPolicy()

	b := batch.New(cfg.EffectiveBatchSize(), func(ctx context.Context, rows []pgload.RawInstitution) error {
		summary.Batches++
		res, err := loader.SubmitBatch(context.WithoutCancel(ctx), rows)
		summary.Skipped += res.Skipped
		if err != nil {
			summary.FailedBatches++
			summary.Errored += len(rows) - res.Skipped
			batchErr := &pgload.BatchError{Batch: summary.Batches, Records: len(rows), Err: err}
			if policy == pgload.BatchErrorAbort {
				return batchErr
			}
			s.logger.Error("Error loading %v", batchErr)
			return nil
		}
		summary.Loaded += res.Written
		s.logger.Info("Loaded %d rows...", summary.Loaded)
		return nil
	})

	for {
		if err := ctx.Err(); err != nil {
			return interrupted(summary.Read, err)
		}

		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		summary.Read++

		if err := b.Add(ctx, raw); err != nil {
			return err
		}
	}

	return b.Flush(ctx)
}

func interrupted(rows int, cause error) error {
	return fmt.Errorf("load interrupted after %d rows: %w: %w", rows, pgload.ErrInterrupted, cause)
}

func (s *ImportService) logSummary(summary *pgload.LoadSummary) {
	s.logger.Info("Run %s: read %d, loaded %d, skipped %d, errored %d (%d of %d batches failed)",
		summary.RunID, summary.Read, summary.Loaded, summary.Skipped, summary.Errored,
		summary.FailedBatches, summary.Batches)
}

func describeActivePolicy(p pgload.ActivePolicy) string {
	if p == pgload.ActiveFromSource {
		return "active is true only for t, true, 1, yes, y"
	}
	return "every record is stored as active"
}
