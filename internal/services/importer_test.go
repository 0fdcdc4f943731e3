package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func stagingConfig() pgload.LoadConfig {
	return pgload.LoadConfig{
		Transport:    pgload.TransportStaging,
		CSVPath:      "institutions.csv",
		Connection:   &pgload.ConnectionConfig{Host: "h", Port: 6543},
		Schema:       "axxia",
		Table:        "cat_institutions_mx",
		StagingTable: "_stg_institutions_csv",
		MissingToken: "nan",
		SampleSize:   5,
	}
}

func restConfig() pgload.LoadConfig {
	return pgload.LoadConfig{
		Transport:    pgload.TransportREST,
		CSVPath:      "institutions.csv",
		BaseURL:      "https://abcd.supabase.co",
		Credential:   "anon",
		Schema:       "axxia",
		Table:        "cat_institutions_mx",
		MissingToken: "nan",
		SampleSize:   5,
	}
}

func newService(l pgload.Loader, src RecordSource, a pgload.Approver, log pgload.Logger) *ImportService {
	return NewImportService(factoryFor(l, nil), openerFor(src, nil), a, log)
}

func TestRun_StagingHappyPath(t *testing.T) {
	loader := &mockLoader{report: &pgload.Report{Table: "t", Count: 1500}}
	src := &sliceSource{rows: rows(1500)}
	approver := &stubApprover{approved: true}
	log := &recordingLogger{}

	summary, err := newService(loader, src, approver, log).Run(context.Background(), stagingConfig())
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 500}, loader.batchSizes)
	assert.Equal(t, []string{"prepare", "submit", "submit", "reconcile", "verify(5)"}, loader.calls)
	assert.Equal(t, []string{"axxia._stg_institutions_csv"}, approver.targets)

	assert.Equal(t, 1500, summary.Read)
	assert.Equal(t, 1500, summary.Loaded)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, int64(1500), summary.Reconciled)
	assert.Equal(t, int64(1500), summary.Report.Count)
	assert.NotEqual(t, uuid.Nil, summary.RunID)

	assert.True(t, loader.closed)
	assert.True(t, src.closed)

	assert.Len(t, log.matching("Loaded 1000 rows..."), 1)
	assert.Len(t, log.matching("Loaded 1500 rows..."), 1)
	assert.Len(t, log.matching("Active policy: always"), 1)
	assert.Len(t, log.matching(summary.RunID.String()), 2)
}

func TestRun_KeepsProvidedRunID(t *testing.T) {
	cfg := stagingConfig()
	cfg.RunID = uuid.New()

	summary, err := newService(&mockLoader{}, &sliceSource{}, &stubApprover{approved: true}, &recordingLogger{}).
		Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.RunID, summary.RunID)
}

func TestRun_EmptySourceEmitsNoBatch(t *testing.T) {
	loader := &mockLoader{}

	summary, err := newService(loader, &sliceSource{}, &stubApprover{approved: true}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	require.NoError(t, err)

	assert.Empty(t, loader.batchSizes)
	assert.Zero(t, summary.Batches)
	assert.Contains(t, loader.calls, "reconcile")
}

func TestRun_StagingAbortsOnBatchError(t *testing.T) {
	loader := &mockLoader{failBatch: map[int]error{2: errBoom}}
	src := &sliceSource{rows: rows(3500)}

	summary, err := newService(loader, src, &stubApprover{approved: true}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	require.Error(t, err)

	var batchErr *pgload.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, 1000, batchErr.Records)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, pgload.ExitBatchFailed, pgload.ExitCodeForError(err))

	assert.Equal(t, []int{1000, 1000}, loader.batchSizes, "no batch after the failed one")
	assert.NotContains(t, loader.calls, "reconcile", "canonical table untouched")
	require.NotNil(t, summary)
	assert.Equal(t, 1000, summary.Loaded)
	assert.Equal(t, 1, summary.FailedBatches)
}

func TestRun_RESTSkipsFailedBatches(t *testing.T) {
	loader := &mockLoader{failBatch: map[int]error{2: errBoom}, report: &pgload.Report{Count: 700}}
	src := &sliceSource{rows: rows(1200)}
	log := &recordingLogger{}
	approver := &stubApprover{}

	summary, err := newService(loader, src, approver, log).Run(context.Background(), restConfig())
	require.NoError(t, err)

	assert.Equal(t, []int{500, 500, 200}, loader.batchSizes)
	assert.Empty(t, approver.targets, "REST transport has nothing to clear")
	assert.Equal(t, 700, summary.Loaded)
	assert.Equal(t, 500, summary.Errored)
	assert.Equal(t, 1, summary.FailedBatches)
	assert.Equal(t, 3, summary.Batches)
	assert.Len(t, log.matching("E Error loading batch 2 (500 records): boom"), 1)
}

func TestRun_SkippedRowsCounted(t *testing.T) {
	loader := &mockLoader{skipPer: 10}

	summary, err := newService(loader, &sliceSource{rows: rows(600)}, &stubApprover{}, &recordingLogger{}).
		Run(context.Background(), restConfig())
	require.NoError(t, err)

	assert.Equal(t, 20, summary.Skipped)
	assert.Equal(t, 580, summary.Loaded)
}

func TestRun_ExplicitErrorPolicyOverridesTransportDefault(t *testing.T) {
	cfg := restConfig()
	cfg.OnBatchError = pgload.BatchErrorAbort
	loader := &mockLoader{failBatch: map[int]error{1: errBoom}}

	_, err := newService(loader, &sliceSource{rows: rows(600)}, &stubApprover{}, &recordingLogger{}).
		Run(context.Background(), cfg)
	assert.ErrorIs(t, err, pgload.ErrBatchFailed)
	assert.Equal(t, []int{500}, loader.batchSizes)
}

func TestRun_ApprovalDenied(t *testing.T) {
	loader := &mockLoader{}

	_, err := newService(loader, &sliceSource{rows: rows(3)}, &stubApprover{approved: false}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	assert.ErrorIs(t, err, pgload.ErrApprovalDenied)
	assert.Empty(t, loader.calls, "staging untouched without approval")
	assert.True(t, loader.closed)
}

func TestRun_ApproverError(t *testing.T) {
	_, err := newService(&mockLoader{}, &sliceSource{}, &stubApprover{err: context.Canceled}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       func() pgload.LoadConfig
		openErr   error
		loaderErr error
		prepErr   error
		phase     pgload.Phase
		exitCode  int
	}{
		{
			name:     "invalid config",
			cfg:      func() pgload.LoadConfig { c := restConfig(); c.Credential = ""; return c },
			phase:    pgload.PhaseConfig,
			exitCode: pgload.ExitConfigError,
		},
		{
			name:     "missing file",
			cfg:      stagingConfig,
			openErr:  pgload.ErrSourceUnreadable,
			phase:    pgload.PhaseSource,
			exitCode: pgload.ExitSourceError,
		},
		{
			name:      "connection",
			cfg:       stagingConfig,
			loaderErr: pgload.ErrConnectionFailed,
			phase:     pgload.PhaseConnect,
			exitCode:  pgload.ExitConnectionError,
		},
		{
			name:     "prepare",
			cfg:      stagingConfig,
			prepErr:  errBoom,
			phase:    pgload.PhasePrepare,
			exitCode: pgload.ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &mockLoader{prepareErr: tt.prepErr}
			svc := NewImportService(
				factoryFor(loader, tt.loaderErr),
				openerFor(&sliceSource{}, tt.openErr),
				&stubApprover{approved: true},
				&recordingLogger{},
			)

			summary, err := svc.Run(context.Background(), tt.cfg())
			assert.Nil(t, summary)

			var setupErr *pgload.SetupError
			require.True(t, errors.As(err, &setupErr))
			assert.Equal(t, tt.phase, setupErr.Phase)
			assert.Equal(t, tt.exitCode, pgload.ExitCodeForError(err))
			assert.NotContains(t, loader.calls, "submit")
		})
	}
}

func TestRun_SourceErrorMidStream(t *testing.T) {
	loader := &mockLoader{}
	src := &sliceSource{rows: rows(1500), failAt: 1200, err: pgload.ErrInvalidFormat}

	summary, err := newService(loader, src, &stubApprover{approved: true}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	assert.ErrorIs(t, err, pgload.ErrInvalidFormat)
	assert.Equal(t, 1200, summary.Read)
	assert.Equal(t, []int{1000}, loader.batchSizes, "partial batch is not flushed")
	assert.NotContains(t, loader.calls, "reconcile")
}

func TestRun_ReconcileError(t *testing.T) {
	loader := &mockLoader{reconcileErr: errBoom}

	summary, err := newService(loader, &sliceSource{rows: rows(5)}, &stubApprover{approved: true}, &recordingLogger{}).
		Run(context.Background(), stagingConfig())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 5, summary.Loaded)
	assert.NotContains(t, loader.calls, "verify(5)")
}

func TestRun_VerificationFailureDoesNotFailRun(t *testing.T) {
	loader := &mockLoader{verifyErr: errBoom}
	log := &recordingLogger{}

	summary, err := newService(loader, &sliceSource{rows: rows(5)}, &stubApprover{}, log).
		Run(context.Background(), restConfig())
	require.NoError(t, err)
	assert.Nil(t, summary.Report)
	assert.Len(t, log.matching("E Verification failed: boom"), 1)
}

func TestRun_SkipVerify(t *testing.T) {
	cfg := restConfig()
	cfg.SkipVerify = true
	loader := &mockLoader{}

	_, err := newService(loader, &sliceSource{rows: rows(5)}, &stubApprover{}, &recordingLogger{}).
		Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotContains(t, loader.calls, "verify(5)")
}

func TestRun_CancelledContextStopsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loader := &mockLoader{}

	_, err := newService(loader, &sliceSource{rows: rows(5)}, &stubApprover{}, &recordingLogger{}).
		Run(ctx, restConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, pgload.ErrInterrupted)
	assert.Empty(t, loader.batchSizes)
}

func TestRun_InterruptDuringBatchLetsItFinish(t *testing.T) {
	for _, cfg := range []pgload.LoadConfig{stagingConfig(), restConfig()} {
		t.Run(string(cfg.Transport), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			loader := &cancellingLoader{mockLoader: &mockLoader{}, cancel: cancel, cancelOn: "submit"}
			cfg.BatchSize = 2

			summary, err := newService(loader, &sliceSource{rows: rows(5)}, &stubApprover{approved: true}, &recordingLogger{}).
				Run(ctx, cfg)

			require.Error(t, err)
			assert.NoError(t, loader.inFlightErr, "the batch in flight must not see the cancellation")
			assert.ErrorIs(t, err, pgload.ErrInterrupted)
			assert.ErrorIs(t, err, context.Canceled)
			assert.NotErrorIs(t, err, pgload.ErrBatchFailed)
			assert.Equal(t, pgload.ExitInterrupted, pgload.ExitCodeForError(err))

			assert.Equal(t, []int{2}, loader.batchSizes)
			require.NotNil(t, summary)
			assert.Equal(t, 2, summary.Loaded)
			assert.Zero(t, summary.Errored)
			assert.NotContains(t, loader.calls, "reconcile")
		})
	}
}

func TestRun_InterruptDuringReconcileLetsItFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loader := &cancellingLoader{mockLoader: &mockLoader{}, cancel: cancel, cancelOn: "reconcile"}
	log := &recordingLogger{}

	summary, err := newService(loader, &sliceSource{rows: rows(3)}, &stubApprover{approved: true}, log).
		Run(ctx, stagingConfig())

	require.NoError(t, err)
	assert.NoError(t, loader.inFlightErr)
	assert.Equal(t, int64(3), summary.Reconciled)
	assert.NotContains(t, loader.calls, "verify(5)")
	assert.NotEmpty(t, log.matching("Verification skipped"))
}

func TestRun_TimeoutStopsBetweenBatches(t *testing.T) {
	cfg := restConfig()
	cfg.Timeout = time.Nanosecond
	loader := &mockLoader{}

	slowOpen := func(string) (RecordSource, error) {
		time.Sleep(10 * time.Millisecond)
		return &sliceSource{rows: rows(5)}, nil
	}

	_, err := NewImportService(factoryFor(loader, nil), slowOpen, &stubApprover{}, &recordingLogger{}).
		Run(context.Background(), cfg)

	assert.ErrorIs(t, err, pgload.ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, loader.batchSizes)
}

func TestVerifyOnly(t *testing.T) {
	loader := &mockLoader{report: &pgload.Report{Count: 42}}
	svc := newService(loader, &sliceSource{}, &stubApprover{}, &recordingLogger{})

	cfg := restConfig()
	cfg.SampleSize = 3
	report, err := svc.Verify(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), report.Count)
	assert.Equal(t, []string{"verify(3)"}, loader.calls)
	assert.True(t, loader.closed)
}

func TestNewImportService_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewImportService(nil, OpenCSV, &stubApprover{}, &recordingLogger{}) })
	assert.Panics(t, func() { NewImportService(factoryFor(nil, nil), nil, &stubApprover{}, &recordingLogger{}) })
	assert.Panics(t, func() { NewImportService(factoryFor(nil, nil), OpenCSV, nil, &recordingLogger{}) })
	assert.Panics(t, func() { NewImportService(factoryFor(nil, nil), OpenCSV, &stubApprover{}, nil) })
}
