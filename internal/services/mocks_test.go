package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

type sliceSource struct {
	rows   []pgload.RawInstitution
	failAt int
	err    error
	pos    int
	closed bool
}

func (s *sliceSource) Next() (pgload.RawInstitution, error) {
	if s.err != nil && s.pos == s.failAt {
		return pgload.RawInstitution{}, s.err
	}
	if s.pos >= len(s.rows) {
		return pgload.RawInstitution{}, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func rows(n int) []pgload.RawInstitution {
	out := make([]pgload.RawInstitution, n)
	for i := range out {
		out[i] = pgload.RawInstitution{Name: fmt.Sprintf("Inst %d", i), City: "X", State: "Y", Clues: fmt.Sprintf("C%d", i)}
	}
	return out
}

type mockLoader struct {
	calls      []string
	batchSizes []int
	failBatch  map[int]error
	skipPer    int

	prepareErr   error
	reconcileErr error
	verifyErr    error
	report       *pgload.Report
	closed       bool
}

func (m *mockLoader) Prepare(context.Context) error {
	m.calls = append(m.calls, "prepare")
	return m.prepareErr
}

func (m *mockLoader) SubmitBatch(_ context.Context, batch []pgload.RawInstitution) (pgload.BatchResult, error) {
	m.calls = append(m.calls, "submit")
	m.batchSizes = append(m.batchSizes, len(batch))
	res := pgload.BatchResult{Submitted: len(batch), Skipped: m.skipPer}
	if err := m.failBatch[len(m.batchSizes)]; err != nil {
		return res, err
	}
	res.Written = len(batch) - m.skipPer
	return res, nil
}

func (m *mockLoader) Reconcile(context.Context) (int64, error) {
	m.calls = append(m.calls, "reconcile")
	if m.reconcileErr != nil {
		return 0, m.reconcileErr
	}
	var total int64
	for _, n := range m.batchSizes {
		total += int64(n)
	}
	return total, nil
}

func (m *mockLoader) Verify(_ context.Context, n int) (*pgload.Report, error) {
	m.calls = append(m.calls, fmt.Sprintf("verify(%d)", n))
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.report, nil
}

func (m *mockLoader) Close() error {
	m.closed = true
	return nil
}

// cancellingLoader cancels the run while a call is in flight, then waits
// briefly to see whether the cancellation reaches that call.
type cancellingLoader struct {
	*mockLoader
	cancel      context.CancelFunc
	cancelOn    string
	inFlightErr error
}

func (l *cancellingLoader) interrupt(ctx context.Context, call string) {
	if call != l.cancelOn {
		return
	}
	l.cancel()
	select {
	case <-ctx.Done():
		l.inFlightErr = ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
}

func (l *cancellingLoader) SubmitBatch(ctx context.Context, batch []pgload.RawInstitution) (pgload.BatchResult, error) {
	if len(l.batchSizes) == 0 {
		l.interrupt(ctx, "submit")
	}
	return l.mockLoader.SubmitBatch(ctx, batch)
}

func (l *cancellingLoader) Reconcile(ctx context.Context) (int64, error) {
	l.interrupt(ctx, "reconcile")
	return l.mockLoader.Reconcile(ctx)
}

func factoryFor(l pgload.Loader, err error) pgload.LoaderFactory {
	return func(context.Context, *pgload.LoadConfig) (pgload.Loader, error) {
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

func openerFor(src RecordSource, err error) SourceOpener {
	return func(string) (RecordSource, error) {
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

type stubApprover struct {
	approved bool
	err      error
	targets  []string
}

func (a *stubApprover) RequestApproval(_ context.Context, target string) (bool, error) {
	a.targets = append(a.targets, target)
	return a.approved, a.err
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(prefix, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, prefix+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) { l.add("V ", format, args) }
func (l *recordingLogger) Info(format string, args ...interface{})    { l.add("I ", format, args) }
func (l *recordingLogger) Error(format string, args ...interface{})   { l.add("E ", format, args) }

func (l *recordingLogger) matching(substr string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

var errBoom = errors.New("boom")
