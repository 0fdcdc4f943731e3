package staging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/internal/record"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Config names the target relations and the cleaning rules applied by Reconcile.
type Config struct {
	Schema       string
	Table        string
	StagingTable string
	ActivePolicy pgload.ActivePolicy
	MissingToken string
}

// ConfigFrom extracts the staging settings from a run configuration.
func ConfigFrom(cfg *pgload.LoadConfig) Config {
	return Config{
		Schema:       cfg.Schema,
		Table:        cfg.Table,
		StagingTable: cfg.StagingTable,
		ActivePolicy: cfg.ActivePolicy,
		MissingToken: cfg.MissingToken,
	}
}

// Loader implements pgload.Loader over a staging table.
type Loader struct {
	db        Querier
	cfg       Config
	staging   string
	canonical string

	pool    *pgxpool.Pool
	closers []io.Closer
}

var _ pgload.Loader = (*Loader)(nil)

// New creates a Loader over an existing Querier. The caller owns q.
func New(q Querier, cfg Config) *Loader {
	return &Loader{
		db:        q,
		cfg:       cfg,
		staging:   qualified(cfg.Schema, cfg.StagingTable),
		canonical: qualified(cfg.Schema, cfg.Table),
	}
}

// Open connects through connector and returns a Loader that owns the pool.
// If connector implements io.Closer it is closed after the pool.
func Open(ctx context.Context, connector pgload.Connector, cfg Config) (*Loader, error) {
	pool, err := connector.Connect(ctx)
	if err != nil {
		if c, ok := connector.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}

	l := New(pool, cfg)
	l.pool = pool
	if c, ok := connector.(io.Closer); ok {
		l.closers = append(l.closers, c)
	}
	return l, nil
}

// StagingTable returns the quoted staging relation.
func (l *Loader) StagingTable() string { return l.staging }

// CanonicalTable returns the quoted canonical relation.
func (l *Loader) CanonicalTable() string { return l.canonical }

// Prepare clears the staging table.
func (l *Loader) Prepare(ctx context.Context) error {
	return l.ClearStaging(ctx)
}

// ClearStaging removes every row from the staging table.
func (l *Loader) ClearStaging(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, "TRUNCATE TABLE "+l.staging); err != nil {
		return fmt.Errorf("failed to clear %s: %w", l.staging, err)
	}
	return nil
}

// SubmitBatch inserts the raw rows unvalidated. Nothing is skipped here:
// invalid rows are dropped by Reconcile.
func (l *Loader) SubmitBatch(ctx context.Context, batch []pgload.RawInstitution) (pgload.BatchResult, error) {
	n, err := l.InsertBatch(ctx, batch)
	if err != nil {
		return pgload.BatchResult{Submitted: len(batch)}, err
	}
	return pgload.BatchResult{Submitted: len(batch), Written: int(n)}, nil
}

// InsertBatch writes raws into staging with one multi-row INSERT.
func (l *Loader) InsertBatch(ctx context.Context, raws []pgload.RawInstitution) (int64, error) {
	if len(raws) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(raws)*len(pgload.Columns))
	for _, r := range raws {
		args = append(args, r.Values()...)
	}

	tag, err := l.db.Exec(ctx, insertSQL(l.staging, len(raws)), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %d rows into %s: %w", len(raws), l.staging, err)
	}
	return tag.RowsAffected(), nil
}

// Reconcile upserts the cleaned staging rows into the canonical table and
// returns the number of rows inserted or updated.
func (l *Loader) Reconcile(ctx context.Context) (int64, error) {
	sql := reconcileSQL(l.staging, l.canonical, l.cfg.ActivePolicy)
	tag, err := l.db.Exec(ctx, sql, l.cfg.MissingToken, record.Whitespace)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert into %s: %w", l.canonical, err)
	}
	return tag.RowsAffected(), nil
}

// Verify reads the canonical row count and the first sampleSize rows by id.
func (l *Loader) Verify(ctx context.Context, sampleSize int) (*pgload.Report, error) {
	report := &pgload.Report{Table: l.canonical}

	if err := l.db.QueryRow(ctx, "SELECT count(*) FROM "+l.canonical).Scan(&report.Count); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", l.canonical, err)
	}

	if sampleSize <= 0 {
		return report, nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT id::text, COALESCE("name", ''), COALESCE("city", ''), COALESCE("state", '') FROM `+
			l.canonical+` ORDER BY id LIMIT $1`, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", l.canonical, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s pgload.SampleRow
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.State); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		report.Sample = append(report.Sample, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample of %s: %w", l.canonical, err)
	}

	return report, nil
}

// Close releases the pool and connector resources owned by the Loader.
func (l *Loader) Close() error {
	if l.pool != nil {
		l.pool.Close()
		l.pool = nil
	}
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	l.closers = nil
	return errors.Join(errs...)
}
