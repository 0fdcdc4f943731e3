package rest

import (
	"context"
	"fmt"

	"github.com/vvka-141/pgload/internal/record"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Loader implements pgload.Loader over a Client.
type Loader struct {
	client *Client
	opts   record.Options
}

var _ pgload.Loader = (*Loader)(nil)

// New creates a Loader that cleans rows with opts before sending them.
func New(client *Client, opts record.Options) *Loader {
	return &Loader{client: client, opts: opts}
}

// Client returns the underlying REST client.
func (l *Loader) Client() *Client { return l.client }

// Prepare does nothing: there is no staging area.
func (l *Loader) Prepare(context.Context) error { return nil }

// SubmitBatch cleans the batch, drops rows missing a required field and
// inserts the rest.
func (l *Loader) SubmitBatch(ctx context.Context, batch []pgload.RawInstitution) (pgload.BatchResult, error) {
	n, skipped, err := l.InsertBatch(ctx, batch)
	return pgload.BatchResult{Submitted: len(batch), Written: n, Skipped: skipped}, err
}

// InsertBatch returns the number of records sent and the number dropped.
// On error no record of the batch counts as sent.
func (l *Loader) InsertBatch(ctx context.Context, raws []pgload.RawInstitution) (int, int, error) {
	records, skipped := record.CleanAll(raws, l.opts)
	if err := l.client.Insert(ctx, records); err != nil {
		return 0, skipped, err
	}
	return len(records), skipped, nil
}

// Reconcile does nothing: records are final once inserted.
func (l *Loader) Reconcile(context.Context) (int64, error) { return 0, nil }

// Verify reads the exact row count and a sample.
func (l *Loader) Verify(ctx context.Context, sampleSize int) (*pgload.Report, error) {
	count, err := l.client.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", l.client.table, err)
	}

	sample, err := l.client.Sample(ctx, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", l.client.table, err)
	}

	return &pgload.Report{Table: l.tableName(), Count: count, Sample: sample}, nil
}

func (l *Loader) tableName() string {
	if l.client.schema == "" {
		return l.client.table
	}
	return l.client.schema + "." + l.client.table
}

// Close releases idle HTTP connections.
func (l *Loader) Close() error {
	l.client.http.CloseIdleConnections()
	return nil
}
