package pgload

import "context"

// Loader is the transport-independent write path for institution records.
//
// Implementations:
//   - staging.Loader: TRUNCATE staging, multi-row INSERT of raw rows,
//     one reconciling upsert into the canonical table
//   - rest.Loader: client-side cleaning and plain inserts over the REST API
//
// Loaders are used sequentially by a single goroutine.
type Loader interface {
	// Prepare runs before the first batch. The staging loader clears the
	// staging table here; the REST loader does nothing.
	Prepare(ctx context.Context) error

	// SubmitBatch writes one batch of raw rows. A returned error means the
	// whole batch failed; no row of it should be assumed written.
	SubmitBatch(ctx context.Context, batch []RawInstitution) (BatchResult, error)

	// Reconcile runs after the last batch and returns the number of canonical
	// rows inserted or updated. The REST loader returns 0.
	Reconcile(ctx context.Context) (int64, error)

	// Verify reads the canonical row count and a sample of sampleSize rows.
	Verify(ctx context.Context, sampleSize int) (*Report, error)

	// Close releases connections held by the loader.
	Close() error
}

// LoaderFactory builds the Loader selected by the configuration.
type LoaderFactory func(ctx context.Context, cfg *LoadConfig) (Loader, error)
