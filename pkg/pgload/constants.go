package pgload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0   // Load completed successfully
	ExitGeneralError    = 1   // Unknown or unclassified error
	ExitUsageError      = 2   // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3   // Internal panic (unexpected crash)
	ExitConfigError     = 10  // Missing credentials or invalid configuration
	ExitConnectionError = 11  // Failed to connect to database or build the client
	ExitApprovalDenied  = 12  // Operator declined clearing the staging table
	ExitBatchFailed     = 13  // A batch write failed under the abort policy
	ExitSourceError     = 14  // CSV source missing, unreadable or malformed
	ExitInterrupted     = 130 // Stopped by SIGINT/SIGTERM or --timeout between batches
)

const (
	// DefaultStagingBatchSize is the number of raw rows sent per staging INSERT.
	DefaultStagingBatchSize = 1000

	// DefaultRESTBatchSize is the number of cleaned records sent per REST insert.
	DefaultRESTBatchSize = 500

	// MaxStagingBatchSize keeps a multi-row INSERT under PostgreSQL's
	// 65535 bind parameter limit (12 columns per row).
	MaxStagingBatchSize = 5000

	// DefaultCSVPath is the source file used when no path argument is given.
	DefaultCSVPath = "backend/data/cat_institutions_mx_full.csv"

	// DefaultSchema is the schema holding both the staging and canonical tables.
	DefaultSchema = "axxia"

	// DefaultTable is the canonical institutions table.
	DefaultTable = "cat_institutions_mx"

	// DefaultStagingTable receives raw CSV rows before reconciliation.
	DefaultStagingTable = "_stg_institutions_csv"

	// DefaultMissingToken is the literal the source export writes for absent values.
	DefaultMissingToken = "nan"

	// DefaultSampleSize is the number of rows fetched by the verifier.
	DefaultSampleSize = 5

	// DefaultTimeout is zero: no run-level limit. A positive --timeout stops
	// the run between batches; calls in flight are bounded by the driver.
	DefaultTimeout time.Duration = 0

	// DefaultPoolerHost is the Supabase connection pooler used to derive a
	// connection string from a project URL.
	DefaultPoolerHost = "aws-0-us-west-1.pooler.supabase.com"

	// DefaultPoolerPort is the transaction-mode pooler port.
	DefaultPoolerPort = 6543

	// DefaultDatabase is the database name on hosted Supabase projects.
	DefaultDatabase = "postgres"

	// DefaultApplicationName prefixes the run ID in pg_stat_activity.
	DefaultApplicationName = "pgload"

	// DefaultForceApprovalCountdown is how long --force waits before clearing staging.
	DefaultForceApprovalCountdown = 5 * time.Second

	// MaxErrorPreviewLength caps response bodies quoted in error messages.
	MaxErrorPreviewLength = 200
)
