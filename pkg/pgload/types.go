package pgload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Columns lists the recognized CSV columns in the order they are written to
// the staging and canonical tables.
var Columns = []string{
	"name", "type_norm", "source_type", "city", "state", "ownership",
	"clues", "institution_group", "phone1", "phone2", "rfc", "active",
}

// RawInstitution is one untransformed CSV row.
type RawInstitution struct {
	Name             string `csv:"name"`
	TypeNorm         string `csv:"type_norm"`
	SourceType       string `csv:"source_type"`
	City             string `csv:"city"`
	State            string `csv:"state"`
	Ownership        string `csv:"ownership"`
	Clues            string `csv:"clues"`
	InstitutionGroup string `csv:"institution_group"`
	Phone1           string `csv:"phone1"`
	Phone2           string `csv:"phone2"`
	RFC              string `csv:"rfc"`
	Active           string `csv:"active"`
}

// Values returns the row's fields in Columns order.
func (r RawInstitution) Values() []any {
	return []any{
		r.Name, r.TypeNorm, r.SourceType, r.City, r.State, r.Ownership,
		r.Clues, r.InstitutionGroup, r.Phone1, r.Phone2, r.RFC, r.Active,
	}
}

// Institution is a cleaned record ready for the canonical table.
// Nil pointers are absent values and are stored as NULL.
type Institution struct {
	Name             string  `json:"name"`
	TypeNorm         *string `json:"type_norm"`
	SourceType       *string `json:"source_type"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Ownership        *string `json:"ownership"`
	Clues            *string `json:"clues"`
	InstitutionGroup *string `json:"institution_group"`
	Phone1           *string `json:"phone1"`
	Phone2           *string `json:"phone2"`
	RFC              *string `json:"rfc"`
	Active           bool    `json:"active"`
}

// Transport selects the loader implementation.
type Transport string

const (
	// TransportStaging loads over a direct PostgreSQL connection through a
	// staging table and an upsert.
	TransportStaging Transport = "staging"
	// TransportREST plain-inserts cleaned records through the REST API.
	TransportREST Transport = "rest"
)

// ParseTransport converts a flag value into a Transport.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportStaging, TransportREST:
		return t, nil
	case "sql":
		return TransportStaging, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want staging or rest): %w", s, ErrInvalidConfig)
	}
}

// ActivePolicy decides how the canonical active flag is derived.
type ActivePolicy string

const (
	// ActiveAlways stores true for every record, discarding the source value.
	ActiveAlways ActivePolicy = "always"
	// ActiveFromSource stores true only for truthy source values.
	ActiveFromSource ActivePolicy = "source"
)

// ParseActivePolicy converts a flag value into an ActivePolicy.
func ParseActivePolicy(s string) (ActivePolicy, error) {
	switch p := ActivePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ActiveAlways, ActiveFromSource:
		return p, nil
	case "":
		return ActiveAlways, nil
	default:
		return "", fmt.Errorf("unknown active policy %q (want always or source): %w", s, ErrInvalidConfig)
	}
}

// BatchErrorPolicy decides what happens after a failed batch write.
type BatchErrorPolicy string

const (
	// BatchErrorAbort stops the run at the first failed batch.
	BatchErrorAbort BatchErrorPolicy = "abort"
	// BatchErrorSkip counts the batch as errored and continues.
	BatchErrorSkip BatchErrorPolicy = "skip"
)

// ParseBatchErrorPolicy converts a flag value into a BatchErrorPolicy.
// An empty value yields "" so the transport default applies.
func ParseBatchErrorPolicy(s string) (BatchErrorPolicy, error) {
	switch p := BatchErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case BatchErrorAbort, BatchErrorSkip, "":
		return p, nil
	default:
		return "", fmt.Errorf("unknown batch error policy %q (want abort or skip): %w", s, ErrInvalidConfig)
	}
}

// LoadConfig contains all parameters needed for one import run.
// It is built once by the CLI and passed explicitly to the import service
// and loader constructors; nothing below the CLI reads the environment.
type LoadConfig struct {
	// Transport selects the staging (SQL) or REST loader.
	Transport Transport

	// CSVPath is the source file.
	CSVPath string

	// BatchSize overrides the transport's default threshold when > 0.
	BatchSize int

	// BaseURL is the hosted project URL (https://<ref>.supabase.co).
	BaseURL string

	// Credential is the database password (staging) or API key (rest).
	Credential string

	// Connection is the resolved database connection (staging only).
	Connection *ConnectionConfig

	// Schema, Table and StagingTable name the target relations.
	Schema       string
	Table        string
	StagingTable string

	// ActivePolicy decides how the active flag is derived.
	ActivePolicy ActivePolicy

	// MissingToken is normalized to absent along with empty strings.
	MissingToken string

	// OnBatchError overrides the transport's default error policy when set.
	OnBatchError BatchErrorPolicy

	// SampleSize is the number of rows shown by the verifier.
	SampleSize int

	// SkipVerify disables the post-load report.
	SkipVerify bool

	// Force skips the staging-clear approval prompt.
	Force bool

	// Timeout bounds the whole run when > 0. It is checked between batches.
	Timeout time.Duration

	// Verbose enables detailed logging.
	Verbose bool

	// RunID identifies this run in logs and application_name.
	RunID uuid.UUID
}

// EffectiveBatchSize returns the configured threshold or the transport default.
func (c *LoadConfig) EffectiveBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	if c.Transport == TransportREST {
		return DefaultRESTBatchSize
	}
	return DefaultStagingBatchSize
}

// EffectiveErrorPolicy returns the configured policy or the transport default:
// staging aborts, REST skips.
func (c *LoadConfig) EffectiveErrorPolicy() BatchErrorPolicy {
	if c.OnBatchError != "" {
		return c.OnBatchError
	}
	if c.Transport == TransportREST {
		return BatchErrorSkip
	}
	return BatchErrorAbort
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportStaging:
		if c.Connection == nil {
			errs = append(errs, fmt.Errorf("database connection is required for the staging transport: %w", ErrInvalidConfig))
		}
		if c.StagingTable == "" {
			errs = append(errs, fmt.Errorf("StagingTable is required: %w", ErrInvalidConfig))
		}
		if c.BatchSize > MaxStagingBatchSize {
			errs = append(errs, fmt.Errorf("batch size %d exceeds %d for the staging transport: %w", c.BatchSize, MaxStagingBatchSize, ErrInvalidConfig))
		}
	case TransportREST:
		if c.BaseURL == "" {
			errs = append(errs, fmt.Errorf("BaseURL is required for the rest transport: %w", ErrInvalidConfig))
		}
		if c.Credential == "" {
			errs = append(errs, fmt.Errorf("API key is required for the rest transport: %w", ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q: %w", c.Transport, ErrInvalidConfig))
	}

	if c.CSVPath == "" {
		errs = append(errs, fmt.Errorf("CSVPath is required: %w", ErrInvalidConfig))
	}
	if c.Table == "" {
		errs = append(errs, fmt.Errorf("Table is required: %w", ErrInvalidConfig))
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch size cannot be negative: %w", ErrInvalidConfig))
	}
	if c.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("sample size cannot be negative: %w", ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}
	if _, err := ParseActivePolicy(string(c.ActivePolicy)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseBatchErrorPolicy(string(c.OnBatchError)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// BatchResult reports the outcome of one SubmitBatch call.
type BatchResult struct {
	// Submitted is the number of raw rows handed to the loader.
	Submitted int
	// Written is the number of rows sent to the target.
	Written int
	// Skipped is the number of rows dropped by the required-field check.
	Skipped int
}

// LoadSummary is the outcome of a whole import run.
type LoadSummary struct {
	RunID     uuid.UUID
	Transport Transport
	// Read is the number of CSV rows consumed.
	Read int
	// Loaded is the number of rows written (to staging or canonical).
	Loaded int
	// Skipped is the number of rows dropped by the required-field check
	// before sending. Staging drops invalid rows inside Reconcile instead.
	Skipped int
	// Errored is the number of rows in failed batches.
	Errored int
	// Batches is the number of batches emitted.
	Batches int
	// FailedBatches is the number of batches that failed.
	FailedBatches int
	// Reconciled is the number of canonical rows inserted or updated.
	Reconciled int64
	Duration   time.Duration
	// Report is the verifier output, nil when verification was skipped or failed.
	Report *Report
}

// Report is the verifier's view of the canonical table.
type Report struct {
	Table  string
	Count  int64
	Sample []SampleRow
}

// SampleRow is one row of the verifier sample.
type SampleRow struct {
	ID    string
	Name  string
	City  string
	State string
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID parameters (used when AuthMethod is AuthMethodAzureEntraID).
	// If all three are provided, Service Principal authentication is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ParseAuthMethod converts a flag value into an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return 0, fmt.Errorf("unknown auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}
