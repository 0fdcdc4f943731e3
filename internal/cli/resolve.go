package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vvka-141/pgload/internal/config"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// targetFlagValues are shared by load and verify.
type targetFlagValues struct {
	transport      string
	schema         string
	table          string
	stagingTable   string
	connection     string
	auth           string
	awsRegion      string
	azureTenantID  string
	azureClientID  string
	googleInstance string
	sampleSize     int
	timeout        time.Duration
}

type loadFlagValues struct {
	targetFlagValues
	batchSize    int
	activePolicy string
	missingToken string
	onBatchError string
	force        bool
	noVerify     bool
}

func addTargetFlags(cmd *cobra.Command, f *targetFlagValues) {
	cmd.Flags().StringVarP(&f.transport, "transport", "t", string(pgload.TransportStaging),
		"Write path: staging (direct SQL, upsert on clues) or rest (plain inserts over the REST API)")
	cmd.Flags().StringVar(&f.schema, "schema", pgload.DefaultSchema, "Schema of the target tables")
	cmd.Flags().StringVar(&f.table, "table", pgload.DefaultTable, "Canonical institutions table")
	cmd.Flags().StringVar(&f.stagingTable, "staging-table", pgload.DefaultStagingTable,
		"Staging table, cleared before every staging load")
	cmd.Flags().StringVar(&f.connection, "connection", "",
		"PostgreSQL connection string (URI or ADO.NET format).\n"+
			"Alternative: $"+EnvConnectionString+" or $"+EnvDatabaseURL+".\n"+
			"Default: the Supabase pooler derived from $"+EnvSupabaseURL+" and $"+EnvDBPassword)
	cmd.Flags().StringVar(&f.auth, "auth", "standard",
		"Database authentication: standard|aws|azure|google")
	cmd.Flags().StringVar(&f.awsRegion, "aws-region", "", "AWS region for --auth aws (overrides $"+EnvAWSRegion+")")
	cmd.Flags().StringVar(&f.azureTenantID, "azure-tenant-id", "", "Azure AD tenant ID (overrides $"+EnvAzureTenantID+")")
	cmd.Flags().StringVar(&f.azureClientID, "azure-client-id", "", "Azure AD client ID (overrides $"+EnvAzureClientID+")")
	cmd.Flags().StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance) for --auth google")
	cmd.Flags().IntVar(&f.sampleSize, "sample-size", pgload.DefaultSampleSize, "Rows shown by the verification report")
	cmd.Flags().DurationVar(&f.timeout, "timeout", pgload.DefaultTimeout,
		"Stop the run between batches after this long; 0 means no limit. Examples: 90s, 10m, 1h")
}

func addLoadFlags(cmd *cobra.Command, f *loadFlagValues) {
	addTargetFlags(cmd, &f.targetFlagValues)
	cmd.Flags().IntVarP(&f.batchSize, "batch-size", "b", 0,
		fmt.Sprintf("Rows per batch (default %d for staging, %d for rest)", pgload.DefaultStagingBatchSize, pgload.DefaultRESTBatchSize))
	cmd.Flags().StringVar(&f.activePolicy, "active-policy", string(pgload.ActiveAlways),
		"How the active flag is stored: always (every record active) or source (t, true, 1, yes, y)")
	cmd.Flags().StringVar(&f.missingToken, "missing-token", pgload.DefaultMissingToken,
		"Source value treated as missing, like an empty field. Empty disables it")
	cmd.Flags().StringVar(&f.onBatchError, "on-batch-error", "",
		"abort or skip after a failed batch (default abort for staging, skip for rest)")
	cmd.Flags().BoolVar(&f.force, "force", false,
		"Clear the staging table without the interactive prompt (after a short countdown)")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "Skip the post-load count and sample")
}

// resolver applies precedence: flag > environment > pgload.yaml > default.
type resolver struct {
	cmd     *cobra.Command
	env     environment
	project *config.ProjectConfig
	logger  pgload.Logger
}

func (r resolver) changed(name string) bool {
	return r.cmd.Flags().Changed(name)
}

func (r resolver) str(flag, flagValue, projectValue string) string {
	if r.changed(flag) || projectValue == "" {
		return flagValue
	}
	return projectValue
}

func (r resolver) num(flag string, flagValue, projectValue int) int {
	if r.changed(flag) || projectValue == 0 {
		return flagValue
	}
	return projectValue
}

func configError(err error) error {
	return fmt.Errorf("%w: %w", pgload.ErrInvalidConfig, err)
}

// loadProjectConfig reads ./pgload.yaml; absence is not an error.
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	cfg, err := config.Load(dir)
	if errors.Is(err, config.ErrConfigNotFound) {
		return &config.ProjectConfig{}, nil
	}
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

// buildTargetConfig resolves the fields shared by load and verify.
func buildTargetConfig(r resolver, f *targetFlagValues, verbose bool) (pgload.LoadConfig, error) {
	p := r.project

	transport, err := pgload.ParseTransport(r.str("transport", f.transport, p.Transport))
	if err != nil {
		return pgload.LoadConfig{}, err
	}

	timeout := f.timeout
	if !r.changed("timeout") {
		fromFile, err := p.TimeoutDuration()
		if err != nil {
			return pgload.LoadConfig{}, configError(err)
		}
		if fromFile > 0 {
			timeout = fromFile
		}
	}

	cfg := pgload.LoadConfig{
		Transport:    transport,
		BaseURL:      r.env.get(EnvSupabaseURL, EnvSupabaseURLAlt),
		Schema:       r.str("schema", f.schema, p.Schema),
		Table:        r.str("table", f.table, p.Table),
		StagingTable: r.str("staging-table", f.stagingTable, p.StagingTable),
		SampleSize:   r.num("sample-size", f.sampleSize, p.SampleSize),
		Timeout:      timeout,
		Verbose:      verbose,
		RunID:        uuid.New(),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.Supabase.URL
	}

	switch transport {
	case pgload.TransportREST:
		cfg.Credential = r.env.get(EnvAnonKey, EnvAPIKey)
		if cfg.BaseURL == "" || cfg.Credential == "" {
			return pgload.LoadConfig{}, configError(fmt.Errorf("missing $%s or $%s for the rest transport", EnvSupabaseURL, EnvAnonKey))
		}
	case pgload.TransportStaging:
		conn, err := resolveConnection(r, f, cfg.BaseURL)
		if err != nil {
			return pgload.LoadConfig{}, err
		}
		cfg.Connection = conn
		cfg.Credential = conn.Password
		r.logger.Verbose("Connection resolved: %s (auth: %s)", db.Redacted(conn), conn.AuthMethod)
	}

	return cfg, nil
}

// resolveConnection picks, in order: an explicit connection string, the
// connection block of pgload.yaml, or the Supabase pooler.
func resolveConnection(r resolver, f *targetFlagValues, baseURL string) (*pgload.ConnectionConfig, error) {
	p := r.project
	var conn *pgload.ConnectionConfig

	connString := f.connection
	if connString == "" {
		connString = r.env.get(EnvConnectionString, EnvDatabaseURL)
	}

	switch {
	case connString != "":
		parsed, err := db.ParseConnectionString(connString)
		if err != nil {
			return nil, err
		}
		conn = parsed
		if conn.Password == "" {
			conn.Password = r.env.get(EnvPGPassword, EnvDBPassword)
		}
	case !p.Connection.IsZero():
		conn = &pgload.ConnectionConfig{
			Host:             firstNonEmpty(p.Connection.Host, "localhost"),
			Port:             p.Connection.Port,
			Database:         firstNonEmpty(p.Connection.Database, pgload.DefaultDatabase),
			Username:         p.Connection.Username,
			SSLMode:          firstNonEmpty(p.Connection.SSLMode, "prefer"),
			Password:         r.env.get(EnvPGPassword, EnvDBPassword),
			AdditionalParams: map[string]string{},
		}
		if conn.Port == 0 {
			conn.Port = 5432
		}
	default:
		password := r.env.get(EnvDBPassword)
		if baseURL == "" || password == "" {
			return nil, configError(fmt.Errorf("missing $%s or $%s (or pass --connection)", EnvSupabaseURL, EnvDBPassword))
		}
		pooler, err := db.PoolerConnectionConfig(baseURL, password, db.PoolerOptions{
			Host: firstNonEmpty(r.env.get(EnvPoolerHost), p.Supabase.PoolerHost),
			Port: p.Supabase.PoolerPort,
		})
		if err != nil {
			return nil, err
		}
		conn = pooler
	}

	auth, err := pgload.ParseAuthMethod(r.str("auth", f.auth, p.Connection.AuthMethod))
	if err != nil {
		return nil, err
	}
	conn.AuthMethod = auth
	conn.AWSRegion = firstNonEmpty(f.awsRegion, r.env.get(EnvAWSRegion), p.Connection.AWSRegion)
	conn.AzureTenantID = firstNonEmpty(f.azureTenantID, r.env.get(EnvAzureTenantID), p.Connection.AzureTenantID)
	conn.AzureClientID = firstNonEmpty(f.azureClientID, r.env.get(EnvAzureClientID), p.Connection.AzureClientID)
	conn.AzureClientSecret = r.env.get(EnvAzureClientSecret)
	conn.GoogleInstance = firstNonEmpty(f.googleInstance, p.Connection.GoogleInstance)

	if auth == pgload.AuthMethodStandard && conn.Password == "" {
		return nil, configError(fmt.Errorf("no database password: set $%s or include it in the connection string", EnvDBPassword))
	}
	return conn, nil
}

// buildLoadConfig resolves a full run configuration.
func buildLoadConfig(r resolver, f *loadFlagValues, args []string, verbose bool) (pgload.LoadConfig, error) {
	cfg, err := buildTargetConfig(r, &f.targetFlagValues, verbose)
	if err != nil {
		return pgload.LoadConfig{}, err
	}
	p := r.project

	cfg.CSVPath = pgload.DefaultCSVPath
	if len(args) > 0 {
		cfg.CSVPath = args[0]
	} else if p.CSV != "" {
		cfg.CSVPath = p.CSV
	}

	cfg.BatchSize = r.num("batch-size", f.batchSize, p.BatchSize)

	if cfg.ActivePolicy, err = pgload.ParseActivePolicy(r.str("active-policy", f.activePolicy, p.ActivePolicy)); err != nil {
		return pgload.LoadConfig{}, err
	}
	if cfg.OnBatchError, err = pgload.ParseBatchErrorPolicy(r.str("on-batch-error", f.onBatchError, p.OnBatchError)); err != nil {
		return pgload.LoadConfig{}, err
	}

	cfg.MissingToken = f.missingToken
	if !r.changed("missing-token") && p.MissingToken != nil {
		cfg.MissingToken = *p.MissingToken
	}

	cfg.Force = f.force
	cfg.SkipVerify = f.noVerify

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
