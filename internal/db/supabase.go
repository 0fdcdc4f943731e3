package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// QueryExecModeParam selects how pgx sends statements. The transaction-mode
// pooler does not keep named prepared statements across transactions, so
// pooler connections use "exec" (unnamed statements, still parameterized).
const QueryExecModeParam = "default_query_exec_mode"

// PoolerOptions locate the hosted connection pooler.
type PoolerOptions struct {
	Host     string
	Port     int
	Database string
}

// ProjectRef extracts the project reference from a hosted project URL:
// https://abcd1234.supabase.co -> abcd1234.
func ProjectRef(baseURL string) (string, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return "", fmt.Errorf("project URL is empty: %w", pgload.ErrInvalidConfig)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid project URL %q: %w", baseURL, pgload.ErrInvalidConfig)
	}

	ref, _, _ := strings.Cut(u.Hostname(), ".")
	if ref == "" {
		return "", fmt.Errorf("invalid project URL %q: %w", baseURL, pgload.ErrInvalidConfig)
	}
	return ref, nil
}

// PoolerConnectionConfig derives the pooler connection for a hosted project:
// user postgres.<ref> on the pooler host, with the database password.
func PoolerConnectionConfig(baseURL, password string, opts PoolerOptions) (*pgload.ConnectionConfig, error) {
	if password == "" {
		return nil, fmt.Errorf("database password is required: %w", pgload.ErrInvalidConfig)
	}

	ref, err := ProjectRef(baseURL)
	if err != nil {
		return nil, err
	}

	if opts.Host == "" {
		opts.Host = pgload.DefaultPoolerHost
	}
	if opts.Port == 0 {
		opts.Port = pgload.DefaultPoolerPort
	}
	if opts.Database == "" {
		opts.Database = pgload.DefaultDatabase
	}

	cfg := defaultConnectionConfig()
	cfg.Host = opts.Host
	cfg.Port = opts.Port
	cfg.Database = opts.Database
	cfg.Username = "postgres." + ref
	cfg.Password = password
	cfg.SSLMode = "require"
	cfg.AdditionalParams[QueryExecModeParam] = "exec"
	return cfg, nil
}
