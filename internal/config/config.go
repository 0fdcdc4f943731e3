// Package config reads the optional pgload.yaml project file.
//
// The file holds non-secret defaults for a project; credentials come from
// the environment only. Values here are overridden by environment variables
// and CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is looked up in the working directory.
const ConfigFileName = "pgload.yaml"

// ConnectionConfig describes an explicit database connection.
type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// IsZero reports whether no explicit connection is configured.
func (c ConnectionConfig) IsZero() bool {
	return c == ConnectionConfig{}
}

// SupabaseConfig locates the hosted project and its pooler.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	PoolerHost string `yaml:"pooler_host,omitempty"`
	PoolerPort int    `yaml:"pooler_port,omitempty"`
}

// ProjectConfig is the content of pgload.yaml.
type ProjectConfig struct {
	Transport    string           `yaml:"transport"`
	CSV          string           `yaml:"csv"`
	BatchSize    int              `yaml:"batch_size"`
	Schema       string           `yaml:"schema"`
	Table        string           `yaml:"table"`
	StagingTable string           `yaml:"staging_table"`
	ActivePolicy string           `yaml:"active_policy"`
	MissingToken *string          `yaml:"missing_token"`
	OnBatchError string           `yaml:"on_batch_error"`
	SampleSize   int              `yaml:"sample_size"`
	Timeout      string           `yaml:"timeout"`
	Supabase     SupabaseConfig   `yaml:"supabase"`
	Connection   ConnectionConfig `yaml:"connection"`
}

// TimeoutDuration parses Timeout; an empty value yields 0.
func (p *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", p.Timeout, ConfigFileName, err)
	}
	return d, nil
}

// Load reads ConfigFileName from dir.
func Load(dir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}
