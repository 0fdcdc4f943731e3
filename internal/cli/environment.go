package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by pgload.
const (
	EnvSupabaseURL        = "VITE_SUPABASE_URL"
	EnvSupabaseURLAlt     = "SUPABASE_URL"
	EnvDBPassword         = "SUPABASE_DB_PASSWORD"
	EnvAnonKey            = "VITE_SUPABASE_ANON_KEY"
	EnvAPIKey             = "SUPABASE_API_KEY"
	EnvConnectionString   = "PGLOAD_CONNECTION_STRING"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvPoolerHost         = "SUPABASE_POOLER_HOST"
	EnvPGPassword         = "PGPASSWORD"
	EnvAWSRegion          = "AWS_REGION"
	EnvAzureTenantID      = "AZURE_TENANT_ID"
	EnvAzureClientID      = "AZURE_CLIENT_ID"
	EnvAzureClientSecret  = "AZURE_CLIENT_SECRET"
	defaultDotEnvFileName = ".env"
)

// environment is a snapshot of variables: ./.env, then --env-file, then the
// process environment, each layer overriding the previous one.
type environment map[string]string

// loadEnvironment builds the snapshot. A missing ./.env is ignored; a
// missing --env-file is a configuration error.
func loadEnvironment(envFile string) (environment, error) {
	env := environment{}

	dotenv, err := godotenv.Read(defaultDotEnvFileName)
	switch {
	case err == nil:
		env.merge(dotenv)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, configError(fmt.Errorf("failed to parse %s: %w", defaultDotEnvFileName, err))
	}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil {
			return nil, configError(fmt.Errorf("failed to read env file '%s': %w", envFile, err))
		}
		env.merge(values)
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

func (e environment) merge(values map[string]string) {
	for k, v := range values {
		e[k] = v
	}
}

// get returns the first non-empty value among keys.
func (e environment) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(e[k]); v != "" {
			return v
		}
	}
	return ""
}
