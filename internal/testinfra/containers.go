// Package testinfra starts disposable PostgreSQL servers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	containerCertDir = "/tmp/testcontainers-go/postgres"
)

// PostgresContainer is a running server plus a ready-to-use connection string.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

func readyStrategy() testcontainers.CustomizeRequestOption {
	return testcontainers.WithWaitStrategy(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	)
}

// StartPostgres runs a plain server reachable with sslmode=disable.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		readyStrategy(),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	return withConnString(ctx, ctr, "sslmode=disable")
}

// StartTLSPostgres runs a server with ssl = on, reachable with sslmode=require
// the way the hosted pooler is.
func StartTLSPostgres(ctx context.Context, files *TLSFiles) (*PostgresContainer, error) {
	confPath := filepath.Join(filepath.Dir(files.CACert), "postgresql.conf")
	conf := fmt.Sprintf("listen_addresses = '*'\nssl = on\nssl_cert_file = '%[1]s/server.cert'\nssl_key_file = '%[1]s/server.key'\nssl_ca_file = '%[1]s/ca_cert.pem'\n", containerCertDir)
	if err := os.WriteFile(confPath, []byte(conf), 0644); err != nil {
		return nil, fmt.Errorf("write postgresql.conf: %w", err)
	}

	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		postgres.WithSSLCert(files.CACert, files.ServerCert, files.ServerKey),
		postgres.WithConfigFile(confPath),
		readyStrategy(),
	)
	if err != nil {
		return nil, fmt.Errorf("start TLS postgres: %w", err)
	}
	return withConnString(ctx, ctr, "sslmode=require")
}

func withConnString(ctx context.Context, ctr *postgres.PostgresContainer, args ...string) (*PostgresContainer, error) {
	connStr, err := ctr.ConnectionString(ctx, args...)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}
	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}
