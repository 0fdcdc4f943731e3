// Package testing provides shared helpers for integration tests that need
// a PostgreSQL server with the institution tables.
package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/testinfra"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// ConnEnvVar points integration tests at an existing server instead of a container.
const ConnEnvVar = "PGLOAD_TEST_CONN"

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartPostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: PGLOAD_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv(ConnEnvVar); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", ConnEnvVar, err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// GetTestPool opens a pool that is closed when the test completes.
func GetTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// InstitutionSchema creates the staging and canonical tables in schema.
func InstitutionSchema(schema string) string {
	s := pgx.Identifier{schema}.Sanitize()
	return fmt.Sprintf(`
CREATE SCHEMA %[1]s;

CREATE TABLE %[1]s.%[2]s (
    name text, type_norm text, source_type text, city text, state text,
    ownership text, clues text, institution_group text, phone1 text,
    phone2 text, rfc text, active text
);

CREATE TABLE %[1]s.%[3]s (
    id bigserial PRIMARY KEY,
    name text NOT NULL,
    type_norm text,
    source_type text,
    city text NOT NULL,
    state text NOT NULL,
    ownership text,
    clues text UNIQUE,
    institution_group text,
    phone1 text,
    phone2 text,
    rfc text,
    active boolean NOT NULL DEFAULT true
);`, s, pgx.Identifier{pgload.DefaultStagingTable}.Sanitize(), pgx.Identifier{pgload.DefaultTable}.Sanitize())
}

// CreateInstitutionSchema creates a uniquely named schema holding the
// institution tables and drops it when the test completes.
func CreateInstitutionSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	ctx := context.Background()
	schema := "pgload_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	if _, err := pool.Exec(ctx, InstitutionSchema(schema)); err != nil {
		t.Fatalf("Failed to create schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
			t.Logf("Warning: Failed to drop schema %s: %v", schema, err)
		}
	})
	return schema
}

// ForceApprover is a test approver that always approves.
type ForceApprover struct{}

// RequestApproval always returns true.
func (a *ForceApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	return true, nil
}

// NullLogger returns a logger that discards output.
func NullLogger() pgload.Logger {
	return logging.NewNullLogger()
}
