// Package loader selects and builds the Loader for a run's transport.
package loader

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/loader/rest"
	"github.com/vvka-141/pgload/internal/loader/staging"
	"github.com/vvka-141/pgload/internal/record"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// ConnectorFactory builds a Connector for a resolved connection.
type ConnectorFactory func(*pgload.ConnectionConfig) (pgload.Connector, error)

// Factory builds loaders. Zero values fall back to db.NewConnector and a
// client with rest.DefaultHTTPTimeout.
type Factory struct {
	NewConnector ConnectorFactory
	HTTPClient   *http.Client
}

// New builds the Loader for cfg.Transport. It matches pgload.LoaderFactory.
func (f Factory) New(ctx context.Context, cfg *pgload.LoadConfig) (pgload.Loader, error) {
	switch cfg.Transport {
	case pgload.TransportStaging:
		return f.newStaging(ctx, cfg)
	case pgload.TransportREST:
		return f.newREST(cfg)
	default:
		return nil, fmt.Errorf("unknown transport %q: %w", cfg.Transport, pgload.ErrInvalidConfig)
	}
}

func (f Factory) newStaging(ctx context.Context, cfg *pgload.LoadConfig) (pgload.Loader, error) {
	if cfg.Connection == nil {
		return nil, fmt.Errorf("database connection is required for the staging transport: %w", pgload.ErrInvalidConfig)
	}

	conn := *cfg.Connection
	if conn.AppName == "" {
		conn.AppName = ApplicationName(cfg)
	}

	newConnector := f.NewConnector
	if newConnector == nil {
		newConnector = db.NewConnector
	}
	connector, err := newConnector(&conn)
	if err != nil {
		return nil, err
	}

	return staging.Open(ctx, connector, staging.ConfigFrom(cfg))
}

func (f Factory) newREST(cfg *pgload.LoadConfig) (pgload.Loader, error) {
	client, err := rest.NewClient(cfg.BaseURL, cfg.Credential, cfg.Schema, cfg.Table, f.HTTPClient)
	if err != nil {
		return nil, err
	}
	return rest.New(client, record.Options{
		MissingToken: cfg.MissingToken,
		ActivePolicy: cfg.ActivePolicy,
	}), nil
}

// ApplicationName tags database sessions with the run ID.
func ApplicationName(cfg *pgload.LoadConfig) string {
	if cfg.RunID == uuid.Nil {
		return pgload.DefaultApplicationName
	}
	return pgload.DefaultApplicationName + "-" + cfg.RunID.String()
}
