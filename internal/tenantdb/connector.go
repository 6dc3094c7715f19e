package tenantdb

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
)

// Connector opens the physical database behind a tenant from its
// database identifier.
type Connector struct {
	driver      domain.Driver
	urlTemplate string
	registryURL string
	sqliteDir   string
}

type ConnectorOpts struct {
	Driver domain.Driver

	// URLTemplate is a postgres connection URL containing the literal
	// "{database}"; falls back to RegistryURL with its database path swapped.
	URLTemplate string
	RegistryURL string

	// SQLiteDir is the directory holding one database file per tenant.
	SQLiteDir string
}

func NewConnector(opts ConnectorOpts) *Connector {
	return &Connector{
		driver:      opts.Driver,
		urlTemplate: opts.URLTemplate,
		registryURL: opts.RegistryURL,
		sqliteDir:   opts.SQLiteDir,
	}
}

func (c *Connector) Driver() domain.Driver { return c.driver }

func (c *Connector) Open(ctx context.Context, identifier string) (DB, error) {
	switch c.driver {
	case domain.DriverPostgres:
		u, err := c.postgresURL(identifier)
		if err != nil {
			return nil, err
		}
		return OpenPostgres(ctx, u)
	case domain.DriverSQLite:
		return OpenSQLite(c.SQLitePath(identifier))
	default:
		return nil, fmt.Errorf("unsupported tenant driver %q", c.driver)
	}
}

func (c *Connector) postgresURL(identifier string) (string, error) {
	if c.urlTemplate != "" {
		return strings.ReplaceAll(c.urlTemplate, "{database}", identifier), nil
	}
	u, err := url.Parse(c.registryURL)
	if err != nil {
		return "", fmt.Errorf("parse registry url: %w", err)
	}
	u.Path = "/" + identifier
	return u.String(), nil
}

// SQLitePath returns the deterministic file path for a tenant database.
func (c *Connector) SQLitePath(identifier string) string {
	return filepath.Join(c.sqliteDir, identifier+".db")
}
