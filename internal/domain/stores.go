package domain

import (
	"context"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context, withDomains bool) ([]Tenant, error)
	SetProvisioningState(ctx context.Context, id string, state ProvisioningState) error
	Delete(ctx context.Context, id string) error
}

type DomainStore interface {
	Create(ctx context.Context, d *Domain) error
	GetByDomain(ctx context.Context, name string) (*Domain, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Domain, error)
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// Driver identifies the storage engine hosting tenant databases.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Provisioner creates and destroys the physical database behind a tenant.
type Provisioner interface {
	CreateDatabase(ctx context.Context, identifier string) error
	// DropDatabase is a no-op when the target does not exist, so deletes
	// can be retried.
	DropDatabase(ctx context.Context, identifier string) error
}
