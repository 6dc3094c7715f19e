package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	if t.DatabaseIdentifier == "" {
		t.DatabaseIdentifier = t.ID
	}
	if t.ProvisioningState == "" {
		t.ProvisioningState = domain.ProvisioningPending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, database_identifier, system_name, logo, provisioning_state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		t.ID, t.DatabaseIdentifier, t.SystemName, t.Logo, t.ProvisioningState,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := s.db.QueryRow(ctx,
		`SELECT id, database_identifier, system_name, logo, provisioning_state, created_at, updated_at
		 FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.DatabaseIdentifier, &t.SystemName, &t.Logo, &t.ProvisioningState, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TenantStore) List(ctx context.Context, withDomains bool) ([]domain.Tenant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, database_identifier, system_name, logo, provisioning_state, created_at, updated_at
		 FROM tenants ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.DatabaseIdentifier, &t.SystemName, &t.Logo,
			&t.ProvisioningState, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !withDomains {
		return tenants, nil
	}

	for i := range tenants {
		domains, err := s.listDomains(ctx, tenants[i].ID)
		if err != nil {
			return nil, err
		}
		tenants[i].Domains = domains
	}
	return tenants, nil
}

func (s *TenantStore) listDomains(ctx context.Context, tenantID string) ([]domain.Domain, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, domain, tenant_id, created_at FROM domains WHERE tenant_id = $1 ORDER BY domain`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.Domain, &d.TenantID, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (s *TenantStore) SetProvisioningState(ctx context.Context, id string, state domain.ProvisioningState) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants SET provisioning_state = $1, updated_at = now() WHERE id = $2`,
		state, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TenantStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
