package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DomainStore struct {
	db *pgxpool.Pool
}

func NewDomainStore(db *pgxpool.Pool) *DomainStore {
	return &DomainStore{db: db}
}

func (s *DomainStore) Create(ctx context.Context, d *domain.Domain) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO domains (domain, tenant_id) VALUES ($1, $2)
		 RETURNING id, created_at`,
		d.Domain, d.TenantID,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *DomainStore) GetByDomain(ctx context.Context, name string) (*domain.Domain, error) {
	d := &domain.Domain{}
	err := s.db.QueryRow(ctx,
		`SELECT id, domain, tenant_id, created_at FROM domains WHERE domain = $1`,
		name,
	).Scan(&d.ID, &d.Domain, &d.TenantID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DomainStore) ListByTenant(ctx context.Context, tenantID string) ([]domain.Domain, error) {
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

func (s *DomainStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM domains WHERE tenant_id = $1`, tenantID)
	return err
}
