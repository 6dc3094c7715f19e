package tenantdb

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresDB struct {
	pool *pgxpool.Pool
	// owned is false when the pool is shared (the central registry pool),
	// in which case Close is a no-op.
	owned bool
}

// NewPostgres wraps an existing pool without taking ownership of it.
func NewPostgres(pool *pgxpool.Pool) DB {
	return &postgresDB{pool: pool}
}

// OpenPostgres connects to the database at url and owns the resulting pool.
func OpenPostgres(ctx context.Context, url string) (DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &postgresDB{pool: pool, owned: true}, nil
}

func (p *postgresDB) Driver() domain.Driver { return domain.DriverPostgres }

func (p *postgresDB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *postgresDB) ExecScript(ctx context.Context, script string) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, script)
		return err
	})
}

func (p *postgresDB) QueryStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *postgresDB) QueryInts(ctx context.Context, sql string, args ...any) ([]int, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *postgresDB) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}
