package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgDuplicateDatabase  = "42P04"
	pgInvalidCatalogName = "3D000"
)

// PostgresProvisioner issues CREATE/DROP DATABASE against the server hosting
// the tenant databases. CREATE DATABASE cannot run inside a transaction, so
// every statement goes through a plain pool Exec.
type PostgresProvisioner struct {
	db *pgxpool.Pool
}

func NewPostgresProvisioner(db *pgxpool.Pool) *PostgresProvisioner {
	return &PostgresProvisioner{db: db}
}

func (p *PostgresProvisioner) CreateDatabase(ctx context.Context, identifier string) error {
	stmt := fmt.Sprintf(`CREATE DATABASE %s ENCODING 'UTF8' TEMPLATE template0`,
		pgx.Identifier{identifier}.Sanitize())
	_, err := p.db.Exec(ctx, stmt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return &Error{Op: "create", Identifier: identifier, Err: err}
	}
	return nil
}

func (p *PostgresProvisioner) DropDatabase(ctx context.Context, identifier string) error {
	stmt := fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, pgx.Identifier{identifier}.Sanitize())
	_, err := p.db.Exec(ctx, stmt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidCatalogName {
			return nil
		}
		return &Error{Op: "drop", Identifier: identifier, Err: err}
	}
	return nil
}
