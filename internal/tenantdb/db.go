// Package tenantdb abstracts "whatever database is currently active" behind a
// small driver-pluggable handle so migrations and seeds run identically against
// the central registry database or any tenant database.
package tenantdb

import (
	"context"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
)

type DB interface {
	Driver() domain.Driver

	// Exec runs a single statement with driver-native placeholders.
	Exec(ctx context.Context, sql string, args ...any) error

	// ExecScript runs a multi-statement script inside one transaction.
	ExecScript(ctx context.Context, script string) error

	// QueryStrings returns the first column of every row as strings.
	QueryStrings(ctx context.Context, sql string, args ...any) ([]string, error)

	// QueryInts returns the first column of every row as ints.
	QueryInts(ctx context.Context, sql string, args ...any) ([]int, error)

	Close() error
}
