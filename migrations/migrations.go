// Package migrations embeds the SQL applied to the central registry database
// and to every tenant database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed central/*.sql
var central embed.FS

//go:embed tenant/*.sql
var tenant embed.FS

// Central returns the registry database migration scripts.
func Central() fs.FS {
	sub, err := fs.Sub(central, "central")
	if err != nil {
		panic(err)
	}
	return sub
}

// Tenant returns the tenant database migration scripts.
func Tenant() fs.FS {
	sub, err := fs.Sub(tenant, "tenant")
	if err != nil {
		panic(err)
	}
	return sub
}
