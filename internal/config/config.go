package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by TENANTCTL_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TENANTCTL_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// RegistryURL returns the connection URL of the central registry database.
func RegistryURL() string {
	return os.Getenv("REGISTRY_URL")
}

// TenantDriver returns the storage engine hosting tenant databases.
// Valid values: postgres, sqlite. Defaults to "postgres".
func TenantDriver() string {
	d := os.Getenv("TENANT_DRIVER")
	if d == "" {
		return "postgres"
	}
	return d
}

// TenantURLTemplate returns the connection URL template for tenant databases.
// The literal "{database}" is replaced with the tenant's database identifier.
// Defaults to REGISTRY_URL with its database path swapped at connect time.
func TenantURLTemplate() string {
	return os.Getenv("TENANT_URL_TEMPLATE")
}

// SQLiteDir returns the directory holding tenant database files when
// TENANT_DRIVER is sqlite.
func SQLiteDir() string {
	dir := os.Getenv("SQLITE_DIR")
	if dir == "" {
		return "data/tenants"
	}
	return dir
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return ""
	}
	return p
}

// TenantOpTimeout bounds a single tenant's migrate/seed/run operation.
// Defaults to 5 minutes.
func TenantOpTimeout() time.Duration {
	d, err := time.ParseDuration(os.Getenv("TENANT_OP_TIMEOUT"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// BatchRate returns the per-second pacing for batch operations against the
// shared database server. Zero or unset means unpaced.
func BatchRate() float64 {
	r, err := strconv.ParseFloat(os.Getenv("BATCH_RATE"), 64)
	if err != nil || r < 0 {
		return 0
	}
	return r
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
