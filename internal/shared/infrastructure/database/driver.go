package database

import (
	"fmt"
	"strings"
)

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	// DriverAuto picks the backend from the connection URL.
	DriverAuto Driver = "auto"
)

// MemoryPath is the SQLite path for a private in-memory database.
const MemoryPath = ":memory:"

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d names a concrete backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// SkipsLockedRows reports whether the backend supports
// SELECT ... FOR UPDATE SKIP LOCKED. Without it concurrent claimers
// serialize on the single writer.
func (d Driver) SkipsLockedRows() bool {
	return d == DriverPostgres
}

// ResolveDriver turns the configured driver and URL into a concrete backend.
// An empty URL selects SQLite so a single node runs without a server.
func ResolveDriver(configured Driver, url string) (Driver, error) {
	switch configured {
	case "", DriverAuto:
	case DriverPostgres, DriverSQLite:
		return configured, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", configured)
	}

	switch {
	case url == "" || url == MemoryPath:
		return DriverSQLite, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite, nil
	default:
		return DriverPostgres, nil
	}
}
