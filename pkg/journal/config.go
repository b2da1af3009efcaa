package journal

import (
	"fmt"
	"strings"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config selects the journal database. An empty DSN disables the journal.
type Config struct {
	Driver string // sqlite, mysql or postgres. Default sqlite.
	DSN    string
}

// DefaultConfig returns a disabled sqlite journal config.
func DefaultConfig() Config {
	return Config{Driver: DriverSQLite}
}

// Enabled reports whether a journal database is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// Validate checks the driver name.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
		return nil
	default:
		return fmt.Errorf("journal: unsupported driver %q (want %s, %s or %s)", c.Driver, DriverSQLite, DriverMySQL, DriverPostgres)
	}
}
