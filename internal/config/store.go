package config

import "fmt"

// Store drivers. sqlite3 is mattn/go-sqlite3 (cgo); sqlite is modernc.org/sqlite (pure Go).
const (
	DriverSQLite3 = "sqlite3"
	DriverSQLite  = "sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// StoreConfig configures the durable state store.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	WordFile string `yaml:"word_file"` // seed-word pool for the subconscious
}

func (s StoreConfig) validate() error {
	if s.Driver != DriverSQLite3 && s.Driver != DriverSQLite {
		return fmt.Errorf("invalid store driver: %q (valid: %s, %s)", s.Driver, DriverSQLite3, DriverSQLite)
	}
	if s.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}
