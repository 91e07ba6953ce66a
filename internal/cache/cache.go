// Package cache provides the SQLite-backed report history.
// The history is stored in .bscope/history.db; the latest report of a
// project is the default baseline for cache-invalidation audits.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the name of the history database inside the config directory.
const FileName = "history.db"

// ErrNoReports is returned when a project has no stored report.
var ErrNoReports = errors.New("no stored reports")

// Cache manages the .bscope/history.db SQLite database.
type Cache struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the history database in the specified directory.
// It initializes the schema if the database is new.
func Open(dir string) (*Cache, error) {
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	cache := &Cache{db: db, dbPath: dbPath}

	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return cache, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Clear removes every stored report.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM reports"); err != nil {
		return fmt.Errorf("clear reports: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.dbPath
}

// Stats returns history statistics.
type Stats struct {
	Reports  int64
	Projects int64
}

// GetStats returns statistics about the history contents.
func (c *Cache) GetStats() (*Stats, error) {
	var stats Stats

	err := c.db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT project) FROM reports").
		Scan(&stats.Reports, &stats.Projects)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}

	return &stats, nil
}
