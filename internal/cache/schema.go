package cache

// schemaSQL defines the SQLite schema for the history database.
// Tables:
//   - reports: one encoded report per analysis run, keyed by run id
const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL DEFAULT '',
    family TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    data BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_project ON reports(project, generated_at DESC);
`

// initSchema creates the database tables and indexes if they don't exist.
func (c *Cache) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}
