package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// timeLayout has fixed-width fractions so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry summarizes one stored report.
type Entry struct {
	ID          string       `yaml:"id" json:"id"`
	Project     string       `yaml:"project" json:"project"`
	Family      stats.Family `yaml:"family" json:"family"`
	GeneratedAt time.Time    `yaml:"generated_at" json:"generated_at"`
	Score       int          `yaml:"score" json:"score"`
}

// SaveReport stores r, replacing any report with the same id.
func (c *Cache) SaveReport(r *report.Report) error {
	data, err := report.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO reports (id, project, family, generated_at, score, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Project, string(r.Family), r.GeneratedAt.UTC().Format(timeLayout), r.Score, data,
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport retrieves the report with the given run id.
// Returns ErrNoReports if no such report is stored.
func (c *Cache) GetReport(id string) (*report.Report, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM reports WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReports
		}
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return decode(id, data)
}

// LatestReport retrieves the most recent report of project.
// Returns ErrNoReports if the project has none.
func (c *Cache) LatestReport(project string) (*report.Report, error) {
	var id string
	var data []byte
	err := c.db.QueryRow(`
		SELECT id, data FROM reports WHERE project = ?
		ORDER BY generated_at DESC, rowid DESC LIMIT 1`,
		project).Scan(&id, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReports
		}
		return nil, fmt.Errorf("latest report of %q: %w", project, err)
	}
	return decode(id, data)
}

func decode(id string, data []byte) (*report.Report, error) {
	r, err := report.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

// ListReports returns stored reports newest first. An empty project lists
// every project; limit <= 0 lists everything.
func (c *Cache) ListReports(project string, limit int) ([]Entry, error) {
	query := "SELECT id, project, family, generated_at, score FROM reports"
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY generated_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var family, generatedAt string
		if err := rows.Scan(&e.ID, &e.Project, &family, &generatedAt, &e.Score); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		e.Family = stats.Family(family)
		e.GeneratedAt, _ = time.Parse(timeLayout, generatedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return entries, nil
}

// Prune keeps the newest keep reports of project and deletes the rest.
// Returns the number of deleted reports. keep <= 0 keeps everything.
func (c *Cache) Prune(project string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := c.db.Exec(`
		DELETE FROM reports WHERE project = ? AND id NOT IN (
			SELECT id FROM reports WHERE project = ?
			ORDER BY generated_at DESC, rowid DESC LIMIT ?
		)`,
		project, project, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune reports of %q: %w", project, err)
	}
	return res.RowsAffected()
}
