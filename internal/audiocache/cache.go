package audiocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cadence/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS audio_paths (
    feedback_id TEXT PRIMARY KEY,
    analysis_id TEXT NOT NULL,
    path        TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audio_paths_analysis ON audio_paths(analysis_id);
`

// Entry is one cached audio path.
type Entry struct {
	FeedbackID string
	AnalysisID string
	Path       string
	UpdatedAt  time.Time
}

// Cache manages audio path persistence backed by SQLite.
type Cache struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database.
func Open(cfg *config.Config) (*Cache, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.CacheDir, "audio_paths.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Cache{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file location.
func (c *Cache) Path() string {
	return c.path
}

// Put inserts or replaces the cached path for a feedback item.
func (c *Cache) Put(ctx context.Context, feedbackID, analysisID, path string) error {
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return errors.New("feedback id is required")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}

	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO audio_paths (feedback_id, analysis_id, path, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(feedback_id) DO UPDATE SET
             analysis_id = excluded.analysis_id,
             path = excluded.path,
             updated_at = excluded.updated_at`,
		feedbackID,
		strings.TrimSpace(analysisID),
		path,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put audio path: %w", err)
	}
	return nil
}

// Get fetches the cached path for a feedback item.
func (c *Cache) Get(ctx context.Context, feedbackID string) (Entry, bool, error) {
	row := c.db.QueryRowContext(
		ctx,
		`SELECT feedback_id, analysis_id, path, updated_at FROM audio_paths WHERE feedback_id = ?`,
		feedbackID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get audio path: %w", err)
	}
	return entry, true, nil
}

// ListByAnalysis returns all cached paths for an analysis ordered by
// feedback id.
func (c *Cache) ListByAnalysis(ctx context.Context, analysisID string) ([]Entry, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT feedback_id, analysis_id, path, updated_at FROM audio_paths
         WHERE analysis_id = ? ORDER BY feedback_id`,
		analysisID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audio paths: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// List returns every cached path ordered by analysis then feedback id.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT feedback_id, analysis_id, path, updated_at FROM audio_paths
         ORDER BY analysis_id, feedback_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list audio paths: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes one entry. It reports whether an entry existed.
func (c *Cache) Remove(ctx context.Context, feedbackID string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM audio_paths WHERE feedback_id = ?`, feedbackID)
	if err != nil {
		return false, fmt.Errorf("remove audio path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all entries, or only one analysis when given.
func (c *Cache) Clear(ctx context.Context, analysisID string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if strings.TrimSpace(analysisID) == "" {
		res, err = c.db.ExecContext(ctx, `DELETE FROM audio_paths`)
	} else {
		res, err = c.db.ExecContext(ctx, `DELETE FROM audio_paths WHERE analysis_id = ?`, analysisID)
	}
	if err != nil {
		return 0, fmt.Errorf("clear audio paths: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		updatedRaw string
	)
	if err := scanner.Scan(&entry.FeedbackID, &entry.AnalysisID, &entry.Path, &updatedRaw); err != nil {
		return Entry{}, err
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}
