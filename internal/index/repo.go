package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Checksum  string
	Tags      []string
	Size      int64
	UpdatedAt time.Time
	// CreatedAt is only written on first insert; zero means "now".
	CreatedAt time.Time
}

// UpsertNote inserts or replaces a note and its outgoing links within a
// transaction. The first-seen time of an existing row is preserved.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, checksum, tags, size, updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			size       = excluded.size,
			updated_at = excluded.updated_at
	`, n.Path, n.Checksum, string(tagsJSON), n.Size, n.UpdatedAt.UTC(), n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// Replace links: delete old then bulk insert in written order.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, pos) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for i, target := range links {
			if _, err := stmt.Exec(n.Path, target, i); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// CreatedAt returns the time the note was first indexed.
func (db *DB) CreatedAt(path string) (time.Time, bool, error) {
	var ts time.Time
	err := db.conn.QueryRow(`SELECT created_at FROM notes WHERE path = ?`, path).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("index: created_at: %w", err)
	}
	return ts, true, nil
}

// AllCreated returns the first-seen time of every indexed note.
func (db *DB) AllCreated() (map[string]time.Time, error) {
	rows, err := db.conn.Query(`SELECT path, created_at FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all created: %w", err)
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var p string
		var ts time.Time
		if err := rows.Scan(&p, &ts); err != nil {
			return nil, err
		}
		out[p] = ts
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed notes.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Outlinks returns the raw wikilink targets written in the note, in order.
func (db *DB) Outlinks(source string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT target FROM links WHERE source = ? ORDER BY pos`, source)
	if err != nil {
		return nil, fmt.Errorf("index: outlinks: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// Inlinks returns the paths of notes whose wikilinks point at p. A link
// matches when its target equals the path, the path without extension,
// the file name, or the bare note name.
func (db *DB) Inlinks(p string) ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT source FROM links WHERE target IN (?, ?, ?, ?) ORDER BY source`,
		linkForms(p)...)
	if err != nil {
		return nil, fmt.Errorf("index: inlinks: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func linkForms(p string) []any {
	noExt := strings.TrimSuffix(p, path.Ext(p))
	base := path.Base(p)
	return []any{p, noExt, base, strings.TrimSuffix(base, path.Ext(base))}
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
