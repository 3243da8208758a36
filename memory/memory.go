// Package memory implements an optional SQLite-backed translation memory.
//
// The store maps (source text, source language, target language) to a
// translated text, so repeated runs over overlapping exports reuse earlier
// API results instead of re-translating identical strings.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a translation memory backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the translation memory database at path,
// creating parent directories and applying the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating memory directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
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

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS translations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_text TEXT NOT NULL,
    source_lang TEXT NOT NULL,
    target_lang TEXT NOT NULL,
    translated_text TEXT NOT NULL,
    hits INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    UNIQUE(source_text, source_lang, target_lang)
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the stored translation for a source text and language
// pair. A hit bumps the usage counter.
func (s *Store) Lookup(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error) {
	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated_text FROM translations
         WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		sourceText, sourceLang, targetLang,
	).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("memory lookup: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translations SET hits = hits + 1
         WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		sourceText, sourceLang, targetLang,
	)
	if err != nil {
		return "", false, fmt.Errorf("memory hit count: %w", err)
	}

	return translated, true, nil
}

// Save stores a translation, replacing any previous entry for the same
// source text and language pair.
func (s *Store) Save(ctx context.Context, sourceText, sourceLang, targetLang, translatedText string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (source_text, source_lang, target_lang, translated_text, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(source_text, source_lang, target_lang)
         DO UPDATE SET translated_text = excluded.translated_text`,
		sourceText, sourceLang, targetLang, translatedText,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("memory save: %w", err)
	}
	return nil
}

// Stats returns the number of stored entries and the total hit count.
func (s *Store) Stats(ctx context.Context) (entries, hits int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM translations`,
	).Scan(&entries, &hits)
	if err != nil {
		return 0, 0, fmt.Errorf("memory stats: %w", err)
	}
	return entries, hits, nil
}
