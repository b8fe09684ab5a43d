package obscure

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/hannes/docshield/pii"
)

// SQLiteTokenStore persists token mappings in a local SQLite file so
// reversible tokens survive process restarts. AUTOINCREMENT keeps token IDs
// monotonic even across Clear.
type SQLiteTokenStore struct {
	db *sql.DB
}

func NewSQLiteTokenStore(path string) (*SQLiteTokenStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT UNIQUE,
		type TEXT NOT NULL,
		original TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tokens_token ON tokens(token);`
	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[SQLiteTokenStore] Failed to close database: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[SQLiteTokenStore] Opened token store at %s", path)
	return &SQLiteTokenStore{db: db}, nil
}

func (s *SQLiteTokenStore) Tokenize(prefix string, typ pii.Type, original string) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.Exec(`INSERT INTO tokens (type, original) VALUES (?, ?)`, string(typ), original)
	if err != nil {
		return "", fmt.Errorf("failed to insert token row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read token id: %w", err)
	}

	token := formatToken(prefix, typ, id)
	if _, err := tx.Exec(`UPDATE tokens SET token = ? WHERE id = ?`, token, id); err != nil {
		return "", fmt.Errorf("failed to set token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit token: %w", err)
	}
	return token, nil
}

func (s *SQLiteTokenStore) Resolve(token string) (string, bool, error) {
	var original string
	err := s.db.QueryRow(`SELECT original FROM tokens WHERE token = ?`, token).Scan(&original)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query token: %w", err)
	}
	return original, true, nil
}

func (s *SQLiteTokenStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM tokens`); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

func (s *SQLiteTokenStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return n, nil
}

func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}
