package obscure

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/hannes/docshield/pii"
)

// PostgresTokenStore persists token mappings in PostgreSQL for deployments
// where multiple instances must share one token map. BIGSERIAL keeps token
// IDs monotonic across Clear.
type PostgresTokenStore struct {
	db *sql.DB
}

// PostgresConfig carries connection settings for the token store.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

func NewPostgresTokenStore(cfg PostgresConfig) (*PostgresTokenStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, cfg.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[PostgresTokenStore] Failed to close database: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		id BIGSERIAL PRIMARY KEY,
		token TEXT UNIQUE,
		type TEXT NOT NULL,
		original TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_tokens_token ON tokens(token);`
	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[PostgresTokenStore] Failed to close database: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[PostgresTokenStore] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return &PostgresTokenStore{db: db}, nil
}

func (s *PostgresTokenStore) Tokenize(prefix string, typ pii.Type, original string) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	err = tx.QueryRow(`INSERT INTO tokens (type, original) VALUES ($1, $2) RETURNING id`,
		string(typ), original).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert token row: %w", err)
	}

	token := formatToken(prefix, typ, id)
	if _, err := tx.Exec(`UPDATE tokens SET token = $1 WHERE id = $2`, token, id); err != nil {
		return "", fmt.Errorf("failed to set token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit token: %w", err)
	}
	return token, nil
}

func (s *PostgresTokenStore) Resolve(token string) (string, bool, error) {
	var original string
	err := s.db.QueryRow(`SELECT original FROM tokens WHERE token = $1`, token).Scan(&original)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query token: %w", err)
	}
	return original, true, nil
}

func (s *PostgresTokenStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM tokens`); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return n, nil
}

func (s *PostgresTokenStore) Close() error {
	return s.db.Close()
}
