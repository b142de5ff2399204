package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDocumentName is the row key used when none is given
const DefaultDocumentName = "bot_data"

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS bot_documents (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const selectDocument = `SELECT body FROM bot_documents WHERE name = $1`

const upsertDocument = `
INSERT INTO bot_documents (name, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`

const copyDocument = `
INSERT INTO bot_documents (name, body, updated_at)
SELECT $2, body, updated_at FROM bot_documents WHERE name = $1`

// PostgresBackend keeps the whole document in one JSONB row
type PostgresBackend struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresBackend connects to databaseURL and ensures the table exists
func NewPostgresBackend(ctx context.Context, databaseURL, name string) (*PostgresBackend, error) {
	if name == "" {
		name = DefaultDocumentName
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// A single writer never needs many connections
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "discord-arcade-bot",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create bot_documents table: %w", err)
	}

	return &PostgresBackend{pool: pool, name: name}, nil
}

// Load fetches the document row
func (p *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, selectDocument, p.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", p.name, err)
	}
	return body, nil
}

// Save upserts the document row
func (p *PostgresBackend) Save(ctx context.Context, data []byte) error {
	if _, err := p.pool.Exec(ctx, upsertDocument, p.name, data); err != nil {
		return fmt.Errorf("failed to save document %q: %w", p.name, err)
	}
	return nil
}

// Quarantine copies the document row to <name>.corrupt-<unix seconds>
func (p *PostgresBackend) Quarantine(ctx context.Context) (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", p.name, time.Now().Unix())
	tag, err := p.pool.Exec(ctx, copyDocument, p.name, dest)
	if err != nil {
		return "", fmt.Errorf("failed to copy document %q aside: %w", p.name, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("document %q vanished before it could be copied aside", p.name)
	}
	return dest, nil
}

// Close closes the connection pool
func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
