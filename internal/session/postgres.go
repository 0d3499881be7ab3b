package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionsTable = `CREATE TABLE IF NOT EXISTS client_sessions (
	session_key TEXT PRIMARY KEY,
	snapshot    JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps snapshots in the client_sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and creates the table if
// it does not exist.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createSessionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create client_sessions table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Load reads a snapshot.
func (p *PostgresStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT snapshot FROM client_sessions WHERE session_key = $1`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewSnapshot(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	return decode(key, data)
}

// Save upserts a snapshot.
func (p *PostgresStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO client_sessions (session_key, snapshot)
		 VALUES ($1, $2)
		 ON CONFLICT (session_key) DO UPDATE SET snapshot = $2, updated_at = NOW()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", key, err)
	}
	return nil
}

// Delete removes a snapshot.
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM client_sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
