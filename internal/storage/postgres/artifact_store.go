// Package postgres provides a Postgres-backed artifact store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/hash/sha256"
)

const defaultTable = "dictionaries"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for artifact rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ArtifactStore keeps one row per dictionary.
type ArtifactStore struct {
	pool  pool
	table string
}

// New connects to Postgres and ensures the artifact table exists.
func New(ctx context.Context, cfg Config) (*ArtifactStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &ArtifactStore{pool: p, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*ArtifactStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ArtifactStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ArtifactStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the artifact table when missing.
func (s *ArtifactStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: create table %s: %w", dictionary.ErrIOFailure, s.table, err)
	}
	return nil
}

// Write upserts the encoded records together with their checksum.
func (s *ArtifactStore) Write(ctx context.Context, id string, records []dictionary.Record) error {
	if err := dictionary.ValidateID(id); err != nil {
		return err
	}
	body := dictionary.EncodeRecords(records)
	query := fmt.Sprintf(`
INSERT INTO %s (id, body, checksum, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
SET body = EXCLUDED.body, checksum = EXCLUDED.checksum, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, string(body), sha256.Sum(body)); err != nil {
		return fmt.Errorf("%w: upsert dictionary %s: %w", dictionary.ErrIOFailure, id, err)
	}
	return nil
}

// Read returns the stored artifact body.
func (s *ArtifactStore) Read(ctx context.Context, id string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT body, checksum FROM %s WHERE id = $1`, s.table)
	var body, checksum string
	if err := s.pool.QueryRow(ctx, query, id).Scan(&body, &checksum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dictionary.NotFoundf("no artifact for %q", id)
		}
		return nil, fmt.Errorf("%w: select dictionary %s: %w", dictionary.ErrIOFailure, id, err)
	}
	if err := verify(id, body, checksum); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// ReadAll loads and parses every stored artifact ordered by id.
func (s *ArtifactStore) ReadAll(ctx context.Context) ([]dictionary.Artifact, error) {
	query := fmt.Sprintf(`SELECT id, body, checksum FROM %s ORDER BY id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list dictionaries: %w", dictionary.ErrIOFailure, err)
	}
	defer rows.Close()

	var artifacts []dictionary.Artifact
	for rows.Next() {
		var id, body, checksum string
		if err := rows.Scan(&id, &body, &checksum); err != nil {
			return nil, fmt.Errorf("%w: scan dictionary row: %w", dictionary.ErrIOFailure, err)
		}
		if err := verify(id, body, checksum); err != nil {
			return nil, err
		}
		records, err := dictionary.ParseRecords([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", dictionary.ErrIOFailure, id, err)
		}
		artifacts = append(artifacts, dictionary.Artifact{ID: id, Records: records})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate dictionaries: %w", dictionary.ErrIOFailure, err)
	}
	return artifacts, nil
}

// Delete removes the row for id.
func (s *ArtifactStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: delete dictionary %s: %w", dictionary.ErrIOFailure, id, err)
	}
	if tag.RowsAffected() == 0 {
		return dictionary.NotFoundf("no artifact for %q", id)
	}
	return nil
}

func verify(id, body, checksum string) error {
	if got := sha256.Sum([]byte(body)); got != checksum {
		return fmt.Errorf("%w: checksum mismatch for %s", dictionary.ErrIOFailure, id)
	}
	return nil
}
