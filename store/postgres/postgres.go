// Package postgres implements catalyst.LongTermStore using PostgreSQL.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/catalyst"
)

// Store implements catalyst.LongTermStore backed by PostgreSQL.
// Entry results and metadata are stored as JSONB.
type Store struct {
	pool *pgxpool.Pool
}

var _ catalyst.LongTermStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the memory_entries table and its index.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			entry_type TEXT NOT NULL,
			content TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			result JSONB,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS memory_entries_timestamp_idx ON memory_entries(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces an entry.
func (s *Store) Put(ctx context.Context, entry catalyst.Entry) error {
	var resultJSON []byte
	if entry.Result != nil {
		data, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("postgres: marshal result: %w", err)
		}
		resultJSON = data
	}
	var metaJSON []byte
	if len(entry.Metadata) > 0 {
		data, _ := json.Marshal(entry.Metadata)
		metaJSON = data
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_entries (id, timestamp, entry_type, content, sender, status, result, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   timestamp = EXCLUDED.timestamp,
		   entry_type = EXCLUDED.entry_type,
		   content = EXCLUDED.content,
		   sender = EXCLUDED.sender,
		   status = EXCLUDED.status,
		   result = EXCLUDED.result,
		   metadata = EXCLUDED.metadata`,
		entry.ID, entry.Timestamp, string(entry.Kind), entry.Content, entry.Sender, entry.Status, resultJSON, metaJSON)
	if err != nil {
		return fmt.Errorf("postgres: put entry: %w", err)
	}
	return nil
}

// All returns every stored entry, oldest first.
func (s *Store) All(ctx context.Context) ([]catalyst.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, timestamp, entry_type, content, sender, status, result, metadata
		 FROM memory_entries ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query entries: %w", err)
	}
	defer rows.Close()

	var entries []catalyst.Entry
	for rows.Next() {
		var e catalyst.Entry
		var kind string
		var resultJSON, metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &kind, &e.Content, &e.Sender, &e.Status, &resultJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		e.Kind = catalyst.EntryKind(kind)
		if len(resultJSON) > 0 {
			var result any
			if err := json.Unmarshal(resultJSON, &result); err == nil {
				e.Result = result
			}
		}
		if len(metaJSON) > 0 {
			var meta map[string]any
			if err := json.Unmarshal(metaJSON, &meta); err == nil {
				e.Metadata = meta
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate entries: %w", err)
	}
	return entries, nil
}

// Clear removes all stored entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM memory_entries`); err != nil {
		return fmt.Errorf("postgres: clear entries: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }
