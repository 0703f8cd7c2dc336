// Package sqlite implements catalyst.LongTermStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/catalyst"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing and row counts. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements catalyst.LongTermStore backed by a local SQLite file.
// Entry results and metadata are stored as JSON text.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ catalyst.LongTermStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the memory_entries table. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS memory_entries (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		entry_type TEXT NOT NULL,
		content TEXT NOT NULL,
		sender TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		result TEXT,
		metadata TEXT
	)`)
	if err != nil {
		s.logger.Error("sqlite: init failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("create table: %w", err)
	}

	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_memory_entries_timestamp ON memory_entries(timestamp)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Put inserts or replaces an entry.
func (s *Store) Put(ctx context.Context, entry catalyst.Entry) error {
	start := time.Now()
	s.logger.Debug("sqlite: put entry", "id", entry.ID, "entry_type", entry.Kind)

	var resultJSON *string
	if entry.Result != nil {
		data, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		v := string(data)
		resultJSON = &v
	}
	var metaJSON *string
	if len(entry.Metadata) > 0 {
		data, _ := json.Marshal(entry.Metadata)
		v := string(data)
		metaJSON = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_entries (id, timestamp, entry_type, content, sender, status, result, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, string(entry.Kind), entry.Content, entry.Sender, entry.Status, resultJSON, metaJSON,
	)
	if err != nil {
		s.logger.Error("sqlite: put entry failed", "id", entry.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("put entry: %w", err)
	}
	s.logger.Debug("sqlite: put entry ok", "id", entry.ID, "duration", time.Since(start))
	return nil
}

// All returns every stored entry, oldest first.
func (s *Store) All(ctx context.Context) ([]catalyst.Entry, error) {
	start := time.Now()
	s.logger.Debug("sqlite: all entries")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, entry_type, content, sender, status, result, metadata
		 FROM memory_entries ORDER BY timestamp, id`)
	if err != nil {
		s.logger.Error("sqlite: all entries failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []catalyst.Entry
	for rows.Next() {
		var e catalyst.Entry
		var kind string
		var resultJSON, metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &kind, &e.Content, &e.Sender, &e.Status, &resultJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = catalyst.EntryKind(kind)
		if resultJSON.Valid {
			var result any
			if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
				e.Result = result
			}
		}
		if metaJSON.Valid {
			var meta map[string]any
			if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
				e.Metadata = meta
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	s.logger.Debug("sqlite: all entries ok", "count", len(entries), "duration", time.Since(start))
	return entries, nil
}

// Clear removes all stored entries.
func (s *Store) Clear(ctx context.Context) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries`)
	if err != nil {
		s.logger.Error("sqlite: clear failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("clear entries: %w", err)
	}
	s.logger.Debug("sqlite: clear ok", "duration", time.Since(start))
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
