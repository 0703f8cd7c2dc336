// Package jsonfile implements catalyst.LongTermStore as a single JSON
// file on disk. The whole entry map is rewritten on every Put, which is
// fine for the small volumes an agent marks important; writes go through
// a temp file and rename so a crash never leaves a truncated store.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nevindra/catalyst"
)

// StoreOption configures a jsonfile Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements catalyst.LongTermStore backed by a local JSON file.
// The on-disk format is a JSON object keyed by entry ID.
type Store struct {
	mu     sync.Mutex
	path   string
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

// New creates a Store persisting to the JSON file at path.
// The file is created on the first Put; a missing file reads as empty.
func New(path string, opts ...StoreOption) *Store {
	s := &Store{path: path, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put writes or replaces an entry and rewrites the file.
func (s *Store) Put(ctx context.Context, entry catalyst.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		s.logger.Error("jsonfile: load failed", "path", s.path, "error", err)
		return err
	}
	entries[entry.ID] = entry

	if err := s.save(entries); err != nil {
		s.logger.Error("jsonfile: save failed", "path", s.path, "error", err)
		return err
	}
	s.logger.Debug("jsonfile: put ok", "id", entry.ID, "count", len(entries))
	return nil
}

// All returns every stored entry, oldest first.
func (s *Store) All(ctx context.Context) ([]catalyst.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]catalyst.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Clear removes all stored entries by rewriting an empty map.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]catalyst.Entry{})
}

// Close is a no-op; the file is not held open between operations.
func (s *Store) Close() error { return nil }

func (s *Store) load() (map[string]catalyst.Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]catalyst.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]catalyst.Entry{}, nil
	}

	var entries map[string]catalyst.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("jsonfile: parse %s: %w", s.path, err)
	}
	if entries == nil {
		entries = map[string]catalyst.Entry{}
	}
	return entries, nil
}

func (s *Store) save(entries map[string]catalyst.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".jsonfile-*")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}
