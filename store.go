package catalyst

import "context"

// LongTermStore persists memory entries durably, keyed by entry ID.
// Implementations live under store/ (jsonfile, sqlite, postgres).
type LongTermStore interface {
	// Put writes or replaces an entry.
	Put(ctx context.Context, entry Entry) error

	// All returns every stored entry.
	All(ctx context.Context) ([]Entry, error)

	// Clear removes all stored entries.
	Clear(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
