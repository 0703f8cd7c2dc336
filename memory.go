package catalyst

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Senders recorded on message entries.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Execution statuses recorded on execution entries.
const (
	ExecStarted   = "started"
	ExecCompleted = "completed"
	ExecFailed    = "failed"
)

// EntryKind discriminates memory entry types.
type EntryKind string

const (
	EntryMessage   EntryKind = "message"
	EntryExecution EntryKind = "execution"
)

// Entry is a single item in agent memory: either a conversation message
// or a record of an execution step.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Kind      EntryKind      `json:"entry_type"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender,omitempty"`
	Status    string         `json:"status,omitempty"`
	Result    any            `json:"result,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// Memory coordinates a bounded short-term ring of recent entries with an
// optional durable long-term store. Entries marked important are written
// through to the store.
//
// Writers serialize through a mutex; readers receive snapshots.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
	store    LongTermStore
	logger   *slog.Logger
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// MemoryCapacity sets the short-term ring capacity (default: 10).
func MemoryCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// MemoryStore attaches a durable long-term store. Entries added with
// important=true are persisted to it.
func MemoryStore(s LongTermStore) MemoryOption {
	return func(m *Memory) { m.store = s }
}

// MemoryLogger sets the structured logger. If not set, no logs are emitted.
func MemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

// NewMemory creates a Memory with the default short-term capacity of 10.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{capacity: 10}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = nopLogger
	}
	return m
}

// AddMessage records a conversation message. The sender is mirrored into
// metadata so metadata queries can match it.
func (m *Memory) AddMessage(ctx context.Context, content, sender string, important bool, metadata map[string]any) (Entry, error) {
	meta := copyMeta(metadata)
	meta["sender"] = sender
	entry := Entry{
		ID:        NewID(),
		Timestamp: NowUnix(),
		Kind:      EntryMessage,
		Content:   content,
		Sender:    sender,
		Metadata:  meta,
	}
	return entry, m.add(ctx, entry, important)
}

// AddExecution records an execution step. Status and result are mirrored
// into metadata.
func (m *Memory) AddExecution(ctx context.Context, action, status string, result any, important bool, metadata map[string]any) (Entry, error) {
	meta := copyMeta(metadata)
	meta["status"] = status
	if result != nil {
		meta["result"] = fmt.Sprint(result)
	}
	entry := Entry{
		ID:        NewID(),
		Timestamp: NowUnix(),
		Kind:      EntryExecution,
		Content:   action,
		Status:    status,
		Result:    result,
		Metadata:  meta,
	}
	return entry, m.add(ctx, entry, important)
}

func (m *Memory) add(ctx context.Context, entry Entry, important bool) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	for len(m.entries) > m.capacity {
		m.entries = m.entries[1:]
	}
	m.mu.Unlock()

	if important && m.store != nil {
		if err := m.store.Put(ctx, entry); err != nil {
			m.logger.Error("memory: persist entry failed", "id", entry.ID, "error", err)
			return fmt.Errorf("memory: persist entry: %w", err)
		}
	}
	return nil
}

// Get returns the entry with the given ID, checking short-term memory
// first, then the long-term store.
func (m *Memory) Get(ctx context.Context, id string) (Entry, bool) {
	m.mu.RLock()
	for _, e := range m.entries {
		if e.ID == id {
			m.mu.RUnlock()
			return e, true
		}
	}
	m.mu.RUnlock()

	if m.store == nil {
		return Entry{}, false
	}
	all, err := m.store.All(ctx)
	if err != nil {
		m.logger.Error("memory: long-term lookup failed", "id", id, "error", err)
		return Entry{}, false
	}
	for _, e := range all {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Search returns entries matching every predicate in query. Recognized
// keys: "entry_type", "sender", and "status" match exactly; "content"
// matches as a substring; any other key must equal the entry's metadata
// value. When includeLongTerm is set, stored entries are searched too and
// deduplicated by ID.
func (m *Memory) Search(ctx context.Context, query map[string]any, includeLongTerm bool) ([]Entry, error) {
	m.mu.RLock()
	var results []Entry
	seen := make(map[string]bool)
	for _, e := range m.entries {
		if matchEntry(e, query) {
			results = append(results, e)
			seen[e.ID] = true
		}
	}
	m.mu.RUnlock()

	if !includeLongTerm || m.store == nil {
		return results, nil
	}

	stored, err := m.store.All(ctx)
	if err != nil {
		return results, fmt.Errorf("memory: long-term search: %w", err)
	}
	for _, e := range stored {
		if !seen[e.ID] && matchEntry(e, query) {
			results = append(results, e)
			seen[e.ID] = true
		}
	}
	return results, nil
}

func matchEntry(e Entry, query map[string]any) bool {
	for key, value := range query {
		switch key {
		case "entry_type":
			s, ok := value.(string)
			if !ok || EntryKind(s) != e.Kind {
				return false
			}
		case "sender":
			s, ok := value.(string)
			if !ok || e.Sender != s {
				return false
			}
		case "status":
			s, ok := value.(string)
			if !ok || e.Status != s {
				return false
			}
		case "content":
			if !strings.Contains(e.Content, fmt.Sprint(value)) {
				return false
			}
		default:
			got, ok := e.Metadata[key]
			if !ok || fmt.Sprint(got) != fmt.Sprint(value) {
				return false
			}
		}
	}
	return true
}

// Recent returns the most recent entries of any kind. A non-positive
// limit returns everything in short-term memory.
func (m *Memory) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if limit > 0 && limit < len(m.entries) {
		start = len(m.entries) - limit
	}
	out := make([]Entry, len(m.entries)-start)
	copy(out, m.entries[start:])
	return out
}

// ConversationHistory returns the message entries currently in
// short-term memory, oldest first.
func (m *Memory) ConversationHistory() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Kind == EntryMessage {
			out = append(out, e)
		}
	}
	return out
}

// ConversationText renders the conversation history as "Sender: content"
// lines.
func (m *Memory) ConversationText() string {
	messages := m.ConversationHistory()
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, capitalize(msg.Sender)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// ClearShortTerm drops all short-term entries. The long-term store is
// untouched.
func (m *Memory) ClearShortTerm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// ClearAll drops short-term entries and clears the long-term store.
func (m *Memory) ClearAll(ctx context.Context) error {
	m.ClearShortTerm()
	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("memory: clear long-term: %w", err)
	}
	return nil
}

func copyMeta(metadata map[string]any) map[string]any {
	meta := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	return meta
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
