package catalyst

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType identifies the kind of an Event on the wire.
type EventType string

const (
	EventPlanGeneration EventType = "plan_generation"
	EventToolInput      EventType = "tool_input"
	EventToolOutput     EventType = "tool_output"
	EventPlanChange     EventType = "plan_change"
	EventExecutionStep  EventType = "execution_step"
	EventToolError      EventType = "tool_error"
	EventFinalSolution  EventType = "final_solution"
)

// Event is an immutable record of something the agent did. Events are
// published to a Bus during processing and streamed to observers.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"event_type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

// NewEvent creates an Event with a fresh ID and the current time.
func NewEvent(t EventType, data, metadata map[string]any) Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Event{
		ID:        NewID(),
		Type:      t,
		Timestamp: NowUnix(),
		Data:      data,
		Metadata:  metadata,
	}
}

// Bus is a bounded FIFO event queue. Publishing never blocks: when the
// bus is full the oldest event is dropped and a warning is logged.
//
// Events from a single goroutine are observed in publication order.
// With multiple publishers ordering is only per-publisher.
type Bus struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	logger   *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// BusCapacity sets the maximum number of buffered events (default: 1000).
func BusCapacity(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// BusLogger sets the structured logger used for overflow warnings.
// If not set, a no-op logger is used.
func BusLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates an event bus with the default capacity of 1000.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{capacity: 1000}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = nopLogger
	}
	return b
}

// Publish appends an event. If the bus is at capacity the oldest event
// is dropped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.capacity {
		dropped := b.events[0]
		b.events = b.events[1:]
		b.logger.Warn("event bus full, dropping oldest event",
			"dropped_id", dropped.ID,
			"dropped_type", string(dropped.Type),
			"capacity", b.capacity)
	}
	b.events = append(b.events, ev)
}

// DrainOne removes and returns the oldest event. The second return is
// false when the bus is empty.
func (b *Bus) DrainOne() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return Event{}, false
	}
	ev := b.events[0]
	b.events = b.events[1:]
	return ev, true
}

// Events returns a snapshot of buffered events in publication order,
// optionally filtered by type. The snapshot is a copy; later publishes
// do not affect it.
func (b *Bus) Events(types ...EventType) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		out := make([]Event, len(b.events))
		copy(out, b.events)
		return out
	}
	var out []Event
	for _, ev := range b.events {
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// Latest returns the most recent buffered event, optionally filtered by
// type. The second return is false when no event matches.
func (b *Bus) Latest(types ...EventType) (Event, bool) {
	events := b.Events(types...)
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}

// Len returns the number of buffered events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Clear removes all buffered events.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Subscribe drains the bus into a channel until ctx is cancelled. The
// returned channel is closed on cancellation. The bus supports a single
// subscriber at a time; concurrent subscribers steal events from each
// other.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for {
			ev, ok := b.DrainOne()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// --- Publishing helpers ---

// PublishToolInput records a tool invocation about to happen.
func (b *Bus) PublishToolInput(toolName string, args map[string]any, metadata map[string]any) string {
	ev := NewEvent(EventToolInput, map[string]any{
		"tool_name": toolName,
		"tool_args": args,
	}, metadata)
	b.Publish(ev)
	return ev.ID
}

// PublishToolOutput records the outcome of a tool invocation.
func (b *Bus) PublishToolOutput(toolName string, success bool, data any, errMsg string, metadata map[string]any) string {
	ev := NewEvent(EventToolOutput, map[string]any{
		"tool_name": toolName,
		"success":   success,
		"data":      data,
		"error":     errMsg,
	}, metadata)
	b.Publish(ev)
	return ev.ID
}

// PublishToolError records a tool failure.
func (b *Bus) PublishToolError(toolName, errMsg string, metadata map[string]any) string {
	ev := NewEvent(EventToolError, map[string]any{
		"tool_name": toolName,
		"error":     errMsg,
	}, metadata)
	b.Publish(ev)
	return ev.ID
}

// PublishPlanGeneration records a generated or adjusted plan.
func (b *Bus) PublishPlanGeneration(goal string, plan []map[string]any, reasoning string) string {
	ev := NewEvent(EventPlanGeneration, map[string]any{
		"goal":      goal,
		"plan":      plan,
		"reasoning": reasoning,
	}, nil)
	b.Publish(ev)
	return ev.ID
}

// PublishPlanError records a planning failure.
func (b *Bus) PublishPlanError(goal, errMsg string) string {
	ev := NewEvent(EventPlanGeneration, map[string]any{
		"goal":  goal,
		"error": errMsg,
	}, nil)
	b.Publish(ev)
	return ev.ID
}

// PublishPlanChange records a plan reconstructed after re-evaluation.
func (b *Bus) PublishPlanChange(goal string, plan []map[string]any, reasoning string) string {
	ev := NewEvent(EventPlanChange, map[string]any{
		"goal":      goal,
		"plan":      plan,
		"reasoning": reasoning,
	}, nil)
	b.Publish(ev)
	return ev.ID
}

// PublishExecutionStep records a step reaching a terminal status.
func (b *Bus) PublishExecutionStep(stepID, description, toolName, status string) string {
	ev := NewEvent(EventExecutionStep, map[string]any{
		"step_id":     stepID,
		"description": description,
		"tool_name":   toolName,
		"status":      status,
	}, nil)
	b.Publish(ev)
	return ev.ID
}

// PublishFinalSolution records the agent's final response.
func (b *Bus) PublishFinalSolution(solution string) string {
	ev := NewEvent(EventFinalSolution, map[string]any{
		"solution": solution,
	}, nil)
	b.Publish(ev)
	return ev.ID
}
