package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/starexec/jobview/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// Selection and fetch lifecycle
	EventSelectionChanged EventType = "selection_changed" // Current job space changed
	EventFetchApplied     EventType = "fetch_applied"     // Response matched the current selection
	EventFetchSuperseded  EventType = "fetch_superseded"  // Response arrived for an abandoned selection
	EventFetchFailed      EventType = "fetch_failed"      // Request failed while its selection was current
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Scope   string
	Error   error
}

// SelectionEvent is published when the coordinator's current selection changes.
type SelectionEvent struct {
	BaseEvent
	Scope      string // coordinator name, e.g. "job-space"
	Previous   string // empty when nothing was selected before
	Current    string
	Generation uint64
}

// FetchEvent describes the outcome of one selection-scoped fetch.
// EventType is one of EventFetchApplied, EventFetchSuperseded or EventFetchFailed.
type FetchEvent struct {
	BaseEvent
	Scope     string
	RequestID string
	Token     string
	Elapsed   time.Duration
	Error     error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for full subscriber channels are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, scope string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		Scope:   scope,
		Error:   err,
	})
}

// PublishSelection is a convenience method for publishing selection changes
func (eb *EventBus) PublishSelection(scope, previous, current string, generation uint64) {
	eb.Publish(&SelectionEvent{
		BaseEvent: BaseEvent{
			EventType: EventSelectionChanged,
			Time:      time.Now(),
		},
		Scope:      scope,
		Previous:   previous,
		Current:    current,
		Generation: generation,
	})
}

// PublishFetch is a convenience method for publishing fetch outcomes
func (eb *EventBus) PublishFetch(eventType EventType, scope, requestID, token string, elapsed time.Duration, err error) {
	eb.Publish(&FetchEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		Scope:     scope,
		RequestID: requestID,
		Token:     token,
		Elapsed:   elapsed,
		Error:     err,
	})
}

// UnsubscribeAll removes ch from every subscription and closes it, so a
// reader ranging over ch drains what is buffered and then stops.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	var found chan Event
	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				found = subCh
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}
	for i, subCh := range eb.all {
		if subCh == ch {
			found = subCh
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
	if found != nil {
		close(found)
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
