// Package fetchscope ties asynchronous fetches to the navigation selection that
// was current when they were issued, and filters out responses that arrive
// after the selection has moved on.
//
// A Coordinator holds exactly one piece of shared state: the current selection
// token plus a generation counter that advances every time the token actually
// changes. Each fetch captures both in a Ticket. When the fetch resolves, its
// result is usable only if the ticket still matches; otherwise the result is
// reported as superseded and the caller must not apply it.
//
// The coordinator never cancels the underlying request. Requests against the
// job server cannot always be aborted, so results are filtered, not prevented.
//
// Two fetches for the same, still current token are not ordered relative to
// each other: whichever resolves is applied. Callers that need last-issued-wins
// for repeated draws of one view (pagination) layer a draw counter on top.
package fetchscope

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starexec/jobview/internal/events"
	"github.com/starexec/jobview/internal/logging"
)

// ErrNoSelection is returned when a fetch is issued before any selection was made.
var ErrNoSelection = errors.New("fetchscope: no active selection")

// Ticket is the pending request record for one fetch: the request id, the
// token it was issued for and the selection generation observed at dispatch.
type Ticket[K comparable] struct {
	ID       string
	Token    K
	IssuedAt time.Time

	generation uint64
}

// Generation returns the selection generation captured when the ticket was issued.
func (t Ticket[K]) Generation() uint64 {
	return t.generation
}

// Stats counts fetch outcomes since the coordinator was created.
type Stats struct {
	Issued     int64
	Applied    int64
	Superseded int64
	Failed     int64
}

// Option configures a Coordinator.
type Option func(*settings)

type settings struct {
	name   string
	logger *logging.Logger
	bus    *events.EventBus
	now    func() time.Time
}

// WithName labels log lines and events emitted by the coordinator.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the logger used for debug output about superseded results.
func WithLogger(logger *logging.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithEventBus publishes selection changes and fetch outcomes on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *settings) { s.bus = bus }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Coordinator tracks the current selection token of type K.
// The zero value is not usable; create one with New.
type Coordinator[K comparable] struct {
	mu         sync.Mutex
	current    K
	selected   bool
	generation uint64

	settings settings

	issued     atomic.Int64
	applied    atomic.Int64
	superseded atomic.Int64
	failed     atomic.Int64
}

// New creates a coordinator with no selection.
func New[K comparable](opts ...Option) *Coordinator[K] {
	s := settings{
		name:   "selection",
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Coordinator[K]{settings: s}
}

// Select makes token the current selection. It returns true when the selection
// actually changed, in which case every ticket issued before is now stale and
// callers should clear views derived from the previous token. Selecting the
// current token again is a no-op and keeps in-flight tickets valid.
func (c *Coordinator[K]) Select(token K) bool {
	return c.SelectFunc(token, nil)
}

// SelectFunc is Select that also runs onChange under the selection lock when
// the selection changes, so views can be reset before any other goroutine
// observes the new token. onChange must not call back into the coordinator.
func (c *Coordinator[K]) SelectFunc(token K, onChange func()) bool {
	c.mu.Lock()
	if c.selected && c.current == token {
		c.mu.Unlock()
		return false
	}
	previous, hadPrevious := c.current, c.selected
	c.current = token
	c.selected = true
	c.generation++
	generation := c.generation
	if onChange != nil {
		onChange()
	}
	c.mu.Unlock()

	prev := ""
	if hadPrevious {
		prev = fmt.Sprint(previous)
	}
	c.settings.logger.Debug().
		Str("scope", c.settings.name).
		Str("from", prev).
		Str("to", fmt.Sprint(token)).
		Uint64("generation", generation).
		Msg("selection changed")
	c.settings.bus.PublishSelection(c.settings.name, prev, fmt.Sprint(token), generation)
	return true
}

// WhileCurrent runs fn under the selection lock if token is the current
// selection and reports whether it ran. Callers use it for bookkeeping that
// must only happen on behalf of the current token, such as marking a view as
// loading. fn must not call back into the coordinator.
func (c *Coordinator[K]) WhileCurrent(token K, fn func()) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return false, ErrNoSelection
	}
	if c.current != token {
		return false, nil
	}
	fn()
	return true, nil
}

// Generation returns the selection generation, which advances on every
// change of the current token.
func (c *Coordinator[K]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Current returns the current token and whether anything is selected.
func (c *Coordinator[K]) Current() (K, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.selected
}

// IsCurrent reports whether token is the current selection.
func (c *Coordinator[K]) IsCurrent(token K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected && c.current == token
}

// Issue creates the pending request record for a fetch on behalf of token.
// It fails with ErrNoSelection if nothing has been selected yet. A ticket issued
// for a token other than the current one is born stale and never becomes valid,
// even if the user later navigates back to that token.
func (c *Coordinator[K]) Issue(token K) (Ticket[K], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return Ticket[K]{}, ErrNoSelection
	}
	c.issued.Add(1)
	t := Ticket[K]{
		ID:       uuid.NewString(),
		Token:    token,
		IssuedAt: c.settings.now(),
	}
	if c.current == token {
		t.generation = c.generation
	}
	return t, nil
}

// Valid reports whether results for t may still be applied.
func (c *Coordinator[K]) Valid(t Ticket[K]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked(t)
}

func (c *Coordinator[K]) validLocked(t Ticket[K]) bool {
	return c.selected && t.generation != 0 && t.generation == c.generation && c.current == t.Token
}

// Resolve records the outcome of the request behind t and reports whether the
// caller may apply it. err is the request's own error, if any. A stale ticket
// yields false regardless of err.
func (c *Coordinator[K]) Resolve(t Ticket[K], err error) bool {
	c.mu.Lock()
	ok := c.validLocked(t)
	c.mu.Unlock()
	c.record(t, ok, err)
	return ok
}

// Do runs apply while holding the selection lock if t is still valid, so that
// no Select can interleave between the check and the apply. apply must not call
// back into the coordinator. It reports whether apply ran.
func (c *Coordinator[K]) Do(t Ticket[K], err error, apply func()) bool {
	c.mu.Lock()
	ok := c.validLocked(t)
	if ok && apply != nil {
		apply()
	}
	c.mu.Unlock()
	c.record(t, ok, err)
	return ok
}

func (c *Coordinator[K]) record(t Ticket[K], current bool, err error) {
	elapsed := c.settings.now().Sub(t.IssuedAt)
	token := fmt.Sprint(t.Token)

	switch {
	case !current:
		c.superseded.Add(1)
		c.settings.logger.Debug().
			Str("scope", c.settings.name).
			Str("request_id", t.ID).
			Str("token", token).
			Dur("elapsed", elapsed).
			Msg("discarding superseded result")
		c.settings.bus.PublishFetch(events.EventFetchSuperseded, c.settings.name, t.ID, token, elapsed, err)
	case err != nil:
		c.failed.Add(1)
		c.settings.bus.PublishFetch(events.EventFetchFailed, c.settings.name, t.ID, token, elapsed, err)
	default:
		c.applied.Add(1)
		c.settings.bus.PublishFetch(events.EventFetchApplied, c.settings.name, t.ID, token, elapsed, nil)
	}
}

// Stats returns a snapshot of outcome counters.
func (c *Coordinator[K]) Stats() Stats {
	return Stats{
		Issued:     c.issued.Load(),
		Applied:    c.applied.Load(),
		Superseded: c.superseded.Load(),
		Failed:     c.failed.Load(),
	}
}
