// Package reactor defines the pluggable event-handling capability set the
// session core dispatches into: handle_event, the session lifecycle
// hooks, and the compaction summarizer, plus the per-loop Context those
// hooks run against.
package reactor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cruciblehq/sessionkernel/event"
)

// Config is the subset of session configuration the reactor context
// needs visibility into; it mirrors session.Config's reactor-relevant
// fields without importing the session package (which imports reactor).
type Config struct {
	SessionID        string
	Folder           string
	MaxContextTokens int
	SystemPrompt     string
}

// Reactor is the capability set a session core dispatches into. It is an
// abstraction, not a base class: implementations are expected to compose
// by wrapping one another rather than by inheritance.
//
// Implementations must be safe to share across goroutines. HandleEvent is
// called at most once per event; OnSessionStart and OnSessionEnd are each
// called exactly once per session; OnBeforeCompact is called at most once
// per compaction.
type Reactor interface {
	// HandleEvent may mutate ctx and may emit follow-up events through
	// ctx.Emit. It returns the (possibly transformed) event used for
	// downstream token accounting.
	HandleEvent(ctx *Context, evt event.Event) (event.Event, error)

	// OnSessionStart runs once, after the SessionStarted event has been
	// persisted and before the event loop begins taking further events.
	OnSessionStart(cfg Config) error

	// OnSessionEnd runs once, when the session transitions to Ended.
	OnSessionEnd(reason string) error

	// OnBeforeCompact runs during compaction with a read-only snapshot of
	// the ring window and must produce a markdown summary body.
	OnBeforeCompact(events []event.Event) (string, error)

	// Metadata describes the reactor, primarily for diagnostics.
	Metadata() map[string]string
}

// Context is the mutable scratch state a Reactor's hooks run against: the
// session configuration, the sequence of the event currently being
// processed, token accounting against the configured budget, and an
// embedded event-bus context handlers use to emit follow-up events.
//
// A Context is owned exclusively by the event loop for the duration of a
// single HandleEvent call; the session core is responsible for any
// locking around concurrent access from query-surface readers.
type Context struct {
	Config     Config
	currentSeq uint64
	tokens     int
	bus        *eventBus
	emitted    []event.Event
}

// NewContext constructs a Context for the given session configuration.
func NewContext(cfg Config) *Context {
	return &Context{Config: cfg, bus: newEventBus()}
}

// ResetForEvent clears per-event scratch state ahead of dispatching the
// next event to HandleEvent. Token accounting and bus-emitted events
// already drained are not affected.
func (c *Context) ResetForEvent(seq uint64) {
	c.currentSeq = seq
	c.emitted = nil
}

// CurrentSeq returns the ring sequence of the event currently being
// processed.
func (c *Context) CurrentSeq() uint64 { return c.currentSeq }

// Emit queues a follow-up event to be pushed into the ring once the
// current HandleEvent call returns. Emitted events are drained by the
// session core via TakeEmitted, not observed by later calls within the
// same HandleEvent invocation.
func (c *Context) Emit(evt event.Event) {
	c.bus.emit(evt)
}

// BridgeEventContext drains the embedded event-bus context's queue into
// the reactor context's own emit queue. The session core calls this
// between its two drain passes: first draining the context's own emit
// queue, then bridging the bus (where ctx.Emit queues events) and
// draining again to collect what handlers emitted during this call.
func (c *Context) BridgeEventContext() {
	c.emitted = append(c.emitted, c.bus.take()...)
}

// TakeEmitted returns and clears events queued via Emit (directly, or
// bridged from the event-bus context by BridgeEventContext).
func (c *Context) TakeEmitted() []event.Event {
	out := c.emitted
	c.emitted = nil
	return out
}

// AddTokens accumulates an estimated token count against the session's
// context budget.
func (c *Context) AddTokens(n int) {
	c.tokens += n
}

// TokenCount returns the tokens accumulated since the last
// ResetTokenCount.
func (c *Context) TokenCount() int { return c.tokens }

// ResetTokenCount zeroes the token counter, called once per compaction.
func (c *Context) ResetTokenCount() {
	c.tokens = 0
}

// CompactionRequested reports whether accumulated tokens have reached or
// exceeded the configured budget.
func (c *Context) CompactionRequested() bool {
	return c.Config.MaxContextTokens > 0 && c.tokens >= c.Config.MaxContextTokens
}

// eventBus is the minimal single-goroutine queue HandleEvent implementations
// use via Context.Emit; it exists as a distinct type from Context's own
// emitted slice so BridgeEventContext has two genuinely separate queues to
// drain, matching the two-pass drain the session core performs.
type eventBus struct {
	queue []event.Event
}

func newEventBus() *eventBus {
	return &eventBus{}
}

func (b *eventBus) emit(evt event.Event) {
	b.queue = append(b.queue, evt)
}

func (b *eventBus) take() []event.Event {
	out := b.queue
	b.queue = nil
	return out
}

// DefaultReactor echoes events unchanged and produces a compaction summary
// of counts (messages, tool calls, agent responses, total events) and the
// set of tool names observed in the compacted window.
type DefaultReactor struct{}

var _ Reactor = DefaultReactor{}

// HandleEvent returns evt unchanged.
func (DefaultReactor) HandleEvent(_ *Context, evt event.Event) (event.Event, error) {
	return evt, nil
}

// OnSessionStart is a no-op for the default reactor.
func (DefaultReactor) OnSessionStart(Config) error { return nil }

// OnSessionEnd is a no-op for the default reactor.
func (DefaultReactor) OnSessionEnd(string) error { return nil }

// OnBeforeCompact summarizes the compacted window as event counts and the
// distinct tool names observed.
func (DefaultReactor) OnBeforeCompact(events []event.Event) (string, error) {
	var (
		messages  int
		toolCalls int
		responses int
		tools     = map[string]struct{}{}
	)
	for _, e := range events {
		switch v := e.(type) {
		case event.MessageReceived:
			messages++
		case event.AgentResponded:
			responses++
		case event.ToolCalled:
			toolCalls++
			tools[v.Name] = struct{}{}
		}
	}

	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%d total events, %d messages, %d tool calls, %d agent responses.", len(events), messages, toolCalls, responses)
	if len(names) > 0 {
		fmt.Fprintf(&b, " Tools used: %s.", strings.Join(names, ", "))
	}
	return b.String(), nil
}

// Metadata identifies the default reactor.
func (DefaultReactor) Metadata() map[string]string {
	return map[string]string{"name": "default"}
}
