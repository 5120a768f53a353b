package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionStarted marks the beginning of a session, carrying a snapshot of
// the configuration it was started with.
type SessionStarted struct {
	sealed
	SessionID        string
	Folder           string
	MaxContextTokens int
	SystemPrompt     string
}

func (e SessionStarted) Type() string { return TypeSessionStarted }

func (e SessionStarted) EstimateTokens() int {
	return 4 + estimateTextTokens(e.SystemPrompt)
}

func (e SessionStarted) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{
		{"session_id", e.SessionID},
		{"folder", e.Folder},
		{"max_context_tokens", intStr(e.MaxContextTokens)},
	}, e.SystemPrompt)
}

// SessionEnded is terminal: once processed, the event loop stops.
type SessionEnded struct {
	sealed
	Reason string
}

func (e SessionEnded) Type() string            { return TypeSessionEnded }
func (e SessionEnded) EstimateTokens() int     { return estimateTextTokens(e.Reason) }
func (e SessionEnded) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"reason", e.Reason}}, "")
}

// SessionCompacted is the first event block of a freshly rotated context
// file, recording the reactor-produced summary and the new file's name.
type SessionCompacted struct {
	sealed
	Summary string
	NewFile string
}

func (e SessionCompacted) Type() string { return TypeSessionCompacted }

func (e SessionCompacted) EstimateTokens() int {
	return estimateTextTokens(e.Summary)
}

func (e SessionCompacted) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"new_file", e.NewFile}}, e.Summary)
}

// MessageReceived is an inbound message from a participant (user, another
// agent, a plugin).
type MessageReceived struct {
	sealed
	Content       string
	ParticipantID string
}

func (e MessageReceived) Type() string { return TypeMessageReceived }

func (e MessageReceived) EstimateTokens() int {
	return estimateTextTokens(e.Content)
}

func (e MessageReceived) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"participant_id", e.ParticipantID}}, e.Content)
}

// AgentThinking carries an intermediate reasoning trace, distinct from the
// agent's final response.
type AgentThinking struct {
	sealed
	Thought string
}

func (e AgentThinking) Type() string            { return TypeAgentThinking }
func (e AgentThinking) EstimateTokens() int     { return estimateTextTokens(e.Thought) }
func (e AgentThinking) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), nil, e.Thought)
}

// ToolCallRef names a tool invocation referenced by an AgentResponded
// event, without carrying the full call/result lifecycle (that's covered
// by the separate ToolCalled/ToolCompleted events).
type ToolCallRef struct {
	Name string
	Args map[string]any
}

// AgentResponded is the agent's final, non-streamed response to a turn.
type AgentResponded struct {
	sealed
	Content   string
	ToolCalls []ToolCallRef
}

func (e AgentResponded) Type() string { return TypeAgentResponded }

func (e AgentResponded) EstimateTokens() int {
	n := estimateTextTokens(e.Content)
	for _, c := range e.ToolCalls {
		n += estimateTextTokens(c.Name) + 1
	}
	return n
}

func (e AgentResponded) ToMarkdownBlock(now time.Time) string {
	names := make([]string, len(e.ToolCalls))
	for i, c := range e.ToolCalls {
		names[i] = c.Name
	}
	return renderBlock(now, e.Type(), []prop{{"tool_calls", fmt.Sprint(names)}}, e.Content)
}

// TextDelta is a single streamed token chunk. Seq is an opaque producer
// hint from the streaming upstream, distinct from (and never compared
// against) the ring's write sequence.
type TextDelta struct {
	sealed
	Delta string
	Seq   uint64
}

func (e TextDelta) Type() string            { return TypeTextDelta }
func (e TextDelta) EstimateTokens() int     { return estimateTextTokens(e.Delta) }
func (e TextDelta) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"seq", uintStr(e.Seq)}}, e.Delta)
}

// ToolCalled records the invocation of a named tool with its arguments.
type ToolCalled struct {
	sealed
	Name string
	Args map[string]any
}

func (e ToolCalled) Type() string { return TypeToolCalled }

func (e ToolCalled) EstimateTokens() int {
	return 2 + estimateTextTokens(e.Name) + estimateTextTokens(argsJSON(e.Args))
}

func (e ToolCalled) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"name", e.Name}}, argsJSON(e.Args))
}

// ToolCompleted records the completion of a previously called tool,
// optionally carrying an error instead of (or alongside) a result.
type ToolCompleted struct {
	sealed
	Name   string
	Result string
	Error  *string
}

func (e ToolCompleted) Type() string { return TypeToolCompleted }

func (e ToolCompleted) EstimateTokens() int {
	n := 2 + estimateTextTokens(e.Name) + estimateTextTokens(e.Result)
	if e.Error != nil {
		n += estimateTextTokens(*e.Error)
	}
	return n
}

func (e ToolCompleted) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{
		{"name", e.Name},
		{"error", optStr(e.Error)},
	}, e.Result)
}

// FileChanged notes that a file the session cares about (a note, a
// knowledge-base entry) was created or modified.
type FileChanged struct {
	sealed
	Path string
	Kind string
}

func (e FileChanged) Type() string            { return TypeFileChanged }
func (e FileChanged) EstimateTokens() int     { return estimateTextTokens(e.Path) }
func (e FileChanged) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"path", e.Path}, {"kind", e.Kind}}, "")
}

// FileDeleted notes that a file the session cares about was removed.
type FileDeleted struct {
	sealed
	Path string
}

func (e FileDeleted) Type() string            { return TypeFileDeleted }
func (e FileDeleted) EstimateTokens() int     { return estimateTextTokens(e.Path) }
func (e FileDeleted) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"path", e.Path}}, "")
}

// EmbeddingFailed records a failure to embed a piece of knowledge-base
// content, identified by entity and (optionally) block.
type EmbeddingFailed struct {
	sealed
	EntityID string
	BlockID  *string
	Error    string
}

func (e EmbeddingFailed) Type() string { return TypeEmbeddingFailed }

func (e EmbeddingFailed) EstimateTokens() int {
	return 2 + estimateTextTokens(e.EntityID) + estimateTextTokens(e.Error)
}

func (e EmbeddingFailed) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{
		{"entity_id", e.EntityID},
		{"block_id", optStr(e.BlockID)},
	}, e.Error)
}

// InteractionRequested asks an external collaborator (the TUI, a plugin)
// for input, identified by a request ID the eventual response should echo
// back.
type InteractionRequested struct {
	sealed
	RequestID string
	Request   string
}

func (e InteractionRequested) Type() string { return TypeInteractionRequested }

func (e InteractionRequested) EstimateTokens() int {
	return estimateTextTokens(e.Request)
}

func (e InteractionRequested) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"request_id", e.RequestID}}, e.Request)
}

// Custom is the escape hatch for reactor-emitted events that don't fit
// any other variant, identified by name and carrying an arbitrary
// JSON-serializable payload.
type Custom struct {
	sealed
	Name    string
	Payload map[string]any
}

func (e Custom) Type() string { return TypeCustom }

func (e Custom) EstimateTokens() int {
	return 2 + estimateTextTokens(e.Name) + estimateTextTokens(argsJSON(e.Payload))
}

func (e Custom) ToMarkdownBlock(now time.Time) string {
	return renderBlock(now, e.Type(), []prop{{"name", e.Name}}, argsJSON(e.Payload))
}

// argsJSON renders a property map as compact JSON for a block's fenced
// body, falling back to an empty object rather than panicking on
// unmarshalable values.
func argsJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

var (
	_ Event = SessionStarted{}
	_ Event = SessionEnded{}
	_ Event = SessionCompacted{}
	_ Event = MessageReceived{}
	_ Event = AgentThinking{}
	_ Event = AgentResponded{}
	_ Event = TextDelta{}
	_ Event = ToolCalled{}
	_ Event = ToolCompleted{}
	_ Event = FileChanged{}
	_ Event = FileDeleted{}
	_ Event = EmbeddingFailed{}
	_ Event = InteractionRequested{}
	_ Event = Custom{}
)
