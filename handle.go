package session

import (
	"github.com/cruciblehq/sessionkernel/errs"
	"github.com/cruciblehq/sessionkernel/event"
)

// Handle is a cheap, clonable producer-side API onto a running Session.
// Multiple handles may be held concurrently by different callers (a TUI
// frame, a streaming bridge, a tool runner); all state transitions go
// through event emission on the shared channel.
type Handle struct {
	sessionID string
	folder    string
	state     *atomicState
	events    chan<- event.Event
	done      <-chan struct{}
}

// SessionID returns the session's identifier.
func (h Handle) SessionID() string { return h.sessionID }

// Folder returns the session's context-file folder.
func (h Handle) Folder() string { return h.folder }

// State returns the session's current lifecycle state.
func (h Handle) State() State { return h.state.Load() }

// IsActive reports whether the session is currently processing events
// (i.e. not Ended).
func (h Handle) IsActive() bool { return h.state.Load() != StateEnded }

// Send submits evt to the session's event loop. It fails with a
// ProcessingFailedError iff the loop has already terminated.
func (h Handle) Send(evt event.Event) error {
	// Checked first so a buffered channel with free room can't accept an
	// event after the loop has already exited.
	select {
	case <-h.done:
		return errs.NewProcessingFailedError("Session channel closed", nil)
	default:
	}
	select {
	case h.events <- evt:
		return nil
	case <-h.done:
		return errs.NewProcessingFailedError("Session channel closed", nil)
	}
}

// defaultParticipantID is the participant Message attributes content to
// when the caller doesn't need to name one explicitly.
const defaultParticipantID = "user"

// Message submits a MessageReceived event attributed to the default
// participant ("user"). Callers that need to name a different
// participant should use MessageFrom instead.
func (h Handle) Message(content string) error {
	return h.MessageFrom(defaultParticipantID, content)
}

// MessageFrom submits a MessageReceived event from the given participant.
func (h Handle) MessageFrom(participantID, content string) error {
	return h.Send(event.MessageReceived{Content: content, ParticipantID: participantID})
}

// Custom submits a Custom event with an arbitrary name and payload.
func (h Handle) Custom(name string, payload map[string]any) error {
	return h.Send(event.Custom{Name: name, Payload: payload})
}

// Thinking submits an AgentThinking event.
func (h Handle) Thinking(thought string) error {
	return h.Send(event.AgentThinking{Thought: thought})
}

// ToolCalled submits a ToolCalled event.
func (h Handle) ToolCalled(name string, args map[string]any) error {
	return h.Send(event.ToolCalled{Name: name, Args: args})
}

// ToolResult submits a successful ToolCompleted event.
func (h Handle) ToolResult(name, result string) error {
	return h.Send(event.ToolCompleted{Name: name, Result: result})
}

// ToolError submits a failed ToolCompleted event.
func (h Handle) ToolError(name, errMsg string) error {
	return h.Send(event.ToolCompleted{Name: name, Error: &errMsg})
}

// End submits a SessionEnded event with the given reason.
func (h Handle) End(reason string) error {
	return h.Send(event.SessionEnded{Reason: reason})
}
