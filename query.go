package session

import (
	"path/filepath"

	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/kiln"
)

// RecentMessages returns the last n events whose variant is
// MessageReceived or AgentResponded, oldest first. n <= 0 returns nil.
func (s *Session) RecentMessages(n int) []event.Event {
	if n <= 0 {
		return nil
	}

	all := s.ring.Iter()
	matches := make([]event.Event, 0, n)
	for _, e := range all {
		switch e.(type) {
		case event.MessageReceived, event.AgentResponded:
			matches = append(matches, e)
		}
	}
	if len(matches) > n {
		matches = matches[len(matches)-n:]
	}
	return matches
}

// PendingTools returns the names of tools with a ToolCalled event and no
// later matching ToolCompleted event, in order of first appearance. A
// later ToolCalled for the same name re-enters it into the pending set
// even if it had previously completed.
func (s *Session) PendingTools() []string {
	all := s.ring.Iter()
	pending := map[string]struct{}{}
	ordered := map[string]struct{}{}
	var order []string

	for _, e := range all {
		switch v := e.(type) {
		case event.ToolCalled:
			if _, seen := ordered[v.Name]; !seen {
				ordered[v.Name] = struct{}{}
				order = append(order, v.Name)
			}
			pending[v.Name] = struct{}{}
		case event.ToolCompleted:
			delete(pending, v.Name)
		}
	}

	out := make([]string, 0, len(pending))
	for _, name := range order {
		if _, ok := pending[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// IsStreaming scans from the most recent event backwards and returns true
// iff at least one TextDelta appears before an AgentResponded or
// MessageReceived breaks the chain.
func (s *Session) IsStreaming() bool {
	all := s.ring.Iter()
	for i := len(all) - 1; i >= 0; i-- {
		switch all[i].(type) {
		case event.TextDelta:
			return true
		case event.AgentResponded, event.MessageReceived:
			return false
		}
	}
	return false
}

// TokenCount returns tokens accumulated against the context budget since
// the last compaction.
func (s *Session) TokenCount() int {
	s.reactorMu.RLock()
	defer s.reactorMu.RUnlock()
	return s.reactorCtx.TokenCount()
}

// CurrentFileIndex returns the index of the context file currently being
// appended to.
func (s *Session) CurrentFileIndex() int {
	return s.currentFileIndex()
}

// CurrentFilePath returns the full path of the context file currently
// being appended to.
func (s *Session) CurrentFilePath() string {
	return filepath.Join(s.cfg.Folder, kiln.FileName(s.currentFileIndex()))
}

// IterEvents returns every event currently in the ring's valid window,
// oldest first.
func (s *Session) IterEvents() []event.Event {
	return s.ring.Iter()
}

// GetEvent returns the event at the given ring sequence, if still within
// the valid window.
func (s *Session) GetEvent(seq uint64) (event.Event, bool) {
	return s.ring.Get(seq)
}
