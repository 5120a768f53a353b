package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel"
)

func TestStart_CreatesInitialFileWithSessionStartedBlock(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	path := filepath.Join(dir, "000-context.md")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	headers, err := event.ParseAllBlockHeaders(string(content))
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, event.TypeSessionStarted, headers[0].Type)
	assert.Contains(t, string(content), "| session_id | S1 |")
}

func TestAppendPipeline_PersistsEventsInOrderAndClearsPendingTools(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	h := s.Handle()
	require.NoError(t, h.Message("hi"))
	require.NoError(t, h.ToolCalled("search", map[string]any{"q": "x"}))
	require.NoError(t, h.ToolResult("search", "ok"))
	require.NoError(t, h.End("done"))

	require.NoError(t, <-done)

	content, err := os.ReadFile(filepath.Join(dir, "000-context.md"))
	require.NoError(t, err)
	headers, err := event.ParseAllBlockHeaders(string(content))
	require.NoError(t, err)

	require.Len(t, headers, 5)
	wantTypes := []string{
		event.TypeSessionStarted,
		event.TypeMessageReceived,
		event.TypeToolCalled,
		event.TypeToolCompleted,
		event.TypeSessionEnded,
	}
	for i, want := range wantTypes {
		assert.Equal(t, want, headers[i].Type, "block %d", i)
	}
	assert.Contains(t, string(content), "| participant_id | user |")
}

func TestHandle_MessageFromOverridesDefaultParticipant(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	h := s.Handle()
	require.NoError(t, h.MessageFrom("reviewer", "looks good"))
	require.NoError(t, h.End("done"))
	require.NoError(t, <-done)

	content, err := os.ReadFile(filepath.Join(dir, "000-context.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "| participant_id | reviewer |")
	assert.NotContains(t, string(content), "| participant_id | user |")
}

func TestCompaction_RollsOverToNewFileWithBitStableHeader(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir,
		session.WithSessionID("S1"),
		session.WithMaxContextTokens(5),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	h := s.Handle()
	// Each message comfortably exceeds the tiny 5-token budget, forcing
	// compaction on the very first processed message.
	require.NoError(t, h.Message("this message alone is long enough to blow the budget"))
	require.NoError(t, h.End("done"))
	require.NoError(t, <-done)

	assert.Equal(t, 1, s.CurrentFileIndex())

	newContent, err := os.ReadFile(filepath.Join(dir, "001-context.md"))
	require.NoError(t, err)
	assert.Contains(t, string(newContent), "# Session Context (Compacted)")
	assert.Contains(t, string(newContent), "[[000-context|full history]]")
	assert.Contains(t, string(newContent), "## Summary")

	headers, err := event.ParseAllBlockHeaders(string(newContent))
	require.NoError(t, err)
	require.NotEmpty(t, headers)
	assert.Equal(t, event.TypeSessionCompacted, headers[0].Type)

	oldContent, err := os.ReadFile(filepath.Join(dir, "000-context.md"))
	require.NoError(t, err)
	assert.Contains(t, string(oldContent), event.TypeSessionStarted)
}

func TestHandle_SendFailsAfterLoopTerminates(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	h := s.Handle()
	require.NoError(t, h.End("bye"))
	require.NoError(t, <-done)

	err = h.Send(event.MessageReceived{Content: "too late"})
	assert.Error(t, err)
}

func TestEnd_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	s.End("first")
	s.End("second")
	assert.Equal(t, session.StateEnded, s.State())
}

func TestQuerySurface_PendingToolsAndIsStreaming(t *testing.T) {
	dir := t.TempDir()
	s, err := session.New(dir, session.WithSessionID("S1"))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	h := s.Handle()
	require.NoError(t, h.ToolCalled("search", nil))
	require.NoError(t, h.ToolCalled("lookup", nil))
	require.NoError(t, h.ToolResult("search", "ok"))
	require.NoError(t, h.Send(event.TextDelta{Delta: "Hel", Seq: 0}))
	require.NoError(t, h.End("done"))
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"lookup"}, s.PendingTools())
	// The TextDelta is the latest event not followed by an AgentResponded
	// or MessageReceived (SessionEnded doesn't break the chain).
	assert.True(t, s.IsStreaming())
}
