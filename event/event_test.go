package event_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/sessionkernel/event"
)

func TestToMarkdownBlock_RoundTripsTypeAndTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	variants := []event.Event{
		event.SessionStarted{SessionID: "S1", Folder: "/tmp/S1", MaxContextTokens: 100},
		event.SessionEnded{Reason: "done"},
		event.SessionCompacted{Summary: "a summary", NewFile: "001-context"},
		event.MessageReceived{Content: "hi", ParticipantID: "user"},
		event.AgentThinking{Thought: "hmm"},
		event.AgentResponded{Content: "hello"},
		event.TextDelta{Delta: "Hel", Seq: 1},
		event.ToolCalled{Name: "search", Args: map[string]any{"q": "x"}},
		event.ToolCompleted{Name: "search", Result: "ok"},
		event.FileChanged{Path: "a.md", Kind: "modified"},
		event.FileDeleted{Path: "a.md"},
		event.EmbeddingFailed{EntityID: "e1", Error: "boom"},
		event.InteractionRequested{RequestID: "r1", Request: "confirm?"},
		event.Custom{Name: "cancelled", Payload: map[string]any{"reason": "user"}},
	}

	for _, v := range variants {
		v := v
		t.Run(v.Type(), func(t *testing.T) {
			block := v.ToMarkdownBlock(now)
			assert.True(t, strings.HasSuffix(strings.TrimRight(block, "\n"), "---"))

			header, err := event.ParseBlockHeader(block)
			require.NoError(t, err)
			assert.Equal(t, v.Type(), header.Type)
			assert.True(t, now.Equal(header.Timestamp), "got %s want %s", header.Timestamp, now)
		})
	}
}

func TestToolCompleted_RendersAbsentErrorAsSentinel(t *testing.T) {
	e := event.ToolCompleted{Name: "search", Result: "ok"}
	block := e.ToMarkdownBlock(time.Now())
	assert.Contains(t, block, "| error | ∅ |")
}

func TestToolCompleted_RendersPresentError(t *testing.T) {
	errMsg := "timeout"
	e := event.ToolCompleted{Name: "search", Error: &errMsg}
	block := e.ToMarkdownBlock(time.Now())
	assert.Contains(t, block, "| error | timeout |")
}

func TestEstimateTokens_NeverZero(t *testing.T) {
	e := event.MessageReceived{Content: ""}
	assert.GreaterOrEqual(t, e.EstimateTokens(), 1)
}

func TestEstimateTokens_GrowsWithContentLength(t *testing.T) {
	short := event.MessageReceived{Content: "hi"}
	long := event.MessageReceived{Content: strings.Repeat("hello world ", 50)}
	assert.Less(t, short.EstimateTokens(), long.EstimateTokens())
}

func TestParseBlockHeader_RejectsNonHeaderInput(t *testing.T) {
	_, err := event.ParseBlockHeader("no heading here")
	assert.Error(t, err)
}

func TestParseAllBlockHeaders_WalksEveryBlockInOrder(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Second)

	var b strings.Builder
	b.WriteString(event.SessionStarted{SessionID: "S1", Folder: "/tmp/S1"}.ToMarkdownBlock(now))
	b.WriteString(event.MessageReceived{Content: "hi"}.ToMarkdownBlock(later))

	headers, err := event.ParseAllBlockHeaders(b.String())
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, event.TypeSessionStarted, headers[0].Type)
	assert.Equal(t, event.TypeMessageReceived, headers[1].Type)
}
