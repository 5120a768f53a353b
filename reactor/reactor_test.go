package reactor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/reactor"
)

func TestContext_EmitAndTakeEmitted(t *testing.T) {
	ctx := reactor.NewContext(reactor.Config{SessionID: "S1"})
	ctx.Emit(event.MessageReceived{Content: "hi"})

	assert.Empty(t, ctx.TakeEmitted(), "Emit queues on the bus, not the context's own slice, until bridged")

	ctx.BridgeEventContext()
	got := ctx.TakeEmitted()
	require.Len(t, got, 1)
	assert.Equal(t, event.MessageReceived{Content: "hi"}, got[0])

	assert.Empty(t, ctx.TakeEmitted(), "TakeEmitted clears the queue")
}

func TestContext_ResetForEventClearsEmittedButNotTokens(t *testing.T) {
	ctx := reactor.NewContext(reactor.Config{SessionID: "S1"})
	ctx.Emit(event.MessageReceived{Content: "hi"})
	ctx.BridgeEventContext()
	ctx.AddTokens(10)

	ctx.ResetForEvent(5)

	assert.Equal(t, uint64(5), ctx.CurrentSeq())
	assert.Empty(t, ctx.TakeEmitted())
	assert.Equal(t, 10, ctx.TokenCount())
}

func TestContext_CompactionRequestedRespectsBudget(t *testing.T) {
	ctx := reactor.NewContext(reactor.Config{MaxContextTokens: 100})
	assert.False(t, ctx.CompactionRequested())
	ctx.AddTokens(100)
	assert.True(t, ctx.CompactionRequested())
}

func TestContext_CompactionRequestedFalseWhenBudgetUnset(t *testing.T) {
	ctx := reactor.NewContext(reactor.Config{})
	ctx.AddTokens(1_000_000)
	assert.False(t, ctx.CompactionRequested())
}

func TestContext_ResetTokenCountZeroes(t *testing.T) {
	ctx := reactor.NewContext(reactor.Config{MaxContextTokens: 10})
	ctx.AddTokens(20)
	require.True(t, ctx.CompactionRequested())
	ctx.ResetTokenCount()
	assert.False(t, ctx.CompactionRequested())
	assert.Equal(t, 0, ctx.TokenCount())
}

func TestDefaultReactor_HandleEventEchoesUnchanged(t *testing.T) {
	r := reactor.DefaultReactor{}
	ctx := reactor.NewContext(reactor.Config{})
	in := event.MessageReceived{Content: "hi"}

	out, err := r.HandleEvent(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDefaultReactor_OnBeforeCompactSummarizesCountsAndTools(t *testing.T) {
	r := reactor.DefaultReactor{}
	events := []event.Event{
		event.MessageReceived{Content: "hi"},
		event.ToolCalled{Name: "search"},
		event.ToolCompleted{Name: "search", Result: "ok"},
		event.ToolCalled{Name: "lookup"},
		event.AgentResponded{Content: "done"},
	}

	summary, err := r.OnBeforeCompact(events)
	require.NoError(t, err)
	assert.Contains(t, summary, "5 total events")
	assert.Contains(t, summary, "1 messages")
	assert.Contains(t, summary, "2 tool calls")
	assert.Contains(t, summary, "1 agent responses")
	assert.Contains(t, summary, "lookup, search")
}

func TestDefaultReactor_OnBeforeCompactOmitsToolsLineWhenNoneCalled(t *testing.T) {
	r := reactor.DefaultReactor{}
	summary, err := r.OnBeforeCompact([]event.Event{event.MessageReceived{Content: "hi"}})
	require.NoError(t, err)
	assert.NotContains(t, summary, "Tools used")
}
