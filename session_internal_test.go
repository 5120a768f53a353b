package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/internal/logging"
)

// TestOverflowCallback_SkipsFlushWhenFileIndexLocked exercises the
// non-blocking-acquisition path directly: the ring's overflow callback
// runs synchronously while the ring's write lock is held, so it must
// never block on fileIndexMu the way compact's writer lock briefly does.
func TestOverflowCallback_SkipsFlushWhenFileIndexLocked(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	s, err := New(dir,
		WithSessionID("S1"),
		WithRingCapacity(2),
		WithLogger(logging.New(&logs, logging.LevelWarn)),
	)
	require.NoError(t, err)

	// Hold the file-index lock as compact would, then push enough events
	// for the ring to overflow synchronously within this same call.
	s.fileIndexMu.Lock()
	s.ring.Push(event.SessionStarted{SessionID: "S1"})
	s.ring.Push(event.MessageReceived{Content: "a"})
	s.ring.Push(event.MessageReceived{Content: "b"}) // evicts the first event
	s.fileIndexMu.Unlock()

	assert.Contains(t, logs.String(), "overflow flush skipped")

	index, ok := s.tryCurrentFileIndex()
	assert.True(t, ok)
	assert.Equal(t, 0, index)

	logs.Reset()
	s.ring.Push(event.MessageReceived{Content: "c"})
	s.ring.Push(event.MessageReceived{Content: "d"}) // evicts again, now unlocked
	assert.NotContains(t, logs.String(), "overflow flush skipped")
}
