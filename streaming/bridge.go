package streaming

import (
	"context"
	"fmt"

	sessionkernel "github.com/cruciblehq/sessionkernel"
	"github.com/cruciblehq/sessionkernel/event"
)

const defaultChunkBuffer = 64

// Bridge runs a streaming Upstream as a detached worker, mirroring each
// Item onto a session.Handle as the corresponding ring event and feeding
// an incremental markdown parser for callers that want to render the
// response as it arrives.
type Bridge struct {
	upstream Upstream
	chunks   chan ParsedChunk

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewBridge constructs a Bridge over the given Upstream. It does not
// start consuming until Start is called.
func NewBridge(upstream Upstream) *Bridge {
	return &Bridge{
		upstream: upstream,
		chunks:   make(chan ParsedChunk, defaultChunkBuffer),
		done:     make(chan struct{}),
	}
}

// Chunks returns the channel of incrementally-parsed rendering output.
// It is closed when the bridge's worker goroutine exits.
func (b *Bridge) Chunks() <-chan ParsedChunk {
	return b.chunks
}

// Done returns a channel closed once the worker goroutine has exited,
// for callers that want to wait without consuming Chunks.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns the terminal error, if any, after Done has closed. A nil
// result after a clean Done item means the stream completed
// successfully.
func (b *Bridge) Err() error {
	return b.err
}

// Start launches the detached worker that drains the upstream and
// mirrors its items onto handle. It returns immediately.
func (b *Bridge) Start(ctx context.Context, handle sessionkernel.Handle) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go b.run(ctx, handle)
}

// Cancel stops the worker. Any Delta not yet pulled from the upstream is
// dropped; the session itself is unaffected. Partially-accumulated parser
// state is finalized and discarded, not emitted.
func (b *Bridge) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bridge) run(ctx context.Context, handle sessionkernel.Handle) {
	defer close(b.done)
	defer close(b.chunks)

	parser := newIncrementalParser(b.chunks)

	for {
		select {
		case <-ctx.Done():
			parser.finalizeDiscard()
			return
		default:
		}

		item, err := b.upstream.Next(ctx)
		if err != nil {
			b.err = err
			parser.finalizeDiscard()
			return
		}

		if done, stop := b.dispatch(handle, parser, item); stop {
			if !done {
				parser.finalizeDiscard()
			}
			return
		}
	}
}

// dispatch mirrors a single item onto handle. It returns stop=true once
// the sequence has reached a terminal item or a send failed; done
// indicates the terminal item was the success case (Done), so the parser
// has already been finalized rather than discarded.
func (b *Bridge) dispatch(handle sessionkernel.Handle, parser *incrementalParser, item Item) (done, stop bool) {
	switch v := item.(type) {
	case Delta:
		parser.Feed(v.Text)
		if err := handle.Send(event.TextDelta{Delta: v.Text, Seq: v.Seq}); err != nil {
			b.err = err
			return false, true
		}
		return false, false

	case Reasoning:
		if err := handle.Send(event.AgentThinking{Thought: v.Text}); err != nil {
			b.err = err
			return false, true
		}
		return false, false

	case ToolCall:
		if err := handle.Send(event.ToolCalled{Name: v.Name, Args: v.Args}); err != nil {
			b.err = err
			return false, true
		}
		return false, false

	case ToolCompleted:
		if err := handle.Send(event.ToolCompleted{Name: v.Name, Result: v.Result, Error: v.Error}); err != nil {
			b.err = err
			return false, true
		}
		return false, false

	case Done:
		parser.Finalize()
		if err := handle.Send(event.AgentResponded{Content: v.FullResponse}); err != nil {
			b.err = err
		}
		return true, true

	case Error:
		b.err = fmt.Errorf("streaming: upstream reported error: %s", v.Message)
		return false, true

	default:
		b.err = fmt.Errorf("streaming: unrecognized item type %T", item)
		return false, true
	}
}
