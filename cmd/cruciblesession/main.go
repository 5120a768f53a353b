// Command cruciblesession is a demo binary that drives a session end to
// end: it starts a session, feeds it a short scripted conversation via a
// handle, interleaves a fake streaming response through the streaming
// bridge, ends the session, and prints the resulting on-disk context
// file so the full pipeline can be inspected by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	sessionkernel "github.com/cruciblehq/sessionkernel"
	"github.com/cruciblehq/sessionkernel/internal/logging"
	"github.com/cruciblehq/sessionkernel/streaming"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "maxprocs: "+format+"\n", args...)
	})); err != nil {
		fmt.Fprintf(os.Stderr, "maxprocs: %v\n", err)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cruciblesession:", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := os.MkdirTemp("", "cruciblesession-*")
	if err != nil {
		return err
	}

	s, err := sessionkernel.New(dir,
		sessionkernel.WithSessionID("demo"),
		sessionkernel.WithSystemPrompt("You are a helpful assistant."),
		sessionkernel.WithMaxContextTokens(2000),
		sessionkernel.WithLogger(logging.New(os.Stderr, logging.LevelInfo)),
	)
	if err != nil {
		return fmt.Errorf("construct session: %w", err)
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.Run(); err != nil {
			return fmt.Errorf("session run: %w", err)
		}
		return nil
	})

	h := s.Handle()
	if err := h.Message("What's the weather like in the ring buffer today?"); err != nil {
		return err
	}

	bridge := streaming.NewBridge(scriptedUpstream())
	bridge.Start(context.Background(), h)
	g.Go(func() error {
		drainChunks(bridge)
		<-bridge.Done()
		if err := bridge.Err(); err != nil {
			return fmt.Errorf("streaming bridge: %w", err)
		}
		return h.End("demo complete")
	})

	if err := g.Wait(); err != nil {
		return err
	}

	content, err := os.ReadFile(s.CurrentFilePath())
	if err != nil {
		return err
	}
	fmt.Println(string(content))
	return nil
}

func drainChunks(b *streaming.Bridge) {
	for range b.Chunks() {
		// Discarded: a real consumer would render each chunk incrementally.
	}
}

// scriptedUpstream returns a fixed, in-memory streaming.Upstream that
// narrates a short tool-assisted response, for demo purposes only.
func scriptedUpstream() streaming.Upstream {
	return &demoUpstream{script: []streaming.Item{
		streaming.Delta{Text: "Let me check"},
		streaming.ToolCall{Name: "lookup_weather", Args: map[string]any{"location": "the ring buffer"}},
		streaming.ToolCompleted{Name: "lookup_weather", Result: "scattered overflow events"},
		streaming.Delta{Text: " — scattered overflow events, as usual."},
		streaming.Done{FullResponse: "Let me check — scattered overflow events, as usual."},
	}}
}

type demoUpstream struct {
	script []streaming.Item
	i      int
}

func (d *demoUpstream) Next(ctx context.Context) (streaming.Item, error) {
	if d.i >= len(d.script) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	item := d.script[d.i]
	d.i++
	time.Sleep(5 * time.Millisecond)
	return item, nil
}
