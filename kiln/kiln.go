// Package kiln writes the session's append-only, on-disk markdown log: a
// sequence of numbered "NNN-context.md" files in a session folder, each
// opened for append, with the rollover to a new file happening only on
// compaction.
package kiln

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cruciblehq/sessionkernel/errs"
	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/internal/logging"
)

// FileName returns the canonical context-file name for the given index,
// e.g. FileName(0) == "000-context.md".
func FileName(index int) string {
	return fmt.Sprintf("%03d-context.md", index)
}

// FileStem returns the wikilink-able stem for the given index, e.g.
// FileStem(0) == "000-context".
func FileStem(index int) string {
	return fmt.Sprintf("%03d-context", index)
}

// CompactionHeader renders the bit-stable header written at the top of a
// freshly rotated context file.
func CompactionHeader(previousIndex int, summary string) string {
	return fmt.Sprintf(
		"# Session Context (Compacted)\n\n> Previous context: [[%s|full history]]\n\n## Summary\n\n%s\n\n---\n\n",
		FileStem(previousIndex), summary,
	)
}

// Writer appends rendered event blocks to the current context file within
// a session folder, creating the folder and file on first use.
//
// A scoped open/write/flush/close per call (rather than holding the file
// handle open across the session) keeps the handle's lifetime as short as
// possible, matching the spec's "guaranteed release" requirement. The
// Writer's own mutex is held across that I/O to serialize appends; the
// session's reactor-context lock never is.
type Writer struct {
	mu     sync.Mutex
	folder string
	log    logging.Logger
}

// Option configures a Writer at construction time.
type Option func(*Writer)

// WithLogger attaches a structured logger for append diagnostics.
func WithLogger(log logging.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// New creates a Writer rooted at folder. It does not create the folder;
// callers create it explicitly via EnsureFolder (the session does so in
// session.New).
func New(folder string, opts ...Option) *Writer {
	w := &Writer{folder: folder, log: logging.NoOp()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// EnsureFolder creates the session folder (and any missing parents) if it
// doesn't already exist.
func (w *Writer) EnsureFolder() error {
	if err := os.MkdirAll(w.folder, 0o755); err != nil {
		return errs.NewInitFailedError(fmt.Sprintf("kiln: create folder %q", w.folder), err)
	}
	return nil
}

// Append renders evt as a markdown block and appends it to the context
// file at the given index, creating the file if it doesn't exist.
// Returns the number of bytes written.
func (w *Writer) Append(index int, evt event.Event, now time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	block := evt.ToMarkdownBlock(now)
	n, err := w.appendBytes(index, []byte(block))
	if err != nil {
		return 0, err
	}

	w.log.Debug().
		Str("file", FileName(index)).
		Str("event_type", evt.Type()).
		Int("bytes_written", n).
		Log("kiln: appended event")

	return n, nil
}

// WriteHeader writes raw content (a compaction header) to a freshly
// rotated context file, truncating any prior content at that path.
func (w *Writer) WriteHeader(index int, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.folder, FileName(index))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.NewStorageError(fmt.Sprintf("kiln: write header %q", path), err)
	}
	return nil
}

// appendBytes is the scoped file-handle acquisition: open for append,
// write, flush (via Sync), close, every call. Must be called with mu held.
func (w *Writer) appendBytes(index int, b []byte) (int, error) {
	path := filepath.Join(w.folder, FileName(index))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, errs.NewStorageError(fmt.Sprintf("kiln: open %q", path), err)
	}
	defer f.Close()

	n, err := f.Write(b)
	if err != nil {
		return 0, errs.NewStorageError(fmt.Sprintf("kiln: write %q", path), err)
	}
	if err := f.Sync(); err != nil {
		return 0, errs.NewStorageError(fmt.Sprintf("kiln: flush %q", path), err)
	}
	return n, nil
}

// FlushOnOverflow is the synchronous path invoked by the ring's overflow
// callback: it opens the context file at index in append mode, writes
// each evicted event as a markdown block, and returns. Best-effort: a
// failure here does not roll back already-written blocks.
func FlushOnOverflow(folder string, index int, events []event.Event, now time.Time) error {
	path := filepath.Join(folder, FileName(index))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.NewOverflowFlushError(fmt.Sprintf("kiln: overflow flush open %q", path), err)
	}
	defer f.Close()

	for _, e := range events {
		if _, err := f.WriteString(e.ToMarkdownBlock(now)); err != nil {
			return errs.NewOverflowFlushError(fmt.Sprintf("kiln: overflow flush write %q", path), err)
		}
	}
	if err := f.Sync(); err != nil {
		return errs.NewOverflowFlushError(fmt.Sprintf("kiln: overflow flush sync %q", path), err)
	}
	return nil
}
