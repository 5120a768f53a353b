package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockHeader is the result of parsing a rendered event block's H2 header
// back into its constituent timestamp and type — the round-trip direction
// of ToMarkdownBlock.
type BlockHeader struct {
	Timestamp time.Time
	Type      string
}

var parser = goldmark.New().Parser()

// ParseBlockHeader parses the first event-block heading found in block (a
// single rendered event block, or a whole context file) and recovers the
// timestamp and event type that ToMarkdownBlock encoded into it. Level-2
// headings without the " — " separator, such as a compaction header's
// "## Summary", are skipped.
func ParseBlockHeader(block string) (BlockHeader, error) {
	source := []byte(block)
	doc := parser.Parse(text.NewReader(source))

	var (
		header BlockHeader
		found  bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if found || !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 {
			return ast.WalkContinue, nil
		}
		txt := headingText(h, source)
		if !strings.Contains(txt, " — ") {
			return ast.WalkContinue, nil
		}
		ts, typ, err := splitHeader(txt)
		if err != nil {
			return ast.WalkStop, err
		}
		header = BlockHeader{Timestamp: ts, Type: typ}
		found = true
		return ast.WalkStop, nil
	})

	if !found {
		return BlockHeader{}, fmt.Errorf("event: no level-2 heading found in block")
	}
	return header, nil
}

// ParseAllBlockHeaders walks every level-2 heading in a whole context
// file, in document order, recovering one BlockHeader per event block.
// Headings without the " — " separator (a compaction header's
// "## Summary") are not event blocks and are skipped. Used by
// session.ReadContextFile for diagnostics.
func ParseAllBlockHeaders(fileContent string) ([]BlockHeader, error) {
	source := []byte(fileContent)
	doc := parser.Parse(text.NewReader(source))

	var (
		headers []BlockHeader
		walkErr error
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 {
			return ast.WalkContinue, nil
		}
		txt := headingText(h, source)
		if !strings.Contains(txt, " — ") {
			return ast.WalkContinue, nil
		}
		ts, typ, err := splitHeader(txt)
		if err != nil {
			walkErr = err
			return ast.WalkStop, err
		}
		headers = append(headers, BlockHeader{Timestamp: ts, Type: typ})
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return headers, nil
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return b.String()
}

func splitHeader(s string) (time.Time, string, error) {
	const sep = " — "
	i := strings.Index(s, sep)
	if i < 0 {
		return time.Time{}, "", fmt.Errorf("event: malformed header %q", s)
	}
	ts, err := time.Parse(time.RFC3339Nano, s[:i])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("event: bad timestamp %q: %w", s[:i], err)
	}
	return ts, s[i+len(sep):], nil
}
