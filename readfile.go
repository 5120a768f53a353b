package session

import (
	"os"

	"github.com/cruciblehq/sessionkernel/errs"
	"github.com/cruciblehq/sessionkernel/event"
)

// ReadContextFile reads a kiln-written context file from disk and parses
// every event block header in document order, for diagnostics tooling
// that inspects a session's on-disk log without running the session
// itself.
func ReadContextFile(path string) ([]event.BlockHeader, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewStorageError("session: read context file "+path, err)
	}
	return event.ParseAllBlockHeaders(string(content))
}
