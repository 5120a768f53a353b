// Package errs defines the closed set of error kinds shared across the
// session runtime, mirroring the cause-chain error pattern used for the
// ambient stack's own error types: each kind is a struct with a Cause
// field, an Error() string method, and an Unwrap() error method.
package errs

// InitFailedError indicates the session failed to initialize: folder
// creation failed, or the event loop was already running.
type InitFailedError struct {
	Cause   error
	Message string
}

func (e *InitFailedError) Error() string {
	if e.Message == "" {
		return "session: initialization failed"
	}
	return e.Message
}

func (e *InitFailedError) Unwrap() error { return e.Cause }

// NewInitFailedError constructs an InitFailedError, wrapping cause if set.
func NewInitFailedError(message string, cause error) error {
	return &InitFailedError{Message: message, Cause: cause}
}

// StorageError indicates a file open/write/flush failure. Fatal inside
// the event loop; surfaced up from Run.
type StorageError struct {
	Cause   error
	Message string
}

func (e *StorageError) Error() string {
	if e.Message == "" {
		return "session: storage failure"
	}
	return e.Message
}

func (e *StorageError) Unwrap() error { return e.Cause }

// NewStorageError constructs a StorageError, wrapping cause if set.
func NewStorageError(message string, cause error) error {
	return &StorageError{Message: message, Cause: cause}
}

// ProcessingFailedError indicates a send on a closed session channel, or a
// reactor hook that returned an error which couldn't be folded into a
// ReactorError. Surfaced to the sender; the loop continues.
type ProcessingFailedError struct {
	Cause   error
	Message string
}

func (e *ProcessingFailedError) Error() string {
	if e.Message == "" {
		return "session: processing failed"
	}
	return e.Message
}

func (e *ProcessingFailedError) Unwrap() error { return e.Cause }

// NewProcessingFailedError constructs a ProcessingFailedError, wrapping
// cause if set.
func NewProcessingFailedError(message string, cause error) error {
	return &ProcessingFailedError{Message: message, Cause: cause}
}

// ReactorError indicates a non-fatal reactor-hook failure: logged, loop
// continues, and the event that triggered the hook is still persisted.
type ReactorError struct {
	Cause   error
	Message string
}

func (e *ReactorError) Error() string {
	if e.Message == "" {
		return "session: reactor error"
	}
	return e.Message
}

func (e *ReactorError) Unwrap() error { return e.Cause }

// NewReactorError constructs a ReactorError, wrapping cause if set.
func NewReactorError(message string, cause error) error {
	return &ReactorError{Message: message, Cause: cause}
}

// OverflowFlushError indicates the ring's best-effort synchronous flush
// of overflowing events to disk failed. Logged; the loop continues.
type OverflowFlushError struct {
	Cause   error
	Message string
}

func (e *OverflowFlushError) Error() string {
	if e.Message == "" {
		return "session: overflow flush failed"
	}
	return e.Message
}

func (e *OverflowFlushError) Unwrap() error { return e.Cause }

// NewOverflowFlushError constructs an OverflowFlushError, wrapping cause
// if set.
func NewOverflowFlushError(message string, cause error) error {
	return &OverflowFlushError{Message: message, Cause: cause}
}
