// Package logging provides the structured logger type shared by every
// session-runtime component. It wraps logiface with the stumpy JSON backend
// rather than hand-rolling a logging interface, since the runtime is meant
// to be embedded in a host process (a TUI, an MCP gateway) that already has
// its own logging policy to hand down.
package logging

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type accepted by every component
// constructor in this module.
type Logger = *logiface.Logger[*stumpy.Event]

// Level is re-exported so callers needn't import logiface directly.
type Level = logiface.Level

// Levels used across this module's log call sites.
const (
	LevelError = logiface.LevelError
	LevelWarn  = logiface.LevelWarning
	LevelInfo  = logiface.LevelInformational
	LevelDebug = logiface.LevelDebug
)

// NoOp returns a Logger that discards everything written to it. It's the
// default used when a caller doesn't supply one via an Option.
func NoOp() Logger {
	return stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))
}

// New returns a Logger that writes newline-delimited JSON to w at the given
// level.
func New(w io.Writer, level logiface.Level) Logger {
	return stumpy.L.New(
		stumpy.L.WithLevel(level),
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	)
}
