// Package xwebview bridges native Go objects into a JavaScript execution
// context and back. A plugin struct is reflected once into a member table
// mapping script-visible names to native calling conventions; each live
// binding between a script namespace and a plugin instance dispatches calls
// and property accesses onto the instance's owning execution context, and
// propagates native property mutations back into the script document.
package xwebview

import (
	"errors"
)

var (
	// ErrNoInitializer is returned when a script-first construction is
	// attempted against a class whose member table has no constructor.
	ErrNoInitializer = errors.New("xwebview: class exposes no initializer")

	// ErrQueueClosed is returned to a blocked caller when the serial queue
	// backing an execution context is closed before the call completes.
	ErrQueueClosed = errors.New("xwebview: serial queue closed")

	// ErrRunLoopDone is returned to a blocked caller when the run loop
	// backing an execution context stops processing before the call
	// completes.
	ErrRunLoopDone = errors.New("xwebview: run loop stopped")
)

type nullValue struct{}

// Null is the native representation of the script literal null. A plain Go
// nil serializes as undefined; Null serializes as null.
var Null nullValue
