package xwebview

import (
	"context"
)

// The interfaces in this file are optional customization hooks a plugin type
// may implement to control how it is reflected into a member table and how a
// binding interacts with it at runtime. Hook methods are invoked on a zero
// value of the plugin type during table construction and must not depend on
// instance state.

// ScriptNaming renames members. ScriptNameOf receives the native member
// identifier (a field or method name) and returns the script-visible name,
// or "" to keep the derived name.
type ScriptNaming interface {
	ScriptNameOf(member string) string
}

// ScriptExcluding hides members. IsExcludedFromScript receives the native
// member identifier and returns true to keep it out of the member table.
type ScriptExcluding interface {
	IsExcludedFromScript(member string) bool
}

// ScriptFinalizing is invoked on the instance's execution context when its
// binding is disposed, before observers are removed.
type ScriptFinalizing interface {
	FinalizeForScript()
}

// DefaultInvoking marks the reserved default-invocation member. It enters
// the member table under the empty name with the accepts-array arity,
// regardless of its declared parameter count, and is called when script
// invokes the namespace itself as a function.
type DefaultInvoking interface {
	InvokeDefaultMethod(ctx context.Context, args []any) (any, error)
}

// PropertyObserving lets a plugin publish property changes. A binding
// subscribes to every table property at creation; the returned cancel
// function is invoked unconditionally at teardown. The observer callback
// receives the new native value and may be called from any goroutine.
type PropertyObserving interface {
	ObserveProperty(key string, observer func(value any)) (cancel func())
}

// Promise is the shape of a trailing asynchronous-completion parameter. A
// method declaring a Promise as its last parameter is encoded promise-style
// in the member table; the script side supplies the handle as an extra
// trailing argument.
type Promise interface {
	Resolve(value any)
	Reject(err error)
}
