package xwebview

import (
	"context"
	"fmt"
)

// ScriptObject is a handle to a script-side value, addressed by namespace
// expression. It supports invoking named methods, with or without awaiting
// a result, and reading and writing named properties. Script object
// references arriving as call arguments stay ScriptObject handles rather
// than being flattened into primitives; when passed back to script they
// serialize as their namespace expression.
type ScriptObject struct {
	namespace string
	channel   *Channel
}

func newScriptObject(namespace string, channel *Channel) *ScriptObject {
	return &ScriptObject{namespace: namespace, channel: channel}
}

func (o *ScriptObject) Namespace() string { return o.namespace }

func (o *ScriptObject) scriptNamespace() string { return o.namespace }

// CallMethod invokes a named script method and awaits its result.
func (o *ScriptObject) CallMethod(ctx context.Context, name string, args ...any) (any, error) {
	script := fmt.Sprintf("%s.%s(%s);", o.namespace, name, serializeArgs(args))
	return o.channel.document.Eval(ctx, script)
}

// CallMethodAsync invokes a named script method, ignoring the result.
func (o *ScriptObject) CallMethodAsync(ctx context.Context, name string, args ...any) {
	o.channel.evalIgnoringResult(ctx, fmt.Sprintf("%s.%s(%s);", o.namespace, name, serializeArgs(args)))
}

// GetProperty reads a named script-side property.
func (o *ScriptObject) GetProperty(ctx context.Context, name string) (any, error) {
	return o.channel.document.Eval(ctx, fmt.Sprintf("%s[%s];", o.namespace, quote(name)))
}

// SetProperty writes a named script-side property, ignoring the result.
func (o *ScriptObject) SetProperty(ctx context.Context, name string, value any) {
	o.channel.evalIgnoringResult(ctx, fmt.Sprintf("%s[%s] = %s;", o.namespace, quote(name), serialize(value)))
}

// Resolve fulfils the object as a promise handle. Promise handles arrive as
// trailing construction or method arguments and are settled exactly once.
func (o *ScriptObject) Resolve(value any) {
	o.CallMethodAsync(context.Background(), "resolve", value)
}

// Reject settles the object as a failed promise handle.
func (o *ScriptObject) Reject(err error) {
	o.CallMethodAsync(context.Background(), "reject", err)
}
