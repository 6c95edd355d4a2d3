package xwebview

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"runtime"
	"strings"
	"sync"

	refutils "github.com/grexie/refutils"
)

// BindingObject is a live association between a script-side namespace and a
// native plugin instance. It resolves script member access through the
// class's member table, marshals every native interaction onto the
// channel's execution context, and pushes native property mutations back
// into the script document. The binding is the exclusive owner of its
// instance; the channel is a back-reference only.
type BindingObject struct {
	*ScriptObject
	refutils.RefHolder

	instance  reflect.Value
	members   *MemberTable
	observers map[string]func()
	disposed  sync.Once
}

// bindObject wraps an already-existing native instance. No native call is
// made; if the instance supports change notification the binding
// subscribes to every table property.
func bindObject(ctx context.Context, channel *Channel, namespace string, instance any) (*BindingObject, error) {
	if reflect.TypeOf(instance) != channel.members.Class() {
		panic(fmt.Sprintf("xwebview: cannot bind %T through a %v channel",
			instance, channel.members.Class()))
	}

	b := &BindingObject{
		instance:  reflect.ValueOf(instance),
		members:   channel.members,
		observers: map[string]func(){},
	}
	channel.bindings.Ref(b)
	b.ScriptObject = newScriptObject(namespace, channel)

	if _, err := channel.document.Eval(ctx, namespaceScript(namespace)); err != nil {
		channel.bindings.Release(b)
		return nil, err
	}

	b.observe()
	runtime.SetFinalizer(b, (*BindingObject).finalize)
	return b, nil
}

// constructObject builds a fresh instance from script-supplied arguments
// via the class's empty-name initializer descriptor. A trailing promise
// handle, when present, is captured before invocation and resolved with
// the binding once construction and the initial property synchronization
// complete. On failure no binding is returned, no promise is settled, and
// no partial state stays registered.
func constructObject(ctx context.Context, channel *Channel, args []any) (*BindingObject, error) {
	initializer, ok := channel.members.Lookup("")
	if !ok || !initializer.IsInitializer() {
		return nil, ErrNoInitializer
	}

	b := &BindingObject{
		instance:  reflect.New(channel.members.Class().Elem()),
		members:   channel.members,
		observers: map[string]func(){},
	}
	id := channel.bindings.Ref(b)
	b.ScriptObject = newScriptObject(fmt.Sprintf("%s[%d]", channel.namespace, id), channel)

	wrapped := b.wrapArguments(args)

	var promise *ScriptObject
	arity := initializer.Arity()
	if len(wrapped) > 0 && (arity == len(wrapped)-1 || arity == ArityAcceptsArray) {
		promise, _ = wrapped[len(wrapped)-1].(*ScriptObject)
		wrapped = wrapped[:len(wrapped)-1]
	}

	if arity == ArityBulkInit {
		objects := make([]*ScriptObject, 0, len(wrapped))
		for _, arg := range wrapped {
			if o, ok := arg.(*ScriptObject); ok {
				objects = append(objects, o)
			}
		}
		wrapped = []any{objects}
	}

	if _, err := channel.document.Eval(ctx, namespaceScript(b.namespace)); err != nil {
		channel.bindings.Release(b)
		return nil, err
	}

	if _, err := b.dispatchSync(ctx, func(ctx context.Context) (any, error) {
		return channel.invoker.Invoke(ctx, b.instance.Interface(), initializer, wrapped)
	}); err != nil {
		channel.bindings.Release(b)
		channel.evalIgnoringResult(ctx, fmt.Sprintf("delete %s;", b.namespace))
		return nil, err
	}

	b.observe()
	runtime.SetFinalizer(b, (*BindingObject).finalize)

	b.syncProperties(ctx)

	if promise != nil {
		promise.Resolve(b)
	}
	return b, nil
}

// Dispose tears the binding down: the native finalize hook runs on the
// execution context, the script side is notified without awaiting a
// result, and every property observation registered at construction is
// removed. Observation teardown happens unconditionally, on every
// destruction path.
func (b *BindingObject) Dispose(ctx context.Context) {
	b.disposed.Do(func() {
		runtime.SetFinalizer(b, nil)

		defer func() {
			for key, cancel := range b.observers {
				delete(b.observers, key)
				cancel()
			}
			b.channel.bindings.Release(b)
		}()

		if finalizing, ok := b.instance.Interface().(ScriptFinalizing); ok {
			b.dispatchAsync(ctx, func(context.Context) {
				finalizing.FinalizeForScript()
			})
		}
		b.ScriptObject.CallMethodAsync(ctx, "dispose")
	})
}

func (b *BindingObject) finalize() {
	b.Dispose(context.Background())
}

// InvokeMethod dispatches a named method without delivering a result. A
// name missing from the table falls back to the script-side object.
func (b *BindingObject) InvokeMethod(ctx context.Context, name string, args []any) {
	member, ok := b.members.Lookup(name)
	if !ok || !member.IsMethod() {
		b.ScriptObject.CallMethodAsync(ctx, name, args...)
		return
	}

	wrapped := b.wrapCall(member, args)
	b.dispatchAsync(ctx, func(ctx context.Context) {
		if _, err := b.channel.invoker.Invoke(ctx, b.instance.Interface(), member, wrapped); err != nil {
			log.Printf("xwebview: %s.%s failed: %v", b.namespace, member.identifier(), err)
		}
	})
}

// CallMethod dispatches a named method and delivers the native result, or
// failure, through completion once the call finishes on the execution
// context. The completion is always invoked: when the execution context is
// torn down before the call can run, it receives the executor's teardown
// error instead of hanging. A nil completion degrades to InvokeMethod.
func (b *BindingObject) CallMethod(ctx context.Context, name string, args []any, completion func(result any, err error)) {
	if completion == nil {
		b.InvokeMethod(ctx, name, args)
		return
	}

	member, ok := b.members.Lookup(name)
	if !ok || !member.IsMethod() {
		completion(b.ScriptObject.CallMethod(ctx, name, args...))
		return
	}

	wrapped := b.wrapCall(member, args)
	call := func(ctx context.Context) (any, error) {
		return b.channel.invoker.Invoke(ctx, b.instance.Interface(), member, wrapped)
	}

	if b.channel.executor.IsCurrent() {
		completion(b.dispatchSync(ctx, call))
		return
	}
	go func() {
		completion(b.dispatchSync(ctx, call))
	}()
}

// CallMethodSync dispatches a named method and blocks the caller until the
// result is available. Issued from the execution context itself, the call
// executes inline.
func (b *BindingObject) CallMethodSync(ctx context.Context, name string, args []any) (any, error) {
	member, ok := b.members.Lookup(name)
	if !ok || !member.IsMethod() {
		return b.ScriptObject.CallMethod(ctx, name, args...)
	}

	wrapped := b.wrapCall(member, args)
	return b.dispatchSync(ctx, func(ctx context.Context) (any, error) {
		return b.channel.invoker.Invoke(ctx, b.instance.Interface(), member, wrapped)
	})
}

// ReadProperty returns the current native value of a table property, or
// falls back to the script-side object for unmapped names.
func (b *BindingObject) ReadProperty(ctx context.Context, name string) (any, error) {
	member, ok := b.members.Lookup(name)
	if !ok || !member.IsProperty() {
		return b.ScriptObject.GetProperty(ctx, name)
	}

	return b.dispatchSync(ctx, func(context.Context) (any, error) {
		return member.get(b.instance), nil
	})
}

// UpdateProperty dispatches a property write without delivering a result.
// A name entirely missing from the table is treated as a dynamic
// script-side property; a table property with no setter is a contract
// violation.
func (b *BindingObject) UpdateProperty(ctx context.Context, name string, value any) {
	member, ok := b.members.Lookup(name)
	if !ok {
		b.ScriptObject.SetProperty(ctx, name, value)
		return
	}
	if !member.IsProperty() {
		panic(fmt.Sprintf("xwebview: %q of %v is not a property", name, b.members.Class()))
	}
	if member.Setter() == "" {
		panic(fmt.Sprintf("xwebview: property %q of %v is read-only", name, b.members.Class()))
	}

	wrapped := b.wrapArgument(value)
	b.dispatchAsync(ctx, func(context.Context) {
		if err := member.set(b.instance, wrapped); err != nil {
			log.Printf("xwebview: %s.%s write failed: %v", b.namespace, member.Setter(), err)
		}
	})
}

// observe subscribes to change notification for every table property, when
// the instance supports it.
func (b *BindingObject) observe() {
	observing, ok := b.instance.Interface().(PropertyObserving)
	if !ok {
		return
	}

	for _, member := range b.members.Properties() {
		key := member.Getter()
		b.observers[key] = observing.ObserveProperty(key, func(value any) {
			b.propertyDidChange(key, value)
		})
	}
}

// propertyDidChange bridges a native property mutation into the script
// document: exactly one statement updating the namespace's cached value,
// under the table's script-visible name. No acknowledgment is awaited.
func (b *BindingObject) propertyDidChange(key string, value any) {
	name, ok := b.members.propertyName(key)
	if !ok {
		panic(fmt.Sprintf("xwebview: change notification for unknown key %q on %v",
			key, b.members.Class()))
	}

	b.channel.evalIgnoringResult(context.Background(),
		fmt.Sprintf("%s.$properties[%s] = %s;", b.namespace, quote(name), serialize(value)))
}

// syncProperties reads every property's current value on the execution
// context and pushes the whole set to the script side as one evaluation.
func (b *BindingObject) syncProperties(ctx context.Context) {
	properties := b.members.Properties()
	if len(properties) == 0 {
		return
	}

	out, err := b.dispatchSync(ctx, func(context.Context) (any, error) {
		values := make([]any, len(properties))
		for i, member := range properties {
			values[i] = member.get(b.instance)
		}
		return values, nil
	})
	if err != nil {
		log.Printf("xwebview: property synchronization for %s failed: %v", b.namespace, err)
		return
	}

	var script strings.Builder
	for i, member := range properties {
		fmt.Fprintf(&script, "%s.$properties[%s] = %s;\n",
			b.namespace, quote(member.Name()), serialize(out.([]any)[i]))
	}
	b.channel.evalIgnoringResult(ctx, script.String())
}

// wrapCall wraps an incoming argument list for a method member. Only the
// reserved default-invocation member takes the whole list as one array
// argument.
func (b *BindingObject) wrapCall(member *Member, args []any) []any {
	wrapped := b.wrapArguments(args)
	if member.Name() == "" && member.Arity() == ArityAcceptsArray {
		return []any{wrapped}
	}
	return wrapped
}

func (b *BindingObject) wrapArguments(args []any) []any {
	wrapped := make([]any, len(args))
	for i, arg := range args {
		wrapped[i] = b.wrapArgument(arg)
	}
	return wrapped
}

// wrapArgument converts one incoming script value into its native
// representation. Script object references stay script-object handles,
// addressed through the namespace's reference table.
func (b *BindingObject) wrapArgument(value any) any {
	if ref, ok := value.(map[string]any); ok {
		if _, ok := ref["$sig"]; ok {
			if r, ok := ref["$ref"]; ok {
				return newScriptObject(fmt.Sprintf("%s.$references[%v]", b.namespace, r), b.channel)
			}
		}
	}
	return value
}

// dispatchAsync runs fn on the binding's execution context without
// waiting. A caller already inside the context runs it inline.
func (b *BindingObject) dispatchAsync(ctx context.Context, fn func(ctx context.Context)) {
	body := func() {
		defer bindingScope(b)()
		fn(ctx)
	}

	if executor := b.channel.executor; executor.IsCurrent() {
		body()
	} else {
		executor.Perform(body)
	}
}

// dispatchSync runs fn on the binding's execution context and blocks until
// it completes. A caller already inside the context runs it inline, never
// enqueuing against itself.
func (b *BindingObject) dispatchSync(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	body := func() (any, error) {
		defer bindingScope(b)()
		return fn(ctx)
	}

	executor := b.channel.executor
	if executor.IsCurrent() {
		return body()
	}

	var result any
	var err error
	done := make(chan struct{})
	executor.Perform(func() {
		defer close(done)
		result, err = body()
	})

	if jerr := executor.join(ctx, done); jerr != nil {
		return nil, jerr
	}
	return result, err
}
