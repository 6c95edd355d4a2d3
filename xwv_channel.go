package xwebview

import (
	"context"
	"fmt"
	"log"
	"strings"

	refutils "github.com/grexie/refutils"
)

// Evaluator is the script document a channel evaluates statements in.
// Implementations must be safe for use from any goroutine.
type Evaluator interface {
	Eval(ctx context.Context, script string) (any, error)
}

// Channel ties one plugin class to one execution context and one script
// document: it owns the class's member table, generates script namespaces,
// and tracks the live bindings created through it.
type Channel struct {
	refutils.RefHolder

	namespace string
	members   *MemberTable
	executor  Executor
	document  Evaluator
	invoker   Invoker
	bindings  *refutils.RefMap
}

// NewChannel builds (or fetches the cached) member table for the class of
// prototype and returns a channel rooted at namespace. The prototype is
// only used for its type.
func NewChannel(prototype any, namespace string, executor Executor, document Evaluator) *Channel {
	return &Channel{
		namespace: namespace,
		members:   MemberTableOf(prototype),
		executor:  executor,
		document:  document,
		invoker:   reflectInvoker{},
		bindings:  refutils.NewWeakRefMap("b"),
	}
}

// Members returns the channel's member table.
func (c *Channel) Members() *MemberTable { return c.members }

// Executor returns the execution context every instance bound through this
// channel is confined to.
func (c *Channel) Executor() Executor { return c.executor }

// SetInvoker replaces the native-call invoker. The default dispatches
// through the member table's capability closures.
func (c *Channel) SetInvoker(invoker Invoker) { c.invoker = invoker }

// BindPlugin wraps an already-existing native instance into the channel's
// root namespace. No native call is made; if the instance supports change
// notification the binding subscribes to every table property.
func (c *Channel) BindPlugin(ctx context.Context, instance any) (*BindingObject, error) {
	binding, err := bindObject(ctx, c, c.namespace, instance)
	if err != nil {
		return nil, err
	}
	return binding, nil
}

// ConstructPlugin builds a fresh native instance from script-supplied
// arguments via the class initializer, binds it into a generated
// sub-namespace, synchronizes its properties to the script side, and
// resolves a trailing promise handle if one was supplied.
func (c *Channel) ConstructPlugin(ctx context.Context, args []any) (*BindingObject, error) {
	return constructObject(ctx, c, args)
}

// Binding returns the live binding with the given instance id, or nil.
func (c *Channel) Binding(id refutils.ID) *BindingObject {
	if ref := c.bindings.Get(id); ref != nil {
		return ref.(*BindingObject)
	}
	return nil
}

// Close disposes every live binding created through the channel.
func (c *Channel) Close(ctx context.Context) {
	for _, ref := range c.bindings.Refs() {
		ref.(*BindingObject).Dispose(ctx)
	}
}

// evalIgnoringResult evaluates a statement with no result delivered to the
// caller. Failures have no channel to report through and are observable
// only via logging.
func (c *Channel) evalIgnoringResult(ctx context.Context, script string) {
	if _, err := c.document.Eval(ctx, script); err != nil {
		log.Printf("xwebview: script evaluation failed: %v", err)
	}
}

// namespaceScript builds the statement seeding a binding's script-side
// namespace stub: the property cache, the reference table for nested
// script-object arguments, and a disposal hook. A namespace the script
// side already seeded keeps its reference table.
func namespaceScript(namespace string) string {
	var b strings.Builder

	ensure := func(expr string, global bool) {
		if global {
			fmt.Fprintf(&b, "if (typeof %s === 'undefined') { %s = {}; } ", expr, expr)
		} else {
			fmt.Fprintf(&b, "%s = %s || {}; ", expr, expr)
		}
	}

	parts := strings.Split(namespace, ".")
	for i := 0; i < len(parts)-1; i++ {
		ensure(strings.Join(parts[:i+1], "."), i == 0)
	}

	last := parts[len(parts)-1]
	if bracket := strings.Index(last, "["); bracket > 0 {
		base := last[:bracket]
		if len(parts) > 1 {
			base = strings.Join(parts[:len(parts)-1], ".") + "." + base
		}
		ensure(base, len(parts) == 1)
	} else if len(parts) == 1 {
		ensure(namespace, true)
	}

	fmt.Fprintf(&b, "%s = %s || {}; ", namespace, namespace)
	fmt.Fprintf(&b, "%s.$properties = {}; ", namespace)
	fmt.Fprintf(&b, "%s.$references = %s.$references || {}; ", namespace, namespace)
	fmt.Fprintf(&b, "%s.dispose = %s.dispose || function () {};", namespace, namespace)
	return b.String()
}
