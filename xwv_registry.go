package xwebview

import (
	tls "github.com/huandu/go-tls"
)

const bindingKey = "github.com/xwv/XWebView/binding"
const executorKey = "github.com/xwv/XWebView/executor"

// CurrentBinding returns the binding whose marshaled call body is running
// on this goroutine, or nil outside a dispatched call. Native code invoked
// through a binding can use it to discover which script-side namespace
// triggered the call; a plugin instance bound into several namespaces is
// invoked reentrantly with a different current binding each time.
func CurrentBinding() *BindingObject {
	if d, ok := tls.Get(bindingKey); ok {
		if b, ok := d.Value().(*BindingObject); ok {
			return b
		}
	}
	return nil
}

func setCurrentBinding(b *BindingObject) {
	tls.Set(bindingKey, tls.MakeData(b))
}

// bindingScope installs b as the current binding for this goroutine and
// returns the restore function. The previous value is restored rather than
// cleared so nested dispatch unwinds correctly.
func bindingScope(b *BindingObject) func() {
	previous := CurrentBinding()
	setCurrentBinding(b)
	return func() {
		setCurrentBinding(previous)
	}
}

func currentExecutor() Executor {
	if d, ok := tls.Get(executorKey); ok {
		if e, ok := d.Value().(Executor); ok {
			return e
		}
	}
	return nil
}

// executorScope marks e as the execution context being drained by this
// goroutine, for the duration of a drain.
func executorScope(e Executor) func() {
	previous := currentExecutor()
	tls.Set(executorKey, tls.MakeData(e))
	return func() {
		tls.Set(executorKey, tls.MakeData(previous))
	}
}
