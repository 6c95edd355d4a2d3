package xwebview

import (
	"context"
	"sync"

	"github.com/dop251/goja"
)

// GojaDocument is an Evaluator backed by an embedded goja runtime, giving
// the bridge a real in-process script context. The runtime is not safe for
// concurrent use, so evaluations are serialized here.
type GojaDocument struct {
	vm    *goja.Runtime
	mutex sync.Mutex
}

func NewGojaDocument() *GojaDocument {
	return &GojaDocument{vm: goja.New()}
}

func (d *GojaDocument) Eval(ctx context.Context, script string) (any, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	value, err := d.vm.RunString(script)
	if err != nil {
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) {
		return nil, nil
	}
	if goja.IsNull(value) {
		return Null, nil
	}
	return value.Export(), nil
}

// Runtime exposes the underlying goja runtime for host-side setup.
func (d *GojaDocument) Runtime() *goja.Runtime { return d.vm }
