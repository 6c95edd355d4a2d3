package xwebview

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
)

// Invoker performs a single native call given a target instance, a member
// descriptor, and a heterogeneous argument list. A native-side panic is
// propagated as a recoverable error, never as a process fault.
type Invoker interface {
	Invoke(ctx context.Context, target any, member *Member, args []any) (any, error)
}

// reflectInvoker dispatches through the capability closure generated for
// the member at table construction.
type reflectInvoker struct{}

func (reflectInvoker) Invoke(ctx context.Context, target any, member *Member, args []any) (result any, err error) {
	if member.call == nil {
		return nil, fmt.Errorf("xwebview: member %q is not callable", member.name)
	}

	defer func() {
		if v := recover(); v != nil {
			result = nil
			err = fmt.Errorf("%+v\n%s", v, string(debug.Stack()))
		}
	}()

	return member.call(ctx, reflect.ValueOf(target), args)
}

// newMethodCaller builds the per-method capability closure: argument
// conversion is planned once from the declared signature, and the call
// separates the trailing error result from the value result.
func newMethodCaller(method reflect.Method) callFunc {
	t := method.Type

	fixed := t.NumIn() - 2
	if t.IsVariadic() {
		fixed--
	}

	return func(ctx context.Context, recv reflect.Value, args []any) (any, error) {
		if ctx == nil {
			ctx = context.Background()
		}

		in := make([]reflect.Value, 0, t.NumIn())
		in = append(in, recv, reflect.ValueOf(ctx))

		for i := 0; i < fixed; i++ {
			var arg any
			if i < len(args) {
				arg = args[i]
			}
			v, err := convertArgument(arg, t.In(i + 2))
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %v", method.Name, i, err)
			}
			in = append(in, v)
		}

		if t.IsVariadic() {
			elem := t.In(t.NumIn() - 1).Elem()
			for i := fixed; i < len(args); i++ {
				v, err := convertArgument(args[i], elem)
				if err != nil {
					return nil, fmt.Errorf("%s argument %d: %v", method.Name, i, err)
				}
				in = append(in, v)
			}
		}

		outs := method.Func.Call(in)

		var result any
		var err error
		for _, out := range outs {
			if out.Type().Implements(errorType) {
				if !out.IsNil() {
					err = out.Interface().(error)
				}
			} else if result == nil {
				result = out.Interface()
			}
		}
		return result, err
	}
}

func newFieldGetter(index []int) getFunc {
	return func(recv reflect.Value) any {
		return recv.Elem().FieldByIndex(index).Interface()
	}
}

func newFieldSetter(index []int) setFunc {
	return func(recv reflect.Value, value any) error {
		field := recv.Elem().FieldByIndex(index)
		v, err := convertArgument(value, field.Type())
		if err != nil {
			return err
		}
		field.Set(v)
		return nil
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertArgument adapts one incoming script value to a native parameter or
// field type. Script null arrives as nil and becomes the type's zero value.
func convertArgument(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	if _, ok := value.(nullValue); ok {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	// Script numbers arrive as float64 or int64 regardless of the declared
	// native type.
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", value, t)
}
