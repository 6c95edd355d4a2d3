package xwebview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// scriptRecorder is an Evaluator recording every evaluated statement.
type scriptRecorder struct {
	mutex   sync.Mutex
	scripts []string
}

func (r *scriptRecorder) Eval(ctx context.Context, script string) (any, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.scripts = append(r.scripts, script)
	return nil, nil
}

func (r *scriptRecorder) all() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.scripts...)
}

func (r *scriptRecorder) contains(substr string) bool {
	for _, script := range r.all() {
		if strings.Contains(script, substr) {
			return true
		}
	}
	return false
}

func (r *scriptRecorder) count(substr string) int {
	n := 0
	for _, script := range r.all() {
		n += strings.Count(script, substr)
	}
	return n
}

// observable provides change notification to the test plugins.
type observable struct {
	mutex     sync.Mutex
	observers map[string]map[int]func(any)
	nextID    int
}

func (o *observable) ObserveProperty(key string, observer func(value any)) (cancel func()) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.observers == nil {
		o.observers = map[string]map[int]func(any){}
	}
	if o.observers[key] == nil {
		o.observers[key] = map[int]func(any){}
	}
	o.nextID++
	id := o.nextID
	o.observers[key][id] = observer

	return func() {
		o.mutex.Lock()
		defer o.mutex.Unlock()
		delete(o.observers[key], id)
	}
}

func (o *observable) notify(key string, value any) {
	o.mutex.Lock()
	observers := make([]func(any), 0, len(o.observers[key]))
	for _, fn := range o.observers[key] {
		observers = append(observers, fn)
	}
	o.mutex.Unlock()

	for _, fn := range observers {
		fn(value)
	}
}

func (o *observable) activeObservers() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	n := 0
	for _, byID := range o.observers {
		n += len(byID)
	}
	return n
}

// Counter is the minimal plugin: one property, one method.
type Counter struct {
	observable

	Count int
}

func (c *Counter) Increment(ctx context.Context) {
	c.Count++
	c.notify("Count", c.Count)
}

// Snapshot lacks the context parameter and is invisible to script.
func (c *Counter) Snapshot() int { return c.Count }

// Widget exercises the calling-convention encodings.
type Widget struct {
	Label  string
	Serial string `xwv:",readonly"`
	Hidden string `xwv:"-"`

	logged []any
}

func (w *Widget) Describe(ctx context.Context) string {
	return w.Label + "/" + w.Serial
}

func (w *Widget) Add(ctx context.Context, a float64, b float64) float64 {
	return a + b
}

func (w *Widget) Fetch(ctx context.Context, url string, promise Promise) {
	if url == "" {
		promise.Reject(errors.New("empty url"))
		return
	}
	promise.Resolve("fetched " + url)
}

func (w *Widget) Log(ctx context.Context, args ...any) {
	w.logged = append(w.logged, args...)
}

// plainPlugin has no customization hooks; the default privacy rule applies.
type plainPlugin struct {
	Visible string
	Tagged  string `xwv:"_private"`
}

// renamedPlugin customizes naming and exclusion.
type renamedPlugin struct {
	observable

	Label string
}

func (p *renamedPlugin) ScriptNameOf(member string) string {
	if member == "Label" {
		return "caption"
	}
	return ""
}

func (p *renamedPlugin) IsExcludedFromScript(member string) bool {
	return member == "Internal"
}

func (p *renamedPlugin) Internal(ctx context.Context) {}

func (p *renamedPlugin) Touch(ctx context.Context) {
	p.notify("Label", p.Label)
}

// servicePlugin carries the reserved default-invocation member.
type servicePlugin struct {
	received []any
}

func (p *servicePlugin) InvokeDefaultMethod(ctx context.Context, args []any) (any, error) {
	p.received = append(p.received, args...)
	return len(args), nil
}

// Session is constructible from script.
type Session struct {
	observable

	URL   string
	Token string
}

func (s *Session) Init(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("empty url")
	}
	s.URL = url
	s.Token = "t-" + url
	return nil
}

func (s *Session) FinalizeForScript() {}

// trackedPlugin counts live observation registrations in a package
// variable, so tests can check registration balance for instances they
// never get a handle on.
type trackedPlugin struct {
	Label string
}

var trackedRegistrations int

func (p *trackedPlugin) ObserveProperty(key string, observer func(value any)) (cancel func()) {
	trackedRegistrations++
	return func() { trackedRegistrations-- }
}

func (p *trackedPlugin) Init(ctx context.Context, label string) error {
	if label == "" {
		return errors.New("empty label")
	}
	p.Label = label
	return nil
}

// bulkPlugin declares both a bulk-array and a named initializer; the bulk
// form takes priority.
type bulkPlugin struct {
	Refs int
	Name string
}

func (p *bulkPlugin) InitWithObjects(ctx context.Context, objects []*ScriptObject) error {
	p.Refs = len(objects)
	return nil
}

func (p *bulkPlugin) InitWithName(ctx context.Context, name string) error {
	p.Name = name
	return nil
}

// reentrantPlugin dispatches back into its own binding from inside a
// marshaled call.
type reentrantPlugin struct {
	sawBinding bool
}

func (p *reentrantPlugin) Outer(ctx context.Context) (any, error) {
	binding := CurrentBinding()
	if binding == nil {
		return nil, errors.New("no current binding")
	}

	result, err := binding.CallMethodSync(ctx, "inner", nil)
	p.sawBinding = CurrentBinding() == binding
	return result, err
}

func (p *reentrantPlugin) Inner(ctx context.Context) int {
	return 42
}

// multiPlugin reports which namespace invoked it.
type multiPlugin struct{}

func (p *multiPlugin) Whoami(ctx context.Context) (string, error) {
	binding := CurrentBinding()
	if binding == nil {
		return "", errors.New("no current binding")
	}
	return binding.Namespace(), nil
}

func newTestChannel(t *testing.T, prototype any, namespace string) (*Channel, *scriptRecorder) {
	t.Helper()

	queue := NewSerialQueue(t.Name())
	t.Cleanup(queue.Close)

	recorder := &scriptRecorder{}
	return NewChannel(prototype, namespace, queue, recorder), recorder
}
