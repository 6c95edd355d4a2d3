package xwebview

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const (
	// ArityAcceptsArray marks a member that takes the full argument list as
	// a single array: variadic methods and the default-invocation member.
	ArityAcceptsArray = math.MaxInt32

	// ArityBulkInit marks an initializer that takes a single array of
	// pre-wrapped script object arguments.
	ArityBulkInit = math.MinInt32
)

type memberKind uint8

const (
	memberMethod memberKind = iota
	memberProperty
	memberInitializer
)

type callFunc func(ctx context.Context, recv reflect.Value, args []any) (any, error)
type getFunc func(recv reflect.Value) any
type setFunc func(recv reflect.Value, value any) error

// Member describes one script-visible member of a native class: a method,
// an initializer, or a property. Method and initializer members carry a
// native method identifier and an arity encoding; property members carry
// getter and setter identifiers, the setter absent for read-only fields.
type Member struct {
	kind   memberKind
	name   string
	method string
	arity  int
	getter string
	setter string

	call callFunc
	get  getFunc
	set  setFunc
}

func (m *Member) Name() string { return m.name }

func (m *Member) IsMethod() bool      { return m.kind == memberMethod }
func (m *Member) IsProperty() bool    { return m.kind == memberProperty }
func (m *Member) IsInitializer() bool { return m.kind == memberInitializer }

// Arity returns the encoded parameter count: non-negative for fixed arity,
// -(n+1) for fixed arity n plus a trailing completion parameter,
// ArityAcceptsArray and ArityBulkInit for the array calling conventions.
func (m *Member) Arity() int { return m.arity }

// Selector returns the native method identifier of a method or initializer
// member.
func (m *Member) Selector() string { return m.method }

// Getter returns the native getter identifier of a property member.
func (m *Member) Getter() string { return m.getter }

// Setter returns the native setter identifier of a property member, or ""
// when the property is read-only from script.
func (m *Member) Setter() string { return m.setter }

// MemberTable is the immutable name to descriptor mapping for one native
// class. It is built once per class and shared read-only by every binding
// of that class.
type MemberTable struct {
	class   reflect.Type
	members map[string]*Member
}

var memberTables = map[reflect.Type]*MemberTable{}
var memberTablesMutex sync.Mutex

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()
var promiseType = reflect.TypeOf((*Promise)(nil)).Elem()
var scriptObjectsType = reflect.TypeOf([]*ScriptObject(nil))

// Method identifiers belonging to the scripting protocol itself. They never
// enter a member table, save for the reserved default-invocation identifier.
var protocolSelectors = map[string]bool{
	"ScriptNameOf":         true,
	"IsExcludedFromScript": true,
	"FinalizeForScript":    true,
	"ObserveProperty":      true,
	"Copy":                 true,
}

const defaultMethodSelector = "InvokeDefaultMethod"

// MemberTableOf returns the member table for the class of prototype, which
// must be a pointer to struct (an instance or a typed nil). Tables are
// cached for the lifetime of the process.
func MemberTableOf(prototype any) *MemberTable {
	var class reflect.Type
	if t, ok := prototype.(reflect.Type); ok {
		class = t
	} else {
		class = reflect.TypeOf(prototype)
	}

	if class == nil || class.Kind() != reflect.Ptr || class.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("xwebview: plugin class must be a pointer to struct, got %v", class))
	}

	memberTablesMutex.Lock()
	defer memberTablesMutex.Unlock()

	if table, ok := memberTables[class]; ok {
		return table
	}

	table := newMemberTable(class)
	memberTables[class] = table
	return table
}

func newMemberTable(class reflect.Type) *MemberTable {
	table := &MemberTable{
		class:   class,
		members: map[string]*Member{},
	}

	// Hooks are probed on a zero value; see the contract in xwv_scripting.go.
	probe := reflect.New(class.Elem()).Interface()
	naming, _ := probe.(ScriptNaming)
	excluding, _ := probe.(ScriptExcluding)
	customized := naming != nil || excluding != nil

	rename := func(member, derived string) (string, bool) {
		if excluding != nil && excluding.IsExcludedFromScript(member) {
			return "", false
		}
		if naming != nil {
			if n := naming.ScriptNameOf(member); n != "" {
				return n, true
			}
		} else if !customized && strings.HasPrefix(derived, "_") {
			// Default privacy rule for plain classes.
			return "", false
		}
		return derived, true
	}

	claimed := map[string]bool{}

	for _, field := range reflect.VisibleFields(class.Elem()) {
		if field.Anonymous || !field.IsExported() {
			continue
		}

		getter := field.Name
		setter := "Set" + field.Name
		if claimed[getter] || claimed[setter] {
			// Shadowed or duplicated accessors from an earlier member.
			continue
		}

		tag := field.Tag.Get("xwv")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		readonly := false
		for _, opt := range strings.Split(opts, ",") {
			if opt == "readonly" {
				readonly = true
			}
		}
		derived := name
		if derived == "" {
			derived = getName(field.Name)
		}

		name, ok := rename(field.Name, derived)
		if !ok {
			continue
		}

		member := &Member{
			kind:   memberProperty,
			name:   name,
			getter: getter,
			get:    newFieldGetter(field.Index),
		}
		if !readonly {
			member.setter = setter
			member.set = newFieldSetter(field.Index)
		}

		claimed[getter] = true
		if !readonly {
			claimed[setter] = true
		}

		table.insert(name, member)
	}

	var initializers []*Member

	for i := 0; i < class.NumMethod(); i++ {
		method := class.Method(i)

		if protocolSelectors[method.Name] || claimed[method.Name] {
			continue
		}
		if method.Type.NumIn() < 2 || method.Type.In(1) != contextType {
			// Receiver and context are the two implicit calling-convention
			// parameters every scriptable method carries.
			continue
		}

		arity := method.Type.NumIn() - 2
		isInit := strings.HasPrefix(method.Name, "Init")
		bulk := isInit && !method.Type.IsVariadic() &&
			method.Type.NumIn() == 3 && method.Type.In(2) == scriptObjectsType

		switch {
		case bulk:
			arity = ArityBulkInit
		case method.Type.IsVariadic():
			arity = ArityAcceptsArray
		case arity > 0 && method.Type.In(method.Type.NumIn()-1) == promiseType:
			arity = -arity
		}

		member := &Member{
			kind:   memberMethod,
			name:   getName(method.Name),
			method: method.Name,
			arity:  arity,
			call:   newMethodCaller(method),
		}

		if method.Name == defaultMethodSelector {
			if excluding != nil && excluding.IsExcludedFromScript(method.Name) {
				continue
			}
			member.name = ""
			member.arity = ArityAcceptsArray
			table.insert("", member)
			continue
		}

		if isInit {
			member.kind = memberInitializer
			if excluding != nil && excluding.IsExcludedFromScript(method.Name) {
				continue
			}
			initializers = append(initializers, member)
			continue
		}

		name, ok := rename(method.Name, member.name)
		if !ok {
			continue
		}
		member.name = name
		table.insert(name, member)
	}

	// Initializer priority: a bulk-array constructor always wins; otherwise
	// a class may declare at most one initializer. Two non-bulk
	// initializers collide on the constructor slot.
	var constructor *Member
	for _, init := range initializers {
		if init.arity == ArityBulkInit {
			constructor = init
			break
		}
	}
	if constructor == nil {
		for _, init := range initializers {
			if constructor != nil {
				panic(fmt.Sprintf("xwebview: %v declares initializers %s and %s",
					class, constructor.method, init.method))
			}
			constructor = init
		}
	}
	if constructor != nil {
		constructor.name = ""
		table.insert("", constructor)
	}

	return table
}

func (t *MemberTable) insert(name string, member *Member) {
	if existing, ok := t.members[name]; ok {
		panic(fmt.Sprintf("xwebview: %v maps both %s and %s to script name %q",
			t.class, existing.identifier(), member.identifier(), name))
	}
	t.members[name] = member
}

func (m *Member) identifier() string {
	if m.kind == memberProperty {
		return m.getter
	}
	return m.method
}

// Class returns the native class the table was built from.
func (t *MemberTable) Class() reflect.Type { return t.class }

// Lookup resolves a script-visible name to its descriptor.
func (t *MemberTable) Lookup(name string) (*Member, bool) {
	m, ok := t.members[name]
	return m, ok
}

// Members returns every descriptor, ordered by script-visible name.
func (t *MemberTable) Members() []*Member {
	names := make([]string, 0, len(t.members))
	for name := range t.members {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make([]*Member, len(names))
	for i, name := range names {
		members[i] = t.members[name]
	}
	return members
}

// Properties returns the property descriptors, ordered by name.
func (t *MemberTable) Properties() []*Member {
	var properties []*Member
	for _, m := range t.Members() {
		if m.IsProperty() {
			properties = append(properties, m)
		}
	}
	return properties
}

// propertyName resolves the script-visible name for a native property key,
// for change notifications whose raw key is not already a table name.
func (t *MemberTable) propertyName(key string) (string, bool) {
	if m, ok := t.members[key]; ok && m.IsProperty() {
		return key, true
	}
	for name, m := range t.members {
		if m.IsProperty() && m.getter == key {
			return name, true
		}
	}
	return "", false
}

func getName(name string) string {
	// split the string into tokens beginning with uppercase letters
	var w1 []string
	i := 0
	for s := name; s != ""; s = s[i:] {
		i = strings.IndexFunc(s[1:], unicode.IsUpper) + 1
		if i <= 0 {
			i = len(s)
		}
		w1 = append(w1, s[:i])
	}

	// convert strings of uppercase letters to camelcase
	var w2 []string
	for j := 0; j < len(w1); j++ {
		if len(w2) > 0 && strings.ToUpper(w1[j]) == w1[j] {
			w2[len(w2)-1] += strings.ToLower(w1[j])
		} else {
			w2 = append(w2, strings.ToLower(w1[j]))
		}
	}

	// title every word after the first
	for k := 1; k < len(w2); k++ {
		w2[k] = strings.ToUpper(w2[k][:1]) + w2[k][1:]
	}

	return strings.Join(w2, "")
}
