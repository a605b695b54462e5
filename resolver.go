package gosieve

import (
	"reflect"
	"strings"
)

type stepKind int

const (
	stepField stepKind = iota
	stepMethod
	stepMapKey
)

type step struct {
	kind   stepKind
	name   string
	index  []int
	method int
	field  *reflect.StructField
}

// Segment is one resolved hop of a dotted path.
type Segment struct {
	// Name is the Go field or method name, or the map key as written.
	Name string
	// Field is the struct field the hop reads, nil for methods and map keys.
	Field *reflect.StructField
}

// Accessor reads the value at a dotted path from elements of one type.
//
// Intermediate nils never fault: a broken chain yields the zero value of the
// final type, which is null only when that type is nilable.
type Accessor struct {
	engine *Engine
	path   string
	root   reflect.Type
	typ    reflect.Type
	steps  []step
	// tail holds the segments after an interface-typed hop. They are resolved
	// against the runtime type on every read.
	tail   []string
	getter func(any) any
}

// Path returns the path as it was resolved.
func (a *Accessor) Path() string {
	return a.path
}

// Type returns the static type of the final segment.
func (a *Accessor) Type() reflect.Type {
	return a.typ
}

// Dynamic reports whether the final type is only known at runtime.
func (a *Accessor) Dynamic() bool {
	return a.typ.Kind() == reflect.Interface || len(a.tail) > 0
}

// Segments returns the statically resolved hops.
func (a *Accessor) Segments() []Segment {
	ret := make([]Segment, 0, len(a.steps))
	for _, s := range a.steps {
		ret = append(ret, Segment{Name: s.name, Field: s.field})
	}

	return ret
}

// Get reads the path from v. It returns nil for null.
func (a *Accessor) Get(v any) any {
	rv, ok := a.value(reflect.ValueOf(v))
	if !ok {
		return nil
	}

	return rv.Interface()
}

// value reads the path from v. The flag is false when the result is null.
func (a *Accessor) value(v reflect.Value) (reflect.Value, bool) {
	if a.getter != nil {
		if !v.IsValid() {
			return a.broken()
		}
		return present(reflect.ValueOf(a.getter(v.Interface())))
	}

	cur := v
	for _, s := range a.steps {
		base, ok := indirect(cur)
		if !ok {
			return a.broken()
		}

		switch s.kind {
		case stepField:
			f, err := base.FieldByIndexErr(s.index)
			if err != nil {
				return a.broken()
			}
			cur = f
		case stepMethod:
			recv := base
			if recv.CanAddr() {
				recv = recv.Addr()
			} else {
				p := reflect.New(base.Type())
				p.Elem().Set(base)
				recv = p
			}
			cur = recv.Method(s.method).Call(nil)[0]
		case stepMapKey:
			cur = mapLookup(base, s.name)
			if !cur.IsValid() {
				return a.broken()
			}
		}
	}

	if len(a.tail) > 0 {
		base, ok := indirect(cur)
		if !ok {
			return reflect.Value{}, false
		}
		sub, ok := a.engine.Resolve(base.Type(), strings.Join(a.tail, "."))
		if !ok {
			return reflect.Value{}, false
		}
		return sub.value(base)
	}

	return present(cur)
}

func (a *Accessor) broken() (reflect.Value, bool) {
	return reflect.Zero(a.typ), !nilable(a.typ)
}

func present(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if nilable(v.Type()) && v.IsNil() {
		return v, false
	}

	return v, true
}

func mapLookup(m reflect.Value, key string) reflect.Value {
	if m.IsNil() {
		return reflect.Value{}
	}

	k := reflect.ValueOf(key).Convert(m.Type().Key())
	if v := m.MapIndex(k); v.IsValid() {
		return v
	}

	iter := m.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), key) {
			return iter.Value()
		}
	}

	return reflect.Value{}
}

type accessorKey struct {
	typ  reflect.Type
	path string
}

// Resolve builds the accessor for path on elements of type t. Segments are
// matched case-insensitively against exported fields (promoted ones
// included), json tag names, zero-argument methods and string map keys.
// An unresolvable path returns false and is never an error.
func (e *Engine) Resolve(t reflect.Type, path string) (*Accessor, bool) {
	if t == nil {
		return nil, false
	}

	path = strings.TrimSpace(path)
	a := e.accessors.getOrCreate(accessorKey{typ: t, path: path}, func() *Accessor {
		a := e.resolve(t, path)
		if a == nil {
			e.logger.Debug("property path not resolved", "type", t.String(), "path", path)
		}
		return a
	})

	return a, a != nil
}

func (e *Engine) resolve(t reflect.Type, path string) *Accessor {
	if path == "" {
		return nil
	}

	segments := strings.Split(path, ".")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
		if segments[i] == "" {
			return nil
		}
	}

	a := &Accessor{engine: e, path: path, root: t}
	cur := t
	for i, seg := range segments {
		base := baseType(cur)
		if base.Kind() == reflect.Interface {
			a.tail = segments[i:]
			break
		}

		s, next, ok := resolveSegment(base, seg)
		if !ok {
			return nil
		}
		a.steps = append(a.steps, s)
		cur = next
	}
	a.typ = cur

	return a
}

func resolveSegment(t reflect.Type, seg string) (step, reflect.Type, bool) {
	if t.Kind() == reflect.Struct {
		if f, ok := findField(t, seg); ok {
			return step{kind: stepField, name: f.Name, index: f.Index, field: &f}, f.Type, true
		}
	}

	if m, ok := findMethod(t, seg); ok {
		return step{kind: stepMethod, name: m.Name, method: m.Index}, m.Type.Out(0), true
	}

	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return step{kind: stepMapKey, name: seg}, t.Elem(), true
	}

	return step{}, nil, false
}

// findField prefers the shallowest exported field whose name matches seg,
// then the shallowest one whose json tag does.
func findField(t reflect.Type, seg string) (reflect.StructField, bool) {
	var (
		byName, byTag reflect.StructField
		nameOk, tagOk bool
	)

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}

		if strings.EqualFold(f.Name, seg) && (!nameOk || len(f.Index) < len(byName.Index)) {
			byName, nameOk = f, true
		}

		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag != "" && tag != "-" && strings.EqualFold(tag, seg) && (!tagOk || len(f.Index) < len(byTag.Index)) {
			byTag, tagOk = f, true
		}
	}

	if nameOk {
		return byName, true
	}

	return byTag, tagOk
}

// findMethod looks for a getter-like method in the pointer method set, which
// includes value receivers.
func findMethod(t reflect.Type, seg string) (reflect.Method, bool) {
	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if !strings.EqualFold(m.Name, seg) {
			continue
		}
		if m.Type.NumIn() == 1 && m.Type.NumOut() == 1 {
			return m, true
		}
	}

	return reflect.Method{}, false
}
