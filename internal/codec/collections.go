package codec

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/tuannm99/novarow/internal/row"
)

// listPlan stores slices and arrays as ArrayData.
type listPlan struct {
	typ   reflect.Type
	elem  *valueCodec
	field row.Field // element field
	depth int       // nesting of lists, 1 for a flat slice
}

func (r *Registry) listFor(t reflect.Type) (*valueCodec, error) {
	elem, err := r.valueFor(t.Elem())
	if err != nil {
		return nil, within(err, t, "[]")
	}
	l := &listPlan{
		typ:   t,
		elem:  elem,
		field: row.Field{Name: "item", Type: elem.dt, Nullable: elem.nullable},
		depth: 1,
	}
	for e := elem; e.list != nil; e = e.list.elem {
		l.depth++
	}
	nullable := t.Kind() == reflect.Slice
	return &valueCodec{
		typ: t, dt: row.ListOfField(l.field), nullable: nullable, list: l,
		write: func(w row.Writer, i int, v reflect.Value) error {
			if nullable && v.IsNil() {
				w.SetNullAt(i)
				return nil
			}
			aw := row.NewArrayWriter(l.field, w)
			if err := l.writeTo(aw, v); err != nil {
				return err
			}
			w.SetOffsetAndSize(i, aw.StartIndex(), aw.Size())
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			if nullable && r.IsNullAt(i) {
				v.SetZero()
				return nil
			}
			arr, err := r.GetArray(i)
			if err != nil {
				return err
			}
			return l.readFrom(arr, v)
		},
	}, nil
}

func (l *listPlan) writeTo(aw *row.ArrayWriter, v reflect.Value) error {
	n := v.Len()
	aw.Reset(n)
	for j := 0; j < n; j++ {
		if err := l.elem.write(aw, j, v.Index(j)); err != nil {
			return fmt.Errorf("element %d: %w", j, err)
		}
	}
	return nil
}

// readFrom decodes arr into v. A nested list whose dimensions cannot be
// probed (an all-null level) decodes as nil.
func (l *listPlan) readFrom(arr *row.Array, v reflect.Value) error {
	if l.depth > 1 {
		dims, err := row.GetDimensions(arr, l.depth)
		if err != nil {
			return err
		}
		if dims == nil {
			v.SetZero()
			return nil
		}
	}
	n := arr.NumElements()
	if l.typ.Kind() == reflect.Array {
		if n != l.typ.Len() {
			return fmt.Errorf("%w: %d elements for %s", ErrBounds, n, l.typ)
		}
	} else {
		v.Set(reflect.MakeSlice(l.typ, n, n))
	}
	for j := 0; j < n; j++ {
		if err := l.elem.read(arr, j, v.Index(j)); err != nil {
			return fmt.Errorf("element %d: %w", j, err)
		}
	}
	return nil
}

// mapPlan stores maps as MapData. Keys are written in sorted order when
// they have a natural order so equal maps encode to equal bytes.
type mapPlan struct {
	typ       reflect.Type
	dt        row.DataType
	key, elem *valueCodec
	less      func(a, b reflect.Value) int
}

func (r *Registry) mapFor(t reflect.Type) (*valueCodec, error) {
	key, err := r.valueFor(t.Key())
	if err != nil {
		return nil, within(err, t, "key")
	}
	if key.nullable {
		return nil, &SpecializationError{Type: t, Field: "key", Reason: "map keys must not be nullable"}
	}
	elem, err := r.valueFor(t.Elem())
	if err != nil {
		return nil, within(err, t, "value")
	}
	m := &mapPlan{
		typ:  t,
		key:  key,
		elem: elem,
		dt: row.MapOfFields(
			row.Field{Name: "key", Type: key.dt},
			row.Field{Name: "value", Type: elem.dt, Nullable: elem.nullable},
		),
		less: keyOrder(t.Key()),
	}
	return &valueCodec{
		typ: t, dt: m.dt, nullable: true, mapp: m,
		write: func(w row.Writer, i int, v reflect.Value) error {
			if v.IsNil() {
				w.SetNullAt(i)
				return nil
			}
			mw := row.NewMapWriter(m.dt, w)
			if err := m.writeTo(mw, v); err != nil {
				return err
			}
			w.SetOffsetAndSize(i, mw.StartIndex(), mw.Size())
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			if r.IsNullAt(i) {
				v.SetZero()
				return nil
			}
			mp, err := r.GetMap(i)
			if err != nil {
				return err
			}
			return m.readFrom(mp, v)
		},
	}, nil
}

type mapEntry struct{ k, v reflect.Value }

func (m *mapPlan) writeTo(mw *row.MapWriter, v reflect.Value) error {
	// MapIndex cannot find NaN keys, so entries are taken from one pass
	entries := make([]mapEntry, 0, v.Len())
	for it := v.MapRange(); it.Next(); {
		entries = append(entries, mapEntry{it.Key(), it.Value()})
	}
	if m.less != nil {
		slices.SortFunc(entries, func(a, b mapEntry) int { return m.less(a.k, b.k) })
	}
	mw.Reset()
	kw := mw.BeginKeys(len(entries))
	for j, e := range entries {
		if err := m.key.write(kw, j, e.k); err != nil {
			return fmt.Errorf("key %v: %w", e.k, err)
		}
	}
	vw := mw.BeginValues(len(entries))
	for j, e := range entries {
		if err := m.elem.write(vw, j, e.v); err != nil {
			return fmt.Errorf("value of %v: %w", e.k, err)
		}
	}
	return nil
}

func (m *mapPlan) readFrom(mp *row.Map, v reflect.Value) error {
	n := mp.NumElements()
	out := reflect.MakeMapWithSize(m.typ, n)
	keys, vals := mp.Keys(), mp.Values()
	for j := 0; j < n; j++ {
		k := reflect.New(m.typ.Key()).Elem()
		if err := m.key.read(keys, j, k); err != nil {
			return fmt.Errorf("key %d: %w", j, err)
		}
		x := reflect.New(m.typ.Elem()).Elem()
		if err := m.elem.read(vals, j, x); err != nil {
			return fmt.Errorf("value %d: %w", j, err)
		}
		out.SetMapIndex(k, x)
	}
	v.Set(out)
	return nil
}

func keyOrder(t reflect.Type) func(a, b reflect.Value) int {
	switch t.Kind() {
	case reflect.String:
		return func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.Float32, reflect.Float64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) }
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			if a.Bool() == b.Bool() {
				return 0
			}
			if a.Bool() {
				return 1
			}
			return -1
		}
	}
	return nil
}
