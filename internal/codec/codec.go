package codec

import (
	"fmt"
	"reflect"

	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/row"
)

// RowCodec encodes struct values of type T as rows. It owns its writer and
// reader, so it is not safe for concurrent use; create one per goroutine
// from a shared Registry.
type RowCodec[T any] struct {
	reg  *Registry
	tc   *TypeCodec
	plan *structPlan
	w    *row.RowWriter
	r    *row.Row
}

func NewRowCodec[T any](reg *Registry) (*RowCodec[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, &SpecializationError{Type: t, Reason: "row codecs need a struct type"}
	}
	tc, err := reg.GetOrBuild(t)
	if err != nil {
		return nil, err
	}
	p, err := tc.structPlan()
	if err != nil {
		return nil, err
	}
	return &RowCodec[T]{
		reg:  reg,
		tc:   tc,
		plan: p,
		w:    row.NewRowWriterWithLayout(p.layout, nil),
		r:    row.NewRowWithLayout(p.layout),
	}, nil
}

func (c *RowCodec[T]) Schema() row.Schema { return c.plan.schema }
func (c *RowCodec[T]) Hash() int64        { return c.tc.hash }

// Encode returns the encoded row in a new slice.
func (c *RowCodec[T]) Encode(v T) (out []byte, err error) {
	defer func() { observe(encodesTotal, kindRow, err) }()
	defer memory.Recover(&err)

	buf := c.w.Buffer()
	c.reg.begin(buf, c.tc.hash)
	c.w.Reset()
	if err := c.plan.writeFields(c.w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	c.w.Finish()
	return finish(buf, kindRow), nil
}

// Decode reads a row written by Encode. On error the zero T is returned.
func (c *RowCodec[T]) Decode(data []byte) (v T, err error) {
	defer func() { observe(decodesTotal, kindRow, err) }()

	buf := memory.Wrap(data)
	off, err := c.reg.check(buf, c.tc.hash)
	if err != nil {
		return v, err
	}
	if err := c.r.PointTo(buf, off, len(data)-off); err != nil {
		return v, err
	}
	if err := c.plan.readFields(c.r, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// ArrayCodec encodes a slice or array type T as top-level ArrayData.
type ArrayCodec[T any] struct {
	reg  *Registry
	tc   *TypeCodec
	list *listPlan
	w    *row.ArrayWriter
	a    *row.Array
}

func NewArrayCodec[T any](reg *Registry) (*ArrayCodec[T], error) {
	t := reflect.TypeFor[T]()
	tc, err := reg.GetOrBuild(t)
	if err != nil {
		return nil, err
	}
	l := tc.value.list
	if l == nil {
		return nil, &SpecializationError{Type: t, Reason: fmt.Sprintf("array codecs need a list type, %s is stored as %s", t, tc.field.Type)}
	}
	return &ArrayCodec[T]{
		reg:  reg,
		tc:   tc,
		list: l,
		w:    row.NewArrayWriter(l.field, nil),
		a:    row.NewArrayLayout(l.field, reg.compressed),
	}, nil
}

func (c *ArrayCodec[T]) Field() row.Field { return c.tc.field }

// Encode writes v; a nil slice encodes as an empty array.
func (c *ArrayCodec[T]) Encode(v T) (out []byte, err error) {
	defer func() { observe(encodesTotal, kindArray, err) }()
	defer memory.Recover(&err)

	buf := c.w.Buffer()
	c.reg.begin(buf, c.tc.hash)
	if err := c.list.writeTo(c.w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return finish(buf, kindArray), nil
}

func (c *ArrayCodec[T]) Decode(data []byte) (v T, err error) {
	defer func() { observe(decodesTotal, kindArray, err) }()

	buf := memory.Wrap(data)
	off, err := c.reg.check(buf, c.tc.hash)
	if err != nil {
		return v, err
	}
	if err := c.a.PointTo(buf, off, len(data)-off); err != nil {
		return v, err
	}
	if err := c.list.readFrom(c.a, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// MapCodec encodes a map type T as top-level MapData.
type MapCodec[T any] struct {
	reg  *Registry
	tc   *TypeCodec
	mapp *mapPlan
	w    *row.MapWriter
	m    *row.Map
}

func NewMapCodec[T any](reg *Registry) (*MapCodec[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Map {
		return nil, &SpecializationError{Type: t, Reason: "map codecs need a map type"}
	}
	tc, err := reg.GetOrBuild(t)
	if err != nil {
		return nil, err
	}
	m := tc.value.mapp
	return &MapCodec[T]{
		reg:  reg,
		tc:   tc,
		mapp: m,
		w:    row.NewMapWriter(m.dt, nil),
		m:    row.NewMapLayout(m.dt, reg.compressed),
	}, nil
}

func (c *MapCodec[T]) Field() row.Field { return c.tc.field }

// Encode writes v; a nil map encodes as an empty map.
func (c *MapCodec[T]) Encode(v T) (out []byte, err error) {
	defer func() { observe(encodesTotal, kindMap, err) }()
	defer memory.Recover(&err)

	buf := c.w.Buffer()
	c.reg.begin(buf, c.tc.hash)
	if err := c.mapp.writeTo(c.w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return finish(buf, kindMap), nil
}

func (c *MapCodec[T]) Decode(data []byte) (v T, err error) {
	defer func() { observe(decodesTotal, kindMap, err) }()

	buf := memory.Wrap(data)
	off, err := c.reg.check(buf, c.tc.hash)
	if err != nil {
		return v, err
	}
	if err := c.m.PointTo(buf, off, len(data)-off); err != nil {
		return v, err
	}
	if err := c.mapp.readFrom(c.m, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// ---- framing shared by the typed codecs ----

// begin rewinds buf and writes the schema hash when enabled.
func (r *Registry) begin(buf *memory.Buffer, hash int64) {
	buf.Reset()
	if r.schemaHash {
		buf.WriteInt64(hash)
	}
}

// check verifies the schema hash when enabled and returns where the value
// starts.
func (r *Registry) check(buf *memory.Buffer, want int64) (int, error) {
	if !r.schemaHash {
		return 0, nil
	}
	if buf.Len() < 8 {
		return 0, fmt.Errorf("%w: %d bytes, no schema hash", ErrBounds, buf.Len())
	}
	if got := buf.GetInt64(0); got != want {
		return 0, &VersionMismatchError{Want: want, Got: got}
	}
	return 8, nil
}

func finish(buf *memory.Buffer, kind string) []byte {
	out := make([]byte, buf.WriterIndex())
	copy(out, buf.Bytes())
	encodedBytes.WithLabelValues(kind).Add(float64(len(out)))
	return out
}
