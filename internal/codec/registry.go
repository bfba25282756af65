package codec

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/row"
)

// Registry compiles Go types into codecs and memoizes the result. Lookups
// are lock-free; compilation is serialized so each type is compiled at
// most once. A type that fails to compile is memoized with its error and
// never retried.
type Registry struct {
	opaque     Opaque
	compressed bool
	schemaHash bool

	memo *xsync.MapOf[reflect.Type, *TypeCodec]

	mu     sync.Mutex // guards compilation and cyclic
	cyclic map[reflect.Type]bool
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		opaque: MsgPack{},
		memo:   xsync.NewMapOf[reflect.Type, *TypeCodec](),
		cyclic: make(map[reflect.Type]bool),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Compressed() bool   { return r.compressed }
func (r *Registry) SchemaHashed() bool { return r.schemaHash }
func (r *Registry) Opaque() Opaque     { return r.opaque }

// TypeCodec is the compiled plan for one Go type.
type TypeCodec struct {
	typ   reflect.Type
	field row.Field
	hash  int64
	value *valueCodec
	err   error
}

func (c *TypeCodec) Type() reflect.Type { return c.typ }

// Field describes how a value of the type is stored in a row slot.
func (c *TypeCodec) Field() row.Field { return c.field }

// Schema is the row schema of a struct type, or a one-field schema for
// any other type.
func (c *TypeCodec) Schema() row.Schema {
	if p := c.value.plan; p != nil {
		return p.schema
	}
	return row.NewSchema(c.field)
}

// Layout is the row layout of a struct type, nil otherwise.
func (c *TypeCodec) Layout() *row.Layout {
	if p := c.value.plan; p != nil {
		return p.layout
	}
	return nil
}

// Hash is the schema hash written ahead of values when WithSchemaHash is on.
func (c *TypeCodec) Hash() int64 { return c.hash }

// NewWriter returns a row writer with the type's layout and its own buffer.
func (c *TypeCodec) NewWriter() (*row.RowWriter, error) {
	p, err := c.structPlan()
	if err != nil {
		return nil, err
	}
	return row.NewRowWriterWithLayout(p.layout, nil), nil
}

// Serialize writes struct value v as a new row at w's cursor. w must use
// the type's layout.
func (c *TypeCodec) Serialize(v reflect.Value, w *row.RowWriter) (err error) {
	defer memory.Recover(&err)
	p, err := c.structPlan()
	if err != nil {
		return err
	}
	w.Reset()
	if err := p.writeFields(w, v); err != nil {
		return err
	}
	w.Finish()
	return nil
}

// Deserialize reads a struct value of the codec's type from r.
func (c *TypeCodec) Deserialize(r *row.Row) (reflect.Value, error) {
	p, err := c.structPlan()
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(c.typ).Elem()
	if err := p.readFields(r, out); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func (c *TypeCodec) structPlan() (*structPlan, error) {
	if c.value.plan == nil {
		return nil, &SpecializationError{Type: c.typ, Reason: "not a struct with exported fields"}
	}
	return c.value.plan, nil
}

// GetOrBuild returns the codec for t, compiling it on first use.
func (r *Registry) GetOrBuild(t reflect.Type) (*TypeCodec, error) {
	if c, ok := r.memo.Load(t); ok {
		return c, c.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(t)
}

// lookup is GetOrBuild with r.mu held; nested struct types come through
// here so they are memoized too.
func (r *Registry) lookup(t reflect.Type) (*TypeCodec, error) {
	if c, ok := r.memo.Load(t); ok {
		return c, c.err
	}
	c := &TypeCodec{typ: t}
	vc, err := r.compile(t)
	if err != nil {
		c.err = err
		c.value = &valueCodec{typ: t}
		specializationsTotal.WithLabelValues(statusError).Inc()
		slog.Debug("codec: specialization failed", "type", t, "err", err)
	} else {
		c.value = vc
		c.field = row.Field{Name: "value", Type: vc.dt, Nullable: vc.nullable}
		c.hash = SchemaHash(c.Schema(), r.compressed)
		specializationsTotal.WithLabelValues(statusSuccess).Inc()
		slog.Debug("codec: specialized", "type", t, "row_type", vc.dt, "fields", len(c.Schema().Fields))
	}
	r.memo.Store(t, c)
	return c, c.err
}

// compile is valueFor, except that a struct with exported fields always
// becomes a row plan, even when it is recursive.
func (r *Registry) compile(t reflect.Type) (*valueCodec, error) {
	if t.Kind() == reflect.Struct && !isLeafStruct(t) && hasExportedFields(t) {
		return r.compileStruct(t)
	}
	return r.valueFor(t)
}

// SchemaHash mixes the compressed flag into the schema hash so data
// written in one mode is rejected by a reader in the other.
func SchemaHash(s row.Schema, compressed bool) int64 {
	h := s.Hash()
	if compressed {
		h = h*31 + 1
	}
	return h
}

// isCyclic reports whether struct type t can reach itself through its
// fields. Such types are stored through the opaque serializer wherever
// they appear nested, whichever type is compiled first.
func (r *Registry) isCyclic(t reflect.Type) bool {
	if c, ok := r.cyclic[t]; ok {
		return c
	}
	seen := make(map[reflect.Type]bool)
	var reaches func(u reflect.Type) bool
	reaches = func(u reflect.Type) bool {
		for {
			switch u.Kind() {
			case reflect.Pointer, reflect.Slice, reflect.Array:
				u = u.Elem()
				continue
			case reflect.Map:
				if reaches(u.Key()) {
					return true
				}
				u = u.Elem()
				continue
			}
			break
		}
		if u.Kind() != reflect.Struct || isLeafStruct(u) {
			return false
		}
		if u == t {
			return true
		}
		if seen[u] {
			return false
		}
		seen[u] = true
		return anyField(u, reaches)
	}
	c := anyField(t, reaches)
	r.cyclic[t] = c
	return c
}

func anyField(t reflect.Type, pred func(reflect.Type) bool) bool {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && sf.Tag.Get(tagName) != "-" && pred(sf.Type) {
			return true
		}
	}
	return false
}
