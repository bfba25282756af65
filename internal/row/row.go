package row

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/memory"
)

// Row is a read view over one encoded row. Point it at bytes with PointTo;
// getters must match the schema's field types.
type Row struct {
	region
	layout *Layout
	packed []int64
}

func NewRow(s Schema) *Row { return NewRowWithLayout(NewLayout(s, false)) }

func NewRowWithLayout(l *Layout) *Row { return &Row{layout: l} }

func (r *Row) Layout() *Layout { return r.layout }
func (r *Row) Schema() Schema  { return r.layout.schema }
func (r *Row) NumFields() int  { return len(r.layout.slot) }

// PointTo aims the view at size bytes starting at offset.
func (r *Row) PointTo(buf *memory.Buffer, offset, size int) error {
	if err := r.point(buf, offset, size); err != nil {
		return err
	}
	if size < r.layout.fixedSize {
		return fmt.Errorf("%w: row of %d bytes, fixed region needs %d", ErrBounds, size, r.layout.fixedSize)
	}
	if r.layout.numPacked > 0 {
		return r.unpack()
	}
	return nil
}

func (r *Row) unpack() error {
	fixed := r.layout.fixedSize
	p := r.buf.Slice(r.base+fixed, r.size-fixed)
	if cap(r.packed) < r.layout.numPacked {
		r.packed = make([]int64, r.layout.numPacked)
	}
	r.packed = r.packed[:r.layout.numPacked]
	for i := range r.packed {
		u, n := binary.Uvarint(p)
		if n <= 0 {
			return fmt.Errorf("%w: packed int %d unreadable", ErrBounds, i)
		}
		r.packed[i] = bx.Unzigzag(u)
		p = p[n:]
	}
	return nil
}

func (r *Row) slot(i int) int { return r.base + r.layout.slot[i] }

// FixedSlots returns the slots of ordinals first..first+n-1, which must be
// contiguous, without copying.
func (r *Row) FixedSlots(first, n int) []byte {
	return r.buf.Slice(r.slot(first), 8*n)
}

func (r *Row) IsNullAt(i int) bool { return isSet(r.buf, r.base, i) }

func (r *Row) AnyNull() bool { return anySet(r.buf, r.base, r.layout.bitmapWidth) }

func (r *Row) GetBool(i int) bool       { return r.buf.GetBool(r.slot(i)) }
func (r *Row) GetInt8(i int) int8       { return int8(r.buf.GetByte(r.slot(i))) }
func (r *Row) GetInt16(i int) int16     { return r.buf.GetInt16(r.slot(i)) }
func (r *Row) GetFloat32(i int) float32 { return r.buf.GetFloat32(r.slot(i)) }
func (r *Row) GetFloat64(i int) float64 { return r.buf.GetFloat64(r.slot(i)) }
func (r *Row) GetDate(i int) Date       { return Date{Days: r.buf.GetInt32(r.slot(i))} }

func (r *Row) GetInt32(i int) int32 {
	if p := r.layout.packed[i]; p >= 0 {
		return int32(r.packed[p])
	}
	return r.buf.GetInt32(r.slot(i))
}

func (r *Row) GetInt64(i int) int64 {
	if p := r.layout.packed[i]; p >= 0 {
		return r.packed[p]
	}
	return r.buf.GetInt64(r.slot(i))
}

func (r *Row) GetTimestamp(i int) time.Time {
	return microsToTime(r.buf.GetInt64(r.slot(i)))
}

func (r *Row) GetString(i int) (string, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return "", err
	}
	return string(r.buf.Slice(off, n)), nil
}

// GetBinary returns a copy of the bytes.
func (r *Row) GetBinary(i int) ([]byte, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return nil, err
	}
	return r.buf.CopyBytes(off, n), nil
}

// GetBlob returns the bytes of a variable-length value without copying.
func (r *Row) GetBlob(i int) ([]byte, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return nil, err
	}
	return r.buf.Slice(off, n), nil
}

func (r *Row) GetDecimal(i int) (Decimal, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return Decimal{}, err
	}
	if n != decimalBytes {
		return Decimal{}, fmt.Errorf("%w: decimal of %d bytes", ErrBounds, n)
	}
	return getDecimal(r.buf.Slice(off, n), r.layout.schema.Fields[i].Type.Scale), nil
}

func (r *Row) GetStruct(i int) (*Row, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return nil, err
	}
	child := NewRowWithLayout(r.layout.children[i])
	if err := child.PointTo(r.buf, off, n); err != nil {
		return nil, err
	}
	return child, nil
}

func (r *Row) GetArray(i int) (*Array, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return nil, err
	}
	a := NewArrayLayout(*r.layout.schema.Fields[i].Type.Elem, r.layout.compressed)
	if err := a.PointTo(r.buf, off, n); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Row) GetMap(i int) (*Map, error) {
	off, n, err := r.locate(r.slot(i))
	if err != nil {
		return nil, err
	}
	m := NewMapLayout(r.layout.schema.Fields[i].Type, r.layout.compressed)
	if err := m.PointTo(r.buf, off, n); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns field i as a plain Go value (nil when null). Nested structs
// come back as map[string]any, lists as []any and maps as map[any]any.
func (r *Row) Get(i int) (any, error) {
	return valueAt(r, r.layout.schema.Fields[i].Type, i)
}

// Values returns every field, in ordinal order.
func (r *Row) Values() ([]any, error) {
	out := make([]any, r.NumFields())
	for i, f := range r.layout.schema.Fields {
		v, err := r.Get(i)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func (r *Row) toMap() (map[string]any, error) {
	vals, err := r.Values()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(vals))
	for i, f := range r.layout.schema.Fields {
		out[f.Name] = vals[i]
	}
	return out, nil
}

// Copy returns a row backed by a private copy of its bytes.
func (r *Row) Copy() *Row {
	c := NewRowWithLayout(r.layout)
	b := r.ToBytes()
	if err := c.PointTo(memory.Wrap(b), 0, len(b)); err != nil {
		panic(err)
	}
	return c
}

func (r *Row) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r.layout.schema.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, err := r.Get(i)
		switch {
		case err != nil:
			fmt.Fprintf(&sb, "%s=<%v>", f.Name, err)
		case v == nil:
			sb.WriteString(f.Name + "=null")
		default:
			fmt.Fprintf(&sb, "%s=%v", f.Name, v)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
