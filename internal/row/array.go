package row

import (
	"fmt"
	"math"
	"time"

	"github.com/tuannm99/novarow/internal/memory"
)

// Array is a read view over ArrayData.
type Array struct {
	region
	elem        Field
	compressed  bool
	numElements int
	elemOffset  int
	elemSize    int
	elemLayout  *Layout
}

func NewArray(elem Field) *Array { return NewArrayLayout(elem, false) }

// NewArrayLayout creates a view whose struct elements use the compressed
// or plain row layout.
func NewArrayLayout(elem Field, compressed bool) *Array {
	return &Array{elem: elem, compressed: compressed, elemSize: elemWidth(elem.Type)}
}

func (a *Array) Elem() Field      { return a.elem }
func (a *Array) NumElements() int { return a.numElements }

func (a *Array) PointTo(buf *memory.Buffer, offset, size int) error {
	if err := a.point(buf, offset, size); err != nil {
		return err
	}
	if size < 8 {
		return fmt.Errorf("%w: array of %d bytes has no header", ErrBounds, size)
	}
	n := buf.GetInt64(offset)
	if n < 0 || n > math.MaxInt32 || n > int64(size) {
		return fmt.Errorf("%w: array claims %d elements in %d bytes", ErrBounds, n, size)
	}
	header := 8 + BitmapWidth(int(n))
	if header+int(n)*a.elemSize > size {
		return fmt.Errorf("%w: %d elements of %d bytes overflow array of %d bytes", ErrBounds, n, a.elemSize, size)
	}
	a.numElements = int(n)
	a.elemOffset = offset + header
	return nil
}

func (a *Array) slot(i int) int { return a.elemOffset + i*a.elemSize }

func (a *Array) IsNullAt(i int) bool { return isSet(a.buf, a.base+8, i) }

func (a *Array) GetBool(i int) bool           { return a.buf.GetBool(a.slot(i)) }
func (a *Array) GetInt8(i int) int8           { return int8(a.buf.GetByte(a.slot(i))) }
func (a *Array) GetInt16(i int) int16         { return a.buf.GetInt16(a.slot(i)) }
func (a *Array) GetInt32(i int) int32         { return a.buf.GetInt32(a.slot(i)) }
func (a *Array) GetInt64(i int) int64         { return a.buf.GetInt64(a.slot(i)) }
func (a *Array) GetFloat32(i int) float32     { return a.buf.GetFloat32(a.slot(i)) }
func (a *Array) GetFloat64(i int) float64     { return a.buf.GetFloat64(a.slot(i)) }
func (a *Array) GetDate(i int) Date           { return Date{Days: a.buf.GetInt32(a.slot(i))} }
func (a *Array) GetTimestamp(i int) time.Time { return microsToTime(a.buf.GetInt64(a.slot(i))) }

func (a *Array) GetString(i int) (string, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return "", err
	}
	return string(a.buf.Slice(off, n)), nil
}

func (a *Array) GetBinary(i int) ([]byte, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return nil, err
	}
	return a.buf.CopyBytes(off, n), nil
}

func (a *Array) GetBlob(i int) ([]byte, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return nil, err
	}
	return a.buf.Slice(off, n), nil
}

func (a *Array) GetDecimal(i int) (Decimal, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return Decimal{}, err
	}
	if n != decimalBytes {
		return Decimal{}, fmt.Errorf("%w: decimal of %d bytes", ErrBounds, n)
	}
	return getDecimal(a.buf.Slice(off, n), a.elem.Type.Scale), nil
}

func (a *Array) GetStruct(i int) (*Row, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return nil, err
	}
	if a.elemLayout == nil {
		a.elemLayout = NewLayout(SchemaOf(a.elem.Type), a.compressed)
	}
	r := NewRowWithLayout(a.elemLayout)
	if err := r.PointTo(a.buf, off, n); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *Array) GetArray(i int) (*Array, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return nil, err
	}
	c := NewArrayLayout(*a.elem.Type.Elem, a.compressed)
	if err := c.PointTo(a.buf, off, n); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Array) GetMap(i int) (*Map, error) {
	off, n, err := a.locate(a.slot(i))
	if err != nil {
		return nil, err
	}
	m := NewMapLayout(a.elem.Type, a.compressed)
	if err := m.PointTo(a.buf, off, n); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Array) Get(i int) (any, error) {
	return valueAt(a, a.elem.Type, i)
}

// Values returns every element as a plain Go value.
func (a *Array) Values() ([]any, error) {
	out := make([]any, a.numElements)
	for i := range out {
		v, err := a.Get(i)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ---- bulk extraction; null elements read as zero ----

func toSlice[T any](a *Array, want TypeID, get func(*memory.Buffer, int) T) ([]T, error) {
	if a.elem.Type.ID != want {
		return nil, fmt.Errorf("%w: %s array read as %s", ErrSchemaMismatch, a.elem.Type, want)
	}
	out := make([]T, a.numElements)
	for i := range out {
		out[i] = get(a.buf, a.elemOffset+i*a.elemSize)
	}
	return out, nil
}

func (a *Array) ToBoolSlice() ([]bool, error) {
	return toSlice(a, TypeBool, (*memory.Buffer).GetBool)
}

func (a *Array) ToInt8Slice() ([]int8, error) {
	return toSlice(a, TypeInt8, func(b *memory.Buffer, off int) int8 { return int8(b.GetByte(off)) })
}

func (a *Array) ToInt16Slice() ([]int16, error) {
	return toSlice(a, TypeInt16, (*memory.Buffer).GetInt16)
}

func (a *Array) ToInt32Slice() ([]int32, error) {
	return toSlice(a, TypeInt32, (*memory.Buffer).GetInt32)
}

func (a *Array) ToInt64Slice() ([]int64, error) {
	return toSlice(a, TypeInt64, (*memory.Buffer).GetInt64)
}

func (a *Array) ToFloat32Slice() ([]float32, error) {
	return toSlice(a, TypeFloat32, (*memory.Buffer).GetFloat32)
}

func (a *Array) ToFloat64Slice() ([]float64, error) {
	return toSlice(a, TypeFloat64, (*memory.Buffer).GetFloat64)
}

// Copy returns an array backed by a private copy of its bytes.
func (a *Array) Copy() *Array {
	c := NewArrayLayout(a.elem, a.compressed)
	b := a.ToBytes()
	if err := c.PointTo(memory.Wrap(b), 0, len(b)); err != nil {
		panic(err)
	}
	return c
}
