package row

import (
	"time"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/memory"
)

// ArrayWriter writes ArrayData: an int64 element count, a null bitmap and
// one slot per element (the type width for fixed-width types, an
// offset+size word otherwise).
type ArrayWriter struct {
	baseWriter
	elem        Field
	elemSize    int
	numElements int
	header      int
}

func NewArrayWriter(elem Field, parent Parent) *ArrayWriter {
	w := &ArrayWriter{elem: elem, elemSize: elemWidth(elem.Type)}
	w.init(parent)
	w.bitmapOff = 8
	w.slotOf = w.slot
	w.typeOf = func(int) DataType { return w.elem.Type }
	return w
}

func elemWidth(t DataType) int {
	if n := t.Width(); n > 0 {
		return n
	}
	return 8
}

func (w *ArrayWriter) Elem() Field      { return w.elem }
func (w *ArrayWriter) NumElements() int { return w.numElements }

// Reset starts an array of n elements at the cursor.
func (w *ArrayWriter) Reset(n int) {
	w.enter()
	w.numElements = n
	w.header = 8 + BitmapWidth(n)
	fixed := w.header + bx.RoundToWord(n*w.elemSize)
	w.buf.Grow(fixed)
	w.buf.Zero(w.start, fixed)
	w.buf.PutInt64(w.start, int64(n))
	w.buf.IncreaseWriterIndex(fixed)
}

func (w *ArrayWriter) slot(i int) int { return w.start + w.header + i*w.elemSize }

func (w *ArrayWriter) WriteBool(i int, v bool)       { w.buf.PutBool(w.slot(i), v) }
func (w *ArrayWriter) WriteInt8(i int, v int8)       { w.buf.PutByte(w.slot(i), byte(v)) }
func (w *ArrayWriter) WriteInt16(i int, v int16)     { w.buf.PutInt16(w.slot(i), v) }
func (w *ArrayWriter) WriteInt32(i int, v int32)     { w.buf.PutInt32(w.slot(i), v) }
func (w *ArrayWriter) WriteInt64(i int, v int64)     { w.buf.PutInt64(w.slot(i), v) }
func (w *ArrayWriter) WriteFloat32(i int, v float32) { w.buf.PutFloat32(w.slot(i), v) }
func (w *ArrayWriter) WriteFloat64(i int, v float64) { w.buf.PutFloat64(w.slot(i), v) }
func (w *ArrayWriter) WriteDate(i int, d Date)       { w.buf.PutInt32(w.slot(i), d.Days) }

func (w *ArrayWriter) WriteTimestamp(i int, t time.Time) {
	w.buf.PutInt64(w.slot(i), timeToMicros(t))
}

// ToArray returns a view over the array just written.
func (w *ArrayWriter) ToArray() *Array {
	a := NewArray(w.elem)
	if err := a.PointTo(w.buf, w.start, w.Size()); err != nil {
		panic(err)
	}
	return a
}

// ---- bulk construction from primitive slices ----

func fromSlice[T any](t DataType, vals []T, put func(*memory.Buffer, int, T)) *Array {
	w := NewArrayWriter(Field{Name: "item", Type: t}, nil)
	w.Reset(len(vals))
	for i, v := range vals {
		put(w.buf, w.slot(i), v)
	}
	return w.ToArray()
}

func FromBools(v []bool) *Array       { return fromSlice(BoolType, v, (*memory.Buffer).PutBool) }
func FromInt16s(v []int16) *Array     { return fromSlice(Int16Type, v, (*memory.Buffer).PutInt16) }
func FromInt32s(v []int32) *Array     { return fromSlice(Int32Type, v, (*memory.Buffer).PutInt32) }
func FromInt64s(v []int64) *Array     { return fromSlice(Int64Type, v, (*memory.Buffer).PutInt64) }
func FromFloat32s(v []float32) *Array { return fromSlice(Float32Type, v, (*memory.Buffer).PutFloat32) }
func FromFloat64s(v []float64) *Array { return fromSlice(Float64Type, v, (*memory.Buffer).PutFloat64) }

func FromInt8s(v []int8) *Array {
	return fromSlice(Int8Type, v, func(b *memory.Buffer, off int, x int8) { b.PutByte(off, byte(x)) })
}
