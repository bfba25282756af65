package row

import "time"

// RowWriter writes one row at a time. Reset starts a row at the cursor;
// nested writers created with this writer as parent append after it.
type RowWriter struct {
	baseWriter
	layout  *Layout
	pending []int64 // packed ints, written on flush
	flushed bool
}

func NewRowWriter(s Schema) *RowWriter {
	return NewRowWriterWithLayout(NewLayout(s, false), nil)
}

// NewRowWriterWithLayout creates a writer for l. A nil parent gives the
// writer a buffer of its own.
func NewRowWriterWithLayout(l *Layout, parent Parent) *RowWriter {
	w := &RowWriter{
		layout:  l,
		pending: make([]int64, l.numPacked),
		flushed: true,
	}
	w.init(parent)
	w.slotOf = w.slot
	w.typeOf = w.fieldType
	w.beforeVar = w.flushPacked
	return w
}

func (w *RowWriter) Layout() *Layout { return w.layout }
func (w *RowWriter) Schema() Schema  { return w.layout.schema }

// Reset starts a new row at the cursor with all fields non-null and zero.
func (w *RowWriter) Reset() {
	w.enter()
	n := w.layout.fixedSize
	w.buf.Grow(n)
	w.buf.Zero(w.start, n)
	w.buf.IncreaseWriterIndex(n)
	clear(w.pending)
	w.flushed = w.layout.numPacked == 0
}

// Finish completes the row. It only matters for compressed layouts, where
// the packed ints are emitted before the first variable-length value or
// here, whichever comes first.
func (w *RowWriter) Finish() { w.flushPacked() }

func (w *RowWriter) flushPacked() {
	if w.flushed {
		return
	}
	w.flushed = true
	for _, v := range w.pending {
		w.buf.WriteVarint(v)
	}
	w.padCursor()
}

func (w *RowWriter) slot(i int) int { return w.start + w.layout.slot[i] }

func (w *RowWriter) fieldType(i int) DataType { return w.layout.schema.Fields[i].Type }

// FixedSlots returns the slots of ordinals first..first+n-1, which must be
// contiguous, as one slice.
func (w *RowWriter) FixedSlots(first, n int) []byte {
	return w.buf.Slice(w.slot(first), 8*n)
}

func (w *RowWriter) pack(p int, v int64) {
	if w.flushed {
		panic("row: packed int written after variable-length data")
	}
	w.pending[p] = v
}

func (w *RowWriter) WriteBool(i int, v bool) {
	off := w.slot(i)
	w.buf.PutInt64(off, 0)
	w.buf.PutBool(off, v)
}

func (w *RowWriter) WriteInt8(i int, v int8) {
	off := w.slot(i)
	w.buf.PutInt64(off, 0)
	w.buf.PutByte(off, byte(v))
}

func (w *RowWriter) WriteInt16(i int, v int16) {
	off := w.slot(i)
	w.buf.PutInt64(off, 0)
	w.buf.PutInt16(off, v)
}

func (w *RowWriter) WriteInt32(i int, v int32) {
	if p := w.layout.packed[i]; p >= 0 {
		w.pack(p, int64(v))
		return
	}
	off := w.slot(i)
	w.buf.PutInt64(off, 0)
	w.buf.PutInt32(off, v)
}

func (w *RowWriter) WriteInt64(i int, v int64) {
	if p := w.layout.packed[i]; p >= 0 {
		w.pack(p, v)
		return
	}
	w.buf.PutInt64(w.slot(i), v)
}

func (w *RowWriter) WriteFloat32(i int, v float32) {
	off := w.slot(i)
	w.buf.PutInt64(off, 0)
	w.buf.PutFloat32(off, v)
}

func (w *RowWriter) WriteFloat64(i int, v float64) {
	w.buf.PutFloat64(w.slot(i), v)
}

func (w *RowWriter) WriteDate(i int, d Date) { w.WriteInt32(i, d.Days) }

func (w *RowWriter) WriteTimestamp(i int, t time.Time) { w.WriteInt64(i, timeToMicros(t)) }

// ToRow finishes the row and returns a view over it.
func (w *RowWriter) ToRow() *Row {
	w.Finish()
	r := NewRowWithLayout(w.layout)
	if err := r.PointTo(w.buf, w.start, w.Size()); err != nil {
		panic(err)
	}
	return r
}
