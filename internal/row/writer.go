package row

import (
	"time"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/memory"
)

const defaultBufferSize = 64

// Parent is anything nested writers can share a buffer with.
type Parent interface {
	Buffer() *memory.Buffer
	// beginVariable runs before bytes are appended at the cursor.
	beginVariable()
}

// Writer is the write side common to RowWriter and ArrayWriter. Ordinals
// index row fields or array elements. Variable-length values are appended
// at the cursor, padded to 8 bytes, and located by an offset+size word in
// the ordinal's slot.
type Writer interface {
	Parent
	WriterIndex() int
	StartIndex() int
	Size() int

	SetNullAt(ordinal int)
	SetNotNullAt(ordinal int)
	IsNullAt(ordinal int) bool

	WriteBool(ordinal int, v bool)
	WriteInt8(ordinal int, v int8)
	WriteInt16(ordinal int, v int16)
	WriteInt32(ordinal int, v int32)
	WriteInt64(ordinal int, v int64)
	WriteFloat32(ordinal int, v float32)
	WriteFloat64(ordinal int, v float64)
	WriteDate(ordinal int, d Date)
	WriteTimestamp(ordinal int, t time.Time)
	WriteDecimal(ordinal int, d Decimal) error
	WriteString(ordinal int, s string)
	WriteBinary(ordinal int, p []byte)
	// WriteBlob lets fill append raw bytes with sequential writes and
	// records them as the value of ordinal.
	WriteBlob(ordinal int, fill func(*memory.Buffer) error) error

	SetOffsetAndSize(ordinal, offset, size int)
	WriteDirectly(v int64)
	WriteDirectlyAt(offset int, v int64)
	IncreaseWriterIndexToAligned(n int)
}

type baseWriter struct {
	buf       *memory.Buffer
	parent    Parent
	start     int
	bitmapOff int // bytes between start and the null bitmap

	slotOf    func(ordinal int) int
	typeOf    func(ordinal int) DataType
	beforeVar func()
}

func (w *baseWriter) init(parent Parent) {
	w.parent = parent
	if parent != nil {
		w.buf = parent.Buffer()
	} else {
		w.buf = memory.New(defaultBufferSize)
	}
}

// enter is called by Reset: nested values start at the parent's cursor.
func (w *baseWriter) enter() {
	if w.parent != nil {
		w.parent.beginVariable()
	}
	w.start = w.buf.WriterIndex()
}

func (w *baseWriter) beginVariable() {
	if w.beforeVar != nil {
		w.beforeVar()
	}
}

func (w *baseWriter) Buffer() *memory.Buffer { return w.buf }
func (w *baseWriter) WriterIndex() int       { return w.buf.WriterIndex() }
func (w *baseWriter) StartIndex() int        { return w.start }
func (w *baseWriter) Size() int              { return w.buf.WriterIndex() - w.start }

func (w *baseWriter) SetNullAt(ordinal int) {
	setBit(w.buf, w.start+w.bitmapOff, ordinal)
}

func (w *baseWriter) SetNotNullAt(ordinal int) {
	unsetBit(w.buf, w.start+w.bitmapOff, ordinal)
}

func (w *baseWriter) IsNullAt(ordinal int) bool {
	return isSet(w.buf, w.start+w.bitmapOff, ordinal)
}

// SetOffsetAndSize stores an absolute offset, relative to this writer's
// start, together with size in the slot of ordinal.
func (w *baseWriter) SetOffsetAndSize(ordinal, offset, size int) {
	word := int64(offset-w.start)<<32 | int64(uint32(size))
	w.buf.PutInt64(w.slotOf(ordinal), word)
}

// reserve appends n bytes plus zeroed padding for ordinal and returns
// their offset.
func (w *baseWriter) reserve(ordinal, n int) int {
	w.beginVariable()
	off := w.buf.WriterIndex()
	rounded := bx.RoundToWord(n)
	w.buf.Grow(rounded)
	if rounded > n {
		w.buf.Zero(off+n, rounded-n)
	}
	w.SetOffsetAndSize(ordinal, off, n)
	w.buf.IncreaseWriterIndex(rounded)
	return off
}

func (w *baseWriter) WriteString(ordinal int, s string) {
	off := w.reserve(ordinal, len(s))
	w.buf.PutString(off, s)
}

func (w *baseWriter) WriteBinary(ordinal int, p []byte) {
	off := w.reserve(ordinal, len(p))
	w.buf.PutBytes(off, p)
}

func (w *baseWriter) WriteDecimal(ordinal int, d Decimal) error {
	var tmp [decimalBytes]byte
	if err := putDecimal(tmp[:], d, w.typeOf(ordinal)); err != nil {
		return err
	}
	off := w.reserve(ordinal, decimalBytes)
	w.buf.PutBytes(off, tmp[:])
	return nil
}

func (w *baseWriter) WriteBlob(ordinal int, fill func(*memory.Buffer) error) error {
	w.beginVariable()
	off := w.buf.WriterIndex()
	if err := fill(w.buf); err != nil {
		w.buf.SetWriterIndex(off)
		return err
	}
	n := w.buf.WriterIndex() - off
	w.padCursor()
	w.SetOffsetAndSize(ordinal, off, n)
	return nil
}

// WriteDirectly appends an 8-byte word at the cursor.
func (w *baseWriter) WriteDirectly(v int64) {
	w.beginVariable()
	w.buf.Grow(8)
	w.buf.PutInt64(w.buf.WriterIndex(), v)
	w.buf.IncreaseWriterIndex(8)
}

// WriteDirectlyAt overwrites an 8-byte word already written.
func (w *baseWriter) WriteDirectlyAt(offset int, v int64) {
	w.buf.PutInt64(offset, v)
}

// IncreaseWriterIndexToAligned advances past n bytes already put at the
// cursor, plus zeroed padding up to a word boundary.
func (w *baseWriter) IncreaseWriterIndexToAligned(n int) {
	off := w.buf.WriterIndex()
	rounded := bx.RoundToWord(n)
	w.buf.Grow(rounded)
	if rounded > n {
		w.buf.Zero(off+n, rounded-n)
	}
	w.buf.IncreaseWriterIndex(rounded)
}

// padCursor zero-pads from the cursor to the next word boundary.
func (w *baseWriter) padCursor() {
	if p := bx.Pad(w.buf.WriterIndex() - w.start); p > 0 {
		w.buf.Grow(p)
		w.buf.Zero(w.buf.WriterIndex(), p)
		w.buf.IncreaseWriterIndex(p)
	}
}
