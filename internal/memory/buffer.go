// Package memory provides the growable byte buffer shared by row writers,
// row readers and the graph serializer.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tuannm99/novarow/internal/alias/bx"
)

// MaxSize is the largest buffer the row format can address: offsets are
// stored as 32-bit halves of an offset+size word.
const MaxSize = math.MaxInt32

var (
	// ErrAllocation is raised (as a panic value wrapping it) when a buffer
	// cannot grow. Callers that own a whole encode turn it back into an
	// error with Recover.
	ErrAllocation = errors.New("memory: buffer allocation failed")
	// ErrUnderflow reports a sequential read past the written bytes.
	ErrUnderflow = errors.New("memory: read past end of buffer")
)

// Buffer is a byte slice with a write cursor and a read cursor.
//
// Absolute Put*/Get* calls do no bounds checks of their own: writers grow
// the buffer before putting, readers validate regions before getting.
// Sequential Read* calls are checked and return ErrUnderflow.
type Buffer struct {
	buf         []byte
	writerIndex int
	readerIndex int
}

func New(size int) *Buffer {
	if size < 0 {
		size = 0
	}
	return &Buffer{buf: make([]byte, size)}
}

// Wrap returns a buffer over b whose writer index sits at len(b).
func Wrap(b []byte) *Buffer {
	return &Buffer{buf: b, writerIndex: len(b)}
}

// Len is the number of addressable bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Bytes returns the written bytes without copying.
func (b *Buffer) Bytes() []byte { return b.buf[:b.writerIndex] }

func (b *Buffer) WriterIndex() int { return b.writerIndex }
func (b *Buffer) ReaderIndex() int { return b.readerIndex }

func (b *Buffer) SetWriterIndex(i int) {
	b.ensure(i)
	b.writerIndex = i
}

func (b *Buffer) SetReaderIndex(i int) { b.readerIndex = i }

// Remaining is the number of written bytes after the reader index.
func (b *Buffer) Remaining() int { return b.writerIndex - b.readerIndex }

// Reset rewinds both cursors. The backing array is kept.
func (b *Buffer) Reset() {
	b.writerIndex = 0
	b.readerIndex = 0
}

// Grow makes room for n more bytes after the writer index.
func (b *Buffer) Grow(n int) {
	b.ensure(b.writerIndex + n)
}

// IncreaseWriterIndex grows the buffer and moves the cursor n bytes forward.
func (b *Buffer) IncreaseWriterIndex(n int) {
	b.Grow(n)
	b.writerIndex += n
}

func (b *Buffer) ensure(need int) {
	if need <= len(b.buf) {
		return
	}
	if need < 0 || need > MaxSize {
		panic(fmt.Errorf("%w: need %d bytes, limit %d", ErrAllocation, need, MaxSize))
	}
	newCap := len(b.buf) * 2
	if newCap < need {
		newCap = need
	}
	if newCap > MaxSize {
		newCap = MaxSize
	}
	nb := make([]byte, newCap)
	copy(nb, b.buf)
	b.buf = nb
}

// Recover turns an allocation panic into *err. Any other panic is re-raised.
//
//	defer memory.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && errors.Is(e, ErrAllocation) {
		*err = e
		return
	}
	panic(r)
}

// ---- absolute access ----

func (b *Buffer) PutByte(off int, v byte)       { b.buf[off] = v }
func (b *Buffer) PutInt16(off int, v int16)     { bx.PutI16At(b.buf, off, v) }
func (b *Buffer) PutInt32(off int, v int32)     { bx.PutI32At(b.buf, off, v) }
func (b *Buffer) PutInt64(off int, v int64)     { bx.PutI64At(b.buf, off, v) }
func (b *Buffer) PutFloat32(off int, v float32) { bx.PutF32At(b.buf, off, v) }
func (b *Buffer) PutFloat64(off int, v float64) { bx.PutF64At(b.buf, off, v) }
func (b *Buffer) PutBytes(off int, p []byte)    { copy(b.buf[off:], p) }
func (b *Buffer) PutString(off int, s string)   { copy(b.buf[off:], s) }

func (b *Buffer) PutBool(off int, v bool) {
	if v {
		b.buf[off] = 1
	} else {
		b.buf[off] = 0
	}
}

func (b *Buffer) GetByte(off int) byte       { return b.buf[off] }
func (b *Buffer) GetBool(off int) bool       { return b.buf[off] != 0 }
func (b *Buffer) GetInt16(off int) int16     { return bx.I16At(b.buf, off) }
func (b *Buffer) GetInt32(off int) int32     { return bx.I32At(b.buf, off) }
func (b *Buffer) GetInt64(off int) int64     { return bx.I64At(b.buf, off) }
func (b *Buffer) GetFloat32(off int) float32 { return bx.F32At(b.buf, off) }
func (b *Buffer) GetFloat64(off int) float64 { return bx.F64At(b.buf, off) }

// Slice returns buf[off:off+n] without copying.
func (b *Buffer) Slice(off, n int) []byte { return b.buf[off : off+n : off+n] }

// CopyBytes returns a copy of buf[off:off+n].
func (b *Buffer) CopyBytes(off, n int) []byte {
	out := make([]byte, n)
	copy(out, b.buf[off:off+n])
	return out
}

// Zero clears n bytes starting at off.
func (b *Buffer) Zero(off, n int) {
	clear(b.buf[off : off+n])
}

// ---- sequential writes (at the writer index) ----

func (b *Buffer) WriteByte(v byte) error {
	b.Grow(1)
	b.buf[b.writerIndex] = v
	b.writerIndex++
	return nil
}

func (b *Buffer) WriteInt8(v int8) { _ = b.WriteByte(byte(v)) }

func (b *Buffer) WriteInt64(v int64) {
	b.Grow(8)
	bx.PutI64At(b.buf, b.writerIndex, v)
	b.writerIndex += 8
}

func (b *Buffer) WriteFloat32(v float32) {
	b.Grow(4)
	bx.PutF32At(b.buf, b.writerIndex, v)
	b.writerIndex += 4
}

func (b *Buffer) WriteFloat64(v float64) {
	b.Grow(8)
	bx.PutF64At(b.buf, b.writerIndex, v)
	b.writerIndex += 8
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.Grow(len(p))
	copy(b.buf[b.writerIndex:], p)
	b.writerIndex += len(p)
	return len(p), nil
}

func (b *Buffer) WriteUvarint(v uint64) {
	b.Grow(binary.MaxVarintLen64)
	b.writerIndex += binary.PutUvarint(b.buf[b.writerIndex:], v)
}

// WriteVarint writes v zigzag encoded.
func (b *Buffer) WriteVarint(v int64) { b.WriteUvarint(bx.Zigzag(v)) }

// ---- sequential reads (at the reader index, bounded by the writer index) ----

func (b *Buffer) ReadByte() (byte, error) {
	if b.Remaining() < 1 {
		return 0, ErrUnderflow
	}
	v := b.buf[b.readerIndex]
	b.readerIndex++
	return v, nil
}

func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadByte()
	return int8(v), err
}

func (b *Buffer) ReadInt64() (int64, error) {
	if b.Remaining() < 8 {
		return 0, ErrUnderflow
	}
	v := bx.I64At(b.buf, b.readerIndex)
	b.readerIndex += 8
	return v, nil
}

func (b *Buffer) ReadFloat32() (float32, error) {
	if b.Remaining() < 4 {
		return 0, ErrUnderflow
	}
	v := bx.F32At(b.buf, b.readerIndex)
	b.readerIndex += 4
	return v, nil
}

func (b *Buffer) ReadFloat64() (float64, error) {
	if b.Remaining() < 8 {
		return 0, ErrUnderflow
	}
	v := bx.F64At(b.buf, b.readerIndex)
	b.readerIndex += 8
	return v, nil
}

// ReadBytes returns the next n bytes without copying.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrUnderflow, n, b.Remaining())
	}
	p := b.buf[b.readerIndex : b.readerIndex+n : b.readerIndex+n]
	b.readerIndex += n
	return p, nil
}

func (b *Buffer) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(b.buf[b.readerIndex:b.writerIndex])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at %d", ErrUnderflow, b.readerIndex)
	}
	b.readerIndex += n
	return v, nil
}

func (b *Buffer) ReadVarint() (int64, error) {
	u, err := b.ReadUvarint()
	return bx.Unzigzag(u), err
}
