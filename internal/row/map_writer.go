package row

import "github.com/tuannm99/novarow/internal/memory"

// MapWriter writes MapData: a reserved word, the key array, then the value
// array. The word is back-patched with the key array's byte size once the
// keys are complete:
//
//	m.Reset()
//	keys := m.BeginKeys(n)   // write n keys
//	vals := m.BeginValues(n) // write n values
type MapWriter struct {
	parent Parent
	buf    *memory.Buffer
	start  int
	t      DataType
	keys   *ArrayWriter
	values *ArrayWriter
}

// NewMapWriter creates a writer for map type t. A nil parent gives the
// writer a buffer of its own.
func NewMapWriter(t DataType, parent Parent) *MapWriter {
	m := &MapWriter{parent: parent, t: t}
	if parent != nil {
		m.buf = parent.Buffer()
	} else {
		m.buf = memory.New(defaultBufferSize)
	}
	m.keys = NewArrayWriter(*t.Key, m)
	m.values = NewArrayWriter(*t.Value, m)
	return m
}

func (m *MapWriter) Buffer() *memory.Buffer { return m.buf }
func (m *MapWriter) beginVariable()         {}

func (m *MapWriter) StartIndex() int { return m.start }
func (m *MapWriter) Size() int       { return m.buf.WriterIndex() - m.start }

func (m *MapWriter) Reset() {
	if m.parent != nil {
		m.parent.beginVariable()
	}
	m.start = m.buf.WriterIndex()
	m.buf.Grow(8)
	m.buf.PutInt64(m.start, -1)
	m.buf.IncreaseWriterIndex(8)
}

func (m *MapWriter) BeginKeys(n int) *ArrayWriter {
	m.keys.Reset(n)
	return m.keys
}

// BeginValues records the finished key array's size and starts the values.
func (m *MapWriter) BeginValues(n int) *ArrayWriter {
	m.buf.PutInt64(m.start, int64(m.keys.Size()))
	m.values.Reset(n)
	return m.values
}

func (m *MapWriter) ToMap() *Map {
	mp := NewMap(m.t)
	if err := mp.PointTo(m.buf, m.start, m.Size()); err != nil {
		panic(err)
	}
	return mp
}
