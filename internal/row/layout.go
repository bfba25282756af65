package row

// Layout is the byte shape of a row for one schema.
//
// Uncompressed, every field owns an 8-byte slot after the null bitmap. In
// compressed mode int32/int64 fields own no slot; their values are zigzag
// varints packed, in ordinal order, right after the fixed region and padded
// to a word. Writers and readers of the same data must agree on the mode.
type Layout struct {
	schema      Schema
	compressed  bool
	bitmapWidth int
	fixedSize   int

	slot      []int // ordinal -> slot offset from row start, -1 when packed
	packed    []int // ordinal -> packed index, -1 when slotted
	numPacked int

	children []*Layout // struct fields only
}

func NewLayout(s Schema, compressed bool) *Layout {
	n := s.NumFields()
	l := &Layout{
		schema:      s,
		compressed:  compressed,
		bitmapWidth: BitmapWidth(n),
		slot:        make([]int, n),
		packed:      make([]int, n),
		children:    make([]*Layout, n),
	}
	off := l.bitmapWidth
	for i, f := range s.Fields {
		if compressed && (f.Type.ID == TypeInt32 || f.Type.ID == TypeInt64) {
			l.slot[i] = -1
			l.packed[i] = l.numPacked
			l.numPacked++
		} else {
			l.slot[i] = off
			l.packed[i] = -1
			off += 8
		}
		if f.Type.ID == TypeStruct {
			l.children[i] = NewLayout(SchemaOf(f.Type), compressed)
		}
	}
	l.fixedSize = off
	return l
}

func (l *Layout) Schema() Schema      { return l.schema }
func (l *Layout) Compressed() bool    { return l.compressed }
func (l *Layout) FixedSize() int      { return l.fixedSize }
func (l *Layout) NumPacked() int      { return l.numPacked }
func (l *Layout) IsPacked(i int) bool { return l.packed[i] >= 0 }

// SlotOffset is the offset of ordinal i's slot from the row start.
func (l *Layout) SlotOffset(i int) int { return l.slot[i] }

// Child is the layout of struct field i.
func (l *Layout) Child(i int) *Layout { return l.children[i] }

// Contiguous reports whether ordinals first..first+n-1 own adjacent slots.
func (l *Layout) Contiguous(first, n int) bool {
	for i := first; i < first+n; i++ {
		if l.slot[i] < 0 || l.slot[i] != l.slot[first]+8*(i-first) {
			return false
		}
	}
	return true
}
